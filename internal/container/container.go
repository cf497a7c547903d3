package container

import (
	app "linac-qc/internal/application"
	"linac-qc/internal/domain/port"
	"linac-qc/internal/domain/position"
)

type Container struct {
	OperatorService     *app.OperatorService
	FieldService        *app.FieldService
	LeafPositionService *app.LeafPositionService
	SlitService         *app.SlitService
}

// Deps адаптеры инфраструктуры, из которых собираются сервисы.
type Deps struct {
	Operators  port.OperatorRepository
	Reports    port.ReportRepository
	Decoder    port.ImageDecoder
	Detector   port.RegionDetector
	Edges      port.EdgeDetector
	Identifier *position.Identifier
	Settings   app.AnalysisSettings
	Observer   app.Observer
}

func New(deps Deps) *Container {
	operatorService := app.NewOperatorService(deps.Operators)
	fieldService := app.NewFieldService(deps.Decoder, deps.Detector, deps.Settings, deps.Observer)
	slitService := app.NewSlitService(deps.Decoder, deps.Edges, deps.Settings, deps.Observer)
	leafService := app.NewLeafPositionService(
		operatorService,
		deps.Decoder,
		deps.Detector,
		deps.Identifier,
		deps.Reports,
		deps.Settings,
		deps.Observer,
	)

	return &Container{
		OperatorService:     operatorService,
		FieldService:        fieldService,
		LeafPositionService: leafService,
		SlitService:         slitService,
	}
}
