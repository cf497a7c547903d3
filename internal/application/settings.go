package app

import (
	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/field"
)

// AnalysisSettings геометрия установки и допуски проверок.
type AnalysisSettings struct {
	MVCenter           entity.MVCenter
	ExpectedFieldSizes []entity.ExpectedFieldSize
	FieldTolerance     float64 // мм
	BladeNominal       []float64
	BladeTolerance     float64 // мм
	ExpectedAngle      float64 // градусы
	AngleTolerance     float64 // градусы
	Slits              field.SlitParams
}

// DefaultAnalysisSettings возвращает значения для EPID 1024x1024.
func DefaultAnalysisSettings() AnalysisSettings {
	return AnalysisSettings{
		MVCenter:           entity.MVCenter{U: 512, V: 512},
		ExpectedFieldSizes: entity.DefaultExpectedFieldSizes(),
		FieldTolerance:     1.0,
		BladeNominal:       []float64{20, 30, 40},
		BladeTolerance:     1.0,
		ExpectedAngle:      90,
		AngleTolerance:     1.0,
		Slits:              field.DefaultSlitParams(),
	}
}

// Observer получает события анализа (метрики).
type Observer interface {
	ObserveImage(kind string, err error)
	ObserveIdentification(valid bool)
}

type nopObserver struct{}

func (nopObserver) ObserveImage(string, error) {}
func (nopObserver) ObserveIdentification(bool) {}

// Виды анализа для метрик
const (
	KindField        = "field"
	KindLeafPosition = "leaf_position"
	KindSlit         = "slit"
)
