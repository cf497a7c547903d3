package app

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/field"
	"linac-qc/internal/domain/port"
)

// SlitService измеряет ширину щелей MLC на одном снимке. Результат информационный.
type SlitService struct {
	decoder  port.ImageDecoder
	edges    port.EdgeDetector
	settings AnalysisSettings
	observer Observer
}

// NewSlitService создаёт сервис анализа щелей. observer может быть nil.
func NewSlitService(decoder port.ImageDecoder, edges port.EdgeDetector, settings AnalysisSettings, observer Observer) *SlitService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &SlitService{
		decoder:  decoder,
		edges:    edges,
		settings: settings,
		observer: observer,
	}
}

// Analyze декодирует снимок и находит щели вокруг строки центра MV.
// Снимок без щелей даёт отчёт с пустым списком.
func (s *SlitService) Analyze(ctx context.Context, filename string, data []byte) (report *entity.SlitReport, err error) {
	defer func() { s.observer.ObserveImage(KindSlit, err) }()

	if s.edges == nil {
		return nil, errors.New("edge detector is not configured")
	}

	img, err := s.decoder.Decode(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	edges, err := s.edges.Edges(ctx, img)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compute edges of %s", filename)
	}

	spacing := field.SlitSpacing(img.Calibration)
	report = &entity.SlitReport{
		Filename:     filename,
		AcquiredAt:   img.AcquiredAt,
		PixelSpacing: spacing,
		Slits:        field.DetectSlits(edges, s.settings.MVCenter, spacing, s.settings.Slits),
	}

	entry := log.WithFields(log.Fields{"file": filename, "slits": len(report.Slits)})
	if len(report.Slits) == 0 {
		entry.Warn("no slits detected")
	} else {
		entry.Info("slits analysed")
	}
	return report, nil
}
