package app

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/field"
	"linac-qc/internal/domain/port"
)

// FieldService проверяет размер и центр поля по одному снимку.
type FieldService struct {
	decoder  port.ImageDecoder
	detector port.RegionDetector
	settings AnalysisSettings
	observer Observer
}

// NewFieldService создаёт сервис проверки поля. observer может быть nil.
func NewFieldService(decoder port.ImageDecoder, detector port.RegionDetector, settings AnalysisSettings, observer Observer) *FieldService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &FieldService{
		decoder:  decoder,
		detector: detector,
		settings: settings,
		observer: observer,
	}
}

// Analyze декодирует снимок, находит контуры и сравнивает поле с ожидаемыми размерами.
// Закрытое поле: отчёт с Closed=true, а не ошибка.
func (s *FieldService) Analyze(ctx context.Context, filename string, data []byte) (report *entity.FieldReport, err error) {
	defer func() { s.observer.ObserveImage(KindField, err) }()

	if s.detector == nil {
		return nil, errors.New("detector is not configured")
	}

	img, err := s.decoder.Decode(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	regions, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to detect field in %s", filename)
	}

	report = &entity.FieldReport{
		Filename:    filename,
		AcquiredAt:  img.AcquiredAt,
		ImageWidth:  img.Width,
		ImageHeight: img.Height,
		Regions:     regions,
	}

	dim := field.Measure(regions, img.Calibration)
	if dim == nil {
		report.Closed = true
		report.SizeCheck = entity.FieldSizeCheck{Message: "no field detected"}
		log.WithField("file", filename).Warn("field analysis found no open field")
		return report, nil
	}

	report.Dimensions = dim
	report.SizeCheck = field.CheckSize(dim, s.settings.ExpectedFieldSizes, s.settings.FieldTolerance)

	// Углы считаются по контуру самого поля, мелкие регионы не участвуют.
	fieldRegion, _ := field.MainRegion(regions)
	shape := field.CheckShape(field.CornerAngles(fieldRegion), s.settings.ExpectedAngle, s.settings.AngleTolerance)
	report.Shape = &shape

	log.WithFields(log.Fields{
		"file":        filename,
		"width_mm":    dim.WidthMM,
		"height_mm":   dim.HeightMM,
		"valid":       report.SizeCheck.Valid,
		"shape_valid": shape.Valid,
	}).Info("field analysed")
	return report, nil
}
