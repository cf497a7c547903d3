package entity

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Calibration геометрия снимка из DICOM (все расстояния в мм).
type Calibration struct {
	SourceIsocenterDistance float64 // SAD
	SourceDetectorDistance  float64 // SID
	PixelSpacingX           float64 // шаг детектора по X
	PixelSpacingY           float64 // шаг детектора по Y
	ReferencePositionX      float64 // RT Image Position X
	ReferencePositionY      float64 // RT Image Position Y
}

// Validate проверяет калибровку до любой обработки пикселей.
func (c Calibration) Validate() error {
	checks := []struct {
		field string
		value float64
	}{
		{"source_isocenter_distance", c.SourceIsocenterDistance},
		{"source_detector_distance", c.SourceDetectorDistance},
		{"pixel_spacing_x", c.PixelSpacingX},
		{"pixel_spacing_y", c.PixelSpacingY},
	}
	for _, ch := range checks {
		if !(ch.value > 0) || math.IsInf(ch.value, 0) {
			return &CalibrationError{Field: ch.field, Value: ch.value}
		}
	}

	for _, ref := range []float64{c.ReferencePositionX, c.ReferencePositionY} {
		if math.IsNaN(ref) || math.IsInf(ref, 0) {
			return &CalibrationError{Field: "reference_position", Value: ref}
		}
	}

	scale := c.ScalingFactor()
	if !(scale > 0) || math.IsInf(scale, 0) {
		return &CalibrationError{Field: "scaling_factor", Value: scale}
	}
	return nil
}

// ScalingFactor проекция плоскости детектора на плоскость изоцентра (SAD/SID).
func (c Calibration) ScalingFactor() float64 {
	return c.SourceIsocenterDistance / c.SourceDetectorDistance
}

// IsocenterSpacing возвращает размер пикселя в изоцентре, мм.
func (c Calibration) IsocenterSpacing() (x, y float64) {
	s := c.ScalingFactor()
	return c.PixelSpacingX * s, c.PixelSpacingY * s
}

// CalibratedImage декодированная сетка интенсивностей с калибровкой.
type CalibratedImage struct {
	Width       int
	Height      int
	Pixels      []float64 // построчно, len = Width*Height
	Calibration Calibration
	SourceName  string
	AcquiredAt  time.Time
}

// NewCalibratedImage собирает снимок и проверяет размеры и калибровку.
func NewCalibratedImage(width, height int, pixels []float64, cal Calibration) (*CalibratedImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", width, height)
	}
	if len(pixels) != width*height {
		return nil, errors.Errorf("pixel count %d does not match %dx%d", len(pixels), width, height)
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}

	return &CalibratedImage{
		Width:       width,
		Height:      height,
		Pixels:      pixels,
		Calibration: cal,
	}, nil
}

// At возвращает интенсивность в точке (x, y).
func (img *CalibratedImage) At(x, y int) float64 {
	return img.Pixels[y*img.Width+x]
}
