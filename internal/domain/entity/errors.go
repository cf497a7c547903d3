package entity

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrCalibration геометрическая калибровка отсутствует или некорректна.
	ErrCalibration = errors.New("invalid calibration")
	// ErrDegenerateImage изображение без динамического диапазона.
	ErrDegenerateImage = errors.New("degenerate image")
	// ErrReportNotFound отчёт с таким ID не сохранялся.
	ErrReportNotFound = errors.New("report not found")
)

// CalibrationError описывает конкретное неверное калибровочное поле.
type CalibrationError struct {
	Field string
	Value float64
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("invalid calibration: %s=%v", e.Field, e.Value)
}

func (e *CalibrationError) Unwrap() error {
	return ErrCalibration
}

// DegenerateImageError возвращается, когда max == min или в сетке есть NaN/Inf.
type DegenerateImageError struct {
	Value  float64
	Reason string
}

func (e *DegenerateImageError) Error() string {
	return fmt.Sprintf("degenerate image: %s (value=%v)", e.Reason, e.Value)
}

func (e *DegenerateImageError) Unwrap() error {
	return ErrDegenerateImage
}

// IsImageRejected сообщает, что изображение нельзя анализировать (ошибка уровня одного снимка).
func IsImageRejected(err error) bool {
	return errors.Is(err, ErrCalibration) || errors.Is(err, ErrDegenerateImage)
}
