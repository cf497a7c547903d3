//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"linac-qc/internal/domain/entity"
)

var errNoOpenCV = errors.New("gocv build tag is not enabled")

type GoCVDetector struct {
	Params DetectorParams
}

// NewGoCVDetector создаёт детектор-заглушку (без OpenCV).
func NewGoCVDetector(params DetectorParams) *GoCVDetector {
	return &GoCVDetector{Params: params}
}

// Preprocessed промежуточные изображения предобработки.
type Preprocessed struct {
	Normalized *image.Gray
	Enhanced   *image.Gray
	Sharpened  *image.Gray
}

// Detect проверяет снимок и возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Detect(ctx context.Context, img *entity.CalibratedImage) ([]entity.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := NormalizeTo8Bit(img); err != nil {
		return nil, err
	}
	return nil, errNoOpenCV
}

// Preprocess выполняет только нормализацию, остальное требует OpenCV.
func (d *GoCVDetector) Preprocess(img *entity.CalibratedImage) (*Preprocessed, error) {
	if _, err := NormalizeTo8Bit(img); err != nil {
		return nil, err
	}
	return nil, errNoOpenCV
}

// Edges проверяет калибровку и возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Edges(ctx context.Context, img *entity.CalibratedImage) (*entity.EdgeMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := img.Calibration.Validate(); err != nil {
		return nil, err
	}
	return nil, errNoOpenCV
}
