package vision

import (
	"image"
	"math"

	"linac-qc/internal/domain/entity"
)

// NormalizeTo8Bit проверяет калибровку и динамический диапазон,
// затем линейно растягивает интенсивности в 0..255.
func NormalizeTo8Bit(img *entity.CalibratedImage) (*image.Gray, error) {
	if err := img.Calibration.Validate(); err != nil {
		return nil, err
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Pixels) != img.Width*img.Height {
		return nil, &entity.DegenerateImageError{Value: float64(len(img.Pixels)), Reason: "pixel grid does not match image size"}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range img.Pixels {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &entity.DegenerateImageError{Value: v, Reason: "non-finite intensity"}
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return nil, &entity.DegenerateImageError{Value: hi, Reason: "no dynamic range"}
	}

	out := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	span := hi - lo
	for i, v := range img.Pixels {
		// усечение, как при приведении к uint8
		out.Pix[i] = uint8((v - lo) / span * 255)
	}
	return out, nil
}
