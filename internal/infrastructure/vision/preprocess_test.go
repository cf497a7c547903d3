package vision

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"linac-qc/internal/domain/entity"
)

var testCalibration = entity.Calibration{
	SourceIsocenterDistance: 1000,
	SourceDetectorDistance:  1600,
	PixelSpacingX:           0.392,
	PixelSpacingY:           0.392,
}

func gradientImage(t *testing.T, w, h int) *entity.CalibratedImage {
	t.Helper()
	pixels := make([]float64, w*h)
	for i := range pixels {
		pixels[i] = 1000 + float64(i)*3.5
	}
	img, err := entity.NewCalibratedImage(w, h, pixels, testCalibration)
	require.NoError(t, err)
	return img
}

func TestNormalizeTo8Bit_Range(t *testing.T) {
	gray, err := NormalizeTo8Bit(gradientImage(t, 16, 8))
	require.NoError(t, err)

	require.Equal(t, 16, gray.Bounds().Dx())
	require.Equal(t, 8, gray.Bounds().Dy())
	require.Equal(t, uint8(0), gray.Pix[0])
	require.Equal(t, uint8(255), gray.Pix[len(gray.Pix)-1])
	for i := 1; i < len(gray.Pix); i++ {
		require.GreaterOrEqual(t, gray.Pix[i], gray.Pix[i-1])
	}
}

func TestNormalizeTo8Bit_Deterministic(t *testing.T) {
	img := gradientImage(t, 10, 10)
	a, err := NormalizeTo8Bit(img)
	require.NoError(t, err)
	b, err := NormalizeTo8Bit(img)
	require.NoError(t, err)
	require.Equal(t, a.Pix, b.Pix)
}

func TestNormalizeTo8Bit_Constant(t *testing.T) {
	img := gradientImage(t, 4, 4)
	for i := range img.Pixels {
		img.Pixels[i] = 42
	}

	_, err := NormalizeTo8Bit(img)
	require.Error(t, err)
	require.True(t, errors.Is(err, entity.ErrDegenerateImage))

	var degenerate *entity.DegenerateImageError
	require.True(t, errors.As(err, &degenerate))
	require.Equal(t, 42.0, degenerate.Value)
}

func TestNormalizeTo8Bit_NonFinite(t *testing.T) {
	img := gradientImage(t, 4, 4)
	img.Pixels[5] = math.NaN()

	_, err := NormalizeTo8Bit(img)
	require.True(t, errors.Is(err, entity.ErrDegenerateImage))
}

func TestNormalizeTo8Bit_CalibrationCheckedFirst(t *testing.T) {
	img := gradientImage(t, 4, 4)
	for i := range img.Pixels {
		img.Pixels[i] = 0
	}
	img.Calibration.SourceDetectorDistance = 0

	_, err := NormalizeTo8Bit(img)
	require.True(t, errors.Is(err, entity.ErrCalibration))
	require.False(t, errors.Is(err, entity.ErrDegenerateImage))
}
