//go:build gocv
// +build gocv

package vision

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/field"
)

type rect struct{ x, y, w, h int }

// syntheticImage рисует тёмные прямоугольники на светлом фоне.
func syntheticImage(t *testing.T, w, h int, rects ...rect) *entity.CalibratedImage {
	t.Helper()
	pixels := make([]float64, w*h)
	for i := range pixels {
		pixels[i] = 4000
	}
	for _, r := range rects {
		for y := r.y; y < r.y+r.h; y++ {
			for x := r.x; x < r.x+r.w; x++ {
				pixels[y*w+x] = 200
			}
		}
	}
	img, err := entity.NewCalibratedImage(w, h, pixels, testCalibration)
	require.NoError(t, err)
	return img
}

func TestPreprocess_OutputsAreEightBit(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	img := syntheticImage(t, 256, 256, rect{60, 60, 80, 40})

	pre, err := d.Preprocess(img)
	require.NoError(t, err)
	for _, g := range []*image.Gray{pre.Normalized, pre.Enhanced, pre.Sharpened} {
		require.Equal(t, image.Rect(0, 0, 256, 256), g.Bounds())
		require.Len(t, g.Pix, 256*256)
	}
}

func TestPreprocess_Deterministic(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	img := syntheticImage(t, 128, 128, rect{20, 20, 50, 30})

	a, err := d.Preprocess(img)
	require.NoError(t, err)
	b, err := d.Preprocess(img)
	require.NoError(t, err)
	require.Equal(t, a.Enhanced.Pix, b.Enhanced.Pix)
	require.Equal(t, a.Sharpened.Pix, b.Sharpened.Pix)
}

func TestPreprocess_DegenerateImage(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	img := syntheticImage(t, 64, 64)

	_, err := d.Preprocess(img)
	require.True(t, errors.Is(err, entity.ErrDegenerateImage))
}

func TestDetect_FindsRectanglesAboveMinArea(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	img := syntheticImage(t, 400, 300,
		rect{40, 40, 60, 100},
		rect{250, 60, 70, 120},
		rect{200, 250, 8, 8}, // слишком мелкий
	)

	regions, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	for _, r := range regions {
		require.GreaterOrEqual(t, r.Area, d.Params.MinArea)
	}
}

func TestDetect_EmptyResultIsValid(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	pixels := make([]float64, 64*64)
	for i := range pixels {
		pixels[i] = 4000 + float64(i%64)*0.01
	}
	img, err := entity.NewCalibratedImage(64, 64, pixels, testCalibration)
	require.NoError(t, err)
	img.Pixels[0] = 0

	regions, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.Empty(t, regions)
}

func TestMergeNearby_MergesFragmentsInOneRow(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	img := syntheticImage(t, 300, 200,
		rect{100, 80, 25, 30},
		rect{135, 82, 25, 30},
		rect{100, 150, 25, 30},
	)

	pre, err := d.Preprocess(img)
	require.NoError(t, err)
	raw, err := d.DetectRegions(pre.Enhanced)
	require.NoError(t, err)
	require.Len(t, raw, 3)

	merged, err := d.MergeNearby(raw, img.Width, img.Height)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	require.LessOrEqual(t, len(merged), len(raw))

	var biggest entity.Region
	for _, r := range merged {
		if r.Area > biggest.Area {
			biggest = r
		}
	}
	for _, r := range raw {
		require.GreaterOrEqual(t, biggest.Area, r.Area)
	}
	require.GreaterOrEqual(t, biggest.Box.Width, 55)
}

func TestDetect_CanceledContext(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, syntheticImage(t, 32, 32, rect{4, 4, 10, 10}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetect_RectangleGetsFourRightAngles(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	img := syntheticImage(t, 300, 200, rect{60, 50, 150, 85})

	regions, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	require.Len(t, regions[0].Polygon, 4)

	check := field.CheckShape(field.CornerAngles(regions[0]), 90, 1)
	require.True(t, check.Valid, check.Message)
}

func TestEdges_StepProducesGradientOnlyAtBorder(t *testing.T) {
	d := NewGoCVDetector(DefaultDetectorParams())
	img := syntheticImage(t, 64, 64, rect{0, 32, 64, 32})

	edges, err := d.Edges(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, 64, edges.Width)
	require.Len(t, edges.Values, 64*64)

	require.Zero(t, edges.At(10, 5))
	require.Zero(t, edges.At(10, 50))
	require.Greater(t, edges.At(10, 31), 1000.0)
	require.Greater(t, edges.At(10, 32), 1000.0)
}
