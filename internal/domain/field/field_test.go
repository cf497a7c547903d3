package field

import (
	"testing"

	"github.com/stretchr/testify/require"

	"linac-qc/internal/domain/entity"
)

// SAD/SID = 0.5, шаг 0.4 мм -> 0.2 мм в изоцентре.
var testCalibration = entity.Calibration{
	SourceIsocenterDistance: 1000,
	SourceDetectorDistance:  2000,
	PixelSpacingX:           0.4,
	PixelSpacingY:           0.4,
	ReferencePositionX:      -100,
	ReferencePositionY:      -100,
}

func region(x, y, w, h int) entity.Region {
	return entity.NewRegion(nil, entity.BoundingBox{X: x, Y: y, Width: w, Height: h}, float64(w*h))
}

func TestMeasure(t *testing.T) {
	dim := Measure([]entity.Region{region(100, 100, 250, 200), region(340, 120, 260, 225)}, testCalibration)
	require.NotNil(t, dim)

	require.Equal(t, 500, dim.WidthPx)
	require.Equal(t, 245, dim.HeightPx)
	require.InDelta(t, 100.0, dim.WidthMM, 1e-9)
	require.InDelta(t, 49.0, dim.HeightMM, 1e-9)
	require.InDelta(t, 350.0, dim.CenterXPx, 1e-9)
	require.InDelta(t, 222.5, dim.CenterYPx, 1e-9)
	require.InDelta(t, 40.0, dim.CenterXMM, 1e-9)
	require.InDelta(t, -11.0, dim.CenterYMM, 1e-9)
	require.InDelta(t, 20.0, dim.CenterXIso, 1e-9)
	require.InDelta(t, -5.5, dim.CenterYIso, 1e-9)
}

func TestMeasure_NoRegions(t *testing.T) {
	require.Nil(t, Measure(nil, testCalibration))
}

func TestCheckSize(t *testing.T) {
	expected := entity.DefaultExpectedFieldSizes()

	check := CheckSize(&entity.FieldDimensions{WidthMM: 150.4, HeightMM: 84.3}, expected, 1.0)
	require.True(t, check.Valid)
	require.Equal(t, "150x85", check.Matched)
	require.False(t, check.Rotated)
	require.InDelta(t, 0.7, check.HeightError, 1e-9)

	check = CheckSize(&entity.FieldDimensions{WidthMM: 85.2, HeightMM: 149.5}, expected, 1.0)
	require.True(t, check.Valid)
	require.Equal(t, "150x85", check.Matched)
	require.True(t, check.Rotated)

	check = CheckSize(&entity.FieldDimensions{WidthMM: 52, HeightMM: 50}, expected, 1.0)
	require.False(t, check.Valid)
	require.Contains(t, check.Message, "does not match")

	check = CheckSize(nil, expected, 1.0)
	require.False(t, check.Valid)
}

func TestBladeOpenings(t *testing.T) {
	center := entity.MVCenter{U: 512, V: 500}
	nominal := []float64{20, 30, 40}

	// Регионы в обратном порядке: результат должен идти слева направо.
	blades := BladeOpenings([]entity.Region{
		region(300, 300, 20, 153), // 40 и 9.4 мм
		region(100, 400, 20, 100), // 20 и 0 мм
		region(200, 0, 20, 0),
	}, testCalibration, center, nominal, 1.0)
	require.Len(t, blades, 3)

	require.Equal(t, 1, blades[0].Index)
	require.InDelta(t, 20.0, blades[0].TopMM, 1e-9)
	require.InDelta(t, 0.0, blades[0].BottomMM, 1e-9)
	require.InDelta(t, 20.0, blades[0].OpeningMM, 1e-9)
	require.Equal(t, entity.BladeOK, blades[0].Status)
	require.Equal(t, 20.0, blades[0].Nominal)

	require.Equal(t, entity.BladeClosed, blades[1].Status)

	require.InDelta(t, 30.6, blades[2].OpeningMM, 1e-9)
	require.Equal(t, entity.BladeOK, blades[2].Status)
	require.Equal(t, 30.0, blades[2].Nominal)
}

func TestBladeOpenings_OutOfTolerance(t *testing.T) {
	blades := BladeOpenings([]entity.Region{region(0, 0, 10, 125)}, testCalibration, entity.MVCenter{V: 100}, []float64{20, 30, 40}, 1.0)
	require.Len(t, blades, 1)
	require.InDelta(t, 25.0, blades[0].OpeningMM, 1e-9)
	require.Equal(t, entity.BladeOutOfTolerance, blades[0].Status)
}

func TestSummarize(t *testing.T) {
	s := Summarize(3, "img3.dcm", []entity.BladeOpening{
		{TopMM: 41, BottomMM: 21, Status: entity.BladeOK},
		{TopMM: 39, BottomMM: 19, Status: entity.BladeOutOfTolerance},
		{Status: entity.BladeClosed},
	})
	require.Equal(t, 3, s.UploadOrder)
	require.Equal(t, "img3.dcm", s.Filename)
	require.True(t, s.Complete())
	require.InDelta(t, 40.0, *s.TopAverage, 1e-9)
	require.InDelta(t, 20.0, *s.BottomAverage, 1e-9)
}

func TestSummarize_AllClosed(t *testing.T) {
	s := Summarize(1, "", []entity.BladeOpening{{Status: entity.BladeClosed}})
	require.False(t, s.Complete())
	require.Nil(t, s.TopAverage)
}
