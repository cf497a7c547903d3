package rtimage

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"linac-qc/internal/domain/entity"
)

func element(t *testing.T, tg tag.Tag, value interface{}) *dicom.Element {
	t.Helper()
	el, err := dicom.NewElement(tg, value)
	require.NoError(t, err)
	return el
}

func rtDataset(t *testing.T) dicom.Dataset {
	return dicom.Dataset{Elements: []*dicom.Element{
		element(t, tagRadiationMachineSAD, []string{"1000"}),
		element(t, tagRTImageSID, []string{"1600.0"}),
		element(t, tagImagePlanePixelSpacing, []string{"0.392", "0.400"}),
		element(t, tagRTImagePosition, []string{"-200.704", "200.704"}),
		element(t, acquisitionTags[0][0], []string{"20240312"}),
		element(t, acquisitionTags[0][1], []string{"081532.123456"}),
	}}
}

func TestCalibrationFromDataset(t *testing.T) {
	cal, err := calibrationFromDataset(rtDataset(t))
	require.NoError(t, err)

	require.Equal(t, 1000.0, cal.SourceIsocenterDistance)
	require.Equal(t, 1600.0, cal.SourceDetectorDistance)
	require.Equal(t, 0.400, cal.PixelSpacingX)
	require.Equal(t, 0.392, cal.PixelSpacingY)
	require.Equal(t, -200.704, cal.ReferencePositionX)
	require.Equal(t, 200.704, cal.ReferencePositionY)
	require.InDelta(t, 0.625, cal.ScalingFactor(), 1e-12)
}

func TestCalibrationFromDataset_MissingTag(t *testing.T) {
	ds := rtDataset(t)
	ds.Elements = ds.Elements[1:] // без SAD

	_, err := calibrationFromDataset(ds)
	require.True(t, errors.Is(err, entity.ErrCalibration))

	var calErr *entity.CalibrationError
	require.True(t, errors.As(err, &calErr))
	require.Equal(t, "source_isocenter_distance", calErr.Field)
}

func TestCalibrationFromDataset_ZeroDistance(t *testing.T) {
	ds := rtDataset(t)
	ds.Elements[1] = element(t, tagRTImageSID, []string{"0"})

	_, err := calibrationFromDataset(ds)
	require.True(t, errors.Is(err, entity.ErrCalibration))
}

func TestCalibrationFromDataset_MissingPositionDefaultsToOrigin(t *testing.T) {
	ds := rtDataset(t)
	ds.Elements = append(ds.Elements[:3:3], ds.Elements[4:]...)

	cal, err := calibrationFromDataset(ds)
	require.NoError(t, err)
	require.Zero(t, cal.ReferencePositionX)
	require.Zero(t, cal.ReferencePositionY)
}

func TestAcquisitionTime(t *testing.T) {
	got := acquisitionTime(rtDataset(t))
	require.Equal(t, time.Date(2024, 3, 12, 8, 15, 32, 0, time.UTC), got)

	require.True(t, acquisitionTime(dicom.Dataset{}).IsZero())
}

func TestFramePixels(t *testing.T) {
	pixels, err := framePixels(2, 3, [][]int{{1}, {2}, {3}, {4}, {5}, {6}})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, pixels)

	_, err = framePixels(2, 2, [][]int{{1}, {2}, {3}})
	require.Error(t, err)

	_, err = framePixels(0, 2, nil)
	require.Error(t, err)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := NewDecoder().Decode(context.Background(), "broken.dcm", []byte("not a dicom file"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.dcm")
}
