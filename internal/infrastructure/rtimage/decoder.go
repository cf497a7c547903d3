// Package rtimage читает RT Image DICOM: калибровочные теги и нативный кадр пикселей.
package rtimage

import (
	"bytes"
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/port"
)

var (
	tagRadiationMachineSAD    = tag.Tag{Group: 0x3002, Element: 0x0022}
	tagRTImageSID             = tag.Tag{Group: 0x3002, Element: 0x0026}
	tagImagePlanePixelSpacing = tag.Tag{Group: 0x3002, Element: 0x0011}
	tagRTImagePosition        = tag.Tag{Group: 0x3002, Element: 0x0012}
	tagPixelSpacing           = tag.Tag{Group: 0x0028, Element: 0x0030}
	tagPixelData              = tag.Tag{Group: 0x7FE0, Element: 0x0010}
)

// пары дата/время в порядке предпочтения
var acquisitionTags = [][2]tag.Tag{
	{{Group: 0x0008, Element: 0x0023}, {Group: 0x0008, Element: 0x0033}}, // Content
	{{Group: 0x0008, Element: 0x0022}, {Group: 0x0008, Element: 0x0032}}, // Acquisition
	{{Group: 0x0008, Element: 0x0020}, {Group: 0x0008, Element: 0x0030}}, // Study
}

// Decoder разбирает DICOM-файлы EPID
type Decoder struct{}

// NewDecoder создаёт декодер
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode разбирает файл в калиброванный снимок.
func (d *Decoder) Decode(ctx context.Context, filename string, data []byte) (*entity.CalibratedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse DICOM %s", filename)
	}

	return FromDataset(filename, ds)
}

// FromDataset строит снимок из уже разобранного набора элементов.
func FromDataset(filename string, ds dicom.Dataset) (*entity.CalibratedImage, error) {
	cal, err := calibrationFromDataset(ds)
	if err != nil {
		return nil, err
	}

	width, height, pixels, err := pixelsFromDataset(ds)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read pixels of %s", filename)
	}

	img, err := entity.NewCalibratedImage(width, height, pixels, cal)
	if err != nil {
		return nil, err
	}
	img.SourceName = filename
	img.AcquiredAt = acquisitionTime(ds)
	return img, nil
}

func calibrationFromDataset(ds dicom.Dataset) (entity.Calibration, error) {
	var cal entity.Calibration

	sad, err := firstFloat(ds, tagRadiationMachineSAD)
	if err != nil {
		return cal, &entity.CalibrationError{Field: "source_isocenter_distance", Value: math.NaN()}
	}
	sid, err := firstFloat(ds, tagRTImageSID)
	if err != nil {
		return cal, &entity.CalibrationError{Field: "source_detector_distance", Value: math.NaN()}
	}

	spacing, err := floats(ds, tagImagePlanePixelSpacing)
	if err != nil {
		spacing, err = floats(ds, tagPixelSpacing)
	}
	if err != nil || len(spacing) < 2 {
		return cal, &entity.CalibrationError{Field: "pixel_spacing", Value: math.NaN()}
	}

	cal = entity.Calibration{
		SourceIsocenterDistance: sad,
		SourceDetectorDistance:  sid,
		// в DICOM сначала строка, затем столбец
		PixelSpacingX: spacing[1],
		PixelSpacingY: spacing[0],
	}

	position, err := floats(ds, tagRTImagePosition)
	if err == nil && len(position) >= 2 {
		cal.ReferencePositionX, cal.ReferencePositionY = position[0], position[1]
	} else {
		log.Warn("RT Image Position is missing, field centre is relative to the image origin")
	}

	if err := cal.Validate(); err != nil {
		return entity.Calibration{}, err
	}
	return cal, nil
}

func pixelsFromDataset(ds dicom.Dataset) (int, int, []float64, error) {
	el, err := ds.FindElementByTag(tagPixelData)
	if err != nil {
		return 0, 0, nil, errors.Wrap(err, "pixel data not found")
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return 0, 0, nil, errors.New("unexpected pixel data value")
	}
	if info.IsEncapsulated || len(info.Frames) == 0 {
		return 0, 0, nil, errors.New("only native uncompressed pixel data is supported")
	}

	fr := info.Frames[0]
	if fr.Encapsulated {
		return 0, 0, nil, errors.New("only native uncompressed pixel data is supported")
	}
	pixels, err := framePixels(fr.NativeData.Rows, fr.NativeData.Cols, fr.NativeData.Data)
	if err != nil {
		return 0, 0, nil, err
	}
	return fr.NativeData.Cols, fr.NativeData.Rows, pixels, nil
}

// framePixels переводит выборки первого канала в построчную сетку float64.
func framePixels(rows, cols int, data [][]int) ([]float64, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("invalid frame size %dx%d", cols, rows)
	}
	if len(data) != rows*cols {
		return nil, errors.Errorf("frame has %d samples, expected %d", len(data), rows*cols)
	}

	out := make([]float64, len(data))
	for i, sample := range data {
		if len(sample) == 0 {
			return nil, errors.Errorf("empty sample at %d", i)
		}
		out[i] = float64(sample[0])
	}
	return out, nil
}

func floats(ds dicom.Dataset, t tag.Tag) ([]float64, error) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, err
	}

	switch v := el.Value.GetValue().(type) {
	case []float64:
		return v, nil
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, nil
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			// DS может содержать несколько значений через "\"
			for _, part := range strings.Split(s, `\`) {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				f, err := strconv.ParseFloat(part, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "tag %s", t)
				}
				out = append(out, f)
			}
		}
		return out, nil
	}
	return nil, errors.Errorf("tag %s has unsupported value type", t)
}

func firstFloat(ds dicom.Dataset, t tag.Tag) (float64, error) {
	v, err := floats(ds, t)
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, errors.Errorf("tag %s is empty", t)
	}
	return v[0], nil
}

func firstString(ds dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	v, ok := el.Value.GetValue().([]string)
	if !ok || len(v) == 0 {
		return ""
	}
	return strings.TrimSpace(v[0])
}

// acquisitionTime возвращает время снимка; нулевое, если теги отсутствуют.
func acquisitionTime(ds dicom.Dataset) time.Time {
	for _, pair := range acquisitionTags {
		date, clock := firstString(ds, pair[0]), firstString(ds, pair[1])
		if date == "" || clock == "" {
			continue
		}
		if i := strings.IndexByte(clock, '.'); i >= 0 {
			clock = clock[:i]
		}
		t, err := time.Parse("20060102150405", date+clock)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

// Проверка реализации интерфейса
var _ port.ImageDecoder = (*Decoder)(nil)
