//go:build gocv
// +build gocv

package vision

import (
	"context"
	"image"
	"image/color"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"linac-qc/internal/domain/entity"
)

// laplacianKernel ядро повышения резкости 3x3.
var laplacianKernel = [3][3]float32{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

type GoCVDetector struct {
	Params DetectorParams
}

// NewGoCVDetector создаёт детектор контуров полей и лепестков.
func NewGoCVDetector(params DetectorParams) *GoCVDetector {
	return &GoCVDetector{Params: params}
}

// Preprocessed промежуточные изображения предобработки.
type Preprocessed struct {
	Normalized *image.Gray
	Enhanced   *image.Gray // после CLAHE
	Sharpened  *image.Gray // после лапласиана
}

// Detect находит регионы на калиброванном снимке. Пустой результат допустим.
func (d *GoCVDetector) Detect(ctx context.Context, img *entity.CalibratedImage) ([]entity.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pre, err := d.Preprocess(img)
	if err != nil {
		return nil, err
	}

	regions, err := d.DetectRegions(pre.Enhanced)
	if err != nil {
		return nil, err
	}

	merged, err := d.MergeNearby(regions, img.Width, img.Height)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"source":   img.SourceName,
		"detected": len(regions),
		"merged":   len(merged),
	}).Debug("contour detection finished")
	return merged, nil
}

// Preprocess нормализует снимок, усиливает контраст (CLAHE) и повышает резкость.
func (d *GoCVDetector) Preprocess(img *entity.CalibratedImage) (*Preprocessed, error) {
	normalized, err := NormalizeTo8Bit(img)
	if err != nil {
		return nil, err
	}

	src, err := gocv.ImageGrayToMatGray(normalized)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image to mat")
	}
	defer src.Close()

	tiles := d.Params.ClaheTileSize
	clahe := gocv.NewCLAHEWithParams(d.Params.ClaheClipLimit, image.Pt(tiles, tiles))
	defer clahe.Close()

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(src, &enhanced)

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for r := range laplacianKernel {
		for c, v := range laplacianKernel[r] {
			kernel.SetFloatAt(r, c, v)
		}
	}

	// 8-битный выход насыщается в 0..255
	sharpened := gocv.NewMat()
	defer sharpened.Close()
	gocv.Filter2D(enhanced, &sharpened, gocv.MatTypeCV8U, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)

	enhancedGray, err := matToGray(enhanced)
	if err != nil {
		return nil, err
	}
	sharpenedGray, err := matToGray(sharpened)
	if err != nil {
		return nil, err
	}

	return &Preprocessed{
		Normalized: normalized,
		Enhanced:   enhancedGray,
		Sharpened:  sharpenedGray,
	}, nil
}

// DetectRegions бинаризует изображение, чистит маску морфологией и собирает внешние контуры.
func (d *GoCVDetector) DetectRegions(gray *image.Gray) ([]entity.Region, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image to mat")
	}
	defer src.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(src, &binary, float32(d.Params.Threshold), 255, gocv.ThresholdBinaryInv)

	k := d.Params.KernelSize
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k))
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(binary, &closed, gocv.MorphClose, kernel)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(closed, &opened, gocv.MorphOpen, kernel)

	contours := gocv.FindContours(opened, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]entity.Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < d.Params.MinArea {
			continue
		}
		box := entity.BoxFromRect(gocv.BoundingRect(c))
		region := entity.NewRegion(c.ToPoints(), box, area)
		region.Polygon = approxPolygon(region.Contour, d.Params.PolygonEpsilon)
		regions = append(regions, region)
	}

	return regions, nil
}

// MergeNearby сливает фрагменты одного лепестка, лежащие в одной строке.
// Объединённая маска заново обводится; итоговые регионы меньше MinArea отбрасываются.
func (d *GoCVDetector) MergeNearby(regions []entity.Region, width, height int) ([]entity.Region, error) {
	groups := planMerges(regions, d.Params.MergeDistance, d.Params.RowAlignment)

	out := make([]entity.Region, 0, len(groups))
	for _, group := range groups {
		merged := regions[group[0]]
		if len(group) > 1 {
			var err error
			merged, err = mergeGroup(regions, group, width, height)
			if err != nil {
				return nil, err
			}
			merged.Polygon = approxPolygon(merged.Contour, d.Params.PolygonEpsilon)
			log.WithFields(log.Fields{
				"members": len(group),
				"area":    merged.Area,
			}).Debug("merged nearby contours")
		}

		if merged.Area < d.Params.MinArea {
			continue
		}
		out = append(out, merged)
	}

	return out, nil
}

func mergeGroup(regions []entity.Region, group []int, width, height int) (entity.Region, error) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8U)
	defer mask.Close()

	polys := make([][]image.Point, 0, len(group))
	for _, idx := range group {
		polys = append(polys, regions[idx].Contour)
	}
	pv := gocv.NewPointsVectorFromPoints(polys)
	defer pv.Close()
	gocv.FillPoly(&mask, pv, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return entity.Region{}, errors.New("merged mask produced no contour")
	}

	var (
		largest     []image.Point
		largestArea = -1.0
		total       float64
		box         entity.BoundingBox
	)
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		total += area
		b := entity.BoxFromRect(gocv.BoundingRect(c))
		if i == 0 {
			box = b
		} else {
			box = box.Union(b)
		}
		if area > largestArea {
			largestArea = area
			largest = c.ToPoints()
		}
	}

	return entity.NewRegion(largest, box, total), nil
}

// approxPolygon упрощает контур до многоугольника с точностью epsilon × периметр.
func approxPolygon(points []image.Point, epsilon float64) []image.Point {
	if len(points) < 3 || epsilon <= 0 {
		return nil
	}
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	approx := gocv.ApproxPolyDP(pv, epsilon*gocv.ArcLength(pv, true), true)
	defer approx.Close()
	return approx.ToPoints()
}

// Edges строит модуль градиента Собеля 3x3 по исходным интенсивностям.
// Инверсия снимка модуль не меняет, поэтому считается по исходным значениям.
func (d *GoCVDetector) Edges(ctx context.Context, img *entity.CalibratedImage) (*entity.EdgeMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := img.Calibration.Validate(); err != nil {
		return nil, err
	}

	src := gocv.NewMatWithSize(img.Height, img.Width, gocv.MatTypeCV32F)
	defer src.Close()
	data, err := src.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to access mat data")
	}
	for i, v := range img.Pixels {
		data[i] = float32(v)
	}

	dx := gocv.NewMat()
	defer dx.Close()
	gocv.Sobel(src, &dx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderReflect)

	dy := gocv.NewMat()
	defer dy.Close()
	gocv.Sobel(src, &dy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderReflect)

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	gocv.Magnitude(dx, dy, &magnitude)

	values, err := magnitude.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read gradient magnitude")
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}

	return &entity.EdgeMap{Width: img.Width, Height: img.Height, Values: out}, nil
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert mat to image")
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		return nil, errors.Errorf("unexpected mat image type %T", img)
	}
	return gray, nil
}
