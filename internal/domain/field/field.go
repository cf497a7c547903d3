// Package field переводит найденные контуры в размеры поля и положения лепестков в изоцентре.
package field

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"linac-qc/internal/domain/entity"
)

// Measure считает общий прямоугольник всех регионов и его центр.
// Возвращает nil, если регионов нет (поле закрыто).
func Measure(regions []entity.Region, cal entity.Calibration) *entity.FieldDimensions {
	if len(regions) == 0 {
		return nil
	}

	box := regions[0].Box
	for _, r := range regions[1:] {
		box = box.Union(r.Box)
	}

	scale := cal.ScalingFactor()
	cx, cy := box.Center()
	xMM := cal.ReferencePositionX + cx*cal.PixelSpacingX
	yMM := cal.ReferencePositionY + cy*cal.PixelSpacingY

	return &entity.FieldDimensions{
		WidthPx:    box.Width,
		HeightPx:   box.Height,
		WidthMM:    float64(box.Width) * cal.PixelSpacingX * scale,
		HeightMM:   float64(box.Height) * cal.PixelSpacingY * scale,
		CenterXPx:  cx,
		CenterYPx:  cy,
		CenterXMM:  xMM,
		CenterYMM:  yMM,
		CenterXIso: xMM * scale,
		CenterYIso: yMM * scale,
	}
}

// CheckSize сравнивает размеры с ожидаемыми полями в обеих ориентациях.
func CheckSize(dim *entity.FieldDimensions, expected []entity.ExpectedFieldSize, tolerance float64) entity.FieldSizeCheck {
	if dim == nil {
		return entity.FieldSizeCheck{Message: "no field dimensions detected"}
	}

	w, h := dim.WidthMM, dim.HeightMM
	for _, e := range expected {
		we, he := math.Abs(w-e.Width), math.Abs(h-e.Height)
		if we <= tolerance && he <= tolerance {
			return entity.FieldSizeCheck{
				Valid:       true,
				Matched:     e.Name,
				WidthError:  we,
				HeightError: he,
				Message:     fmt.Sprintf("field size matches %s within tolerance", e.Name),
			}
		}

		we, he = math.Abs(w-e.Height), math.Abs(h-e.Width)
		if we <= tolerance && he <= tolerance {
			return entity.FieldSizeCheck{
				Valid:       true,
				Matched:     e.Name,
				Rotated:     true,
				WidthError:  we,
				HeightError: he,
				Message:     fmt.Sprintf("field size matches %s (rotated) within tolerance", e.Name),
			}
		}
	}

	return entity.FieldSizeCheck{
		Message: fmt.Sprintf("field size %.2fx%.2fmm does not match any expected size (±%gmm tolerance)", w, h, tolerance),
	}
}

// BladeOpenings измеряет каждую пару лепестков относительно строки центра MV.
// Регионы упорядочиваются слева направо.
func BladeOpenings(regions []entity.Region, cal entity.Calibration, center entity.MVCenter, nominal []float64, tolerance float64) []entity.BladeOpening {
	sorted := make([]entity.Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CentroidX < sorted[j].CentroidX })

	_, spacingY := cal.IsocenterSpacing()
	out := make([]entity.BladeOpening, 0, len(sorted))
	for i, r := range sorted {
		b := entity.BladeOpening{Index: i + 1, CenterU: r.CentroidX}
		if r.Box.Height == 0 {
			b.Status = entity.BladeClosed
			out = append(out, b)
			continue
		}

		b.TopMM = (center.V - float64(r.Box.Y)) * spacingY
		b.BottomMM = (center.V - float64(r.Box.Y+r.Box.Height)) * spacingY
		b.OpeningMM = b.TopMM - b.BottomMM
		b.Nominal, b.Status = classifyOpening(b.OpeningMM, nominal, tolerance)
		out = append(out, b)
	}

	return out
}

func classifyOpening(opening float64, nominal []float64, tolerance float64) (float64, entity.BladeStatus) {
	closest := 0.0
	minDiff := math.Inf(1)
	for _, n := range nominal {
		diff := math.Abs(opening - n)
		if diff < minDiff {
			minDiff = diff
			closest = n
		}
	}
	if minDiff <= tolerance {
		return closest, entity.BladeOK
	}
	return closest, entity.BladeOutOfTolerance
}

// Summarize усредняет верхние и нижние края открытых лепестков.
// Если открытых лепестков нет, средние не заполняются.
func Summarize(uploadOrder int, filename string, blades []entity.BladeOpening) entity.ImageSummary {
	s := entity.ImageSummary{UploadOrder: uploadOrder, Filename: filename}

	var tops, bottoms []float64
	for _, b := range blades {
		if b.Status == entity.BladeClosed {
			continue
		}
		tops = append(tops, b.TopMM)
		bottoms = append(bottoms, b.BottomMM)
	}
	if len(tops) == 0 {
		return s
	}

	s.TopAverage = entity.Float(stat.Mean(tops, nil))
	s.BottomAverage = entity.Float(stat.Mean(bottoms, nil))
	return s
}
