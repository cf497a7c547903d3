package field

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"linac-qc/internal/domain/entity"
)

// SlitParams параметры поиска щелей по вертикальным профилям градиента.
type SlitParams struct {
	UStart            int `yaml:"u_start"`             // первый столбец сканирования
	UEnd              int `yaml:"u_end"`               // граница сканирования (не включая)
	BladeWidth        int `yaml:"blade_width"`         // шаг по u, px
	ProfileWidth      int `yaml:"profile_width"`       // столбцов в усреднении
	VRange            int `yaml:"v_range"`             // ±px от центра MV
	MinEdgeSeparation int `yaml:"min_edge_separation"` // px между краями
	MinWidth          int `yaml:"min_width"`           // px, не включая
	MaxWidth          int `yaml:"max_width"`           // px, не включая
}

// DefaultSlitParams возвращает значения для EPID 1024x1024 с шагом 0.216 мм в изоцентре.
func DefaultSlitParams() SlitParams {
	return SlitParams{
		UStart:            48,
		UEnd:              970,
		BladeWidth:        29,
		ProfileWidth:      30,
		VRange:            220,
		MinEdgeSeparation: 24,
		MinWidth:          10,
		MaxWidth:          200,
	}
}

// SlitSpacing размер пикселя в изоцентре для щелей: средний шаг детектора × SAD/SID.
func SlitSpacing(cal entity.Calibration) float64 {
	return (cal.PixelSpacingX + cal.PixelSpacingY) / 2 * cal.ScalingFactor()
}

// DetectSlits находит щели на карте градиента вокруг строки центра MV.
// Первая найденная щель служит опорой по высоте и в результат не входит.
func DetectSlits(edges *entity.EdgeMap, center entity.MVCenter, spacing float64, p SlitParams) []entity.Slit {
	if edges == nil || edges.Width == 0 || edges.Height == 0 || p.BladeWidth <= 0 {
		return []entity.Slit{}
	}

	vMin := clamp(int(center.V)-p.VRange, 0, edges.Height)
	vMax := clamp(int(center.V)+p.VRange, 0, edges.Height)
	if vMax <= vMin {
		return []entity.Slit{}
	}

	var found []entity.SlitEdge
	for u := p.UStart; u < p.UEnd && u < edges.Width; u += p.BladeWidth {
		uEnd := min(u+p.ProfileWidth, edges.Width)
		profile := columnProfile(edges, u, uEnd, vMin, vMax)
		for _, v := range LocalMaxima(profile, median(profile), vMin, p.MinEdgeSeparation) {
			found = append(found, entity.SlitEdge{U: u, V: v})
		}
	}

	slits := GroupSlits(found, spacing, p.MinWidth, p.MaxWidth)
	if len(slits) > 0 {
		slits = slits[1:]
	}
	for i := range slits {
		slits[i].Index = i + 1
	}
	return slits
}

// LocalMaxima ищет пики профиля выше порога; пики ближе minSeparation сливаются в один.
// Позиции возвращаются со смещением offset.
func LocalMaxima(profile []float64, threshold float64, offset, minSeparation int) []int {
	var maxima []int
	prev := 0.0
	rising := false

	for i, value := range profile {
		if value > prev && value > threshold {
			rising = true
		}

		if value < prev && value > threshold && rising {
			pos := i - 1 + offset
			switch {
			case len(maxima) == 0:
				maxima = append(maxima, pos)
				rising = false
			case pos-maxima[len(maxima)-1] > minSeparation:
				maxima = append(maxima, pos)
				rising = false
			case value > profile[maxima[len(maxima)-1]-offset]:
				maxima[len(maxima)-1] = pos
				rising = false
			}
		}
		prev = value
	}
	return maxima
}

// GroupSlits сортирует края по v и объединяет соседние пары в щели подходящей ширины.
func GroupSlits(edges []entity.SlitEdge, spacing float64, minWidth, maxWidth int) []entity.Slit {
	sorted := make([]entity.SlitEdge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].V < sorted[j].V })

	slits := []entity.Slit{}
	for i := 0; i < len(sorted)-1; {
		top, bottom := sorted[i], sorted[i+1]
		width := bottom.V - top.V
		if width <= minWidth || width >= maxWidth {
			i++
			continue
		}

		slits = append(slits, entity.Slit{
			Index:   len(slits) + 1,
			Top:     top,
			Bottom:  bottom,
			CenterU: float64(top.U+bottom.U) / 2,
			CenterV: float64(top.V+bottom.V) / 2,
			WidthPx: width,
			WidthMM: float64(width) * spacing,
		})
		i += 2
	}
	return slits
}

func columnProfile(edges *entity.EdgeMap, uStart, uEnd, vMin, vMax int) []float64 {
	profile := make([]float64, 0, vMax-vMin)
	row := make([]float64, uEnd-uStart)
	for v := vMin; v < vMax; v++ {
		for u := uStart; u < uEnd; u++ {
			row[u-uStart] = edges.At(u, v)
		}
		profile = append(profile, stat.Mean(row, nil))
	}
	return profile
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
