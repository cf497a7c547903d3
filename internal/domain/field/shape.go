package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"linac-qc/internal/domain/entity"
)

// CornerAngles считает внутренние углы многоугольника, аппроксимирующего контур региона.
// Возвращает nil, если вершин меньше трёх. Вершины с совпадающими соседями пропускаются.
func CornerAngles(region entity.Region) []entity.CornerAngle {
	poly := region.Polygon
	n := len(poly)
	if n < 3 {
		return nil
	}

	angles := make([]entity.CornerAngle, 0, n)
	for i := range poly {
		prev, cur, next := poly[(i+n-1)%n], poly[i], poly[(i+1)%n]
		v1 := []float64{float64(prev.X - cur.X), float64(prev.Y - cur.Y)}
		v2 := []float64{float64(next.X - cur.X), float64(next.Y - cur.Y)}

		m1, m2 := floats.Norm(v1, 2), floats.Norm(v2, 2)
		if m1 == 0 || m2 == 0 {
			continue
		}
		cos := math.Max(-1, math.Min(1, floats.Dot(v1, v2)/(m1*m2)))
		angles = append(angles, entity.CornerAngle{
			Corner:  [2]int{cur.X, cur.Y},
			Degrees: math.Acos(cos) * 180 / math.Pi,
		})
	}
	return angles
}

// CheckShape сравнивает все углы с ожидаемым в пределах допуска, градусы.
func CheckShape(angles []entity.CornerAngle, expected, tolerance float64) entity.ShapeCheck {
	if len(angles) == 0 {
		return entity.ShapeCheck{Corners: []entity.CornerAngle{}, Message: "no corner angles detected"}
	}

	check := entity.ShapeCheck{Corners: make([]entity.CornerAngle, len(angles))}
	for i, a := range angles {
		a.Error = math.Abs(a.Degrees - expected)
		a.Valid = a.Error <= tolerance
		if !a.Valid {
			check.Invalid++
		}
		check.Corners[i] = a
	}

	check.Valid = check.Invalid == 0
	if check.Valid {
		check.Message = fmt.Sprintf("all %d corner angles are %g° within ±%g° tolerance", len(angles), expected, tolerance)
	} else {
		check.Message = fmt.Sprintf("%d out of %d corner angles exceed tolerance", check.Invalid, len(angles))
	}
	return check
}

// MainRegion возвращает регион с наибольшей площадью: контур самого поля.
func MainRegion(regions []entity.Region) (entity.Region, bool) {
	if len(regions) == 0 {
		return entity.Region{}, false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area > best.Area {
			best = r
		}
	}
	return best, true
}
