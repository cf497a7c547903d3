package vision

import (
	"math"

	"linac-qc/internal/domain/entity"
)

// planMerges группирует регионы жадным проходом в порядке обнаружения.
// Регион j присоединяется к i, если центры ближе mergeDist и лежат в одной строке (|dy| < rowAlign).
// Каждый индекс входит ровно в одну группу; группы упорядочены по первому элементу.
func planMerges(regions []entity.Region, mergeDist, rowAlign float64) [][]int {
	used := make([]bool, len(regions))
	groups := make([][]int, 0, len(regions))

	for i := range regions {
		if used[i] {
			continue
		}
		used[i] = true
		group := []int{i}

		for j := i + 1; j < len(regions); j++ {
			if used[j] {
				continue
			}
			dx := regions[i].CentroidX - regions[j].CentroidX
			dy := regions[i].CentroidY - regions[j].CentroidY
			if math.Hypot(dx, dy) < mergeDist && math.Abs(dy) < rowAlign {
				used[j] = true
				group = append(group, j)
			}
		}
		groups = append(groups, group)
	}

	return groups
}
