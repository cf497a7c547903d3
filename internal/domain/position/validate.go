package position

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"linac-qc/internal/domain/entity"
)

// Validate проверяет, что позиции образуют взаимно однозначное соответствие с 1..N.
// Собирает все нарушения, вход не изменяет.
func (id *Identifier) Validate(identified []entity.IdentifiedImageSummary) (bool, []string) {
	n := id.profile.Len()
	var problems []string

	if len(identified) != n {
		problems = append(problems, fmt.Sprintf("expected %d images, got %d", n, len(identified)))
	}

	assigned := make([]int, 0, len(identified))
	for _, s := range identified {
		if s.Identified() {
			assigned = append(assigned, s.Position)
		}
	}
	if len(assigned) != len(identified) {
		problems = append(problems, fmt.Sprintf("not all images were identified: %d/%d", len(assigned), len(identified)))
	}

	counts := make(map[int]int, len(assigned))
	for _, p := range assigned {
		counts[p]++
	}
	var duplicates []int
	for p, c := range counts {
		if c > 1 {
			duplicates = append(duplicates, p)
		}
	}
	if len(duplicates) > 0 {
		sort.Ints(duplicates)
		problems = append(problems, fmt.Sprintf("duplicate positions found: %v", duplicates))
	}

	var missing, unexpected []int
	for p := 1; p <= n; p++ {
		if counts[p] == 0 {
			missing = append(missing, p)
		}
	}
	for p := range counts {
		if p < 1 || p > n {
			unexpected = append(unexpected, p)
		}
	}
	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("missing positions: %v", missing))
	}
	if len(unexpected) > 0 {
		sort.Ints(unexpected)
		problems = append(problems, fmt.Sprintf("unexpected positions: %v", unexpected))
	}

	if len(problems) > 0 {
		log.WithField("errors", problems).Error("identification validation failed")
		return false, problems
	}

	log.Infof("all %d images uniquely identified", n)
	return true, nil
}
