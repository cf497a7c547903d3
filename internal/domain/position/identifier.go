// Package position назначает снимки серии эталонным позициям.
package position

import (
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"linac-qc/internal/domain/entity"
)

// Identifier сопоставляет снимки с таблицей эталонов. Не хранит состояния между вызовами.
type Identifier struct {
	profile *entity.ReferenceProfile
}

// NewIdentifier создаёт идентификатор с переданной таблицей эталонов.
func NewIdentifier(profile *entity.ReferenceProfile) *Identifier {
	return &Identifier{profile: profile}
}

// Profile возвращает таблицу эталонов.
func (id *Identifier) Profile() *entity.ReferenceProfile {
	return id.profile
}

// IdentifyPosition возвращает ближайшую позицию и расстояние до её эталона.
// Для NaN/Inf на входе возвращает (PositionUndefined, +Inf).
func (id *Identifier) IdentifyPosition(top, bottom float64) (int, float64) {
	if !isFinite(top) || !isFinite(bottom) {
		return entity.PositionUndefined, math.Inf(1)
	}

	best := entity.PositionUndefined
	bestDistance := math.Inf(1)
	for _, ref := range id.profile.Positions() {
		d := distance(top, bottom, ref)
		// Строгое сравнение: при равенстве остаётся меньший номер.
		if best == entity.PositionUndefined || d < bestDistance {
			best = ref.Position
			bestDistance = d
		}
	}

	return best, bestDistance
}

// IdentifyAll назначает позиции всем снимкам и разрешает конфликты одним жадным проходом.
func (id *Identifier) IdentifyAll(summaries []entity.ImageSummary) []entity.IdentifiedImageSummary {
	out := make([]entity.IdentifiedImageSummary, len(summaries))

	for i, s := range summaries {
		out[i] = entity.IdentifiedImageSummary{ImageSummary: s, Distance: math.Inf(1)}
		if !s.Complete() {
			log.WithField("upload_order", s.UploadOrder).Warn("image has no averages, cannot identify")
			continue
		}

		pos, d := id.IdentifyPosition(*s.TopAverage, *s.BottomAverage)
		if pos == entity.PositionUndefined {
			log.WithField("upload_order", s.UploadOrder).Warn("image averages are not finite, cannot identify")
			continue
		}
		out[i].Position = pos
		out[i].Distance = d
	}

	id.resolveConflicts(out)

	for _, s := range out {
		log.WithFields(log.Fields{
			"upload_order": s.UploadOrder,
			"position":     s.Position,
			"filename":     s.Filename,
		}).Debug("final assignment")
	}

	return out
}

func (id *Identifier) resolveConflicts(items []entity.IdentifiedImageSummary) {
	claims := make(map[int][]int)
	for i, s := range items {
		if s.Identified() {
			claims[s.Position] = append(claims[s.Position], i)
		}
	}

	contested := make([]int, 0)
	for pos, idx := range claims {
		if len(idx) > 1 {
			contested = append(contested, pos)
		}
	}
	if len(contested) == 0 {
		return
	}
	sort.Ints(contested)
	log.WithField("positions", contested).Warn("conflicts detected, keeping closest match for each position")

	confirmed := make(map[int]bool, len(contested))
	for _, pos := range contested {
		ref, _ := id.profile.Lookup(pos)
		contenders := claims[pos]
		for _, i := range contenders {
			items[i].Distance = distance(*items[i].TopAverage, *items[i].BottomAverage, ref)
		}
		sort.SliceStable(contenders, func(a, b int) bool {
			return items[contenders[a]].Distance < items[contenders[b]].Distance
		})

		confirmed[pos] = true
		for _, i := range contenders[1:] {
			id.reassign(&items[i], confirmed)
		}
	}
}

// reassign переносит снимок на ближайшую позицию, ещё не подтверждённую в этом проходе.
func (id *Identifier) reassign(item *entity.IdentifiedImageSummary, confirmed map[int]bool) {
	from := item.Position

	type candidate struct {
		position int
		distance float64
	}
	candidates := make([]candidate, 0, id.profile.Len())
	for _, ref := range id.profile.Positions() {
		if confirmed[ref.Position] {
			continue
		}
		candidates = append(candidates, candidate{
			position: ref.Position,
			distance: distance(*item.TopAverage, *item.BottomAverage, ref),
		})
	}
	// Позиции уже по возрастанию, стабильная сортировка сохраняет это при равных расстояниях.
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].distance < candidates[b].distance })

	entry := log.WithFields(log.Fields{"upload_order": item.UploadOrder, "from": from})
	if len(candidates) == 0 {
		item.Position = entity.PositionUndefined
		item.Distance = math.Inf(1)
		entry.Warn("no free position left for reassignment")
		return
	}

	item.Position = candidates[0].position
	item.Distance = candidates[0].distance
	entry.WithFields(log.Fields{"to": item.Position, "distance": item.Distance}).Warn("image reassigned")
}

func distance(top, bottom float64, ref entity.ReferencePosition) float64 {
	return floats.Distance([]float64{top, bottom}, []float64{ref.Top, ref.Bottom}, 2)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
