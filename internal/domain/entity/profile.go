package entity

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ReferencePosition эталонная пара (top, bottom) для одной позиции, мм.
type ReferencePosition struct {
	Position int     `json:"position" yaml:"position"`
	Top      float64 `json:"top" yaml:"top"`
	Bottom   float64 `json:"bottom" yaml:"bottom"`
}

// ReferenceProfile неизменяемая таблица эталонов, позиции 1..N.
type ReferenceProfile struct {
	positions []ReferencePosition
}

// NewReferenceProfile проверяет таблицу и упорядочивает её по номеру позиции.
func NewReferenceProfile(positions []ReferencePosition) (*ReferenceProfile, error) {
	if len(positions) == 0 {
		return nil, errors.New("reference profile is empty")
	}

	sorted := make([]ReferencePosition, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	for i, p := range sorted {
		if p.Position != i+1 {
			return nil, errors.Errorf("reference positions must be 1..%d without gaps, got %d at index %d", len(sorted), p.Position, i)
		}
		if !finite(p.Top) || !finite(p.Bottom) {
			return nil, errors.Errorf("reference position %d has non-finite template", p.Position)
		}
	}

	return &ReferenceProfile{positions: sorted}, nil
}

// DefaultLeafPositionProfile возвращает шесть стандартных позиций теста положения лепестков.
func DefaultLeafPositionProfile() *ReferenceProfile {
	profile, err := NewReferenceProfile(DefaultLeafPositions())
	if err != nil {
		panic(err)
	}
	return profile
}

// DefaultLeafPositions возвращает копию стандартной таблицы.
func DefaultLeafPositions() []ReferencePosition {
	return []ReferencePosition{
		{Position: 1, Top: 40.0, Bottom: 20.0},
		{Position: 2, Top: 30.0, Bottom: 10.0},
		{Position: 3, Top: 20.0, Bottom: 0.0},
		{Position: 4, Top: 0.0, Bottom: -20.0},
		{Position: 5, Top: -10.0, Bottom: -30.0},
		{Position: 6, Top: -20.0, Bottom: -40.0},
	}
}

// Len возвращает количество позиций N.
func (p *ReferenceProfile) Len() int {
	return len(p.positions)
}

// Positions возвращает копию таблицы в порядке возрастания позиции.
func (p *ReferenceProfile) Positions() []ReferencePosition {
	out := make([]ReferencePosition, len(p.positions))
	copy(out, p.positions)
	return out
}

// Lookup возвращает эталон позиции.
func (p *ReferenceProfile) Lookup(position int) (ReferencePosition, bool) {
	if position < 1 || position > len(p.positions) {
		return ReferencePosition{}, false
	}
	return p.positions[position-1], true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
