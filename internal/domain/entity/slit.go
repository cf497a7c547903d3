package entity

import "time"

// EdgeMap модуль градиента снимка, построчно.
type EdgeMap struct {
	Width  int
	Height int
	Values []float64
}

// At возвращает значение в точке (u, v).
func (m *EdgeMap) At(u, v int) float64 {
	return m.Values[v*m.Width+u]
}

// SlitEdge край щели, найденный на вертикальном профиле.
type SlitEdge struct {
	U int `json:"u"`
	V int `json:"v"`
}

// Slit щель между лепестками: пара соседних краёв.
type Slit struct {
	Index   int      `json:"index"`
	Top     SlitEdge `json:"top_edge"`
	Bottom  SlitEdge `json:"bottom_edge"`
	CenterU float64  `json:"center_u"`
	CenterV float64  `json:"center_v"`
	WidthPx int      `json:"width_px"`
	WidthMM float64  `json:"width_mm"` // в изоцентре
}

// SlitReport результат анализа щелей одного снимка. Тест информационный, без допусков.
type SlitReport struct {
	Filename     string    `json:"filename"`
	AcquiredAt   time.Time `json:"acquired_at,omitzero"`
	PixelSpacing float64   `json:"pixel_spacing_mm"` // в изоцентре
	Slits        []Slit    `json:"slits"`
}
