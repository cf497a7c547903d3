package entity

import "time"

// PositionUndefined позиция не определена.
const PositionUndefined = 0

// ImageSummary усреднённые положения лепестков одного снимка.
type ImageSummary struct {
	UploadOrder   int       `json:"upload_order" bson:"upload_order"`
	Filename      string    `json:"filename,omitempty" bson:"filename,omitempty"`
	TopAverage    *float64  `json:"top_average" bson:"top_average"`
	BottomAverage *float64  `json:"bottom_average" bson:"bottom_average"`
	AcquiredAt    time.Time `json:"acquired_at,omitzero" bson:"acquired_at,omitempty"` // из DICOM, если есть
}

// Complete сообщает, что заданы оба значения.
func (s ImageSummary) Complete() bool {
	return s.TopAverage != nil && s.BottomAverage != nil
}

// IdentifiedImageSummary снимок с назначенной позицией.
type IdentifiedImageSummary struct {
	ImageSummary `bson:",inline"`
	Position     int     `json:"identified_position" bson:"identified_position"`
	Distance     float64 `json:"-" bson:"-"`
}

// Identified сообщает, назначена ли позиция.
func (s IdentifiedImageSummary) Identified() bool {
	return s.Position != PositionUndefined
}

// Float возвращает указатель на значение, удобно для тестов и DTO.
func Float(v float64) *float64 {
	return &v
}
