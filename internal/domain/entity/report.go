package entity

import "time"

// IdentificationReport результат идентификации одной серии снимков.
type IdentificationReport struct {
	ID        string                   `json:"id" bson:"_id"`
	Operator  string                   `json:"operator" bson:"operator"`
	CreatedAt time.Time                `json:"created_at" bson:"created_at"`
	TestDate  time.Time                `json:"test_date,omitzero" bson:"test_date,omitempty"` // самый ранний снимок серии
	Images    []IdentifiedImageSummary `json:"images" bson:"images"`
	Valid     bool                     `json:"valid" bson:"valid"`
	Errors    []string                 `json:"errors" bson:"errors"`
}

// EarliestAcquisition возвращает время самого раннего снимка; нулевое, если времени нет ни у одного.
func EarliestAcquisition(images []ImageSummary) time.Time {
	var earliest time.Time
	for _, img := range images {
		if img.AcquiredAt.IsZero() {
			continue
		}
		if earliest.IsZero() || img.AcquiredAt.Before(earliest) {
			earliest = img.AcquiredAt
		}
	}
	return earliest
}
