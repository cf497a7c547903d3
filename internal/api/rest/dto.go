package rest

import (
	"time"

	"linac-qc/internal/domain/entity"
)

type identifyRequest struct {
	Operator string                `json:"operator"`
	Images   []entity.ImageSummary `json:"images"`
}

type imageResponse struct {
	UploadOrder        int        `json:"upload_order"`
	Filename           string     `json:"filename,omitempty"`
	TopAverage         *float64   `json:"top_average"`
	BottomAverage      *float64   `json:"bottom_average"`
	IdentifiedPosition *int       `json:"identified_position"` // null, если не определена
	AcquiredAt         *time.Time `json:"acquired_at,omitempty"`
}

type reportResponse struct {
	ID        string          `json:"id"`
	Operator  string          `json:"operator,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	TestDate  *time.Time      `json:"test_date,omitempty"`
	Valid     bool            `json:"valid"`
	Errors    []string        `json:"errors"`
	Images    []imageResponse `json:"images"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func toReportResponse(r *entity.IdentificationReport) reportResponse {
	out := reportResponse{
		ID:        r.ID,
		Operator:  r.Operator,
		CreatedAt: r.CreatedAt,
		Valid:     r.Valid,
		Errors:    r.Errors,
		Images:    make([]imageResponse, 0, len(r.Images)),
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	out.TestDate = timeOrNil(r.TestDate)

	for _, img := range r.Images {
		item := imageResponse{
			UploadOrder:   img.UploadOrder,
			Filename:      img.Filename,
			TopAverage:    img.TopAverage,
			BottomAverage: img.BottomAverage,
			AcquiredAt:    timeOrNil(img.AcquiredAt),
		}
		if img.Identified() {
			pos := img.Position
			item.IdentifiedPosition = &pos
		}
		out.Images = append(out.Images, item)
	}
	return out
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
