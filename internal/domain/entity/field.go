package entity

import "time"

// MVCenter центр MV-пучка на детекторе, пиксели.
type MVCenter struct {
	U float64 `json:"u" yaml:"u"`
	V float64 `json:"v" yaml:"v"`
}

// FieldDimensions хранит размеры и центр поля.
type FieldDimensions struct {
	WidthPx    int     `json:"width_px"`
	HeightPx   int     `json:"height_px"`
	WidthMM    float64 `json:"width_mm"`  // в изоцентре
	HeightMM   float64 `json:"height_mm"` // в изоцентре
	CenterXPx  float64 `json:"center_x_px"`
	CenterYPx  float64 `json:"center_y_px"`
	CenterXMM  float64 `json:"center_x_mm"`
	CenterYMM  float64 `json:"center_y_mm"`
	CenterXIso float64 `json:"center_x_iso"`
	CenterYIso float64 `json:"center_y_iso"`
}

// ExpectedFieldSize ожидаемый размер поля, мм.
type ExpectedFieldSize struct {
	Name   string  `json:"name" yaml:"name"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// DefaultExpectedFieldSizes возвращает поля теста MVIC.
func DefaultExpectedFieldSizes() []ExpectedFieldSize {
	return []ExpectedFieldSize{
		{Name: "150x85", Width: 150, Height: 85},
		{Name: "85x85", Width: 85, Height: 85},
		{Name: "50x50", Width: 50, Height: 50},
	}
}

// FieldSizeCheck итог сравнения с ожидаемыми размерами.
type FieldSizeCheck struct {
	Valid       bool    `json:"valid"`
	Matched     string  `json:"matched,omitempty"`
	Rotated     bool    `json:"rotated,omitempty"`
	WidthError  float64 `json:"width_error"`
	HeightError float64 `json:"height_error"`
	Message     string  `json:"message"`
}

// BladeStatus состояние пары лепестков.
type BladeStatus string

const (
	BladeOK             BladeStatus = "OK"
	BladeOutOfTolerance BladeStatus = "OUT_OF_TOLERANCE"
	BladeClosed         BladeStatus = "CLOSED"
)

// BladeOpening измерение одной пары лепестков.
type BladeOpening struct {
	Index     int         `json:"index"`
	CenterU   float64     `json:"center_u"`
	TopMM     float64     `json:"top_mm"`    // от центра вверх
	BottomMM  float64     `json:"bottom_mm"` // от центра, отрицательное ниже
	OpeningMM float64     `json:"opening_mm"`
	Nominal   float64     `json:"nominal_mm"`
	Status    BladeStatus `json:"status"`
}

// CornerAngle угол аппроксимирующего многоугольника в вершине.
type CornerAngle struct {
	Corner  [2]int  `json:"corner"` // (u, v), пиксели
	Degrees float64 `json:"degrees"`
	Error   float64 `json:"error"` // отклонение от ожидаемого угла
	Valid   bool    `json:"valid"`
}

// ShapeCheck итог проверки прямоугольности поля.
type ShapeCheck struct {
	Valid   bool          `json:"valid"`
	Corners []CornerAngle `json:"corners"`
	Invalid int           `json:"invalid"`
	Message string        `json:"message"`
}

// FieldReport итог анализа одного снимка поля.
type FieldReport struct {
	Filename    string           `json:"filename"`
	AcquiredAt  time.Time        `json:"acquired_at,omitzero"`
	ImageWidth  int              `json:"image_width"`
	ImageHeight int              `json:"image_height"`
	Regions     []Region         `json:"regions"`
	Dimensions  *FieldDimensions `json:"dimensions,omitempty"`
	SizeCheck   FieldSizeCheck   `json:"size_check"`
	Shape       *ShapeCheck      `json:"shape,omitempty"`
	Closed      bool             `json:"closed"` // поле не найдено
}
