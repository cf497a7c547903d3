package vision

// DetectorParams параметры поиска контуров.
type DetectorParams struct {
	Threshold      float64 `yaml:"threshold"`       // порог бинаризации (инверсный)
	KernelSize     int     `yaml:"kernel_size"`     // сторона квадратного ядра морфологии
	MinArea        float64 `yaml:"min_area"`        // px²
	MergeDistance  float64 `yaml:"merge_distance"`  // px между центрами
	RowAlignment   float64 `yaml:"row_alignment"`   // допуск |dy| для слияния, px
	ClaheClipLimit float64 `yaml:"clahe_clip_limit"`
	ClaheTileSize  int     `yaml:"clahe_tile_size"`
	PolygonEpsilon float64 `yaml:"polygon_epsilon"` // точность аппроксимации, доля периметра
}

// DefaultDetectorParams возвращает значения, откалиброванные на снимках EPID.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		Threshold:      127,
		KernelSize:     3,
		MinArea:        200,
		MergeDistance:  40,
		RowAlignment:   15,
		ClaheClipLimit: 2.0,
		ClaheTileSize:  8,
		PolygonEpsilon: 0.02,
	}
}
