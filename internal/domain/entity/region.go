package entity

import "image"

// BoundingBox ограничивающий прямоугольник в пикселях
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center возвращает координаты центра прямоугольника
func (b BoundingBox) Center() (x, y float64) {
	return float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2
}

// Union возвращает прямоугольник, покрывающий оба.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	r := b.Rect().Union(o.Rect())
	return BoxFromRect(r)
}

// Rect переводит в image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// BoxFromRect строит BoundingBox из image.Rectangle.
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Region замкнутый контур поля или лепестка
type Region struct {
	Contour   []image.Point `json:"-"`
	Polygon   []image.Point `json:"polygon,omitempty"` // вершины аппроксимации контура
	Box       BoundingBox   `json:"bounding_box"`
	CentroidX float64       `json:"centroid_x"`
	CentroidY float64       `json:"centroid_y"`
	Area      float64       `json:"area_px"`
}

// NewRegion строит регион по контуру; центроид: центр ограничивающего прямоугольника.
func NewRegion(contour []image.Point, box BoundingBox, area float64) Region {
	cx, cy := box.Center()
	return Region{
		Contour:   contour,
		Box:       box,
		CentroidX: cx,
		CentroidY: cy,
		Area:      area,
	}
}
