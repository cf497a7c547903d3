package port

import (
	"context"

	"linac-qc/internal/domain/entity"
)

// RegionDetector интерфейс детектора контуров
type RegionDetector interface {
	// Detect находит контуры полей или лепестков на калиброванном снимке
	Detect(ctx context.Context, img *entity.CalibratedImage) ([]entity.Region, error)
}

// EdgeDetector интерфейс построения карты градиента
type EdgeDetector interface {
	// Edges возвращает модуль градиента снимка
	Edges(ctx context.Context, img *entity.CalibratedImage) (*entity.EdgeMap, error)
}

// ImageDecoder интерфейс декодера снимков
type ImageDecoder interface {
	// Decode разбирает файл в сетку интенсивностей с калибровкой
	Decode(ctx context.Context, filename string, data []byte) (*entity.CalibratedImage, error)
}
