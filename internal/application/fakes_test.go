package app

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/infrastructure/storage"
)

var unitCalibration = entity.Calibration{
	SourceIsocenterDistance: 1000,
	SourceDetectorDistance:  1000,
	PixelSpacingX:           1,
	PixelSpacingY:           1,
}

// fakeDecoder отдаёт снимок 8x8; содержимое файла игнорируется.
type fakeDecoder struct {
	fail     map[string]error
	acquired map[string]time.Time
}

func (d *fakeDecoder) Decode(ctx context.Context, filename string, data []byte) (*entity.CalibratedImage, error) {
	if err := d.fail[filename]; err != nil {
		return nil, err
	}
	pixels := make([]float64, 64)
	for i := range pixels {
		pixels[i] = float64(i)
	}
	img, err := entity.NewCalibratedImage(8, 8, pixels, unitCalibration)
	if err != nil {
		return nil, err
	}
	img.SourceName = filename
	img.AcquiredAt = d.acquired[filename]
	return img, nil
}

// fakeDetector возвращает заранее заданные регионы по имени файла.
type fakeDetector struct {
	regions map[string][]entity.Region
}

func (d *fakeDetector) Detect(ctx context.Context, img *entity.CalibratedImage) ([]entity.Region, error) {
	regions, ok := d.regions[img.SourceName]
	if !ok {
		return nil, errors.Errorf("no regions for %s", img.SourceName)
	}
	return regions, nil
}

// bladeRegion строит пару лепестков с краями top/bottom мм при центре V=500 и шаге 1 мм.
func bladeRegion(x int, top, bottom float64) entity.Region {
	box := entity.BoundingBox{X: x, Y: int(500 - top), Width: 20, Height: int(top - bottom)}
	return entity.NewRegion(nil, box, float64(box.Width*box.Height))
}

func testSettings() AnalysisSettings {
	s := DefaultAnalysisSettings()
	s.MVCenter = entity.MVCenter{U: 512, V: 500}
	return s
}

type recordingObserver struct {
	mu              sync.Mutex
	images          map[string]int
	identifications map[bool]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{images: map[string]int{}, identifications: map[bool]int{}}
}

func (o *recordingObserver) ObserveImage(kind string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		kind += ":error"
	}
	o.images[kind]++
}

func (o *recordingObserver) ObserveIdentification(valid bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.identifications[valid]++
}

// flakyReports отказывает в сохранении, пока fail выставлен.
type flakyReports struct {
	*storage.MemoryReportRepository
	mu   sync.Mutex
	fail bool
}

func (r *flakyReports) setFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func (r *flakyReports) Save(ctx context.Context, report *entity.IdentificationReport) error {
	r.mu.Lock()
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return errors.New("connection refused")
	}
	return r.MemoryReportRepository.Save(ctx, report)
}

// fakeEdges отдаёт заранее построенную карту градиента.
type fakeEdges struct {
	edges *entity.EdgeMap
	err   error
}

func (f *fakeEdges) Edges(ctx context.Context, img *entity.CalibratedImage) (*entity.EdgeMap, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.edges, nil
}

// assignment возвращает upload order → позиция для определённых снимков.
func assignment(r *entity.IdentificationReport) map[int]int {
	out := make(map[int]int, len(r.Images))
	for _, img := range r.Images {
		if img.Identified() {
			out[img.UploadOrder] = img.Position
		}
	}
	return out
}
