package app

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/field"
	"linac-qc/internal/domain/port"
	"linac-qc/internal/domain/position"
)

// UploadedFile файл снимка, полученный от оператора.
type UploadedFile struct {
	Name string
	Data []byte
}

// LeafProgress состояние серии после приёма очередного снимка.
type LeafProgress struct {
	Received int
	Expected int
	Summary  entity.ImageSummary
	Blades   []entity.BladeOpening
	Report   *entity.IdentificationReport // заполнен, когда серия собрана
}

// LeafPositionService собирает серии снимков теста положения лепестков и определяет позиции.
type LeafPositionService struct {
	operators  *OperatorService
	decoder    port.ImageDecoder
	detector   port.RegionDetector
	identifier *position.Identifier
	reports    port.ReportRepository
	settings   AnalysisSettings
	observer   Observer

	batches map[int64][]entity.ImageSummary
	mu      sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewLeafPositionService создаёт сервис. observer может быть nil.
func NewLeafPositionService(
	operators *OperatorService,
	decoder port.ImageDecoder,
	detector port.RegionDetector,
	identifier *position.Identifier,
	reports port.ReportRepository,
	settings AnalysisSettings,
	observer Observer,
) *LeafPositionService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &LeafPositionService{
		operators:  operators,
		decoder:    decoder,
		detector:   detector,
		identifier: identifier,
		reports:    reports,
		settings:   settings,
		observer:   observer,
		batches:    make(map[int64][]entity.ImageSummary),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Expected возвращает число снимков в серии.
func (s *LeafPositionService) Expected() int {
	return s.identifier.Profile().Len()
}

// Profile возвращает эталонные позиции.
func (s *LeafPositionService) Profile() []entity.ReferencePosition {
	return s.identifier.Profile().Positions()
}

// Begin начинает новую серию и сбрасывает несобранную.
func (s *LeafPositionService) Begin(ctx context.Context, operatorID, chatID int64) (*entity.Operator, error) {
	s.mu.Lock()
	delete(s.batches, operatorID)
	s.mu.Unlock()
	return s.operators.SetState(ctx, operatorID, chatID, entity.StateAwaitingLeafImage)
}

// Cancel отменяет серию и возвращает оператора в меню.
func (s *LeafPositionService) Cancel(ctx context.Context, operatorID, chatID int64) (*entity.Operator, error) {
	s.mu.Lock()
	delete(s.batches, operatorID)
	s.mu.Unlock()
	return s.operators.Cancel(ctx, operatorID, chatID)
}

// Pending возвращает число принятых снимков текущей серии.
func (s *LeafPositionService) Pending(operatorID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches[operatorID])
}

// AcceptImage измеряет снимок и добавляет его в серию оператора.
// Ошибка снимка возвращается вызывающему и серию не меняет.
// Когда набрано Expected снимков, выполняется идентификация и серия сбрасывается.
// Если отчёт не удалось сохранить, последний снимок не считается принятым:
// серия остаётся на Expected-1 снимках и его можно отправить повторно.
func (s *LeafPositionService) AcceptImage(ctx context.Context, operatorID, chatID int64, operatorName, filename string, data []byte) (*LeafProgress, error) {
	summary, blades, err := s.measure(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	expected := s.Expected()

	s.mu.Lock()
	pending := s.batches[operatorID]
	summary.UploadOrder = len(pending) + 1
	batch := append(pending[:len(pending):len(pending)], summary)
	complete := len(batch) >= expected
	if complete {
		delete(s.batches, operatorID)
	} else {
		s.batches[operatorID] = batch
	}
	s.mu.Unlock()

	progress := &LeafProgress{
		Received: len(batch),
		Expected: expected,
		Summary:  summary,
		Blades:   blades,
	}
	if !complete {
		return progress, nil
	}

	report, err := s.Identify(ctx, operatorName, batch)
	if err != nil {
		s.restoreBatch(operatorID, pending)
		return nil, err
	}
	progress.Report = report

	if _, err := s.operators.Cancel(ctx, operatorID, chatID); err != nil {
		return nil, err
	}
	return progress, nil
}

// restoreBatch возвращает несобранную серию, если у оператора не появилось новых снимков.
func (s *LeafPositionService) restoreBatch(operatorID int64, pending []entity.ImageSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches[operatorID]) == 0 {
		s.batches[operatorID] = pending
	}
	log.WithFields(log.Fields{
		"operator": operatorID,
		"pending":  len(s.batches[operatorID]),
	}).Warn("identification failed, last image must be sent again")
}

// AnalyzeBatch измеряет все файлы параллельно и идентифицирует серию.
// Порядок загрузки: порядок files.
func (s *LeafPositionService) AnalyzeBatch(ctx context.Context, operatorName string, files []UploadedFile) (*entity.IdentificationReport, error) {
	summaries := make([]entity.ImageSummary, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			summary, _, err := s.measure(gctx, f.Name, f.Data)
			if err != nil {
				return errors.Wrapf(err, "image %d (%s)", i+1, f.Name)
			}
			summary.UploadOrder = i + 1
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.Identify(ctx, operatorName, summaries)
}

// Identify назначает позиции, проверяет взаимно однозначность и сохраняет отчёт.
func (s *LeafPositionService) Identify(ctx context.Context, operatorName string, summaries []entity.ImageSummary) (*entity.IdentificationReport, error) {
	identified := s.identifier.IdentifyAll(summaries)
	valid, problems := s.identifier.Validate(identified)
	if problems == nil {
		problems = []string{}
	}

	report := &entity.IdentificationReport{
		ID:        s.newID(),
		Operator:  operatorName,
		CreatedAt: s.now().UTC(),
		TestDate:  entity.EarliestAcquisition(summaries),
		Images:    identified,
		Valid:     valid,
		Errors:    problems,
	}
	if err := s.reports.Save(ctx, report); err != nil {
		return nil, errors.Wrap(err, "failed to save identification report")
	}
	s.observer.ObserveIdentification(valid)

	log.WithFields(log.Fields{
		"report":   report.ID,
		"operator": operatorName,
		"images":   len(summaries),
		"valid":    valid,
	}).Info("leaf positions identified")
	return report, nil
}

// Report возвращает сохранённый отчёт.
func (s *LeafPositionService) Report(ctx context.Context, id string) (*entity.IdentificationReport, error) {
	return s.reports.Get(ctx, id)
}

// Recent возвращает последние отчёты.
func (s *LeafPositionService) Recent(ctx context.Context, limit int) ([]*entity.IdentificationReport, error) {
	return s.reports.Recent(ctx, limit)
}

func (s *LeafPositionService) measure(ctx context.Context, filename string, data []byte) (summary entity.ImageSummary, blades []entity.BladeOpening, err error) {
	defer func() { s.observer.ObserveImage(KindLeafPosition, err) }()

	if s.detector == nil {
		return summary, nil, errors.New("detector is not configured")
	}

	img, err := s.decoder.Decode(ctx, filename, data)
	if err != nil {
		return summary, nil, err
	}

	regions, err := s.detector.Detect(ctx, img)
	if err != nil {
		return summary, nil, errors.Wrapf(err, "failed to detect blades in %s", filename)
	}

	blades = field.BladeOpenings(regions, img.Calibration, s.settings.MVCenter, s.settings.BladeNominal, s.settings.BladeTolerance)
	summary = field.Summarize(0, filename, blades)
	summary.AcquiredAt = img.AcquiredAt
	if !summary.Complete() {
		log.WithField("file", filename).Warn("no open blade pair found")
	}
	return summary, blades, nil
}
