package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/position"
	"linac-qc/internal/infrastructure/storage"
)

// leafDetector шесть снимков, по одному на каждую эталонную позицию.
// Имя файла pN.dcm соответствует позиции N.
func leafDetector() *fakeDetector {
	regions := map[string][]entity.Region{}
	for _, ref := range entity.DefaultLeafPositions() {
		regions[fmt.Sprintf("p%d.dcm", ref.Position)] = []entity.Region{
			bladeRegion(100, ref.Top, ref.Bottom),
			bladeRegion(200, ref.Top, ref.Bottom),
		}
	}
	regions["closed.dcm"] = nil
	return &fakeDetector{regions: regions}
}

func newLeafService(t *testing.T, decoder *fakeDecoder, observer Observer) (*LeafPositionService, *storage.MemoryReportRepository, *OperatorService) {
	t.Helper()
	operators := NewOperatorService(storage.NewMemoryOperatorRepository())
	reports := storage.NewMemoryReportRepository()
	identifier := position.NewIdentifier(entity.DefaultLeafPositionProfile())
	svc := NewLeafPositionService(operators, decoder, leafDetector(), identifier, reports, testSettings(), observer)

	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("report-%d", n)
	}
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, reports, operators
}

func TestLeafPositionService_AcceptImageCollectsBatch(t *testing.T) {
	observer := newRecordingObserver()
	svc, reports, operators := newLeafService(t, &fakeDecoder{}, observer)
	ctx := context.Background()

	operator, err := svc.Begin(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingLeafImage, operator.State)

	order := []int{3, 1, 6, 2, 5, 4}
	var progress *LeafProgress
	for i, p := range order {
		progress, err = svc.AcceptImage(ctx, 1, 10, "tech", fmt.Sprintf("p%d.dcm", p), nil)
		require.NoError(t, err)
		require.Equal(t, i+1, progress.Received)
		require.Equal(t, 6, progress.Expected)
		require.Equal(t, i+1, progress.Summary.UploadOrder)
		require.Len(t, progress.Blades, 2)
		if i < len(order)-1 {
			require.Nil(t, progress.Report)
			require.Equal(t, i+1, svc.Pending(1))
		}
	}

	report := progress.Report
	require.NotNil(t, report)
	require.True(t, report.Valid)
	require.Empty(t, report.Errors)
	require.Equal(t, "report-1", report.ID)
	require.Equal(t, "tech", report.Operator)
	require.Equal(t, map[int]int{1: 3, 2: 1, 3: 6, 4: 2, 5: 5, 6: 4}, assignment(report))

	require.Zero(t, svc.Pending(1))
	operator, err = operators.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, operator.State)

	stored, err := reports.Get(ctx, "report-1")
	require.NoError(t, err)
	require.Same(t, report, stored)

	require.Equal(t, 6, observer.images[KindLeafPosition])
	require.Equal(t, 1, observer.identifications[true])
}

func TestLeafPositionService_RejectedImageKeepsBatch(t *testing.T) {
	decoder := &fakeDecoder{fail: map[string]error{
		"flat.dcm": &entity.DegenerateImageError{Value: 7, Reason: "no dynamic range"},
	}}
	svc, _, _ := newLeafService(t, decoder, nil)
	ctx := context.Background()

	_, err := svc.Begin(ctx, 1, 10)
	require.NoError(t, err)
	_, err = svc.AcceptImage(ctx, 1, 10, "tech", "p1.dcm", nil)
	require.NoError(t, err)

	_, err = svc.AcceptImage(ctx, 1, 10, "tech", "flat.dcm", nil)
	require.True(t, entity.IsImageRejected(err))
	require.Equal(t, 1, svc.Pending(1))

	progress, err := svc.AcceptImage(ctx, 1, 10, "tech", "p2.dcm", nil)
	require.NoError(t, err)
	require.Equal(t, 2, progress.Summary.UploadOrder)
}

func TestLeafPositionService_BatchesAreIsolatedPerOperator(t *testing.T) {
	svc, _, _ := newLeafService(t, &fakeDecoder{}, nil)
	ctx := context.Background()

	_, err := svc.AcceptImage(ctx, 1, 10, "a", "p1.dcm", nil)
	require.NoError(t, err)
	_, err = svc.AcceptImage(ctx, 2, 20, "b", "p2.dcm", nil)
	require.NoError(t, err)
	_, err = svc.AcceptImage(ctx, 2, 20, "b", "p3.dcm", nil)
	require.NoError(t, err)

	require.Equal(t, 1, svc.Pending(1))
	require.Equal(t, 2, svc.Pending(2))

	_, err = svc.Begin(ctx, 2, 20)
	require.NoError(t, err)
	require.Zero(t, svc.Pending(2))
	require.Equal(t, 1, svc.Pending(1))

	_, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Zero(t, svc.Pending(1))
}

func TestLeafPositionService_AnalyzeBatch(t *testing.T) {
	svc, _, _ := newLeafService(t, &fakeDecoder{}, nil)

	files := []UploadedFile{
		{Name: "p6.dcm"}, {Name: "p4.dcm"}, {Name: "p2.dcm"},
		{Name: "p1.dcm"}, {Name: "p3.dcm"}, {Name: "p5.dcm"},
	}
	report, err := svc.AnalyzeBatch(context.Background(), "tech", files)
	require.NoError(t, err)
	require.True(t, report.Valid)
	require.Equal(t, map[int]int{1: 6, 2: 4, 3: 2, 4: 1, 5: 3, 6: 5}, assignment(report))

	for i, img := range report.Images {
		require.Equal(t, i+1, img.UploadOrder)
		require.Equal(t, files[i].Name, img.Filename)
	}
}

func TestLeafPositionService_AnalyzeBatchFailsOnRejectedImage(t *testing.T) {
	decoder := &fakeDecoder{fail: map[string]error{
		"p4.dcm": &entity.CalibrationError{Field: "pixel_spacing"},
	}}
	svc, reports, _ := newLeafService(t, decoder, nil)

	files := []UploadedFile{{Name: "p1.dcm"}, {Name: "p2.dcm"}, {Name: "p4.dcm"}}
	_, err := svc.AnalyzeBatch(context.Background(), "tech", files)
	require.True(t, errors.Is(err, entity.ErrCalibration))
	require.Contains(t, err.Error(), "p4.dcm")

	recent, err := reports.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestLeafPositionService_IdentifyInvalidBatchIsStored(t *testing.T) {
	observer := newRecordingObserver()
	svc, _, _ := newLeafService(t, &fakeDecoder{}, observer)
	ctx := context.Background()

	files := []UploadedFile{{Name: "p1.dcm"}, {Name: "p2.dcm"}, {Name: "closed.dcm"}}
	report, err := svc.AnalyzeBatch(ctx, "tech", files)
	require.NoError(t, err)
	require.False(t, report.Valid)
	require.Contains(t, report.Errors, "expected 6 images, got 3")
	require.Equal(t, entity.PositionUndefined, report.Images[2].Position)

	got, err := svc.Report(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, report.ID, got.ID)

	recent, err := svc.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, 1, observer.identifications[false])
}

func TestLeafPositionService_Profile(t *testing.T) {
	svc, _, _ := newLeafService(t, &fakeDecoder{}, nil)
	require.Equal(t, 6, svc.Expected())
	require.Equal(t, entity.DefaultLeafPositions(), svc.Profile())
}

func TestLeafPositionService_FailedSaveKeepsBatch(t *testing.T) {
	operators := NewOperatorService(storage.NewMemoryOperatorRepository())
	reports := &flakyReports{MemoryReportRepository: storage.NewMemoryReportRepository(), fail: true}
	identifier := position.NewIdentifier(entity.DefaultLeafPositionProfile())
	svc := NewLeafPositionService(operators, &fakeDecoder{}, leafDetector(), identifier, reports, testSettings(), nil)
	ctx := context.Background()

	_, err := svc.Begin(ctx, 1, 10)
	require.NoError(t, err)
	for p := 1; p <= 5; p++ {
		_, err = svc.AcceptImage(ctx, 1, 10, "tech", fmt.Sprintf("p%d.dcm", p), nil)
		require.NoError(t, err)
	}

	_, err = svc.AcceptImage(ctx, 1, 10, "tech", "p6.dcm", nil)
	require.ErrorContains(t, err, "failed to save identification report")
	require.Equal(t, 5, svc.Pending(1))

	operator, err := operators.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingLeafImage, operator.State)

	reports.setFail(false)
	progress, err := svc.AcceptImage(ctx, 1, 10, "tech", "p6.dcm", nil)
	require.NoError(t, err)
	require.Equal(t, 6, progress.Received)
	require.Equal(t, 6, progress.Summary.UploadOrder)
	require.NotNil(t, progress.Report)
	require.True(t, progress.Report.Valid)
	require.Zero(t, svc.Pending(1))
}

func TestLeafPositionService_TestDateIsEarliestAcquisition(t *testing.T) {
	first := time.Date(2024, 5, 30, 8, 15, 0, 0, time.UTC)
	decoder := &fakeDecoder{acquired: map[string]time.Time{
		"p1.dcm": first.Add(time.Minute),
		"p2.dcm": first,
	}}
	svc, _, _ := newLeafService(t, decoder, nil)

	report, err := svc.AnalyzeBatch(context.Background(), "tech", []UploadedFile{{Name: "p1.dcm"}, {Name: "p2.dcm"}, {Name: "p3.dcm"}})
	require.NoError(t, err)
	require.Equal(t, first, report.TestDate)
	require.Equal(t, first.Add(time.Minute), report.Images[0].AcquiredAt)
	require.True(t, report.Images[2].AcquiredAt.IsZero())
}
