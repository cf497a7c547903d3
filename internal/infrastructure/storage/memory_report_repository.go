package storage

import (
	"context"
	"sort"
	"sync"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/port"
)

// MemoryReportRepository хранит отчёты в памяти процесса
type MemoryReportRepository struct {
	mu      sync.RWMutex
	reports map[string]*entity.IdentificationReport
	order   []string
}

// NewMemoryReportRepository создаёт пустое хранилище отчётов
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{
		reports: make(map[string]*entity.IdentificationReport),
	}
}

// Save сохраняет или заменяет отчёт
func (r *MemoryReportRepository) Save(ctx context.Context, report *entity.IdentificationReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reports[report.ID]; !exists {
		r.order = append(r.order, report.ID)
	}
	r.reports[report.ID] = report

	return nil
}

// Get возвращает отчёт по ID
func (r *MemoryReportRepository) Get(ctx context.Context, id string) (*entity.IdentificationReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, exists := r.reports[id]
	if !exists {
		return nil, entity.ErrReportNotFound
	}
	return report, nil
}

// Recent возвращает до limit последних отчётов, новые первыми
func (r *MemoryReportRepository) Recent(ctx context.Context, limit int) ([]*entity.IdentificationReport, error) {
	r.mu.RLock()
	out := make([]*entity.IdentificationReport, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.reports[r.order[i]])
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Проверка реализации интерфейса
var _ port.ReportRepository = (*MemoryReportRepository)(nil)
