package port

import (
	"context"

	"linac-qc/internal/domain/entity"
)

// ReportRepository интерфейс хранилища отчётов идентификации
type ReportRepository interface {
	// Save сохраняет отчёт
	Save(ctx context.Context, report *entity.IdentificationReport) error

	// Get возвращает отчёт по ID или entity.ErrReportNotFound
	Get(ctx context.Context, id string) (*entity.IdentificationReport, error)

	// Recent возвращает последние отчёты, новые первыми
	Recent(ctx context.Context, limit int) ([]*entity.IdentificationReport, error)
}
