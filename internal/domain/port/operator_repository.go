package port

import (
	"context"

	"linac-qc/internal/domain/entity"
)

// OperatorRepository интерфейс хранилища операторов
type OperatorRepository interface {
	// Get возвращает оператора по ID, создаёт нового если не найден
	Get(ctx context.Context, operatorID, chatID int64) (*entity.Operator, error)

	// Save сохраняет состояние оператора
	Save(ctx context.Context, operator *entity.Operator) error

	// UpdateState обновляет состояние оператора
	UpdateState(ctx context.Context, operatorID int64, state entity.OperatorState) error
}
