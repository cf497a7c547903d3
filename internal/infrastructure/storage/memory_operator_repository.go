package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/port"
)

// MemoryOperatorRepository in-memory хранилище операторов
type MemoryOperatorRepository struct {
	mu        sync.RWMutex
	operators map[int64]*entity.Operator
}

// NewMemoryOperatorRepository создаёт новое in-memory хранилище
func NewMemoryOperatorRepository() *MemoryOperatorRepository {
	return &MemoryOperatorRepository{
		operators: make(map[int64]*entity.Operator),
	}
}

// Get возвращает оператора по ID, создаёт нового если не найден
func (r *MemoryOperatorRepository) Get(ctx context.Context, operatorID, chatID int64) (*entity.Operator, error) {
	r.mu.RLock()
	operator, exists := r.operators[operatorID]
	r.mu.RUnlock()

	if exists {
		return operator, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Повторная проверка: мог создать параллельный запрос
	if operator, exists := r.operators[operatorID]; exists {
		return operator, nil
	}
	operator = entity.NewOperator(operatorID, chatID)
	r.operators[operatorID] = operator

	return operator, nil
}

// Save сохраняет состояние оператора
func (r *MemoryOperatorRepository) Save(ctx context.Context, operator *entity.Operator) error {
	r.mu.Lock()
	r.operators[operator.ID] = operator
	r.mu.Unlock()

	return nil
}

// UpdateState обновляет состояние существующего оператора
func (r *MemoryOperatorRepository) UpdateState(ctx context.Context, operatorID int64, state entity.OperatorState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	operator, exists := r.operators[operatorID]
	if !exists {
		return errors.Errorf("operator %d not found", operatorID)
	}
	operator.SetState(state)

	return nil
}

// Проверка реализации интерфейса
var _ port.OperatorRepository = (*MemoryOperatorRepository)(nil)
