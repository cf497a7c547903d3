package app

import (
	"context"

	"github.com/pkg/errors"

	"linac-qc/internal/domain/entity"
	"linac-qc/internal/domain/port"
)

// OperatorService ведёт состояние диалога оператора.
type OperatorService struct {
	repo port.OperatorRepository
}

func NewOperatorService(repo port.OperatorRepository) *OperatorService {
	return &OperatorService{repo: repo}
}

func (s *OperatorService) Get(ctx context.Context, operatorID, chatID int64) (*entity.Operator, error) {
	return s.repo.Get(ctx, operatorID, chatID)
}

func (s *OperatorService) SetState(ctx context.Context, operatorID, chatID int64, state entity.OperatorState) (*entity.Operator, error) {
	operator, err := s.repo.Get(ctx, operatorID, chatID)
	if err != nil {
		return nil, err
	}

	operator.SetState(state)
	if err := s.repo.Save(ctx, operator); err != nil {
		return nil, err
	}

	return operator, nil
}

func (s *OperatorService) BeginField(ctx context.Context, operatorID, chatID int64) (*entity.Operator, error) {
	return s.SetState(ctx, operatorID, chatID, entity.StateAwaitingFieldImage)
}

func (s *OperatorService) BeginSlit(ctx context.Context, operatorID, chatID int64) (*entity.Operator, error) {
	return s.SetState(ctx, operatorID, chatID, entity.StateAwaitingSlitImage)
}

func (s *OperatorService) Cancel(ctx context.Context, operatorID, chatID int64) (*entity.Operator, error) {
	return s.SetState(ctx, operatorID, chatID, entity.StateMainMenu)
}

// StartProcessing переводит оператора в обработку и возвращает прежнее состояние.
// Повторный вызов до FinishProcessing возвращает ErrOperatorBusy.
func (s *OperatorService) StartProcessing(ctx context.Context, operatorID, chatID int64) (entity.OperatorState, error) {
	operator, err := s.repo.Get(ctx, operatorID, chatID)
	if err != nil {
		return "", err
	}
	prev := operator.State
	if prev == entity.StateProcessing {
		return prev, ErrOperatorBusy
	}

	if err := s.repo.UpdateState(ctx, operatorID, entity.StateProcessing); err != nil {
		return "", errors.Wrap(err, "failed to mark operator as processing")
	}
	return prev, nil
}

// FinishProcessing возвращает прежнее состояние, если за время обработки его никто не сменил.
func (s *OperatorService) FinishProcessing(ctx context.Context, operatorID, chatID int64, prev entity.OperatorState) error {
	operator, err := s.repo.Get(ctx, operatorID, chatID)
	if err != nil {
		return err
	}
	if operator.State != entity.StateProcessing {
		return nil
	}
	return s.repo.UpdateState(ctx, operatorID, prev)
}

// ErrOperatorBusy предыдущий снимок оператора ещё обрабатывается.
var ErrOperatorBusy = errors.New("previous image is still being processed")
