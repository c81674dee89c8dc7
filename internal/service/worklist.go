// worklist.go — рабочий список открытых запросов практика.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/repository"
)

// WorklistService — чтение запросов владельцем.
// Скоупинг по owner_id обязателен: видимость чужих запросов — дефект
// безопасности, а не недостающая фича.
type WorklistService struct {
	repo   repository.ProFormaRequestRepository
	logger *slog.Logger
}

// NewWorklistService создаёт сервис рабочего списка.
func NewWorklistService(repo repository.ProFormaRequestRepository, logger *slog.Logger) *WorklistService {
	return &WorklistService{
		repo:   repo,
		logger: logger.With(slog.String("component", "worklist_service")),
	}
}

// ListOpen возвращает открытые (pending, submitted) запросы владельца,
// новые первыми, и их общее количество. Истечение не скрывает запрос
// от владельца: в отличие от публичной стороны, практик видит свои
// истёкшие запросы — с производным статусом expired (EffectiveStatus).
func (s *WorklistService) ListOpen(ctx context.Context, ownerID string, limit, offset int) ([]*model.ProFormaRequest, int, error) {
	list, err := s.repo.ListOpenByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение рабочего списка: %w", err)
	}

	total, err := s.repo.CountOpenByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт открытых запросов: %w", err)
	}

	return list, total, nil
}

// Get возвращает запрос владельца по id.
func (s *WorklistService) Get(ctx context.Context, id, actingOwnerID string) (*model.ProFormaRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение запроса: %w", err)
	}
	if req.OwnerID != actingOwnerID {
		s.logger.Warn("Попытка доступа к чужому запросу",
			slog.String("request_id", id),
			slog.String("acting_owner_id", actingOwnerID),
		)
		return nil, ErrForbidden
	}
	return req, nil
}
