// dispatch.go — разрешение и отклонение запросов практиком.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/coreclient"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/repository"
)

// DispatchService — терминальные переходы: processed (с созданием
// сущности в ядре) и declined.
type DispatchService struct {
	repo   repository.ProFormaRequestRepository
	core   Core
	logger *slog.Logger
}

// NewDispatchService создаёт сервис диспетчеризации.
func NewDispatchService(repo repository.ProFormaRequestRepository, core Core, logger *slog.Logger) *DispatchService {
	return &DispatchService{
		repo:   repo,
		core:   core,
		logger: logger.With(slog.String("component", "dispatch_service")),
	}
}

// Resolve разрешает запрос: создаёт в ядре дело или счёт и переводит
// запрос в processed с обратной ссылкой на созданную сущность.
//
// Порядок фиксирован: перечитать статус, вызвать ядро, затем
// compare-and-set. Повторный вызов на терминальном запросе возвращает
// ErrAlreadyActed без обращения к ядру — двойной клик не создаёт
// вторую сущность. При ошибке ядра статус не меняется, практик может
// повторить диспетчеризацию без потери данных.
func (s *DispatchService) Resolve(ctx context.Context, requestID, actingOwnerID string) (*coreclient.CreatedEntity, error) {
	req, err := s.authorize(ctx, requestID, actingOwnerID)
	if err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return nil, ErrAlreadyActed
	}
	if !req.Resolvable() {
		return nil, newValidationError("status",
			"запрос ещё не содержит данных клиента — дождитесь отправки или выпустите запрос с заполненным intake")
	}

	entity, err := s.createEntity(ctx, req)
	if err != nil {
		s.logger.Error("Ядро не создало сущность, статус запроса не изменён",
			slog.String("request_id", requestID),
			slog.String("requested_action", string(req.RequestedAction)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrCoreUnavailable, err)
	}

	err = s.repo.MarkProcessed(ctx, requestID, actingOwnerID, entity.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			// Конкурирующее разрешение победило между перечтением и CAS.
			// Созданная сущность осталась без обратной ссылки — фиксируем
			// в журнале для ручного разбора.
			s.logger.Warn("Проигран compare-and-set после создания сущности",
				slog.String("request_id", requestID),
				slog.String("entity_id", entity.ID),
				slog.String("entity_kind", entity.Kind),
			)
			return nil, ErrAlreadyActed
		}
		return nil, fmt.Errorf("терминальный переход processed: %w", err)
	}

	s.logger.Info("Запрос разрешён",
		slog.String("request_id", requestID),
		slog.String("owner_id", actingOwnerID),
		slog.String("entity_id", entity.ID),
		slog.String("entity_kind", entity.Kind),
	)
	return entity, nil
}

// Decline отклоняет запрос с указанием причины.
func (s *DispatchService) Decline(ctx context.Context, requestID, actingOwnerID, reason string) error {
	if reason == "" {
		return newValidationError("reason", "причина отклонения обязательна")
	}

	req, err := s.authorize(ctx, requestID, actingOwnerID)
	if err != nil {
		return err
	}
	if req.Status.IsTerminal() {
		return ErrAlreadyActed
	}

	err = s.repo.MarkDeclined(ctx, requestID, actingOwnerID, reason, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return ErrAlreadyActed
		}
		return fmt.Errorf("терминальный переход declined: %w", err)
	}

	s.logger.Info("Запрос отклонён",
		slog.String("request_id", requestID),
		slog.String("owner_id", actingOwnerID),
	)
	return nil
}

// authorize перечитывает запрос и проверяет владение.
func (s *DispatchService) authorize(ctx context.Context, requestID, actingOwnerID string) (*model.ProFormaRequest, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение запроса: %w", err)
	}
	if req.OwnerID != actingOwnerID {
		s.logger.Warn("Диспетчеризация чужого запроса отклонена",
			slog.String("request_id", requestID),
			slog.String("acting_owner_id", actingOwnerID),
		)
		return nil, ErrForbidden
	}
	return req, nil
}

// createEntity ветвится по requested_action и вызывает ядро.
func (s *DispatchService) createEntity(ctx context.Context, req *model.ProFormaRequest) (*coreclient.CreatedEntity, error) {
	prefill := coreclient.MatterPrefill{
		ClientName:       req.Intake.ClientName,
		ClientEmail:      req.Intake.ClientEmail,
		ClientPhone:      req.Intake.ClientPhone,
		Description:      req.Intake.MatterDescription,
		MatterType:       req.Intake.MatterType,
		UrgencyLevel:     req.Intake.UrgencyLevel,
		InstructingParty: req.Intake.ClientName,
		OwnerID:          req.OwnerID,
	}

	switch req.RequestedAction {
	case model.ActionCreateMatter:
		return s.core.CreateMatter(ctx, prefill)
	case model.ActionCreateInvoice:
		// Персистентного дела ещё нет: передаём синтетический носитель
		return s.core.CreateInvoice(ctx, coreclient.InvoiceCarrier{Matter: prefill})
	default:
		return nil, fmt.Errorf("неизвестное действие %q у запроса %s", req.RequestedAction, req.ID)
	}
}
