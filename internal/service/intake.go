// intake.go — публичный вход: просмотр запроса по токену и отправка
// данных клиента.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/coreclient"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/repository"
)

// ViewState — внешне наблюдаемое состояние запроса для публичной стороны.
type ViewState string

const (
	// ViewAwaitingSubmission — запрос ждёт данных клиента (показать форму).
	ViewAwaitingSubmission ViewState = "awaiting_submission"
	// ViewSubmitted — данные отправлены, ждёт решения практика.
	ViewSubmitted ViewState = "submitted"
	// ViewProcessed — запрос разрешён.
	ViewProcessed ViewState = "processed"
	// ViewDeclined — запрос отклонён.
	ViewDeclined ViewState = "declined"
)

// PublicView — представление запроса для публичной стороны.
// Терминальные состояния по возможности обогащаются контактами практика.
type PublicView struct {
	State        ViewState
	Request      *model.ProFormaRequest
	OwnerContact *coreclient.OwnerContact
}

// IntakeService — сервис публичного входа по токену.
type IntakeService struct {
	repo   repository.ProFormaRequestRepository
	core   Core
	logger *slog.Logger
}

// NewIntakeService создаёт сервис публичного входа.
func NewIntakeService(repo repository.ProFormaRequestRepository, core Core, logger *slog.Logger) *IntakeService {
	return &IntakeService{
		repo:   repo,
		core:   core,
		logger: logger.With(slog.String("component", "intake_service")),
	}
}

// Resolve возвращает публичное представление запроса по токену.
// Истёкший запрос неотличим от несуществующего: оба — ErrNotFound.
// Публичная сторона не должна узнать, существовал ли токен вообще.
func (s *IntakeService) Resolve(ctx context.Context, tok string) (*PublicView, error) {
	req, err := s.lookupLive(ctx, tok)
	if err != nil {
		return nil, err
	}

	view := &PublicView{Request: req}
	switch req.Status {
	case model.StatusPending:
		view.State = ViewAwaitingSubmission
	case model.StatusSubmitted:
		view.State = ViewSubmitted
	case model.StatusProcessed:
		view.State = ViewProcessed
	case model.StatusDeclined:
		view.State = ViewDeclined
	default:
		return nil, fmt.Errorf("неизвестный статус запроса %s: %q", req.ID, req.Status)
	}

	// Контакты практика — только косметика терминального представления:
	// ошибка справочника не блокирует ответ
	if req.Status.IsTerminal() {
		contact, err := s.core.GetOwnerContact(ctx, req.OwnerID)
		if err != nil {
			s.logger.Warn("Не удалось получить контакты практика",
				slog.String("request_id", req.ID),
				slog.String("error", err.Error()),
			)
		} else {
			view.OwnerContact = contact
		}
	}

	return view, nil
}

// Submit записывает данные клиента: переход pending → submitted.
func (s *IntakeService) Submit(ctx context.Context, tok string, in model.Intake) error {
	// Обязательная повторная проверка: между загрузкой формы и отправкой
	// запрос мог истечь или уйти дальше
	req, err := s.lookupLive(ctx, tok)
	if err != nil {
		return err
	}
	if req.Status != model.StatusPending {
		return ErrAlreadyActed
	}

	if err := validateIntake(in); err != nil {
		return err
	}

	err = s.repo.SubmitIntake(ctx, tok, in, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			// Конкурирующая отправка победила: для клиента исход уже наступил
			return ErrAlreadyActed
		}
		return fmt.Errorf("отправка intake: %w", err)
	}

	s.logger.Info("Клиент отправил данные по запросу",
		slog.String("request_id", req.ID),
		slog.String("owner_id", req.OwnerID),
	)
	return nil
}

// lookupLive ищет запрос по токену и применяет предикат истечения.
func (s *IntakeService) lookupLive(ctx context.Context, tok string) (*model.ProFormaRequest, error) {
	req, err := s.repo.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("поиск запроса по токену: %w", err)
	}
	if req.IsExpired(time.Now().UTC()) {
		return nil, ErrNotFound
	}
	return req, nil
}

// validateIntake проверяет обязательные поля публичной отправки:
// имя клиента, синтаксически корректный email, непустое описание.
func validateIntake(in model.Intake) error {
	fields := map[string]string{}
	if in.ClientName == "" {
		fields["client_name"] = "имя обязательно"
	}
	if in.ClientEmail == "" {
		fields["client_email"] = "email обязателен"
	} else if _, err := mail.ParseAddress(in.ClientEmail); err != nil {
		fields["client_email"] = "некорректный email"
	}
	if in.MatterDescription == "" {
		fields["matter_description"] = "описание обязательно"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
