// issuance.go — сервис выпуска ссылок на pro forma запросы.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/config"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/token"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/repository"
)

// tokenInsertAttempts — число попыток вставки при коллизии токена.
// Коллизия 128-битного токена статистически исключена, но уникальное
// ограничение в БД всё равно может сработать.
const tokenInsertAttempts = 3

// IssueInput — входные данные выпуска ссылки.
// Intake опционален: практик может заполнить данные клиента сам
// (тогда запрос разрешим прямо из pending) либо оставить их пустыми
// до отправки внешней стороной.
type IssueInput struct {
	RequestedAction string
	Intake          model.Intake
}

// IssuanceService — сервис выпуска ссылок.
type IssuanceService struct {
	repo   repository.ProFormaRequestRepository
	cfg    *config.Config
	logger *slog.Logger
}

// NewIssuanceService создаёт сервис выпуска ссылок.
func NewIssuanceService(repo repository.ProFormaRequestRepository, cfg *config.Config, logger *slog.Logger) *IssuanceService {
	return &IssuanceService{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "issuance_service")),
	}
}

// Issue выпускает новый pro forma запрос и публичную ссылку на него.
// Каждый вызов выпускает новый токен: идемпотентности между вызовами нет,
// за повторный выпуск на один и тот же повод отвечает вызывающий.
func (s *IssuanceService) Issue(ctx context.Context, ownerID string, in IssueInput) (*model.ProFormaRequest, string, error) {
	if !model.IsValidAction(model.RequestedAction(in.RequestedAction)) {
		return nil, "", newValidationError("requested_action",
			"допустимые значения — create_matter, create_invoice")
	}

	intakeComplete, err := validatePrefill(in.Intake)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	req := &model.ProFormaRequest{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		Intake:          in.Intake,
		RequestedAction: model.RequestedAction(in.RequestedAction),
		Status:          model.StatusPending,
		IntakeComplete:  intakeComplete,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.RequestTTL),
	}

	for attempt := 1; ; attempt++ {
		tok, err := token.Generate()
		if err != nil {
			// Исчерпание энтропии — фатально, без деградации
			return nil, "", fmt.Errorf("генерация токена: %w", err)
		}
		req.Token = tok

		err = s.repo.Create(ctx, req)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrConflict) && attempt < tokenInsertAttempts {
			s.logger.Warn("Коллизия токена при вставке, повтор",
				slog.Int("attempt", attempt),
			)
			continue
		}
		return nil, "", fmt.Errorf("создание запроса: %w", err)
	}

	s.logger.Info("Выпущен pro forma запрос",
		slog.String("request_id", req.ID),
		slog.String("owner_id", ownerID),
		slog.String("requested_action", in.RequestedAction),
		slog.Bool("intake_complete", intakeComplete),
		slog.Time("expires_at", req.ExpiresAt),
	)

	return req, s.cfg.PublicRequestURL(req.Token), nil
}

// validatePrefill проверяет intake, заполненный практиком при выпуске.
// Пустой intake допустим (заполнит внешняя сторона). Частично
// заполненный обязан содержать минимум: канал связи и описание —
// иначе запрос нельзя было бы ни разрешить из pending, ни корректно
// показать клиенту.
func validatePrefill(in model.Intake) (complete bool, err error) {
	if in == (model.Intake{}) {
		return false, nil
	}

	fields := map[string]string{}
	if in.ClientEmail == "" && in.ClientPhone == "" {
		fields["client_email"] = "укажите email или телефон клиента"
	}
	if in.ClientEmail != "" {
		if _, mailErr := mail.ParseAddress(in.ClientEmail); mailErr != nil {
			fields["client_email"] = "некорректный email"
		}
	}
	if in.MatterDescription == "" {
		fields["matter_description"] = "описание обязательно"
	}
	if len(fields) > 0 {
		return false, &ValidationError{Fields: fields}
	}
	return true, nil
}
