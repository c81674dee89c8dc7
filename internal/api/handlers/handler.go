// handler.go — основной обработчик API Pro Forma Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/api/errors"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/service"
)

// APIHandler — основной обработчик API Pro Forma Module.
type APIHandler struct {
	health   *HealthHandler
	issuance *service.IssuanceService
	intake   *service.IntakeService
	worklist *service.WorklistService
	dispatch *service.DispatchService
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	issuance *service.IssuanceService,
	intake *service.IntakeService,
	worklist *service.WorklistService,
	dispatch *service.DispatchService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		issuance: issuance,
		intake:   intake,
		worklist: worklist,
		dispatch: dispatch,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// RegisterPublic регистрирует неаутентифицируемые маршруты:
// публичный вход по токену, health, metrics.
func (h *APIHandler) RegisterPublic(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Get("/pro-forma-request/{token}", h.GetPublicRequest)
	r.Post("/pro-forma-request/{token}", h.SubmitPublicRequest)
}

// RegisterPractitioner регистрирует маршруты практика (за JWT middleware).
func (h *APIHandler) RegisterPractitioner(r chi.Router) {
	r.Post("/pro-forma-requests", h.CreateRequest)
	r.Get("/pro-forma-requests", h.ListRequests)
	r.Get("/pro-forma-requests/{id}", h.GetRequest)
	r.Post("/pro-forma-requests/{id}/resolve", h.ResolveRequest)
	r.Post("/pro-forma-requests/{id}/decline", h.DeclineRequest)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError маппит ошибки сервисного слоя в HTTP-ответы.
// Ожидаемые исходы (валидация, not found, already acted) — это ветви
// рендеринга, а не исключения; только неизвестные ошибки дают 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		apierrors.ValidationError(w, "Некорректные входные данные", verr.Fields)
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Запрос не найден")
	case errors.Is(err, service.ErrAlreadyActed):
		apierrors.AlreadyActed(w, "Запрос уже обработан")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Запрос принадлежит другому практику")
	case errors.Is(err, service.ErrCoreUnavailable):
		apierrors.CoreUnavailable(w, "Ядро LexoHub недоступно, повторите позже")
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка")
	}
}

// paginationDefaults нормализует параметры пагинации из query string.
func paginationDefaults(limitStr, offsetStr string) (limit, offset int) {
	limit = 100
	offset = 0

	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			limit = v
			if limit < 1 {
				limit = 1
			}
			if limit > 1000 {
				limit = 1000
			}
		}
	}
	if offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}
