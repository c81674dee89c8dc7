// requests.go — маршруты практика: выпуск ссылки, worklist,
// диспетчеризация, отклонение. Все операции скоупятся по sub из JWT.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/api/errors"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/api/middleware"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/service"
)

// createRequestBody — тело выпуска ссылки.
// intake опционален: заполненный при выпуске intake делает запрос
// разрешимым прямо из pending.
type createRequestBody struct {
	RequestedAction string      `json:"requested_action"`
	Intake          *intakeBody `json:"intake,omitempty"`
}

// intakeBody — intake-поля в телах запросов практика.
type intakeBody struct {
	ClientName        string `json:"client_name,omitempty"`
	ClientEmail       string `json:"client_email,omitempty"`
	ClientPhone       string `json:"client_phone,omitempty"`
	MatterDescription string `json:"matter_description,omitempty"`
	MatterType        string `json:"matter_type,omitempty"`
	UrgencyLevel      string `json:"urgency_level,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// requestResponse — представление запроса для владельца.
type requestResponse struct {
	ID              string      `json:"id"`
	Token           string      `json:"token"`
	Status          string      `json:"status"`
	EffectiveStatus string      `json:"effective_status"`
	RequestedAction string      `json:"requested_action"`
	IntakeComplete  bool        `json:"intake_complete"`
	Intake          *intakeBody `json:"intake,omitempty"`
	CreatedAt       string      `json:"created_at"`
	SubmittedAt     *string     `json:"submitted_at,omitempty"`
	ExpiresAt       string      `json:"expires_at"`
	ProcessedAt     *string     `json:"processed_at,omitempty"`
	ProcessedBy     *string     `json:"processed_by,omitempty"`
	CreatedEntityID *string     `json:"created_entity_id,omitempty"`
	RejectionReason *string     `json:"rejection_reason,omitempty"`
}

// createRequestResponse — ответ на выпуск: запрос + публичная ссылка.
type createRequestResponse struct {
	Request   requestResponse `json:"request"`
	PublicURL string          `json:"public_url"`
}

// listRequestsResponse — страница worklist.
type listRequestsResponse struct {
	Requests []requestResponse `json:"requests"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// resolveRequestResponse — результат диспетчеризации.
type resolveRequestResponse struct {
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
}

// declineRequestBody — тело отклонения.
type declineRequestBody struct {
	Reason string `json:"reason"`
}

// CreateRequest — POST /api/v1/pro-forma-requests.
func (h *APIHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.SubjectFromContext(r.Context())
	if ownerID == "" {
		apierrors.Unauthorized(w, "Отсутствует субъект в контексте")
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректное JSON-тело запроса", nil)
		return
	}

	in := service.IssueInput{RequestedAction: body.RequestedAction}
	if body.Intake != nil {
		in.Intake = model.Intake{
			ClientName:        body.Intake.ClientName,
			ClientEmail:       body.Intake.ClientEmail,
			ClientPhone:       body.Intake.ClientPhone,
			MatterDescription: body.Intake.MatterDescription,
			MatterType:        body.Intake.MatterType,
			UrgencyLevel:      body.Intake.UrgencyLevel,
			Notes:             body.Intake.Notes,
		}
	}

	req, publicURL, err := h.issuance.Issue(r.Context(), ownerID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createRequestResponse{
		Request:   buildRequestResponse(req),
		PublicURL: publicURL,
	})
}

// ListRequests — GET /api/v1/pro-forma-requests?limit&offset.
func (h *APIHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.SubjectFromContext(r.Context())
	if ownerID == "" {
		apierrors.Unauthorized(w, "Отсутствует субъект в контексте")
		return
	}

	limit, offset := paginationDefaults(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))

	list, total, err := h.worklist.ListOpen(r.Context(), ownerID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := listRequestsResponse{
		Requests: make([]requestResponse, 0, len(list)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for _, req := range list {
		resp.Requests = append(resp.Requests, buildRequestResponse(req))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRequest — GET /api/v1/pro-forma-requests/{id}.
func (h *APIHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.SubjectFromContext(r.Context())
	if ownerID == "" {
		apierrors.Unauthorized(w, "Отсутствует субъект в контексте")
		return
	}

	req, err := h.worklist.Get(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildRequestResponse(req))
}

// ResolveRequest — POST /api/v1/pro-forma-requests/{id}/resolve.
func (h *APIHandler) ResolveRequest(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.SubjectFromContext(r.Context())
	if ownerID == "" {
		apierrors.Unauthorized(w, "Отсутствует субъект в контексте")
		return
	}

	entity, err := h.dispatch.Resolve(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveRequestResponse{
		EntityID:   entity.ID,
		EntityKind: entity.Kind,
	})
}

// DeclineRequest — POST /api/v1/pro-forma-requests/{id}/decline.
func (h *APIHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.SubjectFromContext(r.Context())
	if ownerID == "" {
		apierrors.Unauthorized(w, "Отсутствует субъект в контексте")
		return
	}

	var body declineRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректное JSON-тело запроса", nil)
		return
	}

	if err := h.dispatch.Decline(r.Context(), chi.URLParam(r, "id"), ownerID, body.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.StatusDeclined)})
}

// buildRequestResponse собирает DTO запроса для владельца.
// effective_status показывает производное expired для открытых запросов
// с истёкшим сроком — в хранилище expired никогда не записывается.
func buildRequestResponse(req *model.ProFormaRequest) requestResponse {
	resp := requestResponse{
		ID:              req.ID,
		Token:           req.Token,
		Status:          string(req.Status),
		EffectiveStatus: string(req.EffectiveStatus(time.Now().UTC())),
		RequestedAction: string(req.RequestedAction),
		IntakeComplete:  req.IntakeComplete,
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
		ExpiresAt:       req.ExpiresAt.Format(time.RFC3339),
		ProcessedBy:     req.ProcessedBy,
		CreatedEntityID: req.CreatedEntityID,
		RejectionReason: req.RejectionReason,
	}
	if req.Intake != (model.Intake{}) {
		resp.Intake = &intakeBody{
			ClientName:        req.Intake.ClientName,
			ClientEmail:       req.Intake.ClientEmail,
			ClientPhone:       req.Intake.ClientPhone,
			MatterDescription: req.Intake.MatterDescription,
			MatterType:        req.Intake.MatterType,
			UrgencyLevel:      req.Intake.UrgencyLevel,
			Notes:             req.Intake.Notes,
		}
	}
	if req.SubmittedAt != nil {
		s := req.SubmittedAt.Format(time.RFC3339)
		resp.SubmittedAt = &s
	}
	if req.ProcessedAt != nil {
		s := req.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}
