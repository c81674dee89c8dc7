// public.go — публичный вход по токену: просмотр запроса и отправка
// данных клиента. Без аутентификации — токен и есть credential.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/api/errors"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/token"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/service"
)

// publicOwnerContact — контакты практика в публичном ответе.
type publicOwnerContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Firm  string `json:"firm,omitempty"`
}

// publicViewResponse — публичное представление запроса.
// Внутренний id наружу не отдаётся: токен — единственный публичный
// идентификатор.
type publicViewResponse struct {
	State           string              `json:"state"`
	RequestedAction string              `json:"requested_action"`
	ExpiresAt       string              `json:"expires_at"`
	ClientName      string              `json:"client_name,omitempty"`
	MatterDesc      string              `json:"matter_description,omitempty"`
	SubmittedAt     *string             `json:"submitted_at,omitempty"`
	ProcessedAt     *string             `json:"processed_at,omitempty"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	OwnerContact    *publicOwnerContact `json:"owner_contact,omitempty"`
}

// submitIntakeRequest — тело публичной отправки данных клиента.
type submitIntakeRequest struct {
	ClientName        string `json:"client_name"`
	ClientEmail       string `json:"client_email"`
	ClientPhone       string `json:"client_phone,omitempty"`
	MatterDescription string `json:"matter_description"`
	MatterType        string `json:"matter_type,omitempty"`
	UrgencyLevel      string `json:"urgency_level,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// GetPublicRequest — GET /pro-forma-request/{token}.
// Несуществующий, истёкший и синтаксически некорректный токен дают
// одинаковый 404: публичная сторона не должна узнать, существовал ли
// токен вообще.
func (h *APIHandler) GetPublicRequest(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	if !token.IsWellFormed(tok) {
		apierrors.NotFound(w, "Запрос не найден")
		return
	}

	view, err := h.intake.Resolve(r.Context(), tok)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, buildPublicView(view))
}

// SubmitPublicRequest — POST /pro-forma-request/{token}.
// Переход pending → submitted; клиент может исправить ошибки валидации
// и отправить повторно.
func (h *APIHandler) SubmitPublicRequest(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	if !token.IsWellFormed(tok) {
		apierrors.NotFound(w, "Запрос не найден")
		return
	}

	var body submitIntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректное JSON-тело запроса", nil)
		return
	}

	intake := model.Intake{
		ClientName:        body.ClientName,
		ClientEmail:       body.ClientEmail,
		ClientPhone:       body.ClientPhone,
		MatterDescription: body.MatterDescription,
		MatterType:        body.MatterType,
		UrgencyLevel:      body.UrgencyLevel,
		Notes:             body.Notes,
	}
	if err := h.intake.Submit(r.Context(), tok, intake); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"state": string(service.ViewSubmitted)})
}

// buildPublicView собирает публичный DTO из представления сервисного слоя.
func buildPublicView(view *service.PublicView) publicViewResponse {
	req := view.Request
	resp := publicViewResponse{
		State:           string(view.State),
		RequestedAction: string(req.RequestedAction),
		ExpiresAt:       req.ExpiresAt.Format(time.RFC3339),
	}

	// Данные intake показываются после отправки — подтверждение того,
	// что клиент уже ввёл
	if view.State != service.ViewAwaitingSubmission {
		resp.ClientName = req.Intake.ClientName
		resp.MatterDesc = req.Intake.MatterDescription
	}
	if req.SubmittedAt != nil {
		s := req.SubmittedAt.Format(time.RFC3339)
		resp.SubmittedAt = &s
	}
	if req.ProcessedAt != nil {
		s := req.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	if view.State == service.ViewDeclined && req.RejectionReason != nil {
		resp.RejectionReason = *req.RejectionReason
	}
	if view.OwnerContact != nil {
		resp.OwnerContact = &publicOwnerContact{
			Name:  view.OwnerContact.Name,
			Email: view.OwnerContact.Email,
			Phone: view.OwnerContact.Phone,
			Firm:  view.OwnerContact.Firm,
		}
	}
	return resp
}
