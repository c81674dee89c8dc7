// Пакет errors — конструкторы стандартных ошибок API Pro Forma Module.
// Единый формат: {"error": {"code": "...", "message": "...", "fields": {...}}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeAlreadyActed    = "ALREADY_ACTED"
	CodeCoreUnavailable = "CORE_UNAVAILABLE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки. Fields заполняется только для
// VALIDATION_ERROR: имя поля → сообщение.
type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeBody(w, statusCode, code, message, nil)
}

func writeBody(w http.ResponseWriter, statusCode int, code, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
			Fields:  fields,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные с привязкой к полям.
func ValidationError(w http.ResponseWriter, message string, fields map[string]string) {
	writeBody(w, http.StatusBadRequest, CodeValidationError, message, fields)
}

// NotFound — 404 запрос не найден (или истёк: публично неотличимо).
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// AlreadyActed — 409 запрос уже ушёл дальше предполагаемого статуса.
func AlreadyActed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeAlreadyActed, message)
}

// CoreUnavailable — 502 ядро LexoHub недоступно, операцию можно повторить.
func CoreUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeCoreUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
