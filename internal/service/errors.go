// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound — запрос не найден (или истёк: для публичной стороны
	// это одно и то же).
	ErrNotFound = errors.New("запрос не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrAlreadyActed — запрос уже ушёл дальше предполагаемого статуса:
	// повторная отправка или повторное разрешение.
	ErrAlreadyActed = errors.New("запрос уже обработан")
	// ErrForbidden — запрос принадлежит другому практику.
	ErrForbidden = errors.New("запрос принадлежит другому практику")
	// ErrCoreUnavailable — ядро LexoHub недоступно или вернуло ошибку;
	// статус запроса не изменён, диспетчеризацию можно повторить.
	ErrCoreUnavailable = errors.New("ядро LexoHub недоступно")
)

// ValidationError — ошибка валидации с привязкой к полям.
// Разворачивается в ErrValidation для errors.Is.
type ValidationError struct {
	// Fields — имя поля → сообщение.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%v: поля %s", ErrValidation, strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// newValidationError создаёт ValidationError для одного поля.
func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
