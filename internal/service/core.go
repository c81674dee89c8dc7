// core.go — контракт взаимодействия с ядром LexoHub.
package service

import (
	"context"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/coreclient"
)

// Core — операции ядра LexoHub, потребляемые сервисным слоем.
// Реализуется *coreclient.Client.
type Core interface {
	// CreateMatter создаёт дело из prefill-данных запроса.
	CreateMatter(ctx context.Context, prefill coreclient.MatterPrefill) (*coreclient.CreatedEntity, error)
	// CreateInvoice создаёт pro forma счёт по синтетическому носителю.
	CreateInvoice(ctx context.Context, carrier coreclient.InvoiceCarrier) (*coreclient.CreatedEntity, error)
	// GetOwnerContact возвращает контакты практика (nil — нет записи).
	GetOwnerContact(ctx context.Context, ownerID string) (*coreclient.OwnerContact, error)
}
