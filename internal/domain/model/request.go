package model

import "time"

// Status — статус pro forma запроса.
// Хранится строкой в колонке status (CHECK-ограничение в миграции).
type Status string

const (
	// StatusPending — запрос выдан, ожидает данных от внешней стороны.
	StatusPending Status = "pending"
	// StatusSubmitted — внешняя сторона отправила intake-данные.
	StatusSubmitted Status = "submitted"
	// StatusProcessed — запрос разрешён в matter или invoice (поглощающий).
	StatusProcessed Status = "processed"
	// StatusDeclined — запрос отклонён практиком (поглощающий).
	StatusDeclined Status = "declined"
	// StatusExpired — производный статус: зарезервирован в схеме,
	// но никогда не записывается. Истечение вычисляется из expires_at.
	StatusExpired Status = "expired"
)

// IsTerminal возвращает true для поглощающих статусов.
// Из processed и declined переходов нет.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusDeclined
}

// RequestedAction — действие, в которое разрешается запрос.
// Фиксируется при выдаче и определяет ветку диспетчера.
type RequestedAction string

const (
	// ActionCreateMatter — разрешение в новое дело (matter).
	ActionCreateMatter RequestedAction = "create_matter"
	// ActionCreateInvoice — разрешение в pro forma счёт (invoice).
	ActionCreateInvoice RequestedAction = "create_invoice"
)

// IsValidAction проверяет, что строка — допустимое requested_action.
func IsValidAction(a RequestedAction) bool {
	return a == ActionCreateMatter || a == ActionCreateInvoice
}

// Intake — данные, поставляемые внешней (неаутентифицированной) стороной.
// Заполняются ровно один раз: либо практиком при выдаче (intake_complete),
// либо внешней стороной на переходе pending → submitted.
type Intake struct {
	// ClientName — имя клиента / поручающего адвоката
	ClientName string
	// ClientEmail — email клиента
	ClientEmail string
	// ClientPhone — телефон клиента (опционально)
	ClientPhone string
	// MatterDescription — описание дела
	MatterDescription string
	// MatterType — тип дела (опционально)
	MatterType string
	// UrgencyLevel — срочность (опционально)
	UrgencyLevel string
	// Notes — свободные заметки (опционально)
	Notes string
}

// ProFormaRequest — pro forma запрос.
// Хранится в таблице pro_forma_requests. Записи никогда не удаляются.
type ProFormaRequest struct {
	// ID — внутренний UUID запроса; наружу не отдаётся
	ID string
	// Token — криптослучайный публичный идентификатор (bearer-секрет);
	// единственный идентификатор, видимый внешней стороне. Неизменяем.
	Token string
	// OwnerID — практик, выдавший запрос; все аутентифицированные
	// чтения скоупятся по owner_id
	OwnerID string
	// Intake — данные внешней стороны
	Intake Intake
	// RequestedAction — create_matter или create_invoice
	RequestedAction RequestedAction
	// Status — pending, submitted, processed, declined
	Status Status
	// IntakeComplete — intake заполнен практиком при выдаче;
	// такой запрос может быть разрешён прямо из pending
	IntakeComplete bool
	// CreatedAt — время выдачи
	CreatedAt time.Time
	// SubmittedAt — время отправки intake внешней стороной
	SubmittedAt *time.Time
	// ExpiresAt — created_at + горизонт; неизменяемо после выдачи
	ExpiresAt time.Time
	// ProcessedAt — время терминального перехода
	ProcessedAt *time.Time
	// ProcessedBy — практик, выполнивший терминальный переход
	ProcessedBy *string
	// CreatedEntityID — обратная ссылка на созданный matter/invoice
	CreatedEntityID *string
	// RejectionReason — причина отклонения (для declined)
	RejectionReason *string
}

// IsExpired проверяет предикат истечения на момент now.
// Истечение нигде не записывается — это чистый предикат чтения.
func (r *ProFormaRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// EffectiveStatus возвращает статус с учётом истечения: открытый запрос
// с now > expires_at отображается владельцу как expired. Терминальные
// статусы истечением не перекрываются.
func (r *ProFormaRequest) EffectiveStatus(now time.Time) Status {
	if !r.Status.IsTerminal() && r.IsExpired(now) {
		return StatusExpired
	}
	return r.Status
}

// Resolvable проверяет, допустимо ли разрешение запроса диспетчером:
// из submitted — всегда, из pending — только при полном intake.
func (r *ProFormaRequest) Resolvable() bool {
	switch r.Status {
	case StatusSubmitted:
		return true
	case StatusPending:
		return r.IntakeComplete
	default:
		return false
	}
}
