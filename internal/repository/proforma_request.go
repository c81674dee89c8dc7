package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
)

// requestColumns — список столбцов таблицы pro_forma_requests для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const requestColumns = `id, token, owner_id, client_name, client_email, client_phone,
	matter_description, matter_type, urgency_level, notes, requested_action,
	status, intake_complete, created_at, submitted_at, expires_at,
	processed_at, processed_by, created_entity_id, rejection_reason`

// ProFormaRequestRepository — доступ к таблице pro_forma_requests.
// Единственный компонент, который трогает персистентное состояние запросов.
type ProFormaRequestRepository interface {
	// Create вставляет новый запрос (status = pending).
	Create(ctx context.Context, r *model.ProFormaRequest) error
	// GetByToken возвращает запрос по публичному токену.
	GetByToken(ctx context.Context, token string) (*model.ProFormaRequest, error)
	// GetByID возвращает запрос по внутреннему id.
	GetByID(ctx context.Context, id string) (*model.ProFormaRequest, error)
	// ListOpenByOwner возвращает открытые (pending, submitted) запросы
	// владельца, новые первыми.
	ListOpenByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.ProFormaRequest, error)
	// CountOpenByOwner возвращает количество открытых запросов владельца.
	CountOpenByOwner(ctx context.Context, ownerID string) (int, error)
	// SubmitIntake выполняет переход pending → submitted с записью
	// intake-полей. Compare-and-set: ровно один конкурирующий вызов
	// побеждает, остальные получают ErrStateConflict.
	SubmitIntake(ctx context.Context, token string, intake model.Intake, submittedAt time.Time) error
	// MarkProcessed выполняет терминальный переход → processed с записью
	// обратной ссылки. Допустим из submitted, из pending — только при
	// intake_complete. Compare-and-set, как SubmitIntake.
	MarkProcessed(ctx context.Context, id, processedBy, createdEntityID string, processedAt time.Time) error
	// MarkDeclined выполняет терминальный переход → declined с записью
	// причины. Допустим из pending и submitted. Compare-and-set.
	MarkDeclined(ctx context.Context, id, declinedBy, reason string, declinedAt time.Time) error
}

// proFormaRequestRepo — реализация ProFormaRequestRepository.
type proFormaRequestRepo struct {
	db DBTX
}

// NewProFormaRequestRepository создаёт репозиторий pro forma запросов.
func NewProFormaRequestRepository(db DBTX) ProFormaRequestRepository {
	return &proFormaRequestRepo{db: db}
}

func (r *proFormaRequestRepo) Create(ctx context.Context, req *model.ProFormaRequest) error {
	query := `
		INSERT INTO pro_forma_requests (id, token, owner_id, client_name, client_email,
			client_phone, matter_description, matter_type, urgency_level, notes,
			requested_action, status, intake_complete, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		req.ID, req.Token, req.OwnerID, req.Intake.ClientName, req.Intake.ClientEmail,
		req.Intake.ClientPhone, req.Intake.MatterDescription, req.Intake.MatterType,
		req.Intake.UrgencyLevel, req.Intake.Notes,
		req.RequestedAction, req.Status, req.IntakeComplete, req.CreatedAt, req.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запрос с таким токеном уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	return nil
}

func (r *proFormaRequestRepo) GetByToken(ctx context.Context, token string) (*model.ProFormaRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM pro_forma_requests WHERE token = $1`, requestColumns)
	return r.getOne(ctx, query, token)
}

func (r *proFormaRequestRepo) GetByID(ctx context.Context, id string) (*model.ProFormaRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM pro_forma_requests WHERE id = $1`, requestColumns)
	return r.getOne(ctx, query, id)
}

// getOne выполняет SELECT одного запроса и сканирует строку.
func (r *proFormaRequestRepo) getOne(ctx context.Context, query string, arg any) (*model.ProFormaRequest, error) {
	req := &model.ProFormaRequest{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&req.ID, &req.Token, &req.OwnerID, &req.Intake.ClientName, &req.Intake.ClientEmail,
		&req.Intake.ClientPhone, &req.Intake.MatterDescription, &req.Intake.MatterType,
		&req.Intake.UrgencyLevel, &req.Intake.Notes, &req.RequestedAction,
		&req.Status, &req.IntakeComplete, &req.CreatedAt, &req.SubmittedAt, &req.ExpiresAt,
		&req.ProcessedAt, &req.ProcessedBy, &req.CreatedEntityID, &req.RejectionReason,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения запроса: %w", err)
	}
	return req, nil
}

func (r *proFormaRequestRepo) ListOpenByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.ProFormaRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM pro_forma_requests
		WHERE owner_id = $1 AND status IN ('pending', 'submitted')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, requestColumns)

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения worklist: %w", err)
	}
	defer rows.Close()

	var result []*model.ProFormaRequest
	for rows.Next() {
		req := &model.ProFormaRequest{}
		if err := rows.Scan(
			&req.ID, &req.Token, &req.OwnerID, &req.Intake.ClientName, &req.Intake.ClientEmail,
			&req.Intake.ClientPhone, &req.Intake.MatterDescription, &req.Intake.MatterType,
			&req.Intake.UrgencyLevel, &req.Intake.Notes, &req.RequestedAction,
			&req.Status, &req.IntakeComplete, &req.CreatedAt, &req.SubmittedAt, &req.ExpiresAt,
			&req.ProcessedAt, &req.ProcessedBy, &req.CreatedEntityID, &req.RejectionReason,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования запроса: %w", err)
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (r *proFormaRequestRepo) CountOpenByOwner(ctx context.Context, ownerID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM pro_forma_requests
		WHERE owner_id = $1 AND status IN ('pending', 'submitted')`

	var count int
	if err := r.db.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта открытых запросов: %w", err)
	}
	return count, nil
}

// SubmitIntake — conditional UPDATE: WHERE status = 'pending' — единственный
// барьер против гонки двойной отправки. Ноль затронутых строк означает,
// что конкурирующая отправка уже перевела запрос дальше.
func (r *proFormaRequestRepo) SubmitIntake(ctx context.Context, token string, intake model.Intake, submittedAt time.Time) error {
	query := `
		UPDATE pro_forma_requests
		SET client_name = $2, client_email = $3, client_phone = $4,
			matter_description = $5, matter_type = $6, urgency_level = $7, notes = $8,
			status = 'submitted', submitted_at = $9
		WHERE token = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query,
		token, intake.ClientName, intake.ClientEmail, intake.ClientPhone,
		intake.MatterDescription, intake.MatterType, intake.UrgencyLevel, intake.Notes,
		submittedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи intake: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// MarkProcessed — conditional UPDATE: из submitted всегда, из pending —
// только при intake_complete. Предикат целиком в SQL: это и есть
// compare-and-set, гарантирующий ровно одно разрешение.
func (r *proFormaRequestRepo) MarkProcessed(ctx context.Context, id, processedBy, createdEntityID string, processedAt time.Time) error {
	query := `
		UPDATE pro_forma_requests
		SET status = 'processed', processed_at = $2, processed_by = $3, created_entity_id = $4
		WHERE id = $1
			AND (status = 'submitted' OR (status = 'pending' AND intake_complete))`

	tag, err := r.db.Exec(ctx, query, id, processedAt, processedBy, createdEntityID)
	if err != nil {
		return fmt.Errorf("ошибка терминального перехода processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// MarkDeclined — conditional UPDATE из открытых статусов в declined.
func (r *proFormaRequestRepo) MarkDeclined(ctx context.Context, id, declinedBy, reason string, declinedAt time.Time) error {
	query := `
		UPDATE pro_forma_requests
		SET status = 'declined', processed_at = $2, processed_by = $3, rejection_reason = $4
		WHERE id = $1 AND status IN ('pending', 'submitted')`

	tag, err := r.db.Exec(ctx, query, id, declinedAt, declinedBy, reason)
	if err != nil {
		return fmt.Errorf("ошибка терминального перехода declined: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}
