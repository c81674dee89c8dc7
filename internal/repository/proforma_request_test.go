package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/config"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/database"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/token"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка — через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("lexohub_test"),
		postgres.WithUsername("lexohub"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	t.Setenv("PF_DB_HOST", host)
	t.Setenv("PF_DB_PORT", port.Port())
	t.Setenv("PF_DB_NAME", "lexohub_test")
	t.Setenv("PF_DB_USER", "lexohub")
	t.Setenv("PF_DB_PASSWORD", "test-password")
	t.Setenv("PF_DB_SSL_MODE", "disable")
	t.Setenv("PF_PUBLIC_BASE_URL", "https://app.lexohub.test")
	t.Setenv("PF_CORE_URL", "http://localhost:8000")
	t.Setenv("PF_KEYCLOAK_URL", "http://localhost:8080")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newPendingRequest создаёт тестовый запрос в статусе pending.
func newPendingRequest(t *testing.T, ownerID string) *model.ProFormaRequest {
	t.Helper()

	tok, err := token.Generate()
	if err != nil {
		t.Fatalf("token.Generate() ошибка: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.ProFormaRequest{
		ID:              uuid.New().String(),
		Token:           tok,
		OwnerID:         ownerID,
		RequestedAction: model.ActionCreateMatter,
		Status:          model.StatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(7 * 24 * time.Hour),
	}
}

func TestProFormaRequestCreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	req := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// По токену
	got, err := repo.GetByToken(ctx, req.Token)
	if err != nil {
		t.Fatalf("GetByToken() ошибка: %v", err)
	}
	if got.ID != req.ID || got.OwnerID != "owner-001" || got.Status != model.StatusPending {
		t.Errorf("GetByToken() вернул %+v", got)
	}
	if got.SubmittedAt != nil || got.ProcessedAt != nil {
		t.Error("У pending запроса не должно быть submitted_at/processed_at")
	}

	// По id
	got, err = repo.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Token != req.Token {
		t.Errorf("GetByID() Token = %q, ожидали %q", got.Token, req.Token)
	}

	// Несуществующий токен
	if _, err := repo.GetByToken(ctx, "0000000000000000000000000000dead"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByToken() для несуществующего токена: ожидали ErrNotFound, получили %v", err)
	}
}

func TestProFormaRequestTokenUnique(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	req := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	dup := newPendingRequest(t, "owner-002")
	dup.Token = req.Token
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() с дублирующимся токеном: ожидали ErrConflict, получили %v", err)
	}
}

func TestSubmitIntake(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	req := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	intake := model.Intake{
		ClientName:        "Наталья Петрова",
		ClientEmail:       "client@example.com",
		MatterDescription: "Договор аренды офиса",
		MatterType:        "commercial",
		UrgencyLevel:      "high",
	}
	submittedAt := time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.SubmitIntake(ctx, req.Token, intake, submittedAt); err != nil {
		t.Fatalf("SubmitIntake() ошибка: %v", err)
	}

	got, err := repo.GetByToken(ctx, req.Token)
	if err != nil {
		t.Fatalf("GetByToken() ошибка: %v", err)
	}
	if got.Status != model.StatusSubmitted {
		t.Errorf("Status = %q, ожидали %q", got.Status, model.StatusSubmitted)
	}
	if got.Intake.ClientName != intake.ClientName || got.Intake.MatterDescription != intake.MatterDescription {
		t.Errorf("Intake не записан: %+v", got.Intake)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(submittedAt) {
		t.Errorf("SubmittedAt = %v, ожидали %v", got.SubmittedAt, submittedAt)
	}

	// Повторная отправка — compare-and-set не проходит
	if err := repo.SubmitIntake(ctx, req.Token, intake, time.Now().UTC()); !errors.Is(err, ErrStateConflict) {
		t.Errorf("Повторный SubmitIntake(): ожидали ErrStateConflict, получили %v", err)
	}
}

// TestSubmitIntakeConcurrent — гонка: N конкурирующих отправок,
// побеждает ровно одна.
func TestSubmitIntakeConcurrent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	req := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.SubmitIntake(ctx, req.Token,
				model.Intake{ClientName: "Гонка", MatterDescription: "тест"},
				time.Now().UTC())
		}()
	}
	wg.Wait()
	close(results)

	var winners, conflicts int
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrStateConflict):
			conflicts++
		default:
			t.Errorf("Неожиданная ошибка: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("Победителей = %d, ожидали ровно 1", winners)
	}
	if conflicts != workers-1 {
		t.Errorf("Конфликтов = %d, ожидали %d", conflicts, workers-1)
	}
}

func TestMarkProcessed(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	req := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := repo.SubmitIntake(ctx, req.Token,
		model.Intake{ClientName: "Клиент", MatterDescription: "Дело"}, time.Now().UTC()); err != nil {
		t.Fatalf("SubmitIntake() ошибка: %v", err)
	}

	entityID := uuid.New().String()
	if err := repo.MarkProcessed(ctx, req.ID, "owner-001", entityID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkProcessed() ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusProcessed {
		t.Errorf("Status = %q, ожидали %q", got.Status, model.StatusProcessed)
	}
	if got.CreatedEntityID == nil || *got.CreatedEntityID != entityID {
		t.Errorf("CreatedEntityID = %v, ожидали %q", got.CreatedEntityID, entityID)
	}
	if got.ProcessedBy == nil || *got.ProcessedBy != "owner-001" {
		t.Errorf("ProcessedBy = %v", got.ProcessedBy)
	}

	// Терминальный статус поглощающий: повторное разрешение не проходит
	if err := repo.MarkProcessed(ctx, req.ID, "owner-001", entityID, time.Now().UTC()); !errors.Is(err, ErrStateConflict) {
		t.Errorf("Повторный MarkProcessed(): ожидали ErrStateConflict, получили %v", err)
	}
	if err := repo.MarkDeclined(ctx, req.ID, "owner-001", "поздно", time.Now().UTC()); !errors.Is(err, ErrStateConflict) {
		t.Errorf("MarkDeclined() после processed: ожидали ErrStateConflict, получили %v", err)
	}
}

// TestMarkProcessedFromPending — из pending разрешение допустимо только
// при intake_complete.
func TestMarkProcessedFromPending(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	// Без intake_complete — отказ
	bare := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, bare); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := repo.MarkProcessed(ctx, bare.ID, "owner-001", uuid.New().String(), time.Now().UTC()); !errors.Is(err, ErrStateConflict) {
		t.Errorf("MarkProcessed() из pending без intake: ожидали ErrStateConflict, получили %v", err)
	}

	// С intake_complete (intake задан при выпуске ссылки) — проходит
	prefilled := newPendingRequest(t, "owner-001")
	prefilled.Intake = model.Intake{ClientName: "Клиент", MatterDescription: "Дело"}
	prefilled.IntakeComplete = true
	if err := repo.Create(ctx, prefilled); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := repo.MarkProcessed(ctx, prefilled.ID, "owner-001", uuid.New().String(), time.Now().UTC()); err != nil {
		t.Errorf("MarkProcessed() из pending с intake_complete: %v", err)
	}
}

// TestResolveConcurrent — гонка разрешения и отклонения:
// побеждает ровно один терминальный переход.
func TestResolveConcurrent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	req := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := repo.SubmitIntake(ctx, req.Token,
		model.Intake{ClientName: "Клиент", MatterDescription: "Дело"}, time.Now().UTC()); err != nil {
		t.Fatalf("SubmitIntake() ошибка: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- repo.MarkProcessed(ctx, req.ID, "owner-001", uuid.New().String(), time.Now().UTC())
	}()
	go func() {
		defer wg.Done()
		results <- repo.MarkDeclined(ctx, req.ID, "owner-001", "не будем", time.Now().UTC())
	}()
	wg.Wait()
	close(results)

	var winners int
	for err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, ErrStateConflict) {
			t.Errorf("Неожиданная ошибка: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("Терминальных переходов = %d, ожидали ровно 1", winners)
	}

	got, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if !got.Status.IsTerminal() {
		t.Errorf("Status = %q, ожидали терминальный", got.Status)
	}
}

func TestMarkDeclined(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	// Отклонение допустимо прямо из pending
	req := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := repo.MarkDeclined(ctx, req.ID, "owner-001", "дубликат обращения", time.Now().UTC()); err != nil {
		t.Fatalf("MarkDeclined() ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusDeclined {
		t.Errorf("Status = %q, ожидали %q", got.Status, model.StatusDeclined)
	}
	if got.RejectionReason == nil || *got.RejectionReason != "дубликат обращения" {
		t.Errorf("RejectionReason = %v", got.RejectionReason)
	}
}

func TestListOpenByOwner(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProFormaRequestRepository(pool)

	// Три открытых у owner-001, один терминальный, один чужой
	for i := 0; i < 3; i++ {
		req := newPendingRequest(t, "owner-001")
		req.CreatedAt = req.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := repo.Create(ctx, req); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}
	declined := newPendingRequest(t, "owner-001")
	if err := repo.Create(ctx, declined); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := repo.MarkDeclined(ctx, declined.ID, "owner-001", "нет", time.Now().UTC()); err != nil {
		t.Fatalf("MarkDeclined() ошибка: %v", err)
	}
	foreign := newPendingRequest(t, "owner-002")
	if err := repo.Create(ctx, foreign); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	list, err := repo.ListOpenByOwner(ctx, "owner-001", 50, 0)
	if err != nil {
		t.Fatalf("ListOpenByOwner() ошибка: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, ожидали 3", len(list))
	}
	// Новые первыми
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Errorf("Нарушен порядок сортировки: %v после %v", list[i-1].CreatedAt, list[i].CreatedAt)
		}
	}
	// Изоляция владельцев
	for _, r := range list {
		if r.OwnerID != "owner-001" {
			t.Errorf("В worklist чужой запрос: owner = %q", r.OwnerID)
		}
	}

	count, err := repo.CountOpenByOwner(ctx, "owner-001")
	if err != nil {
		t.Fatalf("CountOpenByOwner() ошибка: %v", err)
	}
	if count != 3 {
		t.Errorf("CountOpenByOwner() = %d, ожидали 3", count)
	}

	// Пагинация
	page, err := repo.ListOpenByOwner(ctx, "owner-001", 2, 2)
	if err != nil {
		t.Fatalf("ListOpenByOwner() с offset ошибка: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("len(page) = %d, ожидали 1", len(page))
	}
}
