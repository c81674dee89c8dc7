package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
)

func TestListOpenOwnershipIsolation(t *testing.T) {
	repo := newMemRepo()
	svc := NewWorklistService(repo, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		issueTestRequest(t, repo, "owner-001", IssueInput{RequestedAction: "create_matter"})
	}
	issueTestRequest(t, repo, "owner-002", IssueInput{RequestedAction: "create_matter"})

	// Терминальный запрос выпадает из рабочего списка
	declined := issueTestRequest(t, repo, "owner-001", IssueInput{RequestedAction: "create_matter"})
	if err := NewDispatchService(repo, &fakeCore{}, testLogger()).
		Decline(ctx, declined.ID, "owner-001", "нет"); err != nil {
		t.Fatalf("Decline() ошибка: %v", err)
	}

	list, total, err := svc.ListOpen(ctx, "owner-001", 50, 0)
	if err != nil {
		t.Fatalf("ListOpen() ошибка: %v", err)
	}
	if total != 3 || len(list) != 3 {
		t.Errorf("total = %d, len = %d; ожидали 3 и 3", total, len(list))
	}
	for _, r := range list {
		if r.OwnerID != "owner-001" {
			t.Errorf("В списке чужой запрос: owner = %q", r.OwnerID)
		}
		if r.Status.IsTerminal() {
			t.Errorf("В списке терминальный запрос: %q", r.Status)
		}
	}
}

// TestListOpenExpiredVisible — истёкший запрос остаётся видим владельцу
// с производным статусом expired, в отличие от публичной стороны.
func TestListOpenExpiredVisible(t *testing.T) {
	repo := newMemRepo()
	svc := NewWorklistService(repo, testLogger())
	ctx := context.Background()

	req := issueTestRequest(t, repo, "owner-001", IssueInput{RequestedAction: "create_matter"})
	repo.expire(req.ID)

	list, _, err := svc.ListOpen(ctx, "owner-001", 50, 0)
	if err != nil {
		t.Fatalf("ListOpen() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, ожидали 1", len(list))
	}
	if got := list[0].EffectiveStatus(time.Now().UTC()); got != model.StatusExpired {
		t.Errorf("EffectiveStatus = %q, ожидали expired", got)
	}
}

func TestWorklistGet(t *testing.T) {
	repo := newMemRepo()
	svc := NewWorklistService(repo, testLogger())
	ctx := context.Background()

	req := issueTestRequest(t, repo, "owner-001", IssueInput{RequestedAction: "create_matter"})

	got, err := svc.Get(ctx, req.ID, "owner-001")
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.ID != req.ID {
		t.Errorf("got.ID = %q, ожидали %q", got.ID, req.ID)
	}

	if _, err := svc.Get(ctx, req.ID, "owner-002"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get() чужим владельцем = %v, ожидали ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, "00000000-0000-0000-0000-000000000000", "owner-001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() несуществующего = %v, ожидали ErrNotFound", err)
	}
}
