// memrepo_test.go — in-memory реализация репозитория и фейковое ядро
// для unit-тестов сервисного слоя. Compare-and-set воспроизводится
// под мьютексом, как в SQL-реализации — одиночный атомарный переход.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/coreclient"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/domain/model"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/repository"
)

type memRepo struct {
	mu       sync.Mutex
	byID     map[string]*model.ProFormaRequest
	tokenIdx map[string]string // token → id
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:     map[string]*model.ProFormaRequest{},
		tokenIdx: map[string]string{},
	}
}

func (m *memRepo) Create(_ context.Context, r *model.ProFormaRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokenIdx[r.Token]; ok {
		return repository.ErrConflict
	}
	cp := *r
	m.byID[r.ID] = &cp
	m.tokenIdx[r.Token] = r.ID
	return nil
}

func (m *memRepo) GetByToken(_ context.Context, token string) (*model.ProFormaRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokenIdx[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*model.ProFormaRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) ListOpenByOwner(_ context.Context, ownerID string, limit, offset int) ([]*model.ProFormaRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []*model.ProFormaRequest
	for _, r := range m.byID {
		if r.OwnerID == ownerID && (r.Status == model.StatusPending || r.Status == model.StatusSubmitted) {
			cp := *r
			open = append(open, &cp)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.After(open[j].CreatedAt) })
	if offset >= len(open) {
		return nil, nil
	}
	open = open[offset:]
	if limit < len(open) {
		open = open[:limit]
	}
	return open, nil
}

func (m *memRepo) CountOpenByOwner(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.byID {
		if r.OwnerID == ownerID && (r.Status == model.StatusPending || r.Status == model.StatusSubmitted) {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) SubmitIntake(_ context.Context, token string, intake model.Intake, submittedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokenIdx[token]
	if !ok {
		return repository.ErrStateConflict
	}
	r := m.byID[id]
	if r.Status != model.StatusPending {
		return repository.ErrStateConflict
	}
	r.Intake = intake
	r.Status = model.StatusSubmitted
	r.SubmittedAt = &submittedAt
	return nil
}

func (m *memRepo) MarkProcessed(_ context.Context, id, processedBy, createdEntityID string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return repository.ErrStateConflict
	}
	if !(r.Status == model.StatusSubmitted || (r.Status == model.StatusPending && r.IntakeComplete)) {
		return repository.ErrStateConflict
	}
	r.Status = model.StatusProcessed
	r.ProcessedAt = &processedAt
	r.ProcessedBy = &processedBy
	r.CreatedEntityID = &createdEntityID
	return nil
}

func (m *memRepo) MarkDeclined(_ context.Context, id, declinedBy, reason string, declinedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return repository.ErrStateConflict
	}
	if r.Status != model.StatusPending && r.Status != model.StatusSubmitted {
		return repository.ErrStateConflict
	}
	r.Status = model.StatusDeclined
	r.ProcessedAt = &declinedAt
	r.ProcessedBy = &declinedBy
	r.RejectionReason = &reason
	return nil
}

// expire сдвигает expires_at запроса в прошлое (для тестов истечения).
func (m *memRepo) expire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].ExpiresAt = time.Now().UTC().Add(-time.Hour)
}

// fakeCore — фейковое ядро LexoHub с подсчётом вызовов.
type fakeCore struct {
	mu           sync.Mutex
	matterCalls  int
	invoiceCalls int
	contactCalls int
	failCreate   bool
	contact      *coreclient.OwnerContact
	contactErr   error
	nextID       int
}

func (f *fakeCore) CreateMatter(_ context.Context, _ coreclient.MatterPrefill) (*coreclient.CreatedEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matterCalls++
	if f.failCreate {
		return nil, fmt.Errorf("ядро вернуло статус 503")
	}
	f.nextID++
	return &coreclient.CreatedEntity{ID: fmt.Sprintf("matter-%d", f.nextID), Kind: "matter"}, nil
}

func (f *fakeCore) CreateInvoice(_ context.Context, _ coreclient.InvoiceCarrier) (*coreclient.CreatedEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoiceCalls++
	if f.failCreate {
		return nil, fmt.Errorf("ядро вернуло статус 503")
	}
	f.nextID++
	return &coreclient.CreatedEntity{ID: fmt.Sprintf("inv-%d", f.nextID), Kind: "invoice"}, nil
}

func (f *fakeCore) GetOwnerContact(_ context.Context, _ string) (*coreclient.OwnerContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactCalls++
	return f.contact, f.contactErr
}
