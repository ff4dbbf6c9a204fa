package patient

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/db"
	"github.com/asilo/asilo/internal/platform/telemetry"
)

// -- Mock Repository --

type mockRepo struct {
	items map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) nationalIDTaken(nid string, except uuid.UUID) bool {
	for _, p := range m.items {
		if p.NationalID == nid && p.ID != except {
			return true
		}
	}
	return false
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	if m.nationalIDTaken(p.NationalID, uuid.Nil) {
		return apierr.Conflict(MsgNationalIDInUse)
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apierr.NotFound(MsgNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.items[p.ID]; !ok {
		return apierr.NotFound(MsgNotFound)
	}
	if m.nationalIDTaken(p.NationalID, p.ID) {
		return apierr.Conflict(MsgNationalIDInUse)
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return apierr.NotFound(MsgNotFound)
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	all := make([]*Patient, 0, len(m.items))
	for _, p := range m.items {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].LastName < all[j].LastName })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// -- Fakes --

type fakeTree struct {
	err     error
	removed []uuid.UUID
}

func (f *fakeTree) RemovePatientTree(_ context.Context, id uuid.UUID) error {
	f.removed = append(f.removed, id)
	return f.err
}

type cleanupCounter struct {
	telemetry.Nop
	failures int
	total    int
}

func (c *cleanupCounter) RecordPatientTreeCleanup(err error) {
	c.total++
	if err != nil {
		c.failures++
	}
}

var testToday = time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *fakeTree, *cleanupCounter) {
	repo := newMockRepo()
	tree := &fakeTree{}
	metrics := &cleanupCounter{}
	svc := NewService(repo, db.NoTx{}, tree, metrics, WithClock(func() time.Time { return testToday }))
	return svc, repo, tree, metrics
}

func validRequest() Request {
	status := "Estable"
	return Request{
		NationalID:   "1712345678",
		FirstName:    "Rosa",
		LastName:     "Andrade",
		BirthDate:    "2000-06-15",
		Sex:          SexFemale,
		HealthStatus: &status,
	}
}

func mustCreate(t *testing.T, svc *Service, req Request) *Patient {
	t.Helper()
	p, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return p
}

// -- Tests --

func TestService_Create_DerivesAge(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := mustCreate(t, svc, validRequest())

	if p.Age != 23 {
		t.Errorf("expected age 23 on 2024-06-14, got %d", p.Age)
	}
	if p.BirthDate.String() != "2000-06-15" {
		t.Errorf("unexpected birth date %s", p.BirthDate)
	}
	if p.HealthStatus == nil || *p.HealthStatus != "Estable" {
		t.Errorf("unexpected health status %v", p.HealthStatus)
	}

	svc.now = func() time.Time { return testToday.AddDate(0, 0, 1) }
	got, err := svc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Age != 24 {
		t.Errorf("expected age 24 on 2024-06-15, got %d", got.Age)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()
	mutate := map[string]func(*Request){
		"short national id": func(r *Request) { r.NationalID = "12345" },
		"letters in id":     func(r *Request) { r.NationalID = "17123A5678" },
		"missing name":      func(r *Request) { r.FirstName = "" },
		"bad sex":           func(r *Request) { r.Sex = "X" },
		"future birth":      func(r *Request) { r.BirthDate = "2999-01-01" },
		"bad date format":   func(r *Request) { r.BirthDate = "15/06/2000" },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			fn(&req)
			_, err := svc.Create(context.Background(), req)
			if !errors.Is(err, apierr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_Create_BlankHealthStatusIsNull(t *testing.T) {
	svc, _, _, _ := newTestService()
	req := validRequest()
	blank := "   "
	req.HealthStatus = &blank

	p := mustCreate(t, svc, req)
	if p.HealthStatus != nil {
		t.Errorf("expected nil health status, got %q", *p.HealthStatus)
	}
}

func TestService_Create_DuplicateNationalID(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustCreate(t, svc, validRequest())

	_, err := svc.Create(context.Background(), validRequest())
	if !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc, repo, _, _ := newTestService()
	p := mustCreate(t, svc, validRequest())

	req := validRequest()
	req.LastName = "Andrade Vera"
	req.HealthStatus = nil
	updated, err := svc.Update(context.Background(), p.ID, req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.LastName != "Andrade Vera" || updated.HealthStatus != nil {
		t.Errorf("unexpected patient %+v", updated)
	}
	if repo.items[p.ID].LastName != "Andrade Vera" {
		t.Error("update not persisted")
	}

	if _, err := svc.Update(context.Background(), uuid.New(), req); !errors.Is(err, apierr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Delete_RemovesTreeAfterRow(t *testing.T) {
	svc, repo, tree, metrics := newTestService()
	p := mustCreate(t, svc, validRequest())

	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.items[p.ID]; ok {
		t.Error("patient row should be gone")
	}
	if len(tree.removed) != 1 || tree.removed[0] != p.ID {
		t.Errorf("expected tree removal for %s, got %v", p.ID, tree.removed)
	}
	if metrics.total != 1 || metrics.failures != 0 {
		t.Errorf("unexpected cleanup metrics %+v", metrics)
	}
}

func TestService_Delete_CleanupFailureIsNotFatal(t *testing.T) {
	svc, _, tree, metrics := newTestService()
	p := mustCreate(t, svc, validRequest())
	tree.err = errors.New("disk gone")

	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("delete should succeed, got %v", err)
	}
	if metrics.failures != 1 {
		t.Errorf("expected one recorded cleanup failure, got %d", metrics.failures)
	}
}

func TestService_Delete_NotFoundSkipsCleanup(t *testing.T) {
	svc, _, tree, _ := newTestService()

	err := svc.Delete(context.Background(), uuid.New())
	if !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(tree.removed) != 0 {
		t.Error("no cleanup should run when the row was not deleted")
	}
}

func TestService_Exists(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := mustCreate(t, svc, validRequest())

	if ok, err := svc.Exists(context.Background(), p.ID); !ok || err != nil {
		t.Errorf("expected existing patient, got %v %v", ok, err)
	}
	if ok, err := svc.Exists(context.Background(), uuid.New()); ok || err != nil {
		t.Errorf("expected missing patient without error, got %v %v", ok, err)
	}
}
