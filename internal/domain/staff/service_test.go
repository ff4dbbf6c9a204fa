package staff

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	items map[uuid.UUID]*Account
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Account)}
}

func (m *mockRepo) emailTaken(email string, except uuid.UUID) bool {
	for _, a := range m.items {
		if a.Email == email && a.ID != except {
			return true
		}
	}
	return false
}

func (m *mockRepo) Create(_ context.Context, a *Account) error {
	if m.emailTaken(a.Email, uuid.Nil) {
		return apierr.Conflict(MsgEmailInUse)
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, apierr.NotFound(MsgNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*Account, error) {
	for _, a := range m.items {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apierr.NotFound(MsgNotFound)
}

func (m *mockRepo) Update(_ context.Context, a *Account) error {
	if _, ok := m.items[a.ID]; !ok {
		return apierr.NotFound(MsgNotFound)
	}
	if m.emailTaken(a.Email, a.ID) {
		return apierr.Conflict(MsgEmailInUse)
	}
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return apierr.NotFound(MsgNotFound)
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Account, int, error) {
	all := make([]*Account, 0, len(m.items))
	for _, a := range m.items {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
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

type fakeIssuer struct {
	err    error
	issued []uuid.UUID
}

func (f *fakeIssuer) Issue(subjectID uuid.UUID, _ auth.Role, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.issued = append(f.issued, subjectID)
	return "signed." + subjectID.String(), nil
}

type loginCounter struct {
	ok, failed int
}

func (l *loginCounter) RecordLogin(success bool) {
	if success {
		l.ok++
	} else {
		l.failed++
	}
}
func (l *loginCounter) RecordUpload(string, int64)     {}
func (l *loginCounter) RecordUploadRejected(string)    {}
func (l *loginCounter) RecordPatientTreeCleanup(error) {}

func newTestService() (*Service, *mockRepo, *fakeIssuer, *loginCounter) {
	repo := newMockRepo()
	issuer := &fakeIssuer{}
	metrics := &loginCounter{}
	return NewService(repo, issuer, metrics), repo, issuer, metrics
}

func mustCreate(t *testing.T, svc *Service, req CreateRequest) *Account {
	t.Helper()
	a, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create %s: %v", req.Email, err)
	}
	return a
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

// -- Tests --

func TestService_Create(t *testing.T) {
	svc, repo, _, _ := newTestService()
	a := mustCreate(t, svc, CreateRequest{Name: " Ana Paz ", Email: " Ana@Asilo.EC ", Password: "secreto1", Role: "medico"})

	if a.Email != "ana@asilo.ec" {
		t.Errorf("expected normalized email, got %q", a.Email)
	}
	if a.Name != "Ana Paz" {
		t.Errorf("expected trimmed name, got %q", a.Name)
	}
	if a.Role != auth.RoleMedico {
		t.Errorf("expected MEDICO, got %s", a.Role)
	}
	stored := repo.items[a.ID]
	if stored.PasswordHash == "" || stored.PasswordHash == "secreto1" {
		t.Fatal("password must be stored hashed")
	}
	if !auth.VerifyPassword("secreto1", stored.PasswordHash) {
		t.Error("stored hash does not verify")
	}
}

func TestService_Create_DefaultRole(t *testing.T) {
	svc, _, _, _ := newTestService()
	a := mustCreate(t, svc, CreateRequest{Name: "Luis", Email: "luis@asilo.ec", Password: "secreto1"})
	if a.Role != auth.RoleEnfermera {
		t.Errorf("expected ENFERMERA default, got %s", a.Role)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()
	cases := map[string]CreateRequest{
		"missing name":   {Email: "a@b.ec", Password: "secreto1"},
		"bad email":      {Name: "A", Email: "no-es-correo", Password: "secreto1"},
		"short password": {Name: "A", Email: "a@b.ec", Password: "123"},
		"unknown role":   {Name: "A", Email: "a@b.ec", Password: "secreto1", Role: "PORTERO"},
		"blank name":     {Name: "   ", Email: "a@b.ec", Password: "secreto1"},
		"password bytes": {Name: "A", Email: "a@b.ec", Password: strings.Repeat("ñ", 40)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), req)
			expectKind(t, err, apierr.ErrValidation)
		})
	}
}

func TestService_Create_MultibytePasswordAtLimit(t *testing.T) {
	svc, repo, _, _ := newTestService()
	pw := strings.Repeat("ñ", 36)
	a := mustCreate(t, svc, CreateRequest{Name: "Ñusta", Email: "nusta@asilo.ec", Password: pw})
	if !auth.VerifyPassword(pw, repo.items[a.ID].PasswordHash) {
		t.Error("stored hash does not verify")
	}
}

func TestService_Create_PaddedEmailLogsIn(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustCreate(t, svc, CreateRequest{Name: "Ana", Email: " Ana@Asilo.ec ", Password: "secreto1"})

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " Ana@Asilo.ec ", Password: "secreto1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Account.Email != "ana@asilo.ec" {
		t.Errorf("unexpected email %q", resp.Account.Email)
	}
}

func TestService_Create_DuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustCreate(t, svc, CreateRequest{Name: "A", Email: "dup@asilo.ec", Password: "secreto1"})

	_, err := svc.Create(context.Background(), CreateRequest{Name: "B", Email: "DUP@asilo.ec", Password: "secreto2"})
	expectKind(t, err, apierr.ErrConflict)
	if apierr.Message(err) != MsgEmailInUse {
		t.Errorf("unexpected message %q", apierr.Message(err))
	}
}

func TestService_Login(t *testing.T) {
	svc, _, issuer, metrics := newTestService()
	a := mustCreate(t, svc, CreateRequest{Name: "Ana", Email: "ana@asilo.ec", Password: "secreto1", Role: "ADMIN"})

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "ANA@asilo.ec", Password: "secreto1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token != "signed."+a.ID.String() {
		t.Errorf("unexpected token %q", resp.Token)
	}
	if resp.Account.ID != a.ID || resp.Account.Role != auth.RoleAdmin {
		t.Errorf("unexpected account %+v", resp.Account)
	}
	if len(issuer.issued) != 1 || metrics.ok != 1 {
		t.Errorf("expected one issued token and one success, got %d/%d", len(issuer.issued), metrics.ok)
	}
}

func TestService_Login_Failures(t *testing.T) {
	svc, _, issuer, metrics := newTestService()
	mustCreate(t, svc, CreateRequest{Name: "Ana", Email: "ana@asilo.ec", Password: "secreto1"})

	_, err := svc.Login(context.Background(), LoginRequest{Email: "ana@asilo.ec"})
	expectKind(t, err, apierr.ErrValidation)
	if apierr.Message(err) != MsgCredentialsRequired {
		t.Errorf("unexpected message %q", apierr.Message(err))
	}

	_, wrongPassword := svc.Login(context.Background(), LoginRequest{Email: "ana@asilo.ec", Password: "otra"})
	_, unknownEmail := svc.Login(context.Background(), LoginRequest{Email: "nadie@asilo.ec", Password: "secreto1"})
	for _, err := range []error{wrongPassword, unknownEmail} {
		expectKind(t, err, apierr.ErrUnauthorized)
		if apierr.Message(err) != MsgInvalidCredentials {
			t.Errorf("unexpected message %q", apierr.Message(err))
		}
	}
	if len(issuer.issued) != 0 {
		t.Error("no token should be issued on failure")
	}
	if metrics.failed != 2 {
		t.Errorf("expected 2 failed logins recorded, got %d", metrics.failed)
	}
}

func TestService_Login_IssuerFailure(t *testing.T) {
	svc, _, issuer, _ := newTestService()
	mustCreate(t, svc, CreateRequest{Name: "Ana", Email: "ana@asilo.ec", Password: "secreto1"})
	issuer.err = errors.New("boom")

	_, err := svc.Login(context.Background(), LoginRequest{Email: "ana@asilo.ec", Password: "secreto1"})
	if err == nil || apierr.Status(err) != 500 {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestService_Profile_DeletedAccount(t *testing.T) {
	svc, repo, _, _ := newTestService()
	a := mustCreate(t, svc, CreateRequest{Name: "Ana", Email: "ana@asilo.ec", Password: "secreto1"})
	delete(repo.items, a.ID)

	_, err := svc.Profile(context.Background(), a.ID)
	expectKind(t, err, apierr.ErrNotFound)
}

func TestService_Update(t *testing.T) {
	svc, repo, _, _ := newTestService()
	a := mustCreate(t, svc, CreateRequest{Name: "Ana", Email: "ana@asilo.ec", Password: "secreto1"})
	oldHash := repo.items[a.ID].PasswordHash

	updated, err := svc.Update(context.Background(), a.ID, UpdateRequest{Name: "Ana María", Role: "MEDICO"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Ana María" || updated.Role != auth.RoleMedico || updated.Email != "ana@asilo.ec" {
		t.Errorf("unexpected account after update: %+v", updated)
	}
	if repo.items[a.ID].PasswordHash != oldHash {
		t.Error("password hash must be kept when no password is sent")
	}

	if _, err := svc.Update(context.Background(), a.ID, UpdateRequest{Password: "nuevo123"}); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if !auth.VerifyPassword("nuevo123", repo.items[a.ID].PasswordHash) {
		t.Error("new password does not verify")
	}
}

func TestService_Update_Errors(t *testing.T) {
	svc, _, _, _ := newTestService()
	a := mustCreate(t, svc, CreateRequest{Name: "Ana", Email: "ana@asilo.ec", Password: "secreto1"})
	mustCreate(t, svc, CreateRequest{Name: "Luis", Email: "luis@asilo.ec", Password: "secreto1"})

	_, err := svc.Update(context.Background(), uuid.New(), UpdateRequest{Name: "X"})
	expectKind(t, err, apierr.ErrNotFound)

	_, err = svc.Update(context.Background(), a.ID, UpdateRequest{Email: "luis@asilo.ec"})
	expectKind(t, err, apierr.ErrConflict)

	_, err = svc.Update(context.Background(), a.ID, UpdateRequest{Role: "jefe"})
	expectKind(t, err, apierr.ErrValidation)

	_, err = svc.Update(context.Background(), a.ID, UpdateRequest{Password: strings.Repeat("é", 37)})
	expectKind(t, err, apierr.ErrValidation)

	updated, err := svc.Update(context.Background(), a.ID, UpdateRequest{Email: "  ANA.M@Asilo.ec"})
	if err != nil {
		t.Fatalf("update padded email: %v", err)
	}
	if updated.Email != "ana.m@asilo.ec" {
		t.Errorf("expected normalized email, got %q", updated.Email)
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo, _, _ := newTestService()
	admin := mustCreate(t, svc, CreateRequest{Name: "Admin", Email: "admin@asilo.ec", Password: "secreto1", Role: "ADMIN"})
	other := mustCreate(t, svc, CreateRequest{Name: "Luis", Email: "luis@asilo.ec", Password: "secreto1"})

	err := svc.Delete(context.Background(), admin.ID, admin.ID)
	expectKind(t, err, apierr.ErrValidation)

	if err := svc.Delete(context.Background(), admin.ID, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.items[other.ID]; ok {
		t.Error("account should be gone")
	}

	err = svc.Delete(context.Background(), admin.ID, other.ID)
	expectKind(t, err, apierr.ErrNotFound)
}

func TestService_CreateAdmin(t *testing.T) {
	svc, _, _, _ := newTestService()
	a, err := svc.CreateAdmin(context.Background(), "Root", "root@asilo.ec", "secreto1")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if a.Role != auth.RoleAdmin {
		t.Errorf("expected ADMIN, got %s", a.Role)
	}
}
