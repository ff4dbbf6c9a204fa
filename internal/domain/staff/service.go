package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/auth"
	"github.com/asilo/asilo/internal/platform/telemetry"
	"github.com/asilo/asilo/internal/platform/validation"
)

const (
	MsgCredentialsRequired = "correo y password son requeridos"
	MsgInvalidCredentials  = "Credenciales inválidas"
	MsgInvalidRole         = "Rol inválido"
	MsgSelfDelete          = "No puede eliminar su propia cuenta"
)

// TokenIssuer signs session tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(subjectID uuid.UUID, role auth.Role, email string) (string, error)
}

type Service struct {
	repo    Repository
	tokens  TokenIssuer
	metrics telemetry.Recorder
}

func NewService(repo Repository, tokens TokenIssuer, metrics telemetry.Recorder) *Service {
	if metrics == nil {
		metrics = telemetry.Nop{}
	}
	return &Service{repo: repo, tokens: tokens, metrics: metrics}
}

var (
	decoyOnce sync.Once
	decoyHash string
)

// decoy is compared against when the email is unknown so both failure
// paths cost one bcrypt evaluation.
func decoy() string {
	decoyOnce.Do(func() {
		decoyHash, _ = auth.HashPassword("asilo-decoy-password")
	})
	return decoyHash
}

// Login checks the credentials and returns a signed token with the account.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apierr.Validation(MsgCredentialsRequired)
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, apierr.ErrNotFound) {
		auth.VerifyPassword(req.Password, decoy())
		s.metrics.RecordLogin(false)
		return nil, apierr.Unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if !auth.VerifyPassword(req.Password, a.PasswordHash) {
		s.metrics.RecordLogin(false)
		return nil, apierr.Unauthorized(MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(a.ID, a.Role, a.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.metrics.RecordLogin(true)
	return &LoginResponse{Token: token, Account: a}, nil
}

// Profile returns the account behind an authenticated identity. It is a 404
// when the account was removed after the token was issued.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func parseRoleOr(s string, fallback auth.Role) (auth.Role, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	r, err := auth.ParseRole(s)
	if err != nil {
		return auth.RoleUnknown, apierr.Validation(MsgInvalidRole)
	}
	return r, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Account, error) {
	req.normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	role, err := parseRoleOr(req.Role, auth.RoleEnfermera)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	a := &Account{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAdmin bootstraps an ADMIN account from the command line.
func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) (*Account, error) {
	return s.Create(ctx, CreateRequest{Name: name, Email: email, Password: password, Role: auth.RoleAdmin.String()})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Account, error) {
	req.normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		a.Name = req.Name
	}
	if req.Email != "" {
		a.Email = req.Email
	}
	if a.Role, err = parseRoleOr(req.Role, a.Role); err != nil {
		return nil, err
	}
	if req.Password != "" {
		if a.PasswordHash, err = auth.HashPassword(req.Password); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes the account id on behalf of actorID. Accounts cannot
// delete themselves.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return apierr.Validation(MsgSelfDelete)
	}
	return s.repo.Delete(ctx, id)
}
