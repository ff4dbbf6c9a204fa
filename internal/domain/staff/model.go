package staff

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asilo/asilo/internal/platform/auth"
)

// Account is a staff member allowed to sign in.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"nombre"`
	Email        string    `json:"correo"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"rol"`
	CreatedAt    time.Time `json:"creadoEn"`
}

// CreateRequest is the body of POST /usuarios. An empty rol defaults to
// ENFERMERA.
type CreateRequest struct {
	Name     string `json:"nombre" validate:"required,max=120"`
	Email    string `json:"correo" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,bcryptlen"`
	Role     string `json:"rol" validate:"omitempty,max=20"`
}

// UpdateRequest is the body of PUT /usuarios/:id. Empty fields keep their
// stored value; a non-empty password is re-hashed.
type UpdateRequest struct {
	Name     string `json:"nombre" validate:"omitempty,max=120"`
	Email    string `json:"correo" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"omitempty,min=6,bcryptlen"`
	Role     string `json:"rol" validate:"omitempty,max=20"`
}

type LoginRequest struct {
	Email    string `json:"correo"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string   `json:"token"`
	Account *Account `json:"usuario"`
}

func (r *CreateRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

func (r *UpdateRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

// NormalizeEmail is the stored form of an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
