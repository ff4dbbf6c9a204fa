package patient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asilo/asilo/internal/platform/validation"
)

const (
	SexMale   = "M"
	SexFemale = "F"
	SexOther  = "OTRO"
)

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(validation.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(validation.DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("fecha inválida %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// Patient is a resident of the facility. Age is derived on read and never
// stored.
type Patient struct {
	ID           uuid.UUID `json:"id"`
	NationalID   string    `json:"cedula"`
	FirstName    string    `json:"nombre"`
	LastName     string    `json:"apellido"`
	BirthDate    Date      `json:"fechaNacimiento"`
	Age          int       `json:"edad"`
	Sex          string    `json:"sexo"`
	HealthStatus *string   `json:"estadoSalud"`
	CreatedAt    time.Time `json:"creadoEn"`
	UpdatedAt    time.Time `json:"actualizadoEn"`
}

// FullName is first and last name joined by a space.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Request is the body of POST and PUT /pacientes.
type Request struct {
	NationalID   string  `json:"cedula" validate:"required,cedula"`
	FirstName    string  `json:"nombre" validate:"required,max=100"`
	LastName     string  `json:"apellido" validate:"required,max=100"`
	BirthDate    string  `json:"fechaNacimiento" validate:"required,pastdate"`
	Sex          string  `json:"sexo" validate:"required,oneof=M F OTRO"`
	HealthStatus *string `json:"estadoSalud" validate:"omitempty,max=2000"`
}

// AgeOn returns the whole years between birth and today, one less when
// today's month and day fall before the birthday.
func AgeOn(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}
