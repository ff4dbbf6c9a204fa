package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a staff permission level. The set is closed; the zero value is not
// a valid role.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleMedico
	RoleEnfermera
)

var ErrUnknownRole = errors.New("unknown role")

var roleNames = map[Role]string{
	RoleAdmin:     "ADMIN",
	RoleMedico:    "MEDICO",
	RoleEnfermera: "ENFERMERA",
}

// AllRoles lists every valid role in declaration order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleMedico, RoleEnfermera}
}

// ParseRole accepts the canonical upper-case tag, ignoring case and
// surrounding whitespace.
func ParseRole(s string) (Role, error) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == tag {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(roleNames[r]), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
