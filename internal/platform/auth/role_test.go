package auth

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"ADMIN", RoleAdmin},
		{"medico", RoleMedico},
		{" Enfermera ", RoleEnfermera},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "root", "ADMINISTRADOR"} {
		if _, err := ParseRole(bad); !errors.Is(err, ErrUnknownRole) {
			t.Errorf("ParseRole(%q): expected ErrUnknownRole, got %v", bad, err)
		}
	}
}

func TestRole_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Rol Role `json:"rol"`
	}{RoleMedico})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"rol":"MEDICO"}` {
		t.Errorf("unexpected json: %s", b)
	}

	var out struct {
		Rol Role `json:"rol"`
	}
	if err := json.Unmarshal([]byte(`{"rol":"enfermera"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Rol != RoleEnfermera {
		t.Errorf("expected ENFERMERA, got %v", out.Rol)
	}

	if err := json.Unmarshal([]byte(`{"rol":"GUEST"}`), &out); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestRole_ZeroValueInvalid(t *testing.T) {
	var r Role
	if r.Valid() {
		t.Error("zero role must not be valid")
	}
	if _, err := r.MarshalText(); err == nil {
		t.Error("expected marshal error for zero role")
	}
}
