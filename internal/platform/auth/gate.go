package auth

import (
	"errors"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrForbidden    = errors.New("role not permitted")
)

// TokenVerifier is the part of TokenService the gate depends on.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// GateConfig restricts a route to a set of roles. An empty set admits any
// authenticated identity.
type GateConfig struct {
	AllowedRoles []Role
}

func (g GateConfig) Permits(r Role) bool {
	if len(g.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range g.AllowedRoles {
		if allowed == r {
			return true
		}
	}
	return false
}

// Evaluate decides a request from its Authorization header alone. It keeps
// no state between calls.
func Evaluate(header string, tokens TokenVerifier, cfg GateConfig) (*Identity, error) {
	tokenStr, ok := bearerToken(header)
	if !ok {
		return nil, ErrMissingToken
	}

	id, err := tokens.Verify(tokenStr)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if !cfg.Permits(id.Role) {
		return id, ErrForbidden
	}
	return id, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
