package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/asilo/asilo/internal/platform/auth"
)

// AuditEntry records one access to patient data.
type AuditEntry struct {
	UserID     string
	Role       string
	Resource   string
	PatientID  string
	Action     string
	IPAddress  string
	Path       string
	Method     string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

var auditedResources = map[string]bool{
	"pacientes":  true,
	"documentos": true,
}

// Audit logs a record_access event for every call touching patient records
// or documents, after the handler has run.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource, rest := splitAPIPath(req.URL.Path)
			if !auditedResources[resource] {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Resource:   resource,
				PatientID:  patientIDFromPath(resource, rest),
				Action:     httpMethodToAction(req.Method),
				IPAddress:  c.RealIP(),
				Path:       req.URL.Path,
				Method:     req.Method,
				StatusCode: c.Response().Status,
			}
			if err != nil {
				entry.StatusCode = StatusOf(err)
			}
			if id, ok := auth.IdentityFromContext(req.Context()); ok {
				entry.UserID = id.SubjectID.String()
				entry.Role = id.Role.String()
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

// splitAPIPath turns /api/pacientes/123/ficha into ("pacientes", [123 ficha]).
func splitAPIPath(p string) (string, []string) {
	rest, ok := strings.CutPrefix(p, "/api/")
	if !ok {
		return "", nil
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	return segments[0], segments[1:]
}

// patientIDFromPath knows the two shapes that name a patient:
// /pacientes/<id>[/...] and /documentos/<area>/<id>.
func patientIDFromPath(resource string, rest []string) string {
	var candidate string
	switch {
	case resource == "pacientes" && len(rest) >= 1:
		candidate = rest[0]
	case resource == "documentos" && len(rest) >= 2:
		candidate = rest[1]
	}
	if _, err := uuid.Parse(candidate); err != nil {
		return ""
	}
	return candidate
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
