package patient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/auth"
	"github.com/asilo/asilo/internal/platform/reporting"
	"github.com/asilo/asilo/pkg/pagination"
)

const (
	msgInvalidID   = "Identificador de paciente inválido"
	msgInvalidBody = "Cuerpo de la solicitud inválido"
)

// DocumentIndex lists a patient's documents for the printable summary.
type DocumentIndex interface {
	SummaryLines(ctx context.Context, patientID uuid.UUID) ([]reporting.DocumentLine, error)
}

type Handler struct {
	svc  *Service
	docs DocumentIndex
}

func NewHandler(svc *Service, docs DocumentIndex) *Handler {
	return &Handler{svc: svc, docs: docs}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/pacientes")

	// Read endpoints: any authenticated role
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/ficha", h.Summary)

	// Write endpoints
	g.POST("", h.Create, auth.RequireRole(auth.RoleAdmin, auth.RoleMedico))
	g.PUT("/:id", h.Update, auth.RequireRole(auth.RoleAdmin, auth.RoleMedico))
	g.DELETE("/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apierr.Validation(msgInvalidID)
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	pagination.SetHeaders(c, pg, total)
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Create(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return apierr.Validation(msgInvalidBody)
	}
	p, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return apierr.Validation(msgInvalidBody)
	}
	p, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Paciente eliminado correctamente"})
}

// Summary renders the patient's record sheet as a PDF.
func (h *Handler) Summary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	lines, err := h.docs.SummaryLines(ctx, id)
	if err != nil {
		return err
	}

	summary := reporting.PatientSummary{
		NationalID:  p.NationalID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		BirthDate:   p.BirthDate.Time,
		Age:         p.Age,
		Sex:         p.Sex,
		Documents:   lines,
		GeneratedAt: h.svc.now(),
	}
	if p.HealthStatus != nil {
		summary.HealthStatus = *p.HealthStatus
	}
	if ident, ok := auth.IdentityFromContext(ctx); ok {
		summary.GeneratedBy = ident.Email
	}

	var buf bytes.Buffer
	if err := reporting.RenderPatientSummary(&buf, summary); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`inline; filename="ficha-%s.pdf"`, p.NationalID))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}
