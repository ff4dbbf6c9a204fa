package documents

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/auth"
)

const (
	// FormFileField and FormTitleField name the multipart upload fields.
	FormFileField  = "archivo"
	FormTitleField = "titulo"

	msgInvalidPatientID  = "Identificador de paciente inválido"
	msgInvalidDocumentID = "Identificador de documento inválido"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/documentos")
	g.POST("/:area/:pacienteId", h.Upload)
	g.GET("/:area/:pacienteId", h.List)
	g.DELETE("/:id", h.Delete, auth.RequireRole(auth.RoleAdmin, auth.RoleMedico))
}

func (h *Handler) Upload(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("pacienteId"))
	if err != nil {
		return apierr.Validation(msgInvalidPatientID)
	}

	u := Upload{
		PatientID: patientID,
		Area:      c.Param("area"),
	}
	if ident, ok := auth.IdentityFromContext(c.Request().Context()); ok {
		uploader := ident.SubjectID
		u.UploadedBy = &uploader
	}

	fh, err := c.FormFile(FormFileField)
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// Content stays nil; the service answers with the right message.
	case err != nil:
		return err
	default:
		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		u.Content = f
		u.OriginalName = fh.Filename
		u.MimeType = fh.Header.Get(echo.HeaderContentType)
		u.Title = c.FormValue(FormTitleField)
	}

	doc, err := h.svc.Upload(c.Request().Context(), u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "Documento subido", "doc": doc})
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("pacienteId"))
	if err != nil {
		return apierr.Validation(msgInvalidPatientID)
	}
	docs, err := h.svc.List(c.Request().Context(), patientID, c.Param("area"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.Validation(msgInvalidDocumentID)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Documento eliminado"})
}
