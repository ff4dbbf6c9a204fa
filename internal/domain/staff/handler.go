package staff

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/asilo/asilo/internal/platform/apierr"
	"github.com/asilo/asilo/internal/platform/auth"
	"github.com/asilo/asilo/pkg/pagination"
)

const (
	msgInvalidID   = "Identificador de usuario inválido"
	msgInvalidBody = "Cuerpo de la solicitud inválido"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts login on the public group and everything else on
// the authenticated one. loginMiddleware wraps only the login route.
func (h *Handler) RegisterRoutes(public, api *echo.Group, loginMiddleware ...echo.MiddlewareFunc) {
	public.POST("/auth/login", h.Login, loginMiddleware...)
	api.GET("/auth/profile", h.Profile)

	admin := api.Group("/usuarios", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.List)
	admin.GET("/:id", h.Get)
	admin.POST("", h.Create)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apierr.Validation(MsgCredentialsRequired)
	}
	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Profile(c echo.Context) error {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, auth.MsgTokenRequired)
	}
	a, err := h.svc.Profile(c.Request().Context(), id.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"usuario": a})
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
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.Validation(msgInvalidID)
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apierr.Validation(msgInvalidBody)
	}
	a, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "Usuario creado", "usuario": a})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.Validation(msgInvalidID)
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apierr.Validation(msgInvalidBody)
	}
	a, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Usuario actualizado", "usuario": a})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.Validation(msgInvalidID)
	}
	actor, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, auth.MsgTokenRequired)
	}
	if err := h.svc.Delete(c.Request().Context(), actor.SubjectID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Usuario eliminado"})
}
