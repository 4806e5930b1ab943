package patients

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/auth"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("/patients", auth.RequireStaff())
	staff.GET("", h.List)
	staff.POST("", h.Create)
	staff.GET("/:id", h.Get)
	staff.PUT("/:id", h.Update)
	api.DELETE("/patients/:id", h.Archive, auth.RequireRole(auth.RoleAdmin))
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, httperr.Validation(map[string]string{name: "must be a valid id"})
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	created, err := h.svc.Create(c.Request().Context(), p.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	patient, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, patient)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	updated, err := h.svc.Update(c.Request().Context(), p.ID, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	if err := h.svc.Archive(c.Request().Context(), p.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	cur, err := pagination.CursorFromContext(c)
	if err != nil {
		return err
	}
	list, next, err := h.svc.List(c.Request().Context(), cur)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewPage(list, next))
}
