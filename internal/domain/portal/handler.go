package portal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/domain/ai"
	"github.com/medibrief/medibrief/internal/domain/analytics"
	"github.com/medibrief/medibrief/internal/domain/records"
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
	g := api.Group("/portal", auth.RequireRole(auth.RolePatient))
	g.GET("/me", h.Me)
	g.PUT("/me", h.UpdateMe)
	g.PUT("/security", h.ChangePassword)
	g.GET("/vitals", h.Vitals)
	g.GET("/labs", h.Labs)
	g.GET("/appointments", h.Appointments)
	g.GET("/analytics", h.Analytics)
	g.GET("/summaries", h.Summaries)
}

func (h *Handler) Me(c echo.Context) error {
	p, err := h.svc.Me(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var in ProfileUpdate
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	p, err := h.svc.UpdateMe(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	var in SecurityUpdate
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	if err := h.svc.ChangePassword(c.Request().Context(), in); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) Vitals(c echo.Context) error {
	vitals, err := h.svc.Vitals(c.Request().Context())
	if err != nil {
		return err
	}
	if vitals == nil {
		vitals = []*records.VitalRecord{}
	}
	return c.JSON(http.StatusOK, vitals)
}

func (h *Handler) Labs(c echo.Context) error {
	labs, err := h.svc.Labs(c.Request().Context())
	if err != nil {
		return err
	}
	if labs == nil {
		labs = []analytics.LabFlagged{}
	}
	return c.JSON(http.StatusOK, labs)
}

func (h *Handler) Appointments(c echo.Context) error {
	cur, err := pagination.CursorFromContext(c)
	if err != nil {
		return err
	}
	list, next, err := h.svc.Appointments(c.Request().Context(), cur)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*records.Consultation{}
	}
	return c.JSON(http.StatusOK, pagination.NewPage(list, next))
}

func (h *Handler) Analytics(c echo.Context) error {
	report, err := h.svc.Analytics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) Summaries(c echo.Context) error {
	list, err := h.svc.Summaries(c.Request().Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []*ai.AISummary{}
	}
	return c.JSON(http.StatusOK, list)
}
