package analytics

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/auth"
	"github.com/medibrief/medibrief/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("/analytics", auth.RequireStaff())
	staff.GET("/patient/:patientId", h.PatientReport)
	staff.GET("/clinic-risk", h.ClinicRisk)
}

func (h *Handler) PatientReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return httperr.Validation(map[string]string{"patientId": "must be a valid id"})
	}
	report, err := h.svc.PatientReport(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) ClinicRisk(c echo.Context) error {
	report, err := h.svc.ClinicRisk(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
