package records

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
	staff := api.Group("", auth.RequireStaff())
	staff.POST("/vitals", h.CreateVital)
	staff.GET("/vitals/:patientId", h.ListVitals)
	staff.POST("/labs", h.CreateLab)
	staff.GET("/labs/:patientId", h.ListLabs)
	staff.POST("/consultations", h.CreateConsultation)
	staff.GET("/consultations/:patientId", h.ListConsultations)
}

func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return uuid.Nil, httperr.Validation(map[string]string{"patientId": "must be a valid id"})
	}
	return id, nil
}

func (h *Handler) CreateVital(c echo.Context) error {
	var in VitalInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	v, err := h.svc.CreateVital(c.Request().Context(), p.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListVitals(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	vitals, err := h.svc.ListVitals(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if vitals == nil {
		vitals = []*VitalRecord{}
	}
	return c.JSON(http.StatusOK, vitals)
}

func (h *Handler) CreateLab(c echo.Context) error {
	var in LabInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	l, err := h.svc.CreateLab(c.Request().Context(), p.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) ListLabs(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	labs, err := h.svc.ListLabs(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if labs == nil {
		labs = []*LabResult{}
	}
	return c.JSON(http.StatusOK, labs)
}

func (h *Handler) CreateConsultation(c echo.Context) error {
	var in ConsultationInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	created, err := h.svc.CreateConsultation(c.Request().Context(), p.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	cur, err := pagination.CursorFromContext(c)
	if err != nil {
		return err
	}
	list, next, err := h.svc.ListConsultations(c.Request().Context(), id, cur)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*Consultation{}
	}
	return c.JSON(http.StatusOK, pagination.NewPage(list, next))
}
