package identity

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

// RegisterPublicRoutes mounts the unauthenticated auth endpoints.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/auth/register-clinic", h.RegisterClinic)
	g.POST("/auth/login", h.StaffLogin)
	g.POST("/auth/patient-setup", h.PatientSetup)
	g.POST("/auth/patient-login", h.PatientLogin)
}

// RegisterRoutes mounts the authenticated, clinic-bound endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/users/me", h.Me, auth.RequireStaff())
	api.POST("/patients/:id/invite", h.InvitePatient, auth.RequireStaff())
}

func (h *Handler) RegisterClinic(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	resp, err := h.svc.RegisterClinic(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) StaffLogin(c echo.Context) error {
	var in loginInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	resp, err := h.svc.StaffLogin(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) PatientSetup(c echo.Context) error {
	var in PatientSetupInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	resp, err := h.svc.PatientSetup(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) PatientLogin(c echo.Context) error {
	var in loginInput
	if err := c.Bind(&in); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	resp, err := h.svc.PatientLogin(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	u, err := h.svc.GetUser(c.Request().Context(), p.ClinicID, p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) InvitePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.Validation(map[string]string{"id": "must be a valid id"})
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	res, err := h.svc.InvitePatient(c.Request().Context(), p.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
