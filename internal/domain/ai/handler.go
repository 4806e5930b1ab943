package ai

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

// RegisterRoutes mounts the AI endpoints on the authenticated API group.
// stream is a separate group whose auth middleware also accepts a query
// token, since EventSource clients cannot set headers.
func (h *Handler) RegisterRoutes(api, stream *echo.Group) {
	staff := api.Group("/ai", auth.RequireStaff())
	staff.POST("/generate-summary/:patientId", h.GenerateSummary)
	staff.GET("/jobs/:jobId", h.JobStatus)
	staff.GET("/summaries/patient/:patientId", h.ListSummaries)
	staff.GET("/summaries/:summaryId", h.GetSummary)
	staff.POST("/chat/:patientId", h.Chat)

	stream.GET("/ai/stream/:jobId", h.StreamJob, auth.RequireStaff())
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, httperr.Validation(map[string]string{name: "must be a valid id"})
	}
	return id, nil
}

func (h *Handler) GenerateSummary(c echo.Context) error {
	id, err := pathUUID(c, "patientId")
	if err != nil {
		return err
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	res, err := h.svc.GenerateSummary(c.Request().Context(), p.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, res)
}

func (h *Handler) JobStatus(c echo.Context) error {
	st, err := h.svc.JobStatus(c.Request().Context(), c.Param("jobId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListSummaries(c echo.Context) error {
	id, err := pathUUID(c, "patientId")
	if err != nil {
		return err
	}
	list, err := h.svc.ListSummaries(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*AISummary{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := pathUUID(c, "summaryId")
	if err != nil {
		return err
	}
	s, err := h.svc.GetSummary(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) Chat(c echo.Context) error {
	id, err := pathUUID(c, "patientId")
	if err != nil {
		return err
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return httperr.New(httperr.KindValidation, "invalid request body")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	res, err := h.svc.Chat(c.Request().Context(), p.ID, id, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
