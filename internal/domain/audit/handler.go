package audit

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
	api.GET("/audit", h.List, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) List(c echo.Context) error {
	off, err := pagination.OffsetFromContext(c)
	if err != nil {
		return err
	}

	f := Filter{
		Action:     c.QueryParam("action"),
		EntityType: c.QueryParam("entityType"),
		Limit:      off.Limit,
		Offset:     off.SQLOffset(),
	}
	if raw := c.QueryParam("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return httperr.Validation(map[string]string{"userId": "must be a valid id"})
		}
		f.UserID = &id
	}

	entries, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return httperr.Wrap(httperr.KindInternal, "list audit log", err)
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  entries,
		"total": total,
		"page":  off.Page,
		"limit": off.Limit,
	})
}
