package labkit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bvquist1400/study-coordinator-pro/internal/platform/auth"
	"github.com/bvquist1400/study-coordinator-pro/pkg/pagination"
)

type Handler struct {
	svc *Service
	// defaultDaysAhead is the horizon used when a request does not set one.
	defaultDaysAhead int
}

func NewHandler(svc *Service, defaultDaysAhead int) *Handler {
	if defaultDaysAhead <= 0 {
		defaultDaysAhead = 60
	}
	return &Handler{svc: svc, defaultDaysAhead: defaultDaysAhead}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("coordinator", "monitor"))
	readGroup.GET("/studies/:id/lab-kits", h.ListKits)
	readGroup.GET("/lab-kits/:id", h.GetKit)
	readGroup.GET("/studies/:id/kit-requirements", h.ListRequirements)
	readGroup.GET("/studies/:id/lab-kit-recommendations", h.ListRecommendations)

	writeGroup := api.Group("", auth.RequireRole("coordinator"))
	writeGroup.POST("/studies/:id/lab-kits", h.CreateKit)
	writeGroup.PUT("/lab-kits/:id", h.UpdateKit)
	writeGroup.DELETE("/lab-kits/:id", h.DeleteKit)
	writeGroup.POST("/studies/:id/kit-requirements", h.CreateRequirement)
	writeGroup.PUT("/kit-requirements/:id", h.UpdateRequirement)
	writeGroup.DELETE("/kit-requirements/:id", h.DeleteRequirement)
	writeGroup.POST("/studies/:id/lab-kit-recommendations/recompute", h.Recompute)
}

// RegisterJobRoutes mounts the unattended sweep endpoints. The group must
// carry the job key middleware.
func (h *Handler) RegisterJobRoutes(jobs *echo.Group) {
	jobs.POST("/lab-kit-recommendations", h.RecomputeAll)
	// Cron services often only allow a fixed path with no body.
	jobs.POST("/cron/lab-kit-recommendations", h.RecomputeAll)
}

// recomputeRequest accepts the horizon under the names different callers
// use.
type recomputeRequest struct {
	DaysAhead      int      `json:"days_ahead"`
	DaysAheadAlias int      `json:"daysAhead"`
	Days           int      `json:"days"`
	StudyStatuses  []string `json:"study_statuses"`
}

func (r *recomputeRequest) horizon(fallback int) int {
	switch {
	case r.DaysAhead > 0:
		return r.DaysAhead
	case r.DaysAheadAlias > 0:
		return r.DaysAheadAlias
	case r.Days > 0:
		return r.Days
	}
	return fallback
}

// -- Kit Handlers --

func (h *Handler) CreateKit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var k LabKit
	if err := c.Bind(&k); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	k.StudyID = id
	if err := h.svc.CreateKit(c.Request().Context(), &k); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, k)
}

func (h *Handler) GetKit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	k, err := h.svc.GetKit(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "lab kit not found")
	}
	return c.JSON(http.StatusOK, k)
}

func (h *Handler) ListKits(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListKits(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateKit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var k LabKit
	if err := c.Bind(&k); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	k.ID = id
	if err := h.svc.UpdateKit(c.Request().Context(), &k); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, k)
}

func (h *Handler) DeleteKit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteKit(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Requirement Handlers --

func (h *Handler) CreateRequirement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var r KitRequirement
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r.StudyID = id
	if err := h.svc.CreateRequirement(c.Request().Context(), &r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListRequirements(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListRequirements(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateRequirement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var r KitRequirement
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r.ID = id
	if err := h.svc.UpdateRequirement(c.Request().Context(), &r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteRequirement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteRequirement(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Recommendation Handlers --

func (h *Handler) ListRecommendations(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	activeOnly := c.QueryParam("active") != "false"
	items, err := h.svc.ListRecommendations(c.Request().Context(), id, activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Recompute(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req recomputeRequest
	// A missing or empty body falls back to the default horizon.
	_ = c.Bind(&req)
	result, err := h.svc.Recompute(c.Request().Context(), id, req.horizon(h.defaultDaysAhead))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) RecomputeAll(c echo.Context) error {
	var req recomputeRequest
	_ = c.Bind(&req)
	batch, err := h.svc.RecomputeAll(c.Request().Context(), req.horizon(h.defaultDaysAhead), req.StudyStatuses)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, batch)
}
