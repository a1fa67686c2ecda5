package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ers/ers/internal/platform/auth"
	"github.com/ers/ers/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.List)
	api.GET("/patients/:id", h.Get)

	api.POST("/patients", h.Register, auth.RequireRole("nurse"))
	api.PATCH("/patients/:id", h.Update, auth.RequireRole("nurse", "doctor"))
	api.POST("/triage/:id/assess", h.Assess, auth.RequireRole("nurse", "doctor"))
}

func httpError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	registeredBy, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	res, err := h.svc.Register(ctx, in, registeredBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	var facilityID *uuid.UUID
	if fid := c.QueryParam("facility_id"); fid != "" {
		id, err := uuid.Parse(fid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid facility_id")
		}
		facilityID = &id
	} else if fid, err := uuid.Parse(auth.FacilityIDFromContext(ctx)); err == nil {
		// Facility staff default to their own facility's patients.
		if auth.RoleFromContext(ctx) != "admin" {
			facilityID = &fid
		}
	}

	items, total, err := h.svc.List(ctx, facilityID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	updatedBy, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	res, err := h.svc.Update(ctx, id, in, updatedBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Assess(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	assessedBy, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	res, err := h.svc.Assess(ctx, id, assessedBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
