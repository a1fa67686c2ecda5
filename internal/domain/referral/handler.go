package referral

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
	api.GET("/referrals", h.List)
	api.GET("/referrals/:id", h.Get)

	api.POST("/referrals", h.Create, auth.RequireRole("nurse"))
	api.POST("/referrals/:id/send", h.Send, auth.RequireRole("nurse", "doctor"))
	api.POST("/referrals/:id/accept", h.Accept, auth.RequireRole("doctor"))
	api.POST("/referrals/:id/transfer", h.Transfer, auth.RequireRole("nurse", "doctor"))
	api.POST("/referrals/:id/assign", h.AssignDestination, auth.RequireRole("doctor"))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	createdBy, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	r, err := h.svc.Create(ctx, in, createdBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	r, err := h.svc.Get(ctx, id)
	if err != nil {
		return httpError(err)
	}

	// Clinic staff only see their own outgoing referrals, hospital staff
	// their own incoming ones.
	if fid, err := uuid.Parse(auth.FacilityIDFromContext(ctx)); err == nil {
		switch auth.RoleFromContext(ctx) {
		case "nurse":
			if r.OriginFacilityID != fid {
				return echo.NewHTTPError(http.StatusForbidden, "referral does not belong to your facility")
			}
		case "doctor":
			if r.DestinationFacilityID == nil || *r.DestinationFacilityID != fid {
				return echo.NewHTTPError(http.StatusForbidden, "referral is not addressed to your facility")
			}
		}
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	f := Filter{Status: Status(c.QueryParam("status"))}
	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}

	// Nurses list referrals from their facility, doctors list referrals
	// addressed to theirs. Admins see everything.
	if fid, err := uuid.Parse(auth.FacilityIDFromContext(ctx)); err == nil {
		switch auth.RoleFromContext(ctx) {
		case "nurse":
			f.OriginFacilityID = &fid
		case "doctor":
			f.DestinationFacilityID = &fid
		}
	}

	items, total, err := h.svc.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Send(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Send(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Accept(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	doctorID, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	r, err := h.svc.Accept(ctx, id, doctorID, auth.UserNameFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Transfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Transfer(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type assignInput struct {
	DestinationFacilityID uuid.UUID `json:"destination_facility_id"`
}

func (h *Handler) AssignDestination(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in assignInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.DestinationFacilityID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "destination_facility_id is required")
	}
	r, err := h.svc.AssignDestination(c.Request().Context(), id, in.DestinationFacilityID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}
