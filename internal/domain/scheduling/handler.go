package scheduling

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	appts := api.Group("/appointments")
	appts.POST("", h.BookAppointment, auth.RequireRole("patient"))
	appts.GET("", h.ListAppointments)
	appts.GET("/:id", h.GetAppointment)
	appts.GET("/:id/join", h.JoinAppointment)
	appts.POST("/:id/confirm", h.ConfirmAppointment, auth.RequireRole("doctor"))
	appts.POST("/:id/start", h.StartAppointment, auth.RequireRole("doctor"))
	appts.POST("/:id/complete", h.CompleteAppointment, auth.RequireRole("doctor"))
	appts.POST("/:id/payment", h.CapturePayment, auth.RequireRole("patient"))
	appts.POST("/:id/cancel", h.CancelAppointment)

	doctors := api.Group("/doctors/:id")
	doctors.GET("/slots", h.ListSlots)
	doctors.GET("/availability", h.ListAvailability)
	doctors.PUT("/availability", h.SetAvailability, auth.RequireRole("doctor"))
	doctors.DELETE("/availability/:availabilityId", h.DeleteAvailability, auth.RequireRole("doctor"))
}

// httpError maps domain errors onto transport status codes.
func httpError(err error) error {
	var (
		validation *ValidationError
		conflict   *SlotConflictError
		transition *IllegalTransitionError
		cutoff     *CancellationWindowClosedError
	)
	switch {
	case errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrAvailabilityNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDoctorNotApproved):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrAlreadyTerminal):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict),
		errors.As(err, &transition),
		errors.As(err, &cutoff):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func actorRole(actor auth.Actor) Role {
	switch actor.Role {
	case "doctor":
		return RoleDoctor
	case "admin":
		return RoleAdmin
	}
	return RolePatient
}

// -- Appointments --

func (h *Handler) BookAppointment(c echo.Context) error {
	var req BookAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	if actor.Role == "patient" {
		// Patients always book for themselves.
		req.PatientID = actor.ID
	}
	apt, err := h.svc.BookAppointment(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	apt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	actor := auth.ActorFromContext(c.Request().Context())
	if actor.Role != "admin" && !apt.IsParticipant(actor.ID) {
		return echo.NewHTTPError(http.StatusForbidden, "not a participant in this appointment")
	}
	return c.JSON(http.StatusOK, apt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"status", "date"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}

	// Non-admins only ever see their own side of the calendar.
	actor := auth.ActorFromContext(c.Request().Context())
	switch actor.Role {
	case "admin":
		for _, key := range []string{"patient", "doctor"} {
			if v := c.QueryParam(key); v != "" {
				if _, err := uuid.Parse(v); err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid "+key)
				}
				params[key] = v
			}
		}
	case "doctor":
		params["doctor"] = actor.ID.String()
	default:
		params["patient"] = actor.ID.String()
	}

	items, total, err := h.svc.SearchAppointments(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	return h.transition(c, h.svc.ConfirmAppointment)
}

func (h *Handler) StartAppointment(c echo.Context) error {
	return h.transition(c, h.svc.StartAppointment)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	return h.transition(c, h.svc.CompleteAppointment)
}

func (h *Handler) transition(c echo.Context, op func(ctx context.Context, id, actorID uuid.UUID, role Role) (*Appointment, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	apt, err := op(c.Request().Context(), id, actor.ID, actorRole(actor))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, apt)
}

type capturePaymentRequest struct {
	Success bool `json:"success"`
}

func (h *Handler) CapturePayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req capturePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	apt, err := h.svc.CapturePayment(c.Request().Context(), id, actor.ID, actorRole(actor), req.Success)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, apt)
}

type cancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	apt, err := h.svc.CancelAppointment(c.Request().Context(), id, actor.ID, actorRole(actor), req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, apt)
}

func (h *Handler) JoinAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	decision, err := h.svc.EvaluateJoin(c.Request().Context(), id, actor.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, decision)
}

// -- Doctor slots and availability --

func (h *Handler) ListSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	slots, err := h.svc.ListAvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"date": date, "slots": slots})
}

func (h *Handler) SetAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	if actor.Role != "admin" && actor.ID != doctorID {
		return echo.NewHTTPError(http.StatusForbidden, "doctors manage only their own availability")
	}
	var av DoctorAvailability
	if err := c.Bind(&av); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	av.DoctorID = doctorID
	saved, err := h.svc.SetAvailability(c.Request().Context(), &av)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) ListAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAvailability(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	if actor.Role != "admin" && actor.ID != doctorID {
		return echo.NewHTTPError(http.StatusForbidden, "doctors manage only their own availability")
	}
	availID, err := uuid.Parse(c.Param("availabilityId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid availability id")
	}
	if err := h.svc.DeleteAvailability(c.Request().Context(), doctorID, availID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
