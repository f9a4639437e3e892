package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/auth"
)

func newHandlerEnv(t *testing.T) (*Handler, *echo.Echo, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return NewHandler(env.svc), echo.New(), env
}

// asActor stamps the request with an authenticated actor, standing in
// for the JWT middleware.
func asActor(req *http.Request, id uuid.UUID, role string) *http.Request {
	return req.WithContext(auth.WithActor(req.Context(), auth.Actor{ID: id, Role: role}))
}

func TestHandler_BookAppointment(t *testing.T) {
	h, e, env := newHandlerEnv(t)
	patient := uuid.New()

	body := `{"doctor_id":"` + env.doctor.String() + `","scheduled_at":"` +
		testBase.Add(26*time.Hour).Format(time.RFC3339) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asActor(req, patient, "patient")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var apt Appointment
	json.Unmarshal(rec.Body.Bytes(), &apt)
	if apt.PatientID != patient {
		t.Errorf("patient_id = %s, want the authenticated patient %s", apt.PatientID, patient)
	}
	if apt.Status != StatusScheduled {
		t.Errorf("status = %s, want %s", apt.Status, StatusScheduled)
	}
}

func TestHandler_BookAppointment_Conflict(t *testing.T) {
	h, e, env := newHandlerEnv(t)
	at := testBase.Add(26 * time.Hour)
	env.book(t, BookAppointmentRequest{PatientID: uuid.New(), DoctorID: env.doctor, ScheduledAt: at})

	body := `{"doctor_id":"` + env.doctor.String() + `","scheduled_at":"` + at.Format(time.RFC3339) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asActor(req, uuid.New(), "patient")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.BookAppointment(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if httpErr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", httpErr.Code)
	}
}

func TestHandler_GetAppointment_StrangerForbidden(t *testing.T) {
	h, e, env := newHandlerEnv(t)
	apt := env.book(t, BookAppointmentRequest{PatientID: uuid.New(), DoctorID: env.doctor, ScheduledAt: testBase.Add(26 * time.Hour)})

	req := asActor(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), "patient")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(apt.ID.String())

	err := h.GetAppointment(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusForbidden {
		t.Errorf("err = %v, want 403", err)
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, e, _ := newHandlerEnv(t)

	req := asActor(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), "admin")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.GetAppointment(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Errorf("err = %v, want 404", err)
	}
}

func TestHandler_ListAppointments_PatientScoped(t *testing.T) {
	h, e, env := newHandlerEnv(t)
	patient := uuid.New()
	env.book(t, BookAppointmentRequest{PatientID: patient, DoctorID: env.doctor, ScheduledAt: testBase.Add(26 * time.Hour)})
	env.book(t, BookAppointmentRequest{PatientID: uuid.New(), DoctorID: env.doctor, ScheduledAt: testBase.Add(27 * time.Hour)})

	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil), patient, "patient")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []*Appointment `json:"data"`
		Total int            `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("total = %d, want only the caller's appointment", resp.Total)
	}
}

func TestHandler_CancelAppointment_InsideCutoff(t *testing.T) {
	h, e, env := newHandlerEnv(t)
	patient := uuid.New()
	apt := env.book(t, BookAppointmentRequest{PatientID: patient, DoctorID: env.doctor, ScheduledAt: testBase.Add(time.Hour)})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asActor(req, patient, "patient")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(apt.ID.String())

	err := h.CancelAppointment(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusConflict {
		t.Errorf("err = %v, want 409", err)
	}
}

func TestHandler_JoinAppointment(t *testing.T) {
	h, e, env := newHandlerEnv(t)
	patient := uuid.New()
	apt := env.confirmed(t, patient, testBase.Add(26*time.Hour))
	env.clock.Set(apt.ScheduledAt)

	req := asActor(httptest.NewRequest(http.MethodGet, "/", nil), patient, "patient")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(apt.ID.String())

	if err := h.JoinAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var d JoinDecision
	json.Unmarshal(rec.Body.Bytes(), &d)
	if !d.CanJoin {
		t.Errorf("can_join = false, reason %q", d.Reason)
	}
}

func TestHandler_ListSlots_RequiresDate(t *testing.T) {
	h, e, env := newHandlerEnv(t)

	req := asActor(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), "patient")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(env.doctor.String())

	err := h.ListSlots(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Errorf("err = %v, want 400", err)
	}
}

func TestHandler_SetAvailability_OtherDoctorForbidden(t *testing.T) {
	h, e, env := newHandlerEnv(t)

	body := `{"date":"2025-03-11","start_time":"09:00","end_time":"17:00","slot_duration":30,"is_available":true}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asActor(req, uuid.New(), "doctor")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(env.doctor.String())

	err := h.SetAvailability(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusForbidden {
		t.Errorf("err = %v, want 403", err)
	}
}

func TestHandler_SetAvailability(t *testing.T) {
	h, e, env := newHandlerEnv(t)

	body := `{"date":"2025-03-11","start_time":"09:00","end_time":"17:00","slot_duration":30,"is_available":true}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asActor(req, env.doctor, "doctor")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(env.doctor.String())

	if err := h.SetAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var av DoctorAvailability
	json.Unmarshal(rec.Body.Bytes(), &av)
	if av.DoctorID != env.doctor {
		t.Errorf("doctor_id = %s, want path doctor %s", av.DoctorID, env.doctor)
	}
}
