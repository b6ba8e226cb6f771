package encounter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
)

func newRequest(method, target, body, role string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(as(role, 1))
}

func TestHandler_CreatePatient(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"first_name":"Grace","last_name":"Hopper","dob":"1970-12-09","insurance":{"payer_name":"Navy Mutual","member_id":"N-7"}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/api/v1/patients", body, auth.RoleBiller), rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got PatientDetail
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Patient == nil || got.FirstName != "Grace" || len(got.Insurances) != 1 {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_CreatePatient_MissingName(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/api/v1/patients", `{"first_name":"Grace"}`, auth.RoleBiller), rec)

	err := h.CreatePatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetEncounter_NotFound(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/", "", auth.RoleCoder), rec)
	c.SetParamNames("id")
	c.SetParamValues("12")

	err := h.GetEncounter(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/", "", auth.RoleCoder), rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.GetPatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_AddCharge_Conflict(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()
	p := f.patient(t, 1)
	enc, _ := f.svc.CreateEncounter(as(auth.RoleBiller, 1), Encounter{PatientID: p.ID})
	f.repo.SetEncounterStatus(as(auth.RoleBiller, 1), 1, enc.ID, StatusClaimed)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/api/v1/charges", `{"encounter_id":1,"cpt":"99213"}`, auth.RoleCoder), rec)

	err := h.AddCharge(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_ListEncounters(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()
	p := f.patient(t, 1)
	f.svc.CreateEncounter(as(auth.RoleBiller, 1), Encounter{PatientID: p.ID})

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/api/v1/encounters?status=OPEN", "", auth.RoleCoder), rec)
	if err := h.ListEncounters(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data  []Encounter `json:"data"`
		Total int         `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 || len(body.Data) != 1 {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
