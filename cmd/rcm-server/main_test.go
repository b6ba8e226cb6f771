package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/config"
	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/internal/platform/memstore"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:             env,
		StoreBackend:    config.BackendMemory,
		CORSOrigins:     []string{"*"},
		AuthSigningKey:  testSigningKey,
		RateLimitRPS:    1000,
		RateLimitBurst:  1000,
		AdvisoryTimeout: time.Second,
		SeedDemo:        true,
	}
}

func newTestServer(t *testing.T, env string) *echo.Echo {
	t.Helper()
	e, err := newServer(testConfig(env), memoryStores(memstore.New()), zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func idOf(t *testing.T, m map[string]any) int64 {
	t.Helper()
	id, ok := m["id"].(float64)
	if !ok {
		t.Fatalf("no id in %v", m)
	}
	return int64(id)
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, "development")

	code, body := call(t, e, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "ok" || body["backend"] != config.BackendMemory {
		t.Errorf("unexpected health body %v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected /health/db to be absent on the memory backend, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t, "development")
	call(t, e, http.MethodGet, "/health", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestAPIRequiresTokenOutsideDevelopment(t *testing.T) {
	e := newTestServer(t, "staging")

	code, _ := call(t, e, http.MethodGet, "/api/v1/claims", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", code)
	}

	token, err := auth.IssueToken(jwtConfig(testConfig("staging")), auth.Caller{UserID: 5, Role: auth.RoleCoder, TenantID: 1}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	code, _ = call(t, e, http.MethodGet, "/api/v1/claims", token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200 with a token, got %d", code)
	}
	code, _ = call(t, e, http.MethodPost, "/api/v1/claims/build", token, map[string]any{"encounterId": 1})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for a coder building a claim, got %d", code)
	}
}

func TestClaimLifecycleOverHTTP(t *testing.T) {
	e := newTestServer(t, "development")

	code, patient := call(t, e, http.MethodPost, "/api/v1/patients", "", map[string]any{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"dob":        "1980-12-10",
		"gender":     "F",
		"insurance": map[string]any{
			"payer_name":      "Acme Health",
			"member_id":       "ACM123",
			"subscriber_name": "Ada Lovelace",
			"subscriber_dob":  "1980-12-10",
		},
	})
	if code != http.StatusCreated {
		t.Fatalf("create patient: %d %v", code, patient)
	}

	code, enc := call(t, e, http.MethodPost, "/api/v1/encounters", "", map[string]any{
		"patient_id":       idOf(t, patient),
		"date_of_service":  "2026-01-15",
		"provider_npi":     "1098765432",
		"place_of_service": "11",
	})
	if code != http.StatusCreated {
		t.Fatalf("create encounter: %d %v", code, enc)
	}
	encID := idOf(t, enc)

	code, ch := call(t, e, http.MethodPost, "/api/v1/charges", "", map[string]any{
		"encounter_id":  encID,
		"cpt":           "99213",
		"icd10":         "E11.9",
		"units":         1,
		"charge_amount": 125.0,
	})
	if code != http.StatusCreated {
		t.Fatalf("add charge: %d %v", code, ch)
	}

	code, built := call(t, e, http.MethodPost, "/api/v1/claims/build", "", map[string]any{"encounterId": encID})
	if code != http.StatusCreated {
		t.Fatalf("build claim: %d %v", code, built)
	}
	claimID := idOf(t, built["claim"].(map[string]any))

	code, again := call(t, e, http.MethodPost, "/api/v1/claims/build", "", map[string]any{"encounterId": encID})
	if code != http.StatusConflict {
		t.Fatalf("expected 409 on a second build, got %d %v", code, again)
	}

	code, _ = call(t, e, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/submit", claimID), "", nil)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 submitting an unscrubbed claim, got %d", code)
	}

	code, scrub := call(t, e, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/scrub", claimID), "", nil)
	if code != http.StatusOK {
		t.Fatalf("scrub: %d %v", code, scrub)
	}
	verdict := scrub["scrubber"].(map[string]any)
	if verdict["valid"] != true {
		t.Fatalf("expected a passing verdict, got %v", verdict)
	}

	code, review := call(t, e, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/ai-review", claimID), "", nil)
	if code != http.StatusOK {
		t.Fatalf("ai review: %d %v", code, review)
	}
	if conf := review["aiReview"].(map[string]any)["confidence"]; conf != float64(0) {
		t.Errorf("expected zero-confidence review without a model, got %v", conf)
	}

	code, submitted := call(t, e, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/submit", claimID), "", nil)
	if code != http.StatusOK || submitted["status"] != "SUBMITTED" {
		t.Fatalf("submit: %d %v", code, submitted)
	}

	code, accepted := call(t, e, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/status", claimID), "", map[string]any{"status": "ACCEPTED"})
	if code != http.StatusOK || accepted["status"] != "ACCEPTED" {
		t.Fatalf("accept: %d %v", code, accepted)
	}

	code, summary := call(t, e, http.MethodGet, "/api/v1/reports/summary", "", nil)
	if code != http.StatusOK {
		t.Fatalf("summary: %d", code)
	}
	if summary["totalClaims"] != float64(1) || summary["acceptedClaims"] != float64(1) {
		t.Errorf("unexpected summary %v", summary)
	}

	code, trail := call(t, e, http.MethodGet, "/api/v1/audit?entity=claim", "", nil)
	if code != http.StatusOK {
		t.Fatalf("audit: %d", code)
	}
	if total, _ := trail["total"].(float64); total < 5 {
		t.Errorf("expected at least 5 claim audit entries, got %v", trail["total"])
	}
}
