package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuditWriteFailed(t *testing.T) {
	before := testutil.ToFloat64(auditWriteFailures.WithLabelValues("CLAIM_BUILT"))
	AuditWriteFailed("CLAIM_BUILT")
	AuditWriteFailed("CLAIM_BUILT")
	after := testutil.ToFloat64(auditWriteFailures.WithLabelValues("CLAIM_BUILT"))
	if after-before != 2 {
		t.Fatalf("expected 2 increments, got %v", after-before)
	}
}

func TestScrubberRun(t *testing.T) {
	valid := testutil.ToFloat64(scrubberRuns.WithLabelValues("valid"))
	invalid := testutil.ToFloat64(scrubberRuns.WithLabelValues("invalid"))

	ScrubberRun(true)
	ScrubberRun(false)
	ScrubberRun(false)

	if got := testutil.ToFloat64(scrubberRuns.WithLabelValues("valid")) - valid; got != 1 {
		t.Errorf("valid runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(scrubberRuns.WithLabelValues("invalid")) - invalid; got != 2 {
		t.Errorf("invalid runs = %v, want 2", got)
	}
}

func TestRequestLifecycle(t *testing.T) {
	inFlight := testutil.ToFloat64(httpInFlight)
	RequestStarted()
	if got := testutil.ToFloat64(httpInFlight); got != inFlight+1 {
		t.Fatalf("in flight = %v, want %v", got, inFlight+1)
	}
	RequestFinished(http.MethodPost, "/api/v1/claims/:id/submit", http.StatusConflict, 5*time.Millisecond)
	if got := testutil.ToFloat64(httpInFlight); got != inFlight {
		t.Fatalf("in flight = %v, want %v", got, inFlight)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/v1/claims/:id/submit", "409")); got < 1 {
		t.Errorf("expected request counted, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	Init()
	ClaimTransition("DRAFT", "SUBMITTED")
	AdvisoryReview(AdvisoryFallback)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"rcm_claim_transitions_total", "rcm_advisory_reviews_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in exposition", name)
		}
	}
}
