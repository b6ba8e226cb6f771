package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newSanitizeEcho(logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.Use(Sanitize(logger))
	e.GET("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestSanitize_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header [2]string
	}{
		{"dot dot", "/api/v1/../../etc/passwd", [2]string{}},
		{"encoded dot dot", "/api/v1/%2e%2e/etc", [2]string{}},
		{"null byte in path", "/api/v1/claims/1%00", [2]string{}},
		{"null byte in query", "/api/v1/claims?status=DRAFT%00", [2]string{}},
		{"oversized header", "/api/v1/claims", [2]string{"X-Note", strings.Repeat("a", maxHeaderValueSize+1)}},
	}

	e := newSanitizeEcho(zerolog.Nop())
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.header[0] != "" {
			req.Header.Set(tt.header[0], tt.header[1])
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, rec.Code)
		}
	}
}

func TestSanitize_AllowsCleanRequest(t *testing.T) {
	e := newSanitizeEcho(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/claims?status=DRAFT&hasScrubberErrors=true", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSanitize_LogsSQLLikeQuery(t *testing.T) {
	var buf bytes.Buffer
	e := newSanitizeEcho(zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/claims?status=x%27%20OR%201=1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected request to pass through, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "suspicious query parameter") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
}
