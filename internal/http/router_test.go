package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/provell/go-network-backend/internal/config"
	"github.com/provell/go-network-backend/internal/services"
	"github.com/provell/go-network-backend/internal/store"
)

// testConfig returns a config suitable for router tests: generous rate
// limits so the limiter never interferes, allow-all CORS, HSTS off.
func testConfig() config.Config {
	return config.Config{
		RateRPS:   1000,
		RateBurst: 1000,
		OTEL:      config.OTELConfig{ServiceName: "router-test"},
	}
}

func newTestRouter(t *testing.T, deps Deps, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, deps, cfg)
	return r
}

func TestHealth_OK(t *testing.T) {
	r := newTestRouter(t, Deps{}, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want %q", body["status"], "ok")
	}
}

func TestHealth_Degraded(t *testing.T) {
	deps := Deps{Healthy: func() error { return errors.New("redis down") }}
	r := newTestRouter(t, deps, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(w.Body.String(), "degraded") {
		t.Fatalf("body = %s, want degraded marker", w.Body.String())
	}
}

func TestNoRoute_JSONEnvelope(t *testing.T) {
	r := newTestRouter(t, Deps{}, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var body struct {
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Code != "not_found" {
		t.Fatalf("code = %q, want %q", body.Code, "not_found")
	}
	if body.RequestID == "" {
		t.Fatal("expected request_id in error envelope")
	}
}

func TestNoMethod_JSONEnvelope(t *testing.T) {
	r := newTestRouter(t, Deps{}, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if !strings.Contains(w.Body.String(), "method_not_allowed") {
		t.Fatalf("body = %s, want method_not_allowed code", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, Deps{}, testConfig())

	// Generate at least one sample so the counter series exists.
	warm := httptest.NewRecorder()
	r.ServeHTTP(warm, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatal("expected http_requests_total in metrics exposition")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	r := newTestRouter(t, Deps{}, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "router-req-1")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "router-req-1" {
		t.Fatalf("X-Request-ID = %q, want %q", got, "router-req-1")
	}
}

func TestCORS_AllowAllDefault(t *testing.T) {
	r := newTestRouter(t, Deps{}, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO = %q, want %q", got, "*")
	}
}

func TestCORS_Allowlist(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://trusted.example.com"}
	r := newTestRouter(t, Deps{}, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://trusted.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://trusted.example.com" {
		t.Fatalf("ACAO = %q, want allowed origin echoed", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("ACAO = %q, want empty for disallowed origin", got)
	}
}

func TestSecurityHeaders_Present(t *testing.T) {
	r := newTestRouter(t, Deps{}, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestInviteRoutes_Wired(t *testing.T) {
	st := store.NewMemory()
	deps := Deps{Clicks: services.NewClickService(st, nil)}
	r := newTestRouter(t, deps, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/invites/inv-77/click", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("click status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/invites/inv-77/clicks", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("clicks status = %d, want %d", w.Code, http.StatusOK)
	}
	var body struct {
		InviteID    string `json:"invite_id"`
		TotalClicks int64  `json:"total_clicks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.InviteID != "inv-77" || body.TotalClicks != 1 {
		t.Fatalf("snapshot = %+v, want invite inv-77 with 1 click", body)
	}
}

func TestRateLimiter_Engaged(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0
	cfg.RateBurst = 2
	r := newTestRouter(t, Deps{}, cfg)

	var lastCode int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		r.ServeHTTP(w, req)
		lastCode = w.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want %d", lastCode, http.StatusTooManyRequests)
	}
}
