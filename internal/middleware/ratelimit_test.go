package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/snoozies/dreamyhaven/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		FormRate:        0.1,
		FormBurst:       1,
		CleanupInterval: time.Minute,
	}
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func requestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestGeneralMiddleware_LimitsPerClient(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	called := false
	handler := rl.GeneralMiddleware()(okHandler(&called))

	for i := 0; i < 2; i++ {
		if w := serve(handler, requestFrom("10.0.0.1:5000")); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := serve(handler, requestFrom("10.0.0.1:5001"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q", body.Code)
	}

	if w := serve(handler, requestFrom("10.0.0.2:5000")); w.Code != http.StatusOK {
		t.Errorf("another client status = %d, want 200", w.Code)
	}
}

func TestGeneralMiddleware_KeysByUserWhenAuthenticated(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	called := false
	handler := rl.GeneralMiddleware()(okHandler(&called))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		req := requestFrom(addr)
		req = req.WithContext(ContextWithUserID(req.Context(), "admin-1"))
		serve(handler, req)
	}

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Errorf("GeneralLimiterCount() = %d, want 1", got)
	}
}

func TestFormMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	called := false
	form := rl.FormMiddleware()(okHandler(&called))
	general := rl.GeneralMiddleware()(okHandler(&called))

	if w := serve(form, requestFrom("10.0.0.9:1")); w.Code != http.StatusOK {
		t.Fatalf("first form status = %d", w.Code)
	}
	w := serve(form, requestFrom("10.0.0.9:2"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second form status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "10" {
		t.Errorf("Retry-After = %q, want 10", w.Header().Get("Retry-After"))
	}
	if w := serve(general, requestFrom("10.0.0.9:3")); w.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", w.Code)
	}
	if rl.FormLimiterCount() != 1 || rl.GeneralLimiterCount() != 1 {
		t.Errorf("counts = %d/%d", rl.FormLimiterCount(), rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	called := false
	serve(rl.GeneralMiddleware()(okHandler(&called)), requestFrom("10.0.0.1:1"))
	serve(rl.FormMiddleware()(okHandler(&called)), requestFrom("10.0.0.1:1"))

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 {
		t.Fatal("fresh entry should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.FormLimiterCount() != 0 {
		t.Errorf("counts after cleanup = %d/%d", rl.GeneralLimiterCount(), rl.FormLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	if got := ClientIP(requestFrom("192.0.2.7:443")); got != "192.0.2.7" {
		t.Errorf("ClientIP = %q", got)
	}
	if got := ClientIP(requestFrom("192.0.2.7")); got != "192.0.2.7" {
		t.Errorf("ClientIP without port = %q", got)
	}
}
