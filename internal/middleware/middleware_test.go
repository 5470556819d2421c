package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*services.AdminClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &services.AdminClaims{UserID: 7, Username: "admin", Role: "admin"}, nil
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/p", AuthMiddleware(stubValidator{}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(ContextUserID), "username": c.GetString(ContextUsername)})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "bearer", header: "Bearer good", want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", want: http.StatusOK},
		{name: "raw token", header: "good", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", w.Code, tt.want, w.Body.String())
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.want == http.StatusUnauthorized && body["code"] != "unauthorized" {
				t.Fatalf("401 body %v", body)
			}
			if tt.want == http.StatusOK && body["username"] != "admin" {
				t.Fatalf("claims not set: %v", body)
			}
		})
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	store := NewLimiterStore(0.01, 2, time.Minute)
	r := gin.New()
	r.GET("/like", RateLimit(store), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/like", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := call("10.0.0.1:1000"); w.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, w.Code)
		}
	}
	w := call("10.0.0.1:1000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("overflow status=%d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	if w := call("10.0.0.2:1000"); w.Code != http.StatusOK {
		t.Fatalf("other client status=%d", w.Code)
	}
	if store.Len() != 2 {
		t.Fatalf("store len=%d", store.Len())
	}
}

func TestLimiterStoreCleanup(t *testing.T) {
	store := NewLimiterStore(1, 1, 50*time.Millisecond)
	store.Get("a")
	time.Sleep(100 * time.Millisecond)
	store.Get("b")
	store.Cleanup()
	if store.Len() != 1 {
		t.Fatalf("len after cleanup=%d", store.Len())
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), CORSMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "abc-123" || w.Body.String() != "abc-123" {
		t.Fatalf("request id header=%q body=%q", got, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Header().Get(HeaderRequestID)) != 36 {
		t.Fatalf("generated id %q", w.Header().Get(HeaderRequestID))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight status=%d headers=%v", w.Code, w.Header())
	}
}
