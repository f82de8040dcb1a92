package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hospital-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, setup ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, fn := range setup {
		fn(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func fromIP(ip string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = ip + ":1234" }
}

func withHeader(key, value string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func TestAuthMiddleware(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", "hospital")
	m := NewAuthMiddleware(jwtSvc)

	r := gin.New()
	r.GET("/admin", m.Authenticate(), m.RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	adminToken, err := jwtSvc.Sign("u-1", []string{"admin"}, time.Minute)
	require.NoError(t, err)
	staffToken, err := jwtSvc.Sign("u-2", []string{"staff"}, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"missing role", "Bearer " + staffToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusOK},
		{"lowercase scheme", "bearer " + adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var setup []func(*http.Request)
			if tt.header != "" {
				setup = append(setup, withHeader("Authorization", tt.header))
			}
			assert.Equal(t, tt.want, perform(r, http.MethodGet, "/admin", setup...).Code)
		})
	}
}

func TestRequireRole_WithoutAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(auth.NewJWTService("secret", ""))
	r := gin.New()
	r.GET("/", m.RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/").Code)
}

func TestLockout(t *testing.T) {
	lockout := NewLockout(LockoutConfig{MaxFailures: 3, Window: time.Minute})

	status := http.StatusNotFound
	r := gin.New()
	r.POST("/validate", lockout.Guard(), func(c *gin.Context) { c.Status(status) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNotFound, perform(r, http.MethodPost, "/validate", fromIP("10.0.0.1")).Code)
	}
	assert.Equal(t, 3, lockout.Failures("10.0.0.1"))

	w := perform(r, http.MethodPost, "/validate", fromIP("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Other clients are unaffected.
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodPost, "/validate", fromIP("10.0.0.2")).Code)

	// A success clears the count.
	status = http.StatusOK
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/validate", fromIP("10.0.0.2")).Code)
	assert.Zero(t, lockout.Failures("10.0.0.2"))
}

func TestLockout_OtherStatusesDoNotCount(t *testing.T) {
	lockout := NewLockout(LockoutConfig{MaxFailures: 1, Window: time.Minute})
	r := gin.New()
	r.POST("/validate", lockout.Guard(), func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	perform(r, http.MethodPost, "/validate", fromIP("10.0.0.1"))
	perform(r, http.MethodPost, "/validate", fromIP("10.0.0.1"))
	assert.Zero(t, lockout.Failures("10.0.0.1"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 2})
	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", fromIP("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", fromIP("10.0.0.1")).Code)

	w := perform(r, http.MethodGet, "/", fromIP("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", fromIP("10.0.0.2")).Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := perform(r, http.MethodGet, "/", withHeader(HeaderXRequestID, "abc-123"))
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "abc-123", w.Body.String())

	w = perform(r, http.MethodGet, "/", withHeader(HeaderXRequestID, "bad value\nwith newline"))
	assert.NotContains(t, w.Header().Get(HeaderXRequestID), " ")
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)

	w = perform(r, http.MethodGet, "/")
	assert.Len(t, w.Body.String(), 36)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://hospital.example"})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", withHeader("Origin", "https://hospital.example"))
	assert.Equal(t, "https://hospital.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = perform(r, http.MethodGet, "/", withHeader("Origin", "https://evil.example"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodOptions, "/", withHeader("Origin", "https://hospital.example"))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORS_Wildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig(nil)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", withHeader("Origin", "https://anywhere.example"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DefaultSecurityConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.POST("/", SizeLimit(8), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"ABC234"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/", Timeout(10*time.Millisecond), func(c *gin.Context) {
		<-c.Request.Context().Done()
		if c.Request.Context().Err() == context.DeadlineExceeded {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusServiceUnavailable, perform(r, http.MethodGet, "/").Code)
}
