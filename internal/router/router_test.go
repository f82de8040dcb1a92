package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/handler/accesscode"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/inmemory"
	accesscodesvc "github.com/jwalitptl/hospital-api/internal/service/accesscode"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

type testEnv struct {
	engine  *gin.Engine
	jwt     *auth.JWTService
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, config RouterConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.RegisterGin())

	store := inmemory.NewStore()
	store.PutPatient(&model.Patient{Base: model.Base{ID: "p-1"}, Name: "Jane Roe"})

	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	jwtSvc := auth.NewJWTService("secret", "hospital")

	svc := accesscodesvc.NewService(store, store, nil, accesscodesvc.Config{}, nil, m)
	r := NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		handler.NewHandler(map[string]repository.Pinger{"store": store}, reg),
		accesscode.NewHandler(svc),
		m,
		config,
	)
	r.Setup()

	return &testEnv{engine: r.Engine(), jwt: jwtSvc, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestRouter_AdminIssueAndPublicValidate(t *testing.T) {
	env := newTestEnv(t, RouterConfig{MetricsPath: "/metrics", CORSConfig: middleware.DefaultCORSConfig(nil)})

	token, err := env.jwt.Sign("admin-1", []string{"admin"}, time.Minute)
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/v1/admin/patient/p-1/access-code", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/patient/p-1/access-code", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = env.do(t, http.MethodPost, "/api/v1/access-codes/patients/validate", "", map[string]string{"code": resp.Data.Code})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))

	assert.Equal(t, float64(1), testutil.ToFloat64(
		env.metrics.HTTPRequests.WithLabelValues(http.MethodPost, "/api/v1/access-codes/:kind/validate", "200")))

	w = env.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_access_codes_issued_total")

	w = env.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminRequiresRole(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	token, err := env.jwt.Sign("doctor-1", []string{"doctor"}, time.Minute)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/admin/patient/p-1/access-code", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_LockoutAfterFailedValidations(t *testing.T) {
	env := newTestEnv(t, RouterConfig{
		LockoutEnabled: true,
		Lockout:        middleware.LockoutConfig{MaxFailures: 2, Window: time.Minute},
	})

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/access-codes/patient/validate", "", map[string]string{"code": "ZZZZZZ"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	w := env.do(t, http.MethodPost, "/api/v1/access-codes/patient/validate", "", map[string]string{"code": "ZZZZZZ"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	env := newTestEnv(t, RouterConfig{RateLimit: 0.001, RateBurst: 1})

	w := env.do(t, http.MethodPost, "/api/v1/access-codes/patient/validate", "", map[string]string{"code": "ZZZZZZ"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/access-codes/patient/validate", "", map[string]string{"code": "ZZZZZZ"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
