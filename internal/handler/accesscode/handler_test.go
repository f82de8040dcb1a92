package accesscode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/inmemory"
	"github.com/jwalitptl/hospital-api/internal/service/accesscode"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, svc Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.RegisterGin())

	r := gin.New()
	h := NewHandler(svc)
	v1 := r.Group("/api/v1")
	h.RegisterAdminRoutes(v1.Group("/admin"))
	h.RegisterPublicRoutes(v1)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func newService() (*accesscode.Service, *inmemory.Store) {
	store := inmemory.NewStore()
	store.PutPatient(&model.Patient{Base: model.Base{ID: "p-1"}, Name: "Jane Roe"})
	store.PutDoctor(&model.Doctor{Base: model.Base{ID: "d-1"}, Name: "Dr. Who"})
	return accesscode.NewService(store, store, nil, accesscode.Config{}, nil, nil), store
}

func TestEnsureThenValidate(t *testing.T) {
	svc, _ := newService()
	r := setupRouter(t, svc)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/patients/p-1/access-code", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var issued accessCodeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &issued))
	assert.Len(t, issued.Code, accesscode.CodeLength)
	assert.Equal(t, model.SubjectKindPatient, issued.Namespace)
	assert.Equal(t, "p-1", issued.SubjectID)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/patient/p-1/access-code", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var again accessCodeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &again))
	assert.Equal(t, issued.Code, again.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/admin/patient/p-1/access-code", nil)
	require.Equal(t, http.StatusOK, w.Code)

	lower := " " + string(bytes.ToLower([]byte(issued.Code))) + " "
	w = doJSON(r, http.MethodPost, "/api/v1/access-codes/patient/validate", model.ValidateAccessCodeRequest{Code: lower})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result model.Validation
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, issued.ID, result.AccessCodeID)
	require.NotNil(t, result.Subject.Patient)
	assert.Equal(t, "Jane Roe", result.Subject.Patient.Name)
}

func TestIssueAccessCode(t *testing.T) {
	svc, store := newService()
	r := setupRouter(t, svc)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/doctors/access-codes", model.IssueAccessCodeRequest{SubjectID: "d-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/v1/admin/doctors/access-codes", model.IssueAccessCodeRequest{SubjectID: "d-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, store.Count(model.DoctorNamespace))
}

func TestBadRequests(t *testing.T) {
	svc, _ := newService()
	r := setupRouter(t, svc)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"unknown kind", http.MethodPost, "/api/v1/admin/nurses/n-1/access-code", nil},
		{"bad subject id", http.MethodPost, "/api/v1/admin/patient/a%20b/access-code", nil},
		{"missing subject_id", http.MethodPost, "/api/v1/admin/patient/access-codes", map[string]string{}},
		{"invalid subject_id", http.MethodPost, "/api/v1/admin/patient/access-codes", map[string]string{"subject_id": "x;y"}},
		{"missing code", http.MethodPost, "/api/v1/access-codes/patient/validate", map[string]string{}},
		{"validate unknown kind", http.MethodPost, "/api/v1/access-codes/staff/validate", map[string]string{"code": "ABC234"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "error", decode(t, w).Status)
		})
	}
}

func TestValidate_NotFound(t *testing.T) {
	svc, _ := newService()
	r := setupRouter(t, svc)

	for _, code := range []string{"ZZZZZZ", "short", "O0O0O0"} {
		w := doJSON(r, http.MethodPost, "/api/v1/access-codes/doctor/validate", model.ValidateAccessCodeRequest{Code: code})
		assert.Equal(t, http.StatusNotFound, w.Code, code)
	}
}

func TestGetAccessCode_NotFound(t *testing.T) {
	svc, _ := newService()
	r := setupRouter(t, svc)

	w := doJSON(r, http.MethodGet, "/api/v1/admin/doctor/d-1/access-code", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubService struct {
	err error
}

func (s stubService) Create(context.Context, model.SubjectKind, string) (*model.AccessCode, error) {
	return nil, s.err
}

func (s stubService) Ensure(context.Context, model.SubjectKind, string) (*model.AccessCode, bool, error) {
	return nil, false, s.err
}

func (s stubService) GetBySubject(context.Context, model.SubjectKind, string) (*model.AccessCode, error) {
	return nil, s.err
}

func (s stubService) Validate(context.Context, model.SubjectKind, string) (*model.Validation, error) {
	return nil, s.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{accesscode.ErrNotFound, http.StatusNotFound},
		{accesscode.ErrGenerationExhausted, http.StatusServiceUnavailable},
		{errors.Join(accesscode.ErrStoreUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable},
		{accesscode.ErrInvalidSubject, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		r := setupRouter(t, stubService{err: tt.err})

		w := doJSON(r, http.MethodPost, "/api/v1/admin/patient/p-1/access-code", nil)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())

		w = doJSON(r, http.MethodPost, "/api/v1/access-codes/patient/validate", model.ValidateAccessCodeRequest{Code: "ABC234"})
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}

func TestErrorMapping_HidesInternalDetails(t *testing.T) {
	r := setupRouter(t, stubService{err: errors.New("pq: password authentication failed")})

	w := doJSON(r, http.MethodGet, "/api/v1/admin/patient/p-1/access-code", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}
