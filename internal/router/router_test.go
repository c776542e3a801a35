package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	adminhandler "github.com/jwalitptl/referral-api/internal/handler/admin"
	authhandler "github.com/jwalitptl/referral-api/internal/handler/auth"
	eventhandler "github.com/jwalitptl/referral-api/internal/handler/event"
	facilityhandler "github.com/jwalitptl/referral-api/internal/handler/facility"
	"github.com/jwalitptl/referral-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/referral-api/internal/handler/patient"
	"github.com/jwalitptl/referral-api/internal/handler/prometheus"
	providerhandler "github.com/jwalitptl/referral-api/internal/handler/provider"
	referralhandler "github.com/jwalitptl/referral-api/internal/handler/referral"
	slothandler "github.com/jwalitptl/referral-api/internal/handler/slot"
	specialityhandler "github.com/jwalitptl/referral-api/internal/handler/speciality"
	"github.com/jwalitptl/referral-api/internal/lock"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	authsvc "github.com/jwalitptl/referral-api/internal/service/auth"
	"github.com/jwalitptl/referral-api/internal/service/dashboard"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	"github.com/jwalitptl/referral-api/internal/service/patient"
	"github.com/jwalitptl/referral-api/internal/service/provider"
	"github.com/jwalitptl/referral-api/internal/service/referral"
	"github.com/jwalitptl/referral-api/internal/service/slot"
	"github.com/jwalitptl/referral-api/internal/service/speciality"
	"github.com/jwalitptl/referral-api/internal/testutil"
	"github.com/jwalitptl/referral-api/pkg/auth"
	"github.com/jwalitptl/referral-api/pkg/httputil"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/metrics"
	"github.com/jwalitptl/referral-api/pkg/security"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
}

type testApp struct {
	engine *gin.Engine
	jwt    auth.JWTService
	f      *testutil.Fixture
}

func newTestApp(t *testing.T, cfg RouterConfig) *testApp {
	t.Helper()
	f := testutil.NewFixture(t)
	log := logger.Nop()
	m := metrics.Noop()
	jwtSvc := auth.NewJWTService("router-test", time.Hour)
	hasher := security.NewBcryptHasher(4)
	emitter := outbox.NewEmitter(f.Store.Outbox)

	facilities := facility.NewService(f.Store.Facilities, f.Store.FacilityAdmins, time.Minute, time.Minute, log)
	slots := slot.NewService(f.Store, facilities, m, log)
	referrals := referral.NewService(f.Store, facilities, emitter, m, log)
	events := event.NewService(f.Store, emitter, lock.NewLocalLocker(), m, log)
	patients := patient.NewService(f.Store.Patients, log)
	providers := provider.NewService(f.Store.Providers, facilities, hasher, log)
	dash := dashboard.NewService(f.Store, facilities)
	accounts := authsvc.NewService(f.Store, jwtSvc, hasher, log)

	r := NewRouter(middleware.NewAuthMiddleware(accounts), health.NewHandler(f.Store.Ping), prometheus.New(), cfg)
	r.Setup(
		authhandler.NewHandler(accounts),
		facilityhandler.NewHandler(facilities),
		slothandler.NewHandler(slots),
		referralhandler.NewHandler(referrals),
		eventhandler.NewHandler(events),
		patienthandler.NewHandler(patients, dash, referrals, events),
		providerhandler.NewHandler(providers, dash),
		adminhandler.NewHandler(dash),
		specialityhandler.NewHandler(speciality.NewService(f.Store.Specialities)),
	)
	return &testApp{engine: r.Engine(), jwt: jwtSvc, f: f}
}

func (a *testApp) token(t *testing.T, claims *model.TokenClaims) string {
	t.Helper()
	token, err := a.jwt.GenerateToken(claims)
	require.NoError(t, err)
	return token
}

func (a *testApp) providerToken(t *testing.T, email string, perms ...model.Permission) string {
	p := a.f.AddProvider(t, email, perms...)
	return a.token(t, &model.TokenClaims{AccountID: p.ID, Type: model.AccountProvider, Email: p.Email})
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, httputil.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp httputil.Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, RouterConfig{Version: "test"})

	w, _ := app.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", w.Header().Get(middleware.HeaderAPIVersion))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, _ = app.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAuthGates(t *testing.T) {
	app := newTestApp(t, RouterConfig{})

	w, resp := app.do(t, http.MethodGet, "/referrals", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, httputil.StatusError, resp.Status)

	w, _ = app.do(t, http.MethodGet, "/referrals", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	patientToken := app.token(t, &model.TokenClaims{AccountID: app.f.Patient.ID, Type: model.AccountPatient})
	w, _ = app.do(t, http.MethodGet, "/referrals", patientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	plain := app.providerToken(t, "plain@example.com")
	w, resp = app.do(t, http.MethodPost, "/referrals", plain, model.CreateReferralRequest{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, resp.Message, string(model.PermissionCreateReferrals))

	w, _ = app.do(t, http.MethodGet, "/admin/dashboard/stats", plain, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateReferralFlow(t *testing.T) {
	app := newTestApp(t, RouterConfig{})
	token := app.providerToken(t, "referrer@example.com", model.PermissionCreateReferrals)
	s := app.f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)

	w, resp := app.do(t, http.MethodGet, "/slots?departmentId="+app.f.Department.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, resp = app.do(t, http.MethodPost, "/referrals", token, model.CreateReferralRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, resp.Message)

	req := model.CreateReferralRequest{
		FromFacilityID: app.f.Facility.ID,
		ToDepartmentID: app.f.Department.ID,
		PatientID:      app.f.Patient.ID,
		SlotID:         s.ID,
	}
	w, resp = app.do(t, http.MethodPost, "/referrals", token, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, httputil.StatusSuccess, resp.Status)

	w, resp = app.do(t, http.MethodPost, "/referrals", token, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, httputil.StatusError, resp.Status)

	w, resp = app.do(t, http.MethodGet, "/slots", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Data)
}

func TestInvalidQueryIDsAreRejected(t *testing.T) {
	app := newTestApp(t, RouterConfig{})
	token := app.providerToken(t, "lister@example.com")

	w, resp := app.do(t, http.MethodGet, "/slots?departmentId=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, httputil.StatusError, resp.Status)

	w, _ = app.do(t, http.MethodGet, "/referrals?patientId=nope", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodGet, "/referrals?fromFacilityId=nope", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = app.do(t, http.MethodGet, "/referrals?patientId="+app.f.Patient.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Data)
}

func TestPatientDashboard(t *testing.T) {
	app := newTestApp(t, RouterConfig{})
	token := app.token(t, &model.TokenClaims{AccountID: app.f.Patient.ID, Type: model.AccountPatient})

	w, resp := app.do(t, http.MethodGet, "/patient/appointments", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Data)

	w, _ = app.do(t, http.MethodPost, "/patient/appointments/"+uuid.NewString()+"/cancel", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = app.do(t, http.MethodPost, "/patient/appointments/nope/cancel", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodPost, "/patient/notifications/clear", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublicFacilities(t *testing.T) {
	app := newTestApp(t, RouterConfig{})

	w, resp := app.do(t, http.MethodGet, "/facilities", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, resp = app.do(t, http.MethodGet, "/facilities/"+app.f.Facility.ID.String()+"/departments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t, RouterConfig{
		RateLimit: &middleware.RateLimiterConfig{Rate: rate.Limit(1), Burst: 2, Idle: time.Minute},
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w, _ := app.do(t, http.MethodGet, "/health/live", "", nil)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
