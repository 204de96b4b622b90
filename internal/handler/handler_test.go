package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medtrip/service-lifecycle/internal/application"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/internal/metrics"
	"github.com/medtrip/service-lifecycle/internal/repository"
	"github.com/medtrip/service-lifecycle/pkg/auth"
	"github.com/medtrip/service-lifecycle/pkg/lock"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

type testAPI struct {
	router *gin.Engine
	jwt    *auth.JWTManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	tr := application.NewTransitioner(lock.NewMemoryLocker(time.Second), lifecycle.SystemClock{},
		application.NewLogNotifier(zap.NewNop()), metrics.New(prometheus.NewRegistry()), zap.NewNop(), time.Second)
	bookings := application.NewBookingService(store.Bookings(), tr, zap.NewNop())
	appointments := application.NewAppointmentService(store.Appointments(), store.Bookings(), tr, zap.NewNop())
	history := application.NewHistoryService(store, store.Bookings(), store.Appointments())

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	r := gin.New()
	NewBookingHandler(bookings, history).RegisterRoutes(&r.RouterGroup, jwtManager)
	NewAppointmentHandler(appointments, history).RegisterRoutes(&r.RouterGroup, jwtManager)
	NewAdminHandler(bookings, appointments, history).RegisterRoutes(&r.RouterGroup, jwtManager)

	return &testAPI{router: r, jwt: jwtManager}
}

func (a *testAPI) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok, err := a.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiEnvelope) {
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
	a.router.ServeHTTP(w, req)

	var env apiEnvelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func createBookingAs(t *testing.T, a *testAPI, patientToken string) application.BookingDTO {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/v1/bookings", patientToken, map[string]string{"notes": "knee replacement"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bk application.BookingDTO
	require.NoError(t, json.Unmarshal(env.Data, &bk))
	return bk
}

func TestBookingAPI_TransitionFlow(t *testing.T) {
	a := newTestAPI(t)
	patientID := uuid.New()
	patientTok := a.token(t, patientID, auth.RolePatient)
	staffTok := a.token(t, uuid.New(), auth.RoleStaff)

	bk := createBookingAs(t, a, patientTok)
	assert.Equal(t, patientID, bk.PatientID)
	assert.Equal(t, "requested", bk.Status)

	path := "/api/v1/bookings/" + bk.ID.String() + "/transitions"
	w, env := a.do(t, http.MethodPost, path, staffTok, map[string]string{"status": "under_review", "reason": "triage"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res application.TransitionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "under_review", res.Status)
	assert.Equal(t, "requested", res.PreviousStatus)

	w, env = a.do(t, http.MethodPost, path, staffTok, map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.ElementsMatch(t, []interface{}{"accepted", "rejected"}, env.Error.Details["allowed_next_statuses"])

	w, env = a.do(t, http.MethodPost, path, staffTok, map[string]string{"status": "accepted", "expected_status": "requested"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "CONCURRENCY_CONFLICT", env.Error.Code)

	w, env = a.do(t, http.MethodPost, path, staffTok, map[string]string{"status": "flying"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = a.do(t, http.MethodGet, "/api/v1/bookings/"+bk.ID.String()+"/history", patientTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []application.HistoryEntryDTO
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "under_review", entries[1].NewStatus)

	w, env = a.do(t, http.MethodGet, "/api/v1/bookings/"+bk.ID.String()+"/transitions", patientTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var allowed application.AllowedTransitionsDTO
	require.NoError(t, json.Unmarshal(env.Data, &allowed))
	assert.Equal(t, []string{"accepted", "rejected"}, allowed.Allowed)
}

func TestBookingAPI_PatientsCannotTouchOthersBookings(t *testing.T) {
	a := newTestAPI(t)
	bk := createBookingAs(t, a, a.token(t, uuid.New(), auth.RolePatient))
	intruder := a.token(t, uuid.New(), auth.RolePatient)

	w, _ := a.do(t, http.MethodGet, "/api/v1/bookings/"+bk.ID.String(), intruder, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(t, http.MethodPost, "/api/v1/bookings/"+bk.ID.String()+"/transitions", intruder,
		map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(t, http.MethodGet, "/api/v1/bookings/reference/"+bk.Reference, intruder, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBookingAPI_Errors(t *testing.T) {
	a := newTestAPI(t)
	staffTok := a.token(t, uuid.New(), auth.RoleStaff)

	w, _ := a.do(t, http.MethodGet, "/api/v1/bookings/not-a-uuid", staffTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := a.do(t, http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), staffTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, _ = a.do(t, http.MethodGet, "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = a.do(t, http.MethodPost, "/api/v1/bookings", a.token(t, uuid.New(), auth.RoleDoctor), map[string]string{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(t, http.MethodPost, "/api/v1/bookings", staffTok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "staff must name the patient")
}

func TestAppointmentAPI_DoctorFlow(t *testing.T) {
	a := newTestAPI(t)
	patientTok := a.token(t, uuid.New(), auth.RolePatient)
	doctorID := uuid.New()
	doctorTok := a.token(t, doctorID, auth.RoleDoctor)

	w, env := a.do(t, http.MethodPost, "/api/v1/appointments", patientTok, map[string]string{"doctor_id": doctorID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ap application.AppointmentDTO
	require.NoError(t, json.Unmarshal(env.Data, &ap))

	path := "/api/v1/appointments/" + ap.ID.String() + "/transitions"
	for _, st := range []string{"confirmed", "awaiting_consultation", "in_progress", "prescription_provided", "completed"} {
		w, _ = a.do(t, http.MethodPost, path, doctorTok, map[string]string{"status": st})
		require.Equal(t, http.StatusOK, w.Code, st)
	}

	w, env = a.do(t, http.MethodPost, path, patientTok, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, env.Error.Details["allowed_next_statuses"])

	w, env = a.do(t, http.MethodGet, "/api/v1/appointments", doctorTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []application.AppointmentDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "completed", list[0].Status)
}

func TestAdminAPI(t *testing.T) {
	a := newTestAPI(t)
	adminTok := a.token(t, uuid.New(), auth.RoleAdmin)
	bk := createBookingAs(t, a, a.token(t, uuid.New(), auth.RolePatient))

	w, _ := a.do(t, http.MethodGet, "/api/v1/admin/bookings", a.token(t, uuid.New(), auth.RoleStaff), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := a.do(t, http.MethodGet, "/api/v1/admin/stats/bookings", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats application.StatsDTO
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.Total)

	w, env = a.do(t, http.MethodGet, "/api/v1/admin/history/booking/"+bk.ID.String(), adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var audit application.HistoryAuditDTO
	require.NoError(t, json.Unmarshal(env.Data, &audit))
	assert.True(t, audit.ChainIntact)
	assert.Equal(t, "requested", audit.CurrentStatus)

	w, _ = a.do(t, http.MethodGet, "/api/v1/admin/history/invoice/"+bk.ID.String(), adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.do(t, http.MethodGet, "/api/v1/admin/bookings?status=nonsense", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransitionAPI_ValidationErrorsListAllowedNext(t *testing.T) {
	a := newTestAPI(t)
	staffTok := a.token(t, uuid.New(), auth.RoleStaff)
	bk := createBookingAs(t, a, a.token(t, uuid.New(), auth.RolePatient))
	path := "/api/v1/bookings/" + bk.ID.String() + "/transitions"

	w, env := a.do(t, http.MethodPost, path, staffTok, map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.ElementsMatch(t, []interface{}{"under_review", "rejected"}, env.Error.Details["allowed_next_statuses"])

	w, env = a.do(t, http.MethodPost, path, staffTok, map[string]string{"reason": "no status"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.ElementsMatch(t, []interface{}{"under_review", "rejected"}, env.Error.Details["allowed_next_statuses"])

	w, env = a.do(t, http.MethodPost, "/api/v1/appointments", a.token(t, bk.PatientID, auth.RolePatient),
		map[string]string{"doctor_id": uuid.NewString()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ap application.AppointmentDTO
	require.NoError(t, json.Unmarshal(env.Data, &ap))

	w, env = a.do(t, http.MethodPost, "/api/v1/appointments/"+ap.ID.String()+"/transitions", staffTok,
		map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.ElementsMatch(t, []interface{}{"confirmed", "cancelled"}, env.Error.Details["allowed_next_statuses"])
}

func TestUnauthorized_WritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	unauthorized(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}
