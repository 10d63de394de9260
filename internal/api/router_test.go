package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Identity:   identity.NewService(identity.NewMemoryRepository(), bcrypt.MinCost),
		Sessions:   identity.NewMemorySessionStore(),
		Scheduling: scheduling.NewService(scheduling.NewMemoryStore(), nil),
		Env:        "test",
		Version:    "test",
	}))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func signUp(t *testing.T, srv *httptest.Server, role identity.Role, username string) string {
	t.Helper()

	path := "/patients"
	if role == identity.RoleCaregiver {
		path = "/caregivers"
	}
	resp, _ := call(t, srv, http.MethodPost, path, "", CredentialsRequest{Username: username, Password: "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := call(t, srv, http.MethodPost, "/sessions", "", LoginRequest{Role: string(role), Username: username, Password: "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sess SessionResponse
	require.NoError(t, json.Unmarshal(body, &sess))
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestReservationFlow(t *testing.T) {
	srv := newTestServer(t)

	alice := signUp(t, srv, identity.RoleCaregiver, "alice")
	pat := signUp(t, srv, identity.RolePatient, "pat")
	kim := signUp(t, srv, identity.RolePatient, "kim")

	resp, body := call(t, srv, http.MethodPost, "/vaccines/Pfizer/doses", alice, AddDosesRequest{Count: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v VaccineResponse
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, VaccineResponse{Name: "Pfizer", AvailableDoses: 2}, v)

	resp, _ = call(t, srv, http.MethodPost, "/availability", alice, AvailabilityRequest{Date: "2024-01-10"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = call(t, srv, http.MethodPost, "/availability", alice, AvailabilityRequest{Date: "2024-01-10"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(apperr.KindConflict), decodeError(t, body).Error)

	resp, body = call(t, srv, http.MethodGet, "/schedule?date=2024-01-10", pat, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sched ScheduleResponse
	require.NoError(t, json.Unmarshal(body, &sched))
	assert.Equal(t, []string{"alice"}, sched.Caregivers)

	resp, body = call(t, srv, http.MethodPost, "/reservations", pat, ReserveRequest{Date: "2024-01-10", Vaccine: "Pfizer"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var res ReservationResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "alice", res.CaregiverUsername)
	assert.Equal(t, "Appointment ID 1, Caregiver username alice", res.Message)

	resp, body = call(t, srv, http.MethodPost, "/reservations", kim, ReserveRequest{Date: "2024-01-10", Vaccine: "Pfizer"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	e := decodeError(t, body)
	assert.Equal(t, string(apperr.KindNoCaregiverAvailable), e.Error)
	assert.Equal(t, "No caregiver is available", e.Details)

	resp, body = call(t, srv, http.MethodGet, "/appointments", pat, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &mine))
	assert.Equal(t, []AppointmentResponse{{ID: 1, VaccineName: "Pfizer", Date: "2024-01-10", CaregiverUsername: "alice"}}, mine)

	resp, body = call(t, srv, http.MethodGet, "/appointments", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var theirs []AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &theirs))
	assert.Equal(t, []AppointmentResponse{{ID: 1, VaccineName: "Pfizer", Date: "2024-01-10", PatientUsername: "pat"}}, theirs)

	resp, body = call(t, srv, http.MethodGet, "/appointments", kim, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))
}

func TestRoleAndAuthErrors(t *testing.T) {
	srv := newTestServer(t)
	cg := signUp(t, srv, identity.RoleCaregiver, "cg")
	pat := signUp(t, srv, identity.RolePatient, "pat")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   apperr.Kind
	}{
		{name: "reserve anonymous", method: http.MethodPost, path: "/reservations", body: ReserveRequest{Date: "2024-01-10", Vaccine: "Pfizer"}, status: http.StatusUnauthorized, kind: apperr.KindNotAuthenticated},
		{name: "reserve as caregiver", method: http.MethodPost, path: "/reservations", token: cg, body: ReserveRequest{Date: "2024-01-10", Vaccine: "Pfizer"}, status: http.StatusForbidden, kind: apperr.KindWrongRole},
		{name: "reserve bad date", method: http.MethodPost, path: "/reservations", token: pat, body: ReserveRequest{Date: "10/01/2024", Vaccine: "Pfizer"}, status: http.StatusBadRequest, kind: apperr.KindInvalidInput},
		{name: "reserve with no caregivers", method: http.MethodPost, path: "/reservations", token: pat, body: ReserveRequest{Date: "2024-01-10", Vaccine: "Pfizer"}, status: http.StatusConflict, kind: apperr.KindNoCaregiverAvailable},
		{name: "publish as patient", method: http.MethodPost, path: "/availability", token: pat, body: AvailabilityRequest{Date: "2024-01-10"}, status: http.StatusForbidden, kind: apperr.KindWrongRole},
		{name: "doses over limit", method: http.MethodPost, path: "/vaccines/Pfizer/doses", token: cg, body: AddDosesRequest{Count: math.MaxInt}, status: http.StatusBadRequest, kind: apperr.KindInvalidInput},
		{name: "negative doses", method: http.MethodPost, path: "/vaccines/Pfizer/doses", token: cg, body: AddDosesRequest{Count: -3}, status: http.StatusBadRequest, kind: apperr.KindInvalidInput},
		{name: "schedule anonymous", method: http.MethodGet, path: "/schedule?date=2024-01-10", status: http.StatusUnauthorized, kind: apperr.KindNotAuthenticated},
		{name: "appointments anonymous", method: http.MethodGet, path: "/appointments", status: http.StatusUnauthorized, kind: apperr.KindNotAuthenticated},
		{name: "unknown token", method: http.MethodGet, path: "/appointments", token: "nope", status: http.StatusUnauthorized, kind: apperr.KindNotAuthenticated},
		{name: "login while logged in", method: http.MethodPost, path: "/sessions", token: pat, body: LoginRequest{Role: "patient", Username: "pat", Password: "pw"}, status: http.StatusConflict, kind: apperr.KindConflict},
		{name: "login wrong password", method: http.MethodPost, path: "/sessions", body: LoginRequest{Role: "patient", Username: "pat", Password: "bad"}, status: http.StatusUnauthorized, kind: apperr.KindLoginFailed},
		{name: "duplicate username", method: http.MethodPost, path: "/patients", body: CredentialsRequest{Username: "pat", Password: "pw"}, status: http.StatusConflict, kind: apperr.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := call(t, srv, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, string(tt.kind), decodeError(t, body).Error)
		})
	}
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	pat := signUp(t, srv, identity.RolePatient, "pat")

	resp, _ := call(t, srv, http.MethodDelete, "/sessions", pat, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/appointments", pat, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodDelete, "/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// expiringSessions resolves tokens like its wrapped store but reports the
// session as already gone on delete.
type expiringSessions struct {
	identity.SessionStore
}

func (expiringSessions) Delete(context.Context, string) error {
	return identity.ErrSessionNotFound
}

func TestLogout_SessionAlreadyExpired(t *testing.T) {
	sessions := identity.NewMemorySessionStore()
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Identity:   identity.NewService(identity.NewMemoryRepository(), bcrypt.MinCost),
		Sessions:   expiringSessions{SessionStore: sessions},
		Scheduling: scheduling.NewService(scheduling.NewMemoryStore(), nil),
		Env:        "test",
		Version:    "test",
	}))
	t.Cleanup(srv.Close)

	pat := signUp(t, srv, identity.RolePatient, "pat")

	resp, _ := call(t, srv, http.MethodDelete, "/sessions", pat, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/patients", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		pinger Pinger
		status int
		want   string
	}{
		{name: "postgres up", pinger: stubPinger{}, status: http.StatusOK, want: "ok"},
		{name: "postgres down", pinger: stubPinger{err: errors.New("down")}, status: http.StatusServiceUnavailable, want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pinger, nil, "test", "v1")
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Status)
		})
	}

	t.Run("configured redis down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		mr.Close()

		h := NewHealthHandler(stubPinger{}, client, "test", "v1")
		rec := httptest.NewRecorder()
		h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "down", resp.Dependencies["redis"])
		assert.Equal(t, "ok", resp.Dependencies["postgres"])
	})

	srv := newTestServer(t)
	resp, body := call(t, srv, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","version":"test","env":"test"}`, string(body))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health/live", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(apperr.KindStoreUnavailable))
	assert.Equal(t, http.StatusConflict, StatusFor(apperr.KindInsufficientStock))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperr.Kind("MYSTERY")))
}
