package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/esaar/collection-engine/api"
	"github.com/esaar/collection-engine/billing"
	"github.com/esaar/collection-engine/billing/store"
	"github.com/esaar/collection-engine/collection"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	floor := billing.NewMonth(2026, time.January)
	mem := store.NewMemory(floor)
	svc := collection.NewService(mem, floor).
		WithClock(func() time.Time {
			return time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
		})
	handler := api.NewHandler(svc, collection.Authenticator{Store: mem}, zap.NewNop())
	srv := api.NewServer(":0", handler, zap.NewNop())

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &testAPI{t: t, server: ts}
}

func (a *testAPI) login(username, password string) *http.Response {
	body, _ := json.Marshal(api.LoginRequest{Username: username, Password: password})
	resp, err := http.Post(a.server.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(a.t, err)
	return resp
}

func (a *testAPI) loginAs(username, password string) {
	resp := a.login(username, password)
	defer resp.Body.Close()
	require.Equal(a.t, http.StatusOK, resp.StatusCode)

	var lr api.LoginResponse
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&lr))
	require.NotEmpty(a.t, lr.Token)
	a.token = lr.Token
}

func (a *testAPI) do(method, path string, payload any) *http.Response {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(a.t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, body)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// AUTH
// =============================================================================

func TestAPI_Login_DefaultAdmin(t *testing.T) {
	a := newTestAPI(t)

	resp := a.login("admin", "admin")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lr api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lr))
	assert.Equal(t, "ADMIN", lr.User.Role)
	assert.NotEmpty(t, lr.Token)
}

func TestAPI_Login_BadCredentials(t *testing.T) {
	a := newTestAPI(t)

	resp := a.login("admin", "wrong")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_RequestWithoutSession_Unauthorized(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodGet, "/api/donors", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_AdminPasswordRotation(t *testing.T) {
	a := newTestAPI(t)

	// Admins cannot rotate the fixed accounts.
	a.loginAs("admin", "admin")
	resp := a.do(http.MethodPost, "/api/users/admin-passwords", api.AdminPasswordsRequest{AdminPassword: "rotated"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	a.loginAs("superadmin", "superadmin")
	resp = a.do(http.MethodPost, "/api/users/admin-passwords", api.AdminPasswordsRequest{AdminPassword: "rotated"})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = a.login("admin", "admin")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.login("admin", "rotated")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// DONOR AND PAYMENT FLOW
// =============================================================================

func TestAPI_DonorPaymentFlow(t *testing.T) {
	// GIVEN: A logged-in admin
	// WHEN: Creating a donor, recording a payment, reading standing
	// THEN: Each step round-trips through the wire format

	a := newTestAPI(t)
	a.loginAs("admin", "admin")

	resp := a.do(http.MethodPost, "/api/donors", api.SaveDonorRequest{
		Name:          "Ahmed",
		Phone:         "03001234567",
		City:          "Karachi",
		MonthlyPledge: 1000,
		JoinDate:      "2026-01-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	donor := decode[api.DonorDTO](t, resp)
	assert.NotEmpty(t, donor.ID)
	assert.Equal(t, "Self", donor.ReferredBy)

	// Amount omitted: the full pledge is recorded.
	resp = a.do(http.MethodPost, "/api/payments", api.RecordPaymentRequest{
		DonorID: donor.ID,
		Method:  "CASH",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pay := decode[api.PaymentDTO](t, resp)
	assert.Equal(t, float64(1000), pay.Amount)
	assert.Contains(t, pay.ReceiptLink, "wa.me/923001234567")

	resp = a.do(http.MethodGet, fmt.Sprintf("/api/donors/%s/standing", donor.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	standing := decode[api.StandingDTO](t, resp)
	assert.True(t, standing.Collected)
	assert.Equal(t, float64(0), standing.CurrentShortfall)
	assert.Equal(t, "2026-01", standing.ActiveMonth)
}

func TestAPI_RecordPayment_UnknownDonor_NotFound(t *testing.T) {
	a := newTestAPI(t)
	a.loginAs("admin", "admin")

	resp := a.do(http.MethodPost, "/api/payments", api.RecordPaymentRequest{
		DonorID: "ghost", Method: "CASH",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// PERIOD AND PERMISSIONS
// =============================================================================

func TestAPI_PeriodAdvanceRewind(t *testing.T) {
	a := newTestAPI(t)
	a.loginAs("admin", "admin")

	resp := a.do(http.MethodGet, "/api/period", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[api.PeriodDTO](t, resp)
	assert.Equal(t, "2026-01", p.ActiveMonth)
	assert.True(t, p.AtFloor)

	resp = a.do(http.MethodPost, "/api/period/advance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p = decode[api.PeriodDTO](t, resp)
	assert.Equal(t, "2026-02", p.ActiveMonth)
	assert.False(t, p.AtFloor)

	// Rewind at the floor stays put with a 200.
	resp = a.do(http.MethodPost, "/api/period/rewind", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = a.do(http.MethodPost, "/api/period/rewind", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p = decode[api.PeriodDTO](t, resp)
	assert.Equal(t, "2026-01", p.ActiveMonth)
	assert.True(t, p.AtFloor)
}

func TestAPI_Reset_RequiresSuperAdminAndConfirmation(t *testing.T) {
	a := newTestAPI(t)

	a.loginAs("admin", "admin")
	resp := a.do(http.MethodPost, "/api/period/reset", api.ConfirmRequest{Confirm: true})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	a.loginAs("superadmin", "superadmin")
	resp = a.do(http.MethodPost, "/api/period/reset", api.ConfirmRequest{Confirm: false})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(http.MethodPost, "/api/period/reset", api.ConfirmRequest{Confirm: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[api.PeriodDTO](t, resp)
	assert.True(t, p.AtFloor)
}

func TestAPI_CollectorCannotManageDonors(t *testing.T) {
	a := newTestAPI(t)

	a.loginAs("admin", "admin")
	resp := a.do(http.MethodPost, "/api/users/collectors", api.CreateUserRequest{
		Name: "Bilal", Username: "bilal", Password: "pw",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	a.loginAs("bilal", "pw")
	resp = a.do(http.MethodPost, "/api/donors", api.SaveDonorRequest{Name: "X"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// =============================================================================
// BACKUP / RESTORE
// =============================================================================

func TestAPI_ExportState(t *testing.T) {
	a := newTestAPI(t)
	a.loginAs("admin", "admin")

	resp := a.do(http.MethodPost, "/api/donors", api.SaveDonorRequest{
		Name: "Ahmed", MonthlyPledge: 1000, JoinDate: "2026-01-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = a.do(http.MethodGet, "/api/state/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[map[string]json.RawMessage](t, resp)
	assert.Contains(t, doc, "donors")
	assert.Contains(t, doc, "donationHistory")
	assert.Contains(t, doc, "currentMonthKey")
}
