/*
handlers.go - HTTP handlers for the collection dashboard API

PURPOSE:
  Exposes the billing engine and workflow layer over REST. Handles
  request parsing, the flat bearer-token session check, JSON
  serialization, and error-to-status mapping. All domain decisions
  live in collection.Service.

ERROR HANDLING:
  Errors map to JSON bodies with appropriate status:
  - 400: invalid input, missing confirmation
  - 401: bad credentials / missing session
  - 403: role not permitted
  - 404: donor or user not found
  - 409: duplicate ledger append
  - 500: store failures

SESSIONS:
  Login yields an opaque in-memory token. This is deliberately flat -
  credential hardening is out of scope - but it keeps the acting user
  and their role server-side instead of trusting a client-sent role.

SEE ALSO:
  - dto.go: Wire types
  - server.go: Router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/esaar/collection-engine/billing"
	"github.com/esaar/collection-engine/collection"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *collection.Service
	Auth    collection.Authenticator
	Log     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]billing.User
}

// NewHandler creates a handler around the service.
func NewHandler(svc *collection.Service, auth collection.Authenticator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Service:  svc,
		Auth:     auth,
		Log:      log,
		sessions: make(map[string]billing.User),
	}
}

// =============================================================================
// AUTH
// =============================================================================

// Login checks credentials and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Incorrect credentials", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Login failed", err)
		return
	}

	token := uuid.NewString()
	h.mu.Lock()
	h.sessions[token] = user
	h.mu.Unlock()

	h.Log.Info("login", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserDTO(user)})
}

// Logout drops the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.mu.Lock()
		delete(h.sessions, token)
		h.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

// actor resolves the session user, writing 401 on failure.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (billing.User, bool) {
	token := bearerToken(r)
	h.mu.RLock()
	user, ok := h.sessions[token]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not logged in", nil)
		return billing.User{}, false
	}
	return user, true
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// =============================================================================
// BILLING PERIOD
// =============================================================================

// GetPeriod returns the active month, the floor, and whether rewind is
// currently a no-op (for disabling the affordance client-side).
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	p, err := h.Service.Period(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

func (h *Handler) AdvanceMonth(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	month, err := h.Service.AdvanceMonth(r.Context(), actor)
	if err != nil {
		writeDomainError(w, "Failed to advance month", err)
		return
	}
	h.Log.Info("month advanced", zap.String("activeMonth", month.String()), zap.String("actor", actor.Username))
	h.writePeriod(w, r)
}

// RewindMonth steps back. At the floor the month is simply unchanged;
// the response reports it, the status is still 200.
func (h *Handler) RewindMonth(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	month, err := h.Service.RewindMonth(r.Context(), actor)
	if err != nil {
		writeDomainError(w, "Failed to rewind month", err)
		return
	}
	h.Log.Info("month rewound", zap.String("activeMonth", month.String()), zap.String("actor", actor.Username))
	h.writePeriod(w, r)
}

// ResetSystem is the master reset: month back to the floor, ledger
// wiped, atomically. Requires confirm=true in the body.
func (h *Handler) ResetSystem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if !confirmed(r) {
		writeError(w, http.StatusBadRequest, "Reset is irreversible and requires confirmation", nil)
		return
	}
	if err := h.Service.ResetToStart(r.Context(), actor); err != nil {
		writeDomainError(w, "Failed to reset system", err)
		return
	}
	h.Log.Warn("system reset to baseline", zap.String("actor", actor.Username))
	h.writePeriod(w, r)
}

// WipeHistory clears the ledger only. Requires confirm=true.
func (h *Handler) WipeHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if !confirmed(r) {
		writeError(w, http.StatusBadRequest, "Wipe is irreversible and requires confirmation", nil)
		return
	}
	if err := h.Service.WipeHistory(r.Context(), actor); err != nil {
		writeDomainError(w, "Failed to wipe history", err)
		return
	}
	h.Log.Warn("payment history wiped", zap.String("actor", actor.Username))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Period(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// =============================================================================
// DONORS
// =============================================================================

func (h *Handler) ListDonors(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	donors, err := h.Service.Donors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list donors", err)
		return
	}
	dtos := make([]DonorDTO, len(donors))
	for i, d := range donors {
		dtos[i] = toDonorDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateDonor(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req SaveDonorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	donor, err := h.Service.CreateDonor(r.Context(), actor, collection.NewDonor{
		Name:                req.Name,
		Phone:               req.Phone,
		Address:             req.Address,
		City:                req.City,
		MonthlyPledge:       billing.NewAmount(req.MonthlyPledge),
		ReferredBy:          req.ReferredBy,
		AssignedCollectorID: billing.UserID(req.AssignedCollectorID),
		JoinDate:            req.JoinDate,
	})
	if err != nil {
		writeDomainError(w, "Failed to create donor", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDonorDTO(donor))
}

func (h *Handler) UpdateDonor(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req SaveDonorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	donor := billing.Donor{
		ID:                  billing.DonorID(chi.URLParam(r, "id")),
		Name:                req.Name,
		Phone:               req.Phone,
		Address:             req.Address,
		City:                req.City,
		MonthlyPledge:       billing.NewAmount(req.MonthlyPledge),
		ReferredBy:          req.ReferredBy,
		AssignedCollectorID: billing.UserID(req.AssignedCollectorID),
		JoinDate:            req.JoinDate,
	}
	if err := h.Service.UpdateDonor(r.Context(), actor, donor); err != nil {
		writeDomainError(w, "Failed to update donor", err)
		return
	}
	writeJSON(w, http.StatusOK, toDonorDTO(donor))
}

func (h *Handler) RemoveDonor(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id := billing.DonorID(chi.URLParam(r, "id"))
	if err := h.Service.RemoveDonor(r.Context(), actor, id); err != nil {
		writeDomainError(w, "Failed to remove donor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDonorStanding(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	standing, err := h.Service.DonorStanding(r.Context(), billing.DonorID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to compute standing", err)
		return
	}
	writeJSON(w, http.StatusOK, toStandingDTO(standing))
}

func (h *Handler) GetDonorLedger(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	records, total, err := h.Service.DonorLedger(r.Context(), billing.DonorID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to load ledger", err)
		return
	}
	dtos := make([]PaymentDTO, len(records))
	for i, rec := range records {
		dtos[i] = toPaymentDTO(rec)
	}
	lifetime, _ := total.Value.Float64()
	writeJSON(w, http.StatusOK, map[string]any{
		"records":       dtos,
		"lifetimeTotal": lifetime,
	})
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment appends a ledger entry and returns it along with the
// WhatsApp receipt link the client can open.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := h.Service.RecordPayment(r.Context(), actor,
		billing.DonorID(req.DonorID), billing.NewAmount(req.Amount),
		billing.PaymentMethod(req.Method))
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	dto := toPaymentDTO(rec)
	if donor, err := h.Service.DonorByID(r.Context(), rec.DonorID); err == nil {
		dto.ReceiptLink = collection.ReceiptLink(donor, rec.Amount)
	}
	h.Log.Info("payment recorded",
		zap.String("donor", string(rec.DonorID)),
		zap.String("amount", rec.Amount.String()),
		zap.String("method", string(rec.Method)),
		zap.String("collector", rec.CollectorName))
	writeJSON(w, http.StatusCreated, dto)
}

// ListPayments returns the whole ledger, newest-last.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	records, err := h.Service.Payments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(records))
	for i, rec := range records {
		dtos[i] = toPaymentDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	summary, err := h.Service.DashboardSummary(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetCityReport(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	report, err := h.Service.CityReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build city report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) GetStatusBoard(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	filter := collection.StatusFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = collection.FilterAll
	}
	rows, err := h.Service.StatusBoard(r.Context(), r.URL.Query().Get("city"), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build status board", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetVisitList returns the logged-in collector's pending visits.
func (h *Handler) GetVisitList(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	donors, err := h.Service.VisitList(r.Context(), actor.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build visit list", err)
		return
	}
	dtos := make([]DonorDTO, len(donors))
	for i, d := range donors {
		dtos[i] = toDonorDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMyHistory returns the logged-in collector's collections for the
// active month.
func (h *Handler) GetMyHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	records, err := h.Service.CollectorHistory(r.Context(), actor.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	dtos := make([]PaymentDTO, len(records))
	for i, rec := range records {
		dtos[i] = toPaymentDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	users, err := h.Service.Users(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCollector(w http.ResponseWriter, r *http.Request) {
	h.createUser(w, r, false)
}

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	h.createUser(w, r, true)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request, admin bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in := collection.NewUser{
		Name:     req.Name,
		Phone:    req.Phone,
		Username: req.Username,
		Password: req.Password,
		City:     req.City,
	}
	var (
		user billing.User
		err  error
	)
	if admin {
		user, err = h.Service.CreateAdmin(r.Context(), actor, in)
	} else {
		user, err = h.Service.CreateCollector(r.Context(), actor, in)
	}
	if err != nil {
		writeDomainError(w, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	u := billing.User{
		ID:       billing.UserID(chi.URLParam(r, "id")),
		Name:     req.Name,
		Phone:    req.Phone,
		Username: req.Username,
		Password: req.Password,
		City:     req.City,
	}
	if err := h.Service.UpdateUser(r.Context(), actor, u); err != nil {
		writeDomainError(w, "Failed to update user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteUser(r.Context(), actor, billing.UserID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Service.ChangeOwnPassword(r.Context(), actor, req.NewPassword); err != nil {
		writeDomainError(w, "Failed to change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangeAdminPasswords(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req AdminPasswordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Service.ChangeAdminPasswords(r.Context(), actor, req.AdminPassword, req.SuperAdminPassword); err != nil {
		writeDomainError(w, "Failed to change admin passwords", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CITIES
// =============================================================================

func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	cities, err := h.Service.Cities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cities", err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

func (h *Handler) AddCity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Service.AddCity(r.Context(), actor, req.Name); err != nil {
		writeDomainError(w, "Failed to add city", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) RemoveCity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.Service.RemoveCity(r.Context(), actor, chi.URLParam(r, "name")); err != nil {
		writeDomainError(w, "Failed to remove city", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BACKUP / RESTORE
// =============================================================================

// ExportState streams the full state document as a JSON backup.
func (h *Handler) ExportState(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	data, err := h.Service.ExportState(r.Context(), actor)
	if err != nil {
		writeDomainError(w, "Failed to export state", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="esaar_backup.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportState restores from a backup, replacing targeted fields
// wholesale. Requires the X-Confirm header since the body is the
// backup itself.
func (h *Handler) ImportState(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if r.Header.Get("X-Confirm") != "true" {
		writeError(w, http.StatusBadRequest, "Restore is irreversible and requires confirmation", nil)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read backup", err)
		return
	}
	if err := h.Service.ImportState(r.Context(), actor, data); err != nil {
		writeDomainError(w, "Failed to restore state", err)
		return
	}
	h.Log.Warn("state restored from backup", zap.String("actor", actor.Username))
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func confirmed(r *http.Request) bool {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return false
	}
	return req.Confirm
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}

// writeDomainError maps domain errors to status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, billing.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, message, err)
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, billing.ErrDuplicatePayment):
		writeError(w, http.StatusConflict, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
