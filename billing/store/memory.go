// Package store provides billing.Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/esaar/collection-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (testing, store-absent mode)
// =============================================================================

// Memory holds the whole state document in process. It also serves as
// the local-only fallback when no external store is configured: the
// engine re-derives everything from this snapshot the same way it
// would from a remote one.
type Memory struct {
	mu sync.RWMutex

	donors      map[billing.DonorID]billing.Donor
	users       map[billing.UserID]billing.User
	payments    []billing.PaymentRecord
	paymentIDs  map[billing.PaymentID]bool
	cities      []string
	activeMonth billing.Month

	adminPassword      string
	superAdminPassword string
}

// NewMemory creates an empty store with the active month at floor.
func NewMemory(floor billing.Month) *Memory {
	return &Memory{
		donors:      make(map[billing.DonorID]billing.Donor),
		users:       make(map[billing.UserID]billing.User),
		paymentIDs:  make(map[billing.PaymentID]bool),
		activeMonth: floor,
	}
}

func (m *Memory) Snapshot(_ context.Context) (billing.StateDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc := billing.StateDocument{
		Donors:             m.allDonorsLocked(),
		Collectors:         m.allUsersLocked(),
		Payments:           append([]billing.PaymentRecord{}, m.payments...),
		Cities:             append([]string{}, m.cities...),
		ActiveMonth:        m.activeMonth,
		AdminPassword:      m.adminPassword,
		SuperAdminPassword: m.superAdminPassword,
	}
	return doc, nil
}

// -----------------------------------------------------------------------------
// Donors
// -----------------------------------------------------------------------------

func (m *Memory) SaveDonor(_ context.Context, d billing.Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donors[d.ID] = d
	return nil
}

func (m *Memory) GetDonor(_ context.Context, id billing.DonorID) (billing.Donor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.donors[id]
	if !ok || d.Deleted {
		return billing.Donor{}, billing.ErrDonorNotFound
	}
	return d, nil
}

func (m *Memory) ListDonors(_ context.Context) ([]billing.Donor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []billing.Donor
	for _, d := range m.donors {
		if !d.Deleted {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) allDonorsLocked() []billing.Donor {
	out := make([]billing.Donor, 0, len(m.donors))
	for _, d := range m.donors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

func (m *Memory) SaveUser(_ context.Context, u billing.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id billing.UserID) (billing.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return billing.User{}, billing.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (billing.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return billing.User{}, billing.ErrUserNotFound
}

func (m *Memory) ListUsers(_ context.Context) ([]billing.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allUsersLocked(), nil
}

func (m *Memory) allUsersLocked() []billing.User {
	out := make([]billing.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) DeleteUser(_ context.Context, id billing.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return billing.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

// -----------------------------------------------------------------------------
// Payment ledger (append-only)
// -----------------------------------------------------------------------------

func (m *Memory) AppendPayment(_ context.Context, p billing.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paymentIDs[p.ID] {
		return billing.ErrDuplicatePayment
	}

	// Chronological insert keeps reads order-stable without a sort on
	// every load.
	i := sort.Search(len(m.payments), func(i int) bool {
		return m.payments[i].RecordedAt.After(p.RecordedAt)
	})
	m.payments = append(m.payments, billing.PaymentRecord{})
	copy(m.payments[i+1:], m.payments[i:])
	m.payments[i] = p

	m.paymentIDs[p.ID] = true
	return nil
}

func (m *Memory) ListPayments(_ context.Context) ([]billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]billing.PaymentRecord{}, m.payments...), nil
}

func (m *Memory) PaymentsByDonor(_ context.Context, id billing.DonorID) ([]billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []billing.PaymentRecord
	for _, p := range m.payments {
		if p.DonorID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Cities
// -----------------------------------------------------------------------------

func (m *Memory) ListCities(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.cities...), nil
}

func (m *Memory) AddCity(_ context.Context, city string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.cities {
		if c == city {
			return nil
		}
	}
	m.cities = append(m.cities, city)
	return nil
}

func (m *Memory) RemoveCity(_ context.Context, city string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.cities[:0]
	for _, c := range m.cities {
		if c != city {
			out = append(out, c)
		}
	}
	m.cities = out
	return nil
}

// -----------------------------------------------------------------------------
// Billing period pointer
// -----------------------------------------------------------------------------

func (m *Memory) ActiveMonth(_ context.Context) (billing.Month, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeMonth, nil
}

func (m *Memory) SetActiveMonth(_ context.Context, month billing.Month) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeMonth = month
	return nil
}

// -----------------------------------------------------------------------------
// Admin credentials
// -----------------------------------------------------------------------------

func (m *Memory) AdminPasswords(_ context.Context) (string, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adminPassword, m.superAdminPassword, nil
}

func (m *Memory) SetAdminPasswords(_ context.Context, admin, superAdmin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminPassword = admin
	m.superAdminPassword = superAdmin
	return nil
}

// -----------------------------------------------------------------------------
// Destructive operations
// -----------------------------------------------------------------------------

func (m *Memory) ClearPayments(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearPaymentsLocked()
	return nil
}

// ResetBaseline wipes the ledger and pins the active month to floor
// under one lock, so no caller observes a partial reset.
func (m *Memory) ResetBaseline(_ context.Context, floor billing.Month) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearPaymentsLocked()
	m.activeMonth = floor
	return nil
}

func (m *Memory) clearPaymentsLocked() {
	m.payments = nil
	m.paymentIDs = make(map[billing.PaymentID]bool)
}

// Restore replaces document fields wholesale. Nil slices and the zero
// month leave the existing field in place, matching the partial-patch
// contract of the shared store.
func (m *Memory) Restore(_ context.Context, doc billing.StateDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.Donors != nil {
		m.donors = make(map[billing.DonorID]billing.Donor, len(doc.Donors))
		for _, d := range doc.Donors {
			m.donors[d.ID] = d
		}
	}
	if doc.Collectors != nil {
		m.users = make(map[billing.UserID]billing.User, len(doc.Collectors))
		for _, u := range doc.Collectors {
			m.users[u.ID] = u
		}
	}
	if doc.Payments != nil {
		m.payments = nil
		m.paymentIDs = make(map[billing.PaymentID]bool)
		sorted := append([]billing.PaymentRecord{}, doc.Payments...)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
		})
		for _, p := range sorted {
			if m.paymentIDs[p.ID] {
				continue
			}
			m.payments = append(m.payments, p)
			m.paymentIDs[p.ID] = true
		}
	}
	if doc.Cities != nil {
		m.cities = append([]string{}, doc.Cities...)
	}
	if !doc.ActiveMonth.IsZero() {
		m.activeMonth = doc.ActiveMonth
	}
	if doc.AdminPassword != "" {
		m.adminPassword = doc.AdminPassword
	}
	if doc.SuperAdminPassword != "" {
		m.superAdminPassword = doc.SuperAdminPassword
	}
	return nil
}
