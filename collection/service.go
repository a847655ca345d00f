/*
service.go - Collection workflow operations

PURPOSE:
  The operations actors perform against the billing engine: donor and
  collector management, payment recording, billing-period stepping,
  and the destructive maintenance operations. Each mutation writes
  only the fields it changes through the Store and recomputes nothing;
  standings are derived on read.

PERMISSIONS:
  Every operation names the required permission up front and returns
  ErrPermissionDenied before touching the store. The confirmation
  prompt for destructive operations is the caller's contract; the
  service only guarantees atomicity.

SEE ALSO:
  - report.go: Read-side rollups built on the same snapshot
  - roles.go:  The permission predicates used here
*/
package collection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/esaar/collection-engine/billing"
)

// Service coordinates workflow operations over the shared store.
type Service struct {
	store billing.Store
	calc  billing.Calculator

	// now is injectable for tests; payment timestamps come from here.
	now func() time.Time
}

// NewService creates a Service with the given system start month.
func NewService(store billing.Store, systemStart billing.Month) *Service {
	return &Service{
		store: store,
		calc:  billing.Calculator{SystemStart: systemStart},
		now:   time.Now,
	}
}

// WithClock overrides the wall clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SystemStart returns the billing floor.
func (s *Service) SystemStart() billing.Month { return s.calc.SystemStart }

// Calculator exposes the pure calculator for callers that already hold
// a snapshot.
func (s *Service) Calculator() billing.Calculator { return s.calc }

// =============================================================================
// BILLING PERIOD
// =============================================================================

// Period returns the current billing period pointer, clamped to the
// floor in case the store holds an out-of-range month.
func (s *Service) Period(ctx context.Context) (billing.BillingPeriod, error) {
	active, err := s.store.ActiveMonth(ctx)
	if err != nil {
		return billing.BillingPeriod{}, err
	}
	p := billing.BillingPeriod{Active: active, Floor: s.calc.SystemStart}
	if p.Active.IsZero() {
		p.Active = p.Floor
	}
	return p.Clamp(), nil
}

// AdvanceMonth opens the next month's collection cycle. No upper bound.
func (s *Service) AdvanceMonth(ctx context.Context, actor billing.User) (billing.Month, error) {
	if !CanMovePeriod(actor.Role) {
		return billing.Month{}, billing.ErrPermissionDenied
	}
	p, err := s.Period(ctx)
	if err != nil {
		return billing.Month{}, err
	}
	next := p.Advance()
	if err := s.store.SetActiveMonth(ctx, next.Active); err != nil {
		return billing.Month{}, err
	}
	return next.Active, nil
}

// RewindMonth steps back one month. At the floor this is a silent
// no-op, not an error: callers surface it as a disabled affordance.
func (s *Service) RewindMonth(ctx context.Context, actor billing.User) (billing.Month, error) {
	if !CanMovePeriod(actor.Role) {
		return billing.Month{}, billing.ErrPermissionDenied
	}
	p, err := s.Period(ctx)
	if err != nil {
		return billing.Month{}, err
	}
	prev := p.Rewind()
	if prev.Active.Equal(p.Active) {
		return p.Active, nil
	}
	if err := s.store.SetActiveMonth(ctx, prev.Active); err != nil {
		return billing.Month{}, err
	}
	return prev.Active, nil
}

// ResetToStart re-baselines the whole system: active month back to the
// floor and the entire ledger cleared, atomically. Irreversible; the
// caller must have collected explicit confirmation.
func (s *Service) ResetToStart(ctx context.Context, actor billing.User) error {
	if !CanResetSystem(actor.Role) {
		return billing.ErrPermissionDenied
	}
	return s.store.ResetBaseline(ctx, s.calc.SystemStart)
}

// WipeHistory clears the ledger only, leaving the active month where
// it is.
func (s *Service) WipeHistory(ctx context.Context, actor billing.User) error {
	if !CanResetSystem(actor.Role) {
		return billing.ErrPermissionDenied
	}
	return s.store.ClearPayments(ctx)
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment appends a ledger entry for the donor, attributed to
// the acting collector. A zero amount falls back to the donor's
// monthly pledge, the common case of a full collection visit.
//
// The calculator sums multiple payments in the same month; no
// one-payment-per-month rule is enforced here or anywhere.
func (s *Service) RecordPayment(ctx context.Context, actor billing.User, donorID billing.DonorID, amount billing.Amount, method billing.PaymentMethod) (billing.PaymentRecord, error) {
	if !CanRecordPayment(actor.Role) {
		return billing.PaymentRecord{}, billing.ErrPermissionDenied
	}
	if !method.Valid() {
		return billing.PaymentRecord{}, fmt.Errorf("%w: payment method %q", billing.ErrInvalidInput, method)
	}

	donor, err := s.store.GetDonor(ctx, donorID)
	if err != nil {
		return billing.PaymentRecord{}, err
	}

	if amount.IsZero() {
		amount = donor.MonthlyPledge
	}
	if amount.IsNegative() {
		return billing.PaymentRecord{}, fmt.Errorf("%w: negative payment amount", billing.ErrInvalidInput)
	}

	rec := billing.PaymentRecord{
		ID:            billing.PaymentID(uuid.NewString()),
		DonorID:       donor.ID,
		DonorName:     donor.Name,
		Amount:        amount,
		CollectorID:   actor.ID,
		CollectorName: actor.Name,
		RecordedAt:    s.now().UTC(),
		Method:        method,
		ReceiptSent:   true,
	}
	if err := s.store.AppendPayment(ctx, rec); err != nil {
		return billing.PaymentRecord{}, err
	}
	return rec, nil
}

// Payments returns the full ledger in chronological order, the admin
// donation-history view.
func (s *Service) Payments(ctx context.Context) ([]billing.PaymentRecord, error) {
	return s.store.ListPayments(ctx)
}

// =============================================================================
// DONORS
// =============================================================================

// NewDonor carries the fields an admin supplies when enrolling a
// donor.
type NewDonor struct {
	Name                string
	Phone               string
	Address             string
	City                string
	MonthlyPledge       billing.Amount
	ReferredBy          string
	AssignedCollectorID billing.UserID
	JoinDate            string // YYYY-MM-DD; empty = today
}

// CreateDonor enrolls a donor. The pledge must not be negative; a zero
// pledge is allowed and such donors are never flagged delinquent.
func (s *Service) CreateDonor(ctx context.Context, actor billing.User, in NewDonor) (billing.Donor, error) {
	if !CanManageDonors(actor.Role) {
		return billing.Donor{}, billing.ErrPermissionDenied
	}
	if strings.TrimSpace(in.Name) == "" {
		return billing.Donor{}, fmt.Errorf("%w: donor name required", billing.ErrInvalidInput)
	}
	if in.MonthlyPledge.IsNegative() {
		return billing.Donor{}, fmt.Errorf("%w: negative pledge", billing.ErrInvalidInput)
	}
	joinDate := in.JoinDate
	if joinDate == "" {
		joinDate = s.now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", joinDate); err != nil {
		return billing.Donor{}, fmt.Errorf("%w: join date %q", billing.ErrInvalidInput, in.JoinDate)
	}
	referredBy := in.ReferredBy
	if referredBy == "" {
		referredBy = "Self"
	}

	d := billing.Donor{
		ID:                  billing.DonorID(uuid.NewString()),
		Name:                in.Name,
		Phone:               in.Phone,
		Address:             in.Address,
		City:                in.City,
		MonthlyPledge:       in.MonthlyPledge,
		ReferredBy:          referredBy,
		AssignedCollectorID: in.AssignedCollectorID,
		JoinDate:            joinDate,
	}
	if err := s.store.SaveDonor(ctx, d); err != nil {
		return billing.Donor{}, err
	}
	return d, nil
}

// UpdateDonor replaces a donor's mutable fields. Identity and the
// tombstone flag are preserved from the stored record.
func (s *Service) UpdateDonor(ctx context.Context, actor billing.User, d billing.Donor) error {
	if !CanManageDonors(actor.Role) {
		return billing.ErrPermissionDenied
	}
	existing, err := s.store.GetDonor(ctx, d.ID)
	if err != nil {
		return err
	}
	if d.MonthlyPledge.IsNegative() {
		return fmt.Errorf("%w: negative pledge", billing.ErrInvalidInput)
	}
	d.Deleted = existing.Deleted
	return s.store.SaveDonor(ctx, d)
}

// RemoveDonor soft-deletes: the record stays with a tombstone so the
// donor's ledger entries remain attributable.
func (s *Service) RemoveDonor(ctx context.Context, actor billing.User, id billing.DonorID) error {
	if !CanManageDonors(actor.Role) {
		return billing.ErrPermissionDenied
	}
	d, err := s.store.GetDonor(ctx, id)
	if err != nil {
		return err
	}
	d.Deleted = true
	return s.store.SaveDonor(ctx, d)
}

// Donors lists active (non-deleted) donors.
func (s *Service) Donors(ctx context.Context) ([]billing.Donor, error) {
	return s.store.ListDonors(ctx)
}

// DonorByID looks up a single active donor.
func (s *Service) DonorByID(ctx context.Context, id billing.DonorID) (billing.Donor, error) {
	return s.store.GetDonor(ctx, id)
}

// DonorStanding derives one donor's standing at the current active
// month.
func (s *Service) DonorStanding(ctx context.Context, id billing.DonorID) (billing.Standing, error) {
	donor, err := s.store.GetDonor(ctx, id)
	if err != nil {
		return billing.Standing{}, err
	}
	ledger, err := s.store.ListPayments(ctx)
	if err != nil {
		return billing.Standing{}, err
	}
	p, err := s.Period(ctx)
	if err != nil {
		return billing.Standing{}, err
	}
	return s.calc.Standing(donor, ledger, p.Active), nil
}

// DonorLedger returns a donor's payment history plus lifetime total.
func (s *Service) DonorLedger(ctx context.Context, id billing.DonorID) ([]billing.PaymentRecord, billing.Amount, error) {
	if _, err := s.store.GetDonor(ctx, id); err != nil {
		return nil, billing.Amount{}, err
	}
	records, err := s.store.PaymentsByDonor(ctx, id)
	if err != nil {
		return nil, billing.Amount{}, err
	}
	total := billing.ZeroAmount()
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return records, total, nil
}

// =============================================================================
// USERS
// =============================================================================

// NewUser carries the fields supplied when creating an account.
type NewUser struct {
	Name     string
	Phone    string
	Username string
	Password string
	City     string
}

// CreateCollector adds a collector account.
func (s *Service) CreateCollector(ctx context.Context, actor billing.User, in NewUser) (billing.User, error) {
	if !CanManageDonors(actor.Role) {
		return billing.User{}, billing.ErrPermissionDenied
	}
	return s.createUser(ctx, in, billing.RoleCollector)
}

// CreateAdmin adds an admin account. Super admin only.
func (s *Service) CreateAdmin(ctx context.Context, actor billing.User, in NewUser) (billing.User, error) {
	if !CanResetSystem(actor.Role) {
		return billing.User{}, billing.ErrPermissionDenied
	}
	return s.createUser(ctx, in, billing.RoleAdmin)
}

// checkUsername normalizes and validates a username for create and
// edit alike. selfID is the account being edited (empty on create) so
// a user keeping their own name does not count as a duplicate.
func (s *Service) checkUsername(ctx context.Context, raw string, selfID billing.UserID) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if username == "" {
		return "", fmt.Errorf("%w: username required", billing.ErrInvalidInput)
	}
	if username == superAdminUsername || username == adminUsername {
		return "", fmt.Errorf("%w: username %q is reserved", billing.ErrInvalidInput, username)
	}
	if other, err := s.store.GetUserByUsername(ctx, username); err == nil && other.ID != selfID {
		return "", fmt.Errorf("%w: username %q taken", billing.ErrInvalidInput, username)
	}
	return username, nil
}

func (s *Service) createUser(ctx context.Context, in NewUser, role billing.Role) (billing.User, error) {
	if in.Name == "" {
		return billing.User{}, fmt.Errorf("%w: name required", billing.ErrInvalidInput)
	}
	username, err := s.checkUsername(ctx, in.Username, "")
	if err != nil {
		return billing.User{}, err
	}

	u := billing.User{
		ID:       billing.UserID(uuid.NewString()),
		Name:     in.Name,
		Phone:    in.Phone,
		Role:     role,
		Username: username,
		Password: in.Password,
		City:     in.City,
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return billing.User{}, err
	}
	return u, nil
}

// UpdateUser replaces an account's profile fields. The username goes
// through the same normalization and reserved/duplicate checks as
// account creation, and an empty incoming password keeps the stored
// one instead of resetting the account to the legacy default.
func (s *Service) UpdateUser(ctx context.Context, actor billing.User, u billing.User) error {
	if !CanManageDonors(actor.Role) {
		return billing.ErrPermissionDenied
	}
	existing, err := s.store.GetUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if u.Name == "" {
		return fmt.Errorf("%w: name required", billing.ErrInvalidInput)
	}
	username, err := s.checkUsername(ctx, u.Username, u.ID)
	if err != nil {
		return err
	}
	u.Username = username
	u.Role = existing.Role // role changes go through account creation, not edits
	if u.Password == "" {
		u.Password = existing.Password
	}
	return s.store.SaveUser(ctx, u)
}

// DeleteUser removes an account. Donors assigned to it simply become
// unassigned at display time; assignments are not rewritten.
func (s *Service) DeleteUser(ctx context.Context, actor billing.User, id billing.UserID) error {
	if !CanManageDonors(actor.Role) {
		return billing.ErrPermissionDenied
	}
	return s.store.DeleteUser(ctx, id)
}

// ChangeOwnPassword lets any logged-in collector rotate their own
// password.
func (s *Service) ChangeOwnPassword(ctx context.Context, actor billing.User, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: empty password", billing.ErrInvalidInput)
	}
	u, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return err
	}
	u.Password = newPassword
	return s.store.SaveUser(ctx, u)
}

// ChangeAdminPasswords rotates the passwords of the two fixed accounts.
// Only the super admin may do this. An empty field leaves that
// account's password untouched, so either can be rotated on its own.
func (s *Service) ChangeAdminPasswords(ctx context.Context, actor billing.User, adminPassword, superAdminPassword string) error {
	if !CanResetSystem(actor.Role) {
		return billing.ErrPermissionDenied
	}
	if adminPassword == "" && superAdminPassword == "" {
		return fmt.Errorf("%w: no password given", billing.ErrInvalidInput)
	}
	currentAdmin, currentSuper, err := s.store.AdminPasswords(ctx)
	if err != nil {
		return err
	}
	if adminPassword == "" {
		adminPassword = currentAdmin
	}
	if superAdminPassword == "" {
		superAdminPassword = currentSuper
	}
	return s.store.SetAdminPasswords(ctx, adminPassword, superAdminPassword)
}

// Users lists all accounts.
func (s *Service) Users(ctx context.Context) ([]billing.User, error) {
	return s.store.ListUsers(ctx)
}

// =============================================================================
// CITIES
// =============================================================================

func (s *Service) Cities(ctx context.Context) ([]string, error) {
	return s.store.ListCities(ctx)
}

func (s *Service) AddCity(ctx context.Context, actor billing.User, city string) error {
	if !CanManageDonors(actor.Role) {
		return billing.ErrPermissionDenied
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return fmt.Errorf("%w: empty city", billing.ErrInvalidInput)
	}
	return s.store.AddCity(ctx, city)
}

func (s *Service) RemoveCity(ctx context.Context, actor billing.User, city string) error {
	if !CanManageDonors(actor.Role) {
		return billing.ErrPermissionDenied
	}
	return s.store.RemoveCity(ctx, city)
}

// =============================================================================
// BACKUP / RESTORE
// =============================================================================

// ExportState serializes the full state document. Pure serialization,
// no recomputation.
func (s *Service) ExportState(ctx context.Context, actor billing.User) ([]byte, error) {
	if !CanManageDonors(actor.Role) {
		return nil, billing.ErrPermissionDenied
	}
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Export()
}

// ImportState replaces the targeted document fields wholesale from a
// backup. Super admin only; irreversible.
func (s *Service) ImportState(ctx context.Context, actor billing.User, data []byte) error {
	if !CanResetSystem(actor.Role) {
		return billing.ErrPermissionDenied
	}
	doc, err := billing.ImportStateDocument(data)
	if err != nil {
		return err
	}
	return s.store.Restore(ctx, doc)
}
