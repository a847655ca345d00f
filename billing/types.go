/*
Package billing provides the donation collection billing engine.

PURPOSE:
  This package contains the data model and algorithms for tracking a
  recurring-donor network: each donor owes a fixed pledge once per
  calendar month from enrollment onward, collectors record payments
  into an append-only ledger, and a donor's financial standing is
  always recomputed from the ledger rather than stored.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A currency quantity backed by decimal.Decimal
  - Donor: A recurring donor with a monthly pledge
  - PaymentRecord: An immutable ledger entry for a received payment
  - User: A credentialed actor (super admin, admin, or collector)

DESIGN PRINCIPLES:
  1. Immutability: Payment records are never edited, only appended;
     corrections are new records
  2. Precision: decimal.Decimal for money, never float64
  3. Derivation: Standing (owed, arrears, shortfall) is computed from
     {Donor, ledger, active month}, never persisted, so it cannot
     drift from source data

SEE ALSO:
  - calculator.go: Standing derivation
  - period.go: Active-month state machine
  - store.go: Persistence boundary for the shared state document
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Currency value (rupees)
// =============================================================================

type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

func NewAmountFromInt(value int) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value))}
}

func ZeroAmount() Amount { return Amount{Value: decimal.Zero} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) MulInt(n int) Amount       { return Amount{Value: a.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessOrEqual(b Amount) bool { return a.Value.LessThanOrEqual(b.Value) }

// ClampZero floors negative values at zero. Overpayment never produces
// negative debt; there is no credit-forward modeling.
func (a Amount) ClampZero() Amount {
	if a.Value.IsNegative() {
		return ZeroAmount()
	}
	return a
}

func (a Amount) String() string { return a.Value.String() }

func (a Amount) MarshalJSON() ([]byte, error) { return a.Value.MarshalJSON() }

func (a *Amount) UnmarshalJSON(data []byte) error { return a.Value.UnmarshalJSON(data) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DonorID string
type UserID string
type PaymentID string

// =============================================================================
// ROLES - Closed variant, three tiers
// =============================================================================

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleCollector  Role = "COLLECTOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleCollector:
		return true
	}
	return false
}

// =============================================================================
// USER - Credentialed actor
// =============================================================================

// User is a collector or admin account held in the shared state
// document. Passwords are stored flat; credential hardening is out of
// scope for this system.
type User struct {
	ID       UserID `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	City     string `json:"city,omitempty"`
}

// =============================================================================
// DONOR
// =============================================================================

// Donor is a recurring donor. MonthlyPledge is owed once per active
// month from EnrollmentMonth onward.
//
// Removal is a soft delete: the Deleted tombstone keeps historical
// ledger entries attributable instead of orphaning them.
type Donor struct {
	ID                  DonorID `json:"id"`
	Name                string  `json:"name"`
	Phone               string  `json:"phone"`
	Address             string  `json:"address"`
	City                string  `json:"city"`
	MonthlyPledge       Amount  `json:"monthlyAmount"`
	ReferredBy          string  `json:"referredBy"`
	AssignedCollectorID UserID  `json:"assignedCollectorId"` // empty = unassigned/office
	JoinDate            string  `json:"joinDate"`            // YYYY-MM-DD
	Deleted             bool    `json:"deleted,omitempty"`
}

// EnrollmentMonth derives the month billing begins from the join date.
// A missing or malformed join date falls back to the given floor, which
// matches how the system treats donors predating its own history.
func (d Donor) EnrollmentMonth(floor Month) Month {
	if len(d.JoinDate) >= 7 {
		if m, err := ParseMonth(d.JoinDate[:7]); err == nil {
			return m
		}
	}
	return floor
}

// =============================================================================
// PAYMENT RECORD - Immutable ledger entry
// =============================================================================

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodOnline PaymentMethod = "ONLINE"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodOnline
}

// PaymentRecord is one received payment. Once appended it is never
// edited; a mistaken entry is corrected by recording a new one.
type PaymentRecord struct {
	ID            PaymentID     `json:"id"`
	DonorID       DonorID       `json:"donorId"`
	DonorName     string        `json:"donorName"`
	Amount        Amount        `json:"amount"`
	CollectorID   UserID        `json:"collectorId"`
	CollectorName string        `json:"collectorName"`
	RecordedAt    time.Time     `json:"date"`
	Method        PaymentMethod `json:"paymentMethod"`
	ReceiptSent   bool          `json:"receiptSent"`
}

// PaymentMonth is the calendar month the payment credits.
func (p PaymentRecord) PaymentMonth() Month {
	return MonthOf(p.RecordedAt)
}
