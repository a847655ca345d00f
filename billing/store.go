/*
store.go - Persistence boundary for the shared state document

PURPOSE:
  Defines the interface between the billing engine and whatever holds
  the canonical {donors, collectors, payment ledger, cities, active
  month} document. The engine re-derives all display state from
  whatever snapshot the store returns and never assumes its last
  in-memory computation is still valid after an external update.

APPEND-ONLY CONTRACT:
  The payment ledger has exactly one write operation, AppendPayment.
  No update or delete methods exist for payments. The single sanctioned
  exception is ResetBaseline, which wipes the ledger as part of
  re-baselining the whole system, and Restore, which replaces the
  document wholesale from a backup.

ATOMIC RESET:
  ResetBaseline must set the active month to the floor AND clear the
  ledger as one transaction. A partial reset (month moved but ledger
  kept, or vice versa) must never be observable.

CONCURRENCY:
  Each mutation is a whole-field replace; concurrent writers resolve
  last-write-wins at the store layer. The engine makes no cross-actor
  ordering guarantee and must not assume one.

IMPLEMENTATIONS:
  - billing/store: in-memory (testing, and store-absent local mode)
  - store/sqlite:  SQLite-backed

SEE ALSO:
  - snapshot.go: The document type and its export/import format
*/
package billing

import "context"

// Store persists the shared state document.
type Store interface {
	// Snapshot returns the whole document.
	Snapshot(ctx context.Context) (StateDocument, error)

	// Donors. SaveDonor inserts or replaces by id; removal is a soft
	// delete via the tombstone flag, so ListDonors excludes deleted
	// donors while the ledger stays attributable.
	SaveDonor(ctx context.Context, d Donor) error
	GetDonor(ctx context.Context, id DonorID) (Donor, error)
	ListDonors(ctx context.Context) ([]Donor, error)

	// Users (collectors and admins).
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id UserID) error

	// Payment ledger, append-only.
	AppendPayment(ctx context.Context, p PaymentRecord) error
	ListPayments(ctx context.Context) ([]PaymentRecord, error)
	PaymentsByDonor(ctx context.Context, id DonorID) ([]PaymentRecord, error)

	// Cities (collection areas).
	ListCities(ctx context.Context) ([]string, error)
	AddCity(ctx context.Context, city string) error
	RemoveCity(ctx context.Context, city string) error

	// Billing period pointer.
	ActiveMonth(ctx context.Context) (Month, error)
	SetActiveMonth(ctx context.Context, m Month) error

	// Admin credentials held in the document.
	AdminPasswords(ctx context.Context) (admin, superAdmin string, err error)
	SetAdminPasswords(ctx context.Context, admin, superAdmin string) error

	// ClearPayments wipes the ledger only, leaving the active month
	// untouched.
	ClearPayments(ctx context.Context) error

	// ResetBaseline atomically wipes the ledger and sets the active
	// month to floor. Irreversible; callers gate it behind explicit
	// confirmation.
	ResetBaseline(ctx context.Context, floor Month) error

	// Restore replaces the targeted document fields wholesale from a
	// backup. Zero-value fields in doc are left as they are.
	Restore(ctx context.Context, doc StateDocument) error
}
