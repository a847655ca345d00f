/*
Package sqlite provides a SQLite-backed implementation of billing.Store.

PURPOSE:
  Persists the shared state document (donors, users, payment ledger,
  cities, active month, admin credentials). The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The payments table has no UPDATE path and exactly two DELETE paths,
  both sanctioned by the store contract: ResetBaseline/ClearPayments
  (system re-baseline) and Restore (wholesale backup import).

ATOMIC RESET:
  ResetBaseline runs the ledger wipe and the active-month write inside
  one SQL transaction, so a partial reset is never observable even if
  the process dies mid-operation.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/esaar.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - billing/store.go: The interface contract
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/esaar/collection-engine/billing"
)

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// ephemeral database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS donors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		city TEXT,
		monthly_pledge TEXT NOT NULL,
		referred_by TEXT,
		assigned_collector_id TEXT,
		join_date TEXT,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		role TEXT NOT NULL,
		username TEXT NOT NULL,
		password TEXT,
		city TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username COLLATE NOCASE);

	-- Payment ledger (append-only)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		donor_id TEXT NOT NULL,
		donor_name TEXT,
		amount TEXT NOT NULL,
		collector_id TEXT,
		collector_name TEXT,
		recorded_at TEXT NOT NULL,
		method TEXT NOT NULL,
		receipt_sent INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_payments_donor_date ON payments(donor_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_payments_date ON payments(recorded_at);

	CREATE TABLE IF NOT EXISTS cities (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL DEFAULT 0
	);

	-- Singleton key/value state: active_month, admin passwords
	CREATE TABLE IF NOT EXISTS system_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func (s *Store) Snapshot(ctx context.Context) (billing.StateDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc billing.StateDocument
	var err error

	if doc.Donors, err = s.queryDonors(ctx, `SELECT `+donorCols+` FROM donors ORDER BY id`); err != nil {
		return billing.StateDocument{}, err
	}
	if doc.Collectors, err = s.queryUsers(ctx, `SELECT `+userCols+` FROM users ORDER BY id`); err != nil {
		return billing.StateDocument{}, err
	}
	if doc.Payments, err = s.queryPayments(ctx, `SELECT `+paymentCols+` FROM payments ORDER BY recorded_at, id`); err != nil {
		return billing.StateDocument{}, err
	}
	if doc.Cities, err = s.listCitiesLocked(ctx); err != nil {
		return billing.StateDocument{}, err
	}
	if doc.ActiveMonth, err = s.activeMonthLocked(ctx); err != nil {
		return billing.StateDocument{}, err
	}
	doc.AdminPassword, _ = s.stateValue(ctx, "admin_password")
	doc.SuperAdminPassword, _ = s.stateValue(ctx, "super_admin_password")
	return doc, nil
}

// =============================================================================
// DONORS
// =============================================================================

const donorCols = `id, name, phone, address, city, monthly_pledge, referred_by, assigned_collector_id, join_date, deleted`

func (s *Store) SaveDonor(ctx context.Context, d billing.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donors (`+donorCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, phone=excluded.phone, address=excluded.address,
			city=excluded.city, monthly_pledge=excluded.monthly_pledge,
			referred_by=excluded.referred_by,
			assigned_collector_id=excluded.assigned_collector_id,
			join_date=excluded.join_date, deleted=excluded.deleted`,
		string(d.ID), d.Name, d.Phone, d.Address, d.City,
		d.MonthlyPledge.Value.String(), d.ReferredBy,
		string(d.AssignedCollectorID), d.JoinDate, boolToInt(d.Deleted),
	)
	return err
}

func (s *Store) GetDonor(ctx context.Context, id billing.DonorID) (billing.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donors, err := s.queryDonors(ctx,
		`SELECT `+donorCols+` FROM donors WHERE id = ? AND deleted = 0`, string(id))
	if err != nil {
		return billing.Donor{}, err
	}
	if len(donors) == 0 {
		return billing.Donor{}, billing.ErrDonorNotFound
	}
	return donors[0], nil
}

func (s *Store) ListDonors(ctx context.Context) ([]billing.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryDonors(ctx, `SELECT `+donorCols+` FROM donors WHERE deleted = 0 ORDER BY id`)
}

func (s *Store) queryDonors(ctx context.Context, query string, args ...any) ([]billing.Donor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Donor
	for rows.Next() {
		var d billing.Donor
		var pledge string
		var collector sql.NullString
		var deleted int
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Address, &d.City,
			&pledge, &d.ReferredBy, &collector, &d.JoinDate, &deleted); err != nil {
			return nil, err
		}
		val, err := decimal.NewFromString(pledge)
		if err != nil {
			return nil, fmt.Errorf("corrupt pledge for donor %s: %w", d.ID, err)
		}
		d.MonthlyPledge = billing.Amount{Value: val}
		d.AssignedCollectorID = billing.UserID(collector.String)
		d.Deleted = deleted != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

const userCols = `id, name, phone, role, username, password, city`

func (s *Store) SaveUser(ctx context.Context, u billing.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, phone=excluded.phone, role=excluded.role,
			username=excluded.username, password=excluded.password, city=excluded.city`,
		string(u.ID), u.Name, u.Phone, string(u.Role), u.Username, u.Password, u.City,
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id billing.UserID) (billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oneUser(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, string(id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oneUser(ctx,
		`SELECT `+userCols+` FROM users WHERE username = ? COLLATE NOCASE`,
		strings.TrimSpace(username))
}

func (s *Store) oneUser(ctx context.Context, query string, args ...any) (billing.User, error) {
	users, err := s.queryUsers(ctx, query, args...)
	if err != nil {
		return billing.User{}, err
	}
	if len(users) == 0 {
		return billing.User{}, billing.ErrUserNotFound
	}
	return users[0], nil
}

func (s *Store) ListUsers(ctx context.Context) ([]billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryUsers(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]billing.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.User
	for rows.Next() {
		var u billing.User
		var password, city sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.Username, &password, &city); err != nil {
			return nil, err
		}
		u.Password = password.String
		u.City = city.String
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, id billing.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrUserNotFound
	}
	return nil
}

// =============================================================================
// PAYMENT LEDGER (append-only)
// =============================================================================

const paymentCols = `id, donor_id, donor_name, amount, collector_id, collector_name, recorded_at, method, receipt_sent`

func (s *Store) AppendPayment(ctx context.Context, p billing.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.DonorID), p.DonorName, p.Amount.Value.String(),
		string(p.CollectorID), p.CollectorName,
		p.RecordedAt.UTC().Format(time.RFC3339), string(p.Method),
		boolToInt(p.ReceiptSent),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return billing.ErrDuplicatePayment
	}
	return err
}

func (s *Store) ListPayments(ctx context.Context) ([]billing.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPayments(ctx, `SELECT `+paymentCols+` FROM payments ORDER BY recorded_at, id`)
}

func (s *Store) PaymentsByDonor(ctx context.Context, id billing.DonorID) ([]billing.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPayments(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE donor_id = ? ORDER BY recorded_at, id`,
		string(id))
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]billing.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.PaymentRecord
	for rows.Next() {
		var p billing.PaymentRecord
		var amount, recordedAt string
		var receiptSent int
		if err := rows.Scan(&p.ID, &p.DonorID, &p.DonorName, &amount,
			&p.CollectorID, &p.CollectorName, &recordedAt, &p.Method, &receiptSent); err != nil {
			return nil, err
		}
		val, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for payment %s: %w", p.ID, err)
		}
		p.Amount = billing.Amount{Value: val}
		if p.RecordedAt, err = time.Parse(time.RFC3339, recordedAt); err != nil {
			return nil, fmt.Errorf("corrupt timestamp for payment %s: %w", p.ID, err)
		}
		p.ReceiptSent = receiptSent != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// CITIES
// =============================================================================

func (s *Store) ListCities(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCitiesLocked(ctx)
}

func (s *Store) listCitiesLocked(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM cities ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) AddCity(ctx context.Context, city string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cities (name, position)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM cities))
		ON CONFLICT(name) DO NOTHING`, city)
	return err
}

func (s *Store) RemoveCity(ctx context.Context, city string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM cities WHERE name = ?`, city)
	return err
}

// =============================================================================
// BILLING PERIOD POINTER
// =============================================================================

func (s *Store) ActiveMonth(ctx context.Context) (billing.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeMonthLocked(ctx)
}

func (s *Store) activeMonthLocked(ctx context.Context) (billing.Month, error) {
	v, err := s.stateValue(ctx, "active_month")
	if err != nil || v == "" {
		return billing.Month{}, err
	}
	return billing.ParseMonth(v)
}

func (s *Store) SetActiveMonth(ctx context.Context, m billing.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStateValue(ctx, s.db, "active_month", m.String())
}

// =============================================================================
// ADMIN CREDENTIALS
// =============================================================================

func (s *Store) AdminPasswords(ctx context.Context) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, err := s.stateValue(ctx, "admin_password")
	if err != nil {
		return "", "", err
	}
	superAdmin, err := s.stateValue(ctx, "super_admin_password")
	if err != nil {
		return "", "", err
	}
	return admin, superAdmin, nil
}

func (s *Store) SetAdminPasswords(ctx context.Context, admin, superAdmin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setStateValue(ctx, s.db, "admin_password", admin); err != nil {
		return err
	}
	return s.setStateValue(ctx, s.db, "super_admin_password", superAdmin)
}

// =============================================================================
// DESTRUCTIVE OPERATIONS
// =============================================================================

func (s *Store) ClearPayments(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM payments`)
	return err
}

// ResetBaseline wipes the ledger and sets the active month to floor in
// one SQL transaction.
func (s *Store) ResetBaseline(ctx context.Context, floor billing.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments`); err != nil {
		return err
	}
	if err := s.setStateValue(ctx, tx, "active_month", floor.String()); err != nil {
		return err
	}
	return tx.Commit()
}

// Restore replaces the targeted document fields wholesale inside one
// transaction. Nil slices and the zero month leave the field alone.
func (s *Store) Restore(ctx context.Context, doc billing.StateDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if doc.Donors != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM donors`); err != nil {
			return err
		}
		for _, d := range doc.Donors {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO donors (`+donorCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				string(d.ID), d.Name, d.Phone, d.Address, d.City,
				d.MonthlyPledge.Value.String(), d.ReferredBy,
				string(d.AssignedCollectorID), d.JoinDate, boolToInt(d.Deleted),
			); err != nil {
				return err
			}
		}
	}
	if doc.Collectors != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return err
		}
		for _, u := range doc.Collectors {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO users (`+userCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				string(u.ID), u.Name, u.Phone, string(u.Role), u.Username, u.Password, u.City,
			); err != nil {
				return err
			}
		}
	}
	if doc.Payments != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments`); err != nil {
			return err
		}
		for _, p := range doc.Payments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO payments (`+paymentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING`,
				string(p.ID), string(p.DonorID), p.DonorName, p.Amount.Value.String(),
				string(p.CollectorID), p.CollectorName,
				p.RecordedAt.UTC().Format(time.RFC3339), string(p.Method),
				boolToInt(p.ReceiptSent),
			); err != nil {
				return err
			}
		}
	}
	if doc.Cities != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cities`); err != nil {
			return err
		}
		for i, city := range doc.Cities {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cities (name, position) VALUES (?, ?)
				ON CONFLICT(name) DO NOTHING`, city, i+1,
			); err != nil {
				return err
			}
		}
	}
	if !doc.ActiveMonth.IsZero() {
		if err := s.setStateValue(ctx, tx, "active_month", doc.ActiveMonth.String()); err != nil {
			return err
		}
	}
	if doc.AdminPassword != "" {
		if err := s.setStateValue(ctx, tx, "admin_password", doc.AdminPassword); err != nil {
			return err
		}
	}
	if doc.SuperAdminPassword != "" {
		if err := s.setStateValue(ctx, tx, "super_admin_password", doc.SuperAdminPassword); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) stateValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *Store) setStateValue(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO system_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
