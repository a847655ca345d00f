package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esaar/collection-engine/billing"
	"github.com/esaar/collection-engine/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func floorMonth() billing.Month { return billing.NewMonth(2026, time.January) }

func newTestStore() *store.Memory {
	return store.NewMemory(floorMonth())
}

func donor(id string) billing.Donor {
	return billing.Donor{
		ID:            billing.DonorID(id),
		Name:          "Donor " + id,
		MonthlyPledge: billing.NewAmount(1000),
		JoinDate:      "2026-01-15",
	}
}

func record(id, donorID string, at time.Time) billing.PaymentRecord {
	return billing.PaymentRecord{
		ID:         billing.PaymentID(id),
		DonorID:    billing.DonorID(donorID),
		Amount:     billing.NewAmount(500),
		RecordedAt: at,
		Method:     billing.MethodCash,
	}
}

// =============================================================================
// DONORS AND SOFT DELETE
// =============================================================================

func TestMemory_DonorSoftDelete(t *testing.T) {
	// GIVEN: A saved donor with a tombstone
	// WHEN: Reading through the ordinary accessors and the snapshot
	// THEN: Lists and lookups exclude the donor; the snapshot keeps it
	//       so ledger entries stay attributable

	ctx := context.Background()
	s := newTestStore()

	d := donor("d1")
	require.NoError(t, s.SaveDonor(ctx, d))

	d.Deleted = true
	require.NoError(t, s.SaveDonor(ctx, d))

	_, err := s.GetDonor(ctx, "d1")
	assert.ErrorIs(t, err, billing.ErrDonorNotFound)

	listed, err := s.ListDonors(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	doc, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Donors, 1)
	assert.True(t, doc.Donors[0].Deleted)
}

func TestMemory_GetDonor_Unknown(t *testing.T) {
	_, err := newTestStore().GetDonor(context.Background(), "missing")
	assert.ErrorIs(t, err, billing.ErrDonorNotFound)
}

// =============================================================================
// APPEND-ONLY LEDGER
// =============================================================================

func TestMemory_AppendPayment_RejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	p := record("p1", "d1", time.Now().UTC())
	require.NoError(t, s.AppendPayment(ctx, p))
	assert.ErrorIs(t, s.AppendPayment(ctx, p), billing.ErrDuplicatePayment)

	all, err := s.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemory_ListPayments_ChronologicalRegardlessOfInsertOrder(t *testing.T) {
	// GIVEN: Payments appended out of date order
	// WHEN: Listing
	// THEN: Entries come back in timestamp order

	ctx := context.Background()
	s := newTestStore()

	base := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendPayment(ctx, record("p3", "d1", base.AddDate(0, 0, 2))))
	require.NoError(t, s.AppendPayment(ctx, record("p1", "d1", base)))
	require.NoError(t, s.AppendPayment(ctx, record("p2", "d1", base.AddDate(0, 0, 1))))

	all, err := s.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, billing.PaymentID("p1"), all[0].ID)
	assert.Equal(t, billing.PaymentID("p2"), all[1].ID)
	assert.Equal(t, billing.PaymentID("p3"), all[2].ID)
}

func TestMemory_PaymentsByDonor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	now := time.Now().UTC()
	require.NoError(t, s.AppendPayment(ctx, record("p1", "d1", now)))
	require.NoError(t, s.AppendPayment(ctx, record("p2", "d2", now.Add(time.Minute))))

	mine, err := s.PaymentsByDonor(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, billing.PaymentID("p1"), mine[0].ID)
}

// =============================================================================
// DESTRUCTIVE OPERATIONS
// =============================================================================

func TestMemory_ResetBaseline_WipesLedgerAndPinsMonth(t *testing.T) {
	// GIVEN: A store with payments and the month advanced
	// WHEN: Resetting to baseline
	// THEN: Ledger empty, month at floor, donors untouched

	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.SaveDonor(ctx, donor("d1")))
	require.NoError(t, s.AppendPayment(ctx, record("p1", "d1", time.Now().UTC())))
	require.NoError(t, s.SetActiveMonth(ctx, floorMonth().AddMonths(4)))

	require.NoError(t, s.ResetBaseline(ctx, floorMonth()))

	all, err := s.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	active, err := s.ActiveMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, floorMonth(), active)

	donors, err := s.ListDonors(ctx)
	require.NoError(t, err)
	assert.Len(t, donors, 1)

	// A previously used payment id is appendable again after the wipe.
	assert.NoError(t, s.AppendPayment(ctx, record("p1", "d1", time.Now().UTC())))
}

func TestMemory_ClearPayments_LeavesMonthAlone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	moved := floorMonth().AddMonths(2)
	require.NoError(t, s.SetActiveMonth(ctx, moved))
	require.NoError(t, s.AppendPayment(ctx, record("p1", "d1", time.Now().UTC())))

	require.NoError(t, s.ClearPayments(ctx))

	all, err := s.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	active, err := s.ActiveMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, moved, active)
}

// =============================================================================
// RESTORE
// =============================================================================

func TestMemory_Restore_NilFieldsLeaveExistingState(t *testing.T) {
	// GIVEN: A populated store and a backup that only carries cities
	// WHEN: Restoring
	// THEN: Cities are replaced wholesale; everything else survives

	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.SaveDonor(ctx, donor("d1")))
	require.NoError(t, s.AddCity(ctx, "Karachi"))
	require.NoError(t, s.SetActiveMonth(ctx, floorMonth().AddMonths(1)))

	require.NoError(t, s.Restore(ctx, billing.StateDocument{
		Cities: []string{"Lahore", "Multan"},
	}))

	cities, err := s.ListCities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lahore", "Multan"}, cities)

	donors, err := s.ListDonors(ctx)
	require.NoError(t, err)
	assert.Len(t, donors, 1)

	active, err := s.ActiveMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, floorMonth().AddMonths(1), active)
}

func TestMemory_Restore_DeduplicatesPaymentIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	now := time.Now().UTC()
	require.NoError(t, s.Restore(ctx, billing.StateDocument{
		Payments: []billing.PaymentRecord{
			record("p1", "d1", now),
			record("p1", "d1", now.Add(time.Hour)),
			record("p2", "d1", now.Add(2*time.Hour)),
		},
	}))

	all, err := s.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// USERS AND CITIES
// =============================================================================

func TestMemory_UserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	u := billing.User{ID: "u1", Name: "Ali", Role: billing.RoleCollector, Username: "ali"}
	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.GetUserByUsername(ctx, "ALI") // case-insensitive match
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, s.DeleteUser(ctx, "u1"))
	_, err = s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, billing.ErrUserNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, "u1"), billing.ErrUserNotFound)
}

func TestMemory_Cities_AddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.AddCity(ctx, "Karachi"))
	require.NoError(t, s.AddCity(ctx, "Karachi"))
	require.NoError(t, s.AddCity(ctx, "Lahore"))

	cities, err := s.ListCities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Karachi", "Lahore"}, cities)

	require.NoError(t, s.RemoveCity(ctx, "Karachi"))
	cities, err = s.ListCities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lahore"}, cities)
}
