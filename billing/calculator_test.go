package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/esaar/collection-engine/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func month(y int, m time.Month) billing.Month { return billing.NewMonth(y, m) }

func rupees(v float64) billing.Amount { return billing.NewAmount(v) }

func testDonor(id string, pledge float64, joinDate string) billing.Donor {
	return billing.Donor{
		ID:            billing.DonorID(id),
		Name:          "Donor " + id,
		MonthlyPledge: rupees(pledge),
		JoinDate:      joinDate,
	}
}

// payment builds a ledger entry dated mid-month.
func payment(donorID string, amount float64, y int, m time.Month) billing.PaymentRecord {
	return billing.PaymentRecord{
		ID:         billing.PaymentID(donorID + "-" + billing.NewMonth(y, m).String()),
		DonorID:    billing.DonorID(donorID),
		Amount:     rupees(amount),
		RecordedAt: time.Date(y, m, 15, 12, 0, 0, 0, time.UTC),
		Method:     billing.MethodCash,
	}
}

func assertAmount(t *testing.T, expected float64, got billing.Amount, label string) {
	t.Helper()
	assert.True(t, got.Equal(rupees(expected)), "%s: expected %v, got %v", label, expected, got)
}

// =============================================================================
// STANDING DERIVATION
// =============================================================================

func TestStanding_WorkedExample(t *testing.T) {
	// GIVEN: System starts 2026-01; donor joins 2026-03 with a 1000
	//        pledge; pays 500 in March and 1000 in April
	// WHEN: Deriving standing with the active month at 2026-05
	// THEN: Expected 3000 over Mar..May, paid 1500, so TotalDue 1500;
	//       expected-before 2000 vs paid-before 1500, so Arrears 500;
	//       nothing paid in May, so shortfall is the full pledge

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "2026-03-10")
	ledger := []billing.PaymentRecord{
		payment("d1", 500, 2026, time.March),
		payment("d1", 1000, 2026, time.April),
	}

	st := calc.Standing(donor, ledger, month(2026, time.May))

	assertAmount(t, 1500, st.TotalDue, "TotalDue")
	assertAmount(t, 500, st.Arrears, "Arrears")
	assertAmount(t, 0, st.PaidThisMonth, "PaidThisMonth")
	assertAmount(t, 1000, st.CurrentShortfall, "CurrentShortfall")
	assert.False(t, st.Collected())
}

func TestStanding_JoinedBeforeSystemStart_BilledFromFloor(t *testing.T) {
	// GIVEN: Donor joined years before the system start
	// WHEN: Deriving standing two months into the system
	// THEN: Obligation counts from the floor, not the join date

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 500, "2019-06-01")

	st := calc.Standing(donor, nil, month(2026, time.February))

	assertAmount(t, 1000, st.TotalDue, "TotalDue") // Jan + Feb
	assertAmount(t, 500, st.Arrears, "Arrears")    // Jan only
}

func TestStanding_FutureDatedDonor_ZeroEverything(t *testing.T) {
	// GIVEN: Donor whose join month is after the active month
	// WHEN: Deriving standing
	// THEN: All figures zero; not an error

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "2026-09-01")

	st := calc.Standing(donor, nil, month(2026, time.May))

	assertAmount(t, 0, st.TotalDue, "TotalDue")
	assertAmount(t, 0, st.Arrears, "Arrears")
	assertAmount(t, 0, st.PaidThisMonth, "PaidThisMonth")
	assertAmount(t, 0, st.CurrentShortfall, "CurrentShortfall")
}

func TestStanding_AtSystemStart_ArrearsAlwaysZero(t *testing.T) {
	// GIVEN: Active month is the system start month itself
	// WHEN: Deriving standing with an unpaid pledge
	// THEN: Arrears is zero by convention; TotalDue still owes January

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "2025-01-01")

	st := calc.Standing(donor, nil, month(2026, time.January))

	assertAmount(t, 0, st.Arrears, "Arrears")
	assertAmount(t, 1000, st.TotalDue, "TotalDue")
	assertAmount(t, 1000, st.CurrentShortfall, "CurrentShortfall")
}

func TestStanding_PaymentBeforeEffectiveStart_Excluded(t *testing.T) {
	// GIVEN: A ledger entry dated before the donor's effective start
	// WHEN: Deriving standing
	// THEN: The entry gives no credit anywhere

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "2026-03-01")
	ledger := []billing.PaymentRecord{
		payment("d1", 5000, 2026, time.February), // predates enrollment
	}

	st := calc.Standing(donor, ledger, month(2026, time.March))

	assertAmount(t, 1000, st.TotalDue, "TotalDue")
	assertAmount(t, 0, st.PaidThisMonth, "PaidThisMonth")
}

func TestStanding_Overpayment_ClampsToZero(t *testing.T) {
	// GIVEN: Donor paid more than ever owed
	// WHEN: Deriving standing
	// THEN: No negative debt, no credit carried forward

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "2026-01-01")
	ledger := []billing.PaymentRecord{
		payment("d1", 10000, 2026, time.January),
	}

	st := calc.Standing(donor, ledger, month(2026, time.March))

	assertAmount(t, 0, st.TotalDue, "TotalDue")
	assertAmount(t, 0, st.Arrears, "Arrears")
	// Overpayment in a past month does not satisfy this month's pledge.
	assertAmount(t, 1000, st.CurrentShortfall, "CurrentShortfall")
}

func TestStanding_PartialPayment_CollectedButShortfallRemains(t *testing.T) {
	// GIVEN: A partial payment in the active month
	// WHEN: Deriving standing
	// THEN: Binary status is collected while the shortfall shows the gap

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "2026-01-01")
	ledger := []billing.PaymentRecord{
		payment("d1", 300, 2026, time.February),
	}

	st := calc.Standing(donor, ledger, month(2026, time.February))

	assert.True(t, st.Collected())
	assertAmount(t, 300, st.PaidThisMonth, "PaidThisMonth")
	assertAmount(t, 700, st.CurrentShortfall, "CurrentShortfall")
}

func TestStanding_MultiplePaymentsSameMonth_Summed(t *testing.T) {
	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "2026-01-01")
	ledger := []billing.PaymentRecord{
		payment("d1", 400, 2026, time.January),
		{
			ID:         "d1-second",
			DonorID:    "d1",
			Amount:     rupees(600),
			RecordedAt: time.Date(2026, time.January, 28, 9, 0, 0, 0, time.UTC),
			Method:     billing.MethodOnline,
		},
	}

	st := calc.Standing(donor, ledger, month(2026, time.January))

	assertAmount(t, 1000, st.PaidThisMonth, "PaidThisMonth")
	assertAmount(t, 0, st.CurrentShortfall, "CurrentShortfall")
	assertAmount(t, 0, st.TotalDue, "TotalDue")
}

func TestStanding_OtherDonorsLedgerIgnored(t *testing.T) {
	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "2026-01-01")
	ledger := []billing.PaymentRecord{
		payment("d2", 1000, 2026, time.January),
	}

	st := calc.Standing(donor, ledger, month(2026, time.January))

	assertAmount(t, 0, st.PaidThisMonth, "PaidThisMonth")
	assertAmount(t, 1000, st.TotalDue, "TotalDue")
}

func TestStanding_ZeroPledge_NeverDelinquent(t *testing.T) {
	// GIVEN: A donor with a zero pledge
	// WHEN: Deriving standing months later with no payments
	// THEN: Nothing is owed

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 0, "2026-01-01")

	st := calc.Standing(donor, nil, month(2026, time.December))

	assertAmount(t, 0, st.TotalDue, "TotalDue")
	assertAmount(t, 0, st.Arrears, "Arrears")
	assertAmount(t, 0, st.CurrentShortfall, "CurrentShortfall")
	assert.False(t, st.Collected())
}

func TestStanding_MalformedJoinDate_FallsBackToFloor(t *testing.T) {
	// GIVEN: A donor record with an unparseable join date
	// WHEN: Deriving standing
	// THEN: Billing starts at the system start month

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 1000, "not-a-date")

	st := calc.Standing(donor, nil, month(2026, time.February))

	assertAmount(t, 2000, st.TotalDue, "TotalDue")
}

func TestStanding_ObligationAccumulatesMonthly(t *testing.T) {
	// GIVEN: A donor with pledge P and an empty ledger
	// WHEN: Stepping the active month from the effective start
	// THEN: The total owed is P at the start and P*(n+1) after n steps

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 800, "2026-02-01")

	active := month(2026, time.February)
	for n := 0; n < 6; n++ {
		st := calc.Standing(donor, nil, active)
		assertAmount(t, 800*float64(n+1), st.TotalDue, "TotalDue at step")
		active = active.Next()
	}
}

func TestStanding_Deterministic(t *testing.T) {
	// GIVEN: A fixed snapshot
	// WHEN: Deriving twice
	// THEN: Identical results; standing is pure derivation

	calc := billing.Calculator{SystemStart: month(2026, time.January)}
	donor := testDonor("d1", 750, "2026-02-01")
	ledger := []billing.PaymentRecord{
		payment("d1", 750, 2026, time.February),
		payment("d1", 200, 2026, time.March),
	}

	a := calc.Standing(donor, ledger, month(2026, time.April))
	b := calc.Standing(donor, ledger, month(2026, time.April))
	assert.Equal(t, a, b)
}
