/*
calculator.go - Donor standing derivation

PURPOSE:
  Computes a donor's financial standing for the active collection
  month: total owed since enrollment, arrears carried from prior
  months, amount paid in the active month, and the current-month
  shortfall. This is the central calculation that answers "where does
  this donor stand?"

KEY INSIGHT:
  Standing is derived, never stored. The calculator is a pure function
  of {donor, ledger, active month, system start month}; re-running it
  on the same inputs always yields the same result, and there is no
  cached output that can drift from the ledger.

THE ARREARS / SHORTFALL SPLIT:
  Arrears answers "what is owed from the past, excluding this cycle"
  and flags chronically delinquent donors. CurrentShortfall answers
  "is this cycle's pledge fully met". Both are needed: a donor can be
  paid up for the month while carrying old debt, or debt-free with a
  partial payment this month.

  The donor's binary status is deliberately coarser than the
  shortfall: ANY payment in the active month marks the donor
  collected, even a partial one. Status boards rely on this asymmetry.

CLAMPING:
  All owed figures floor at zero. Overpayment never produces negative
  debt and there is no credit carried forward.

SEE ALSO:
  - month.go: Period counting
  - period.go: The active-month pointer this calculation reads
*/
package billing

// =============================================================================
// STANDING - Derived financial snapshot for one donor
// =============================================================================

type Standing struct {
	DonorID     DonorID
	ActiveMonth Month

	// TotalDue is the cumulative unpaid obligation from the donor's
	// effective start through the active month.
	TotalDue Amount

	// Arrears is unpaid obligation from months strictly before the
	// active one. Zero by convention when the active month is the
	// system start month.
	Arrears Amount

	// PaidThisMonth is the sum of ledger entries dated in the active
	// month.
	PaidThisMonth Amount

	// CurrentShortfall is the unmet part of this month's pledge.
	CurrentShortfall Amount
}

// Collected reports the donor's binary status for list and filter
// views: any payment in the active month counts, even if it does not
// cover the full pledge.
func (s Standing) Collected() bool {
	return s.PaidThisMonth.IsPositive()
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator derives donor standings. SystemStart is the fixed floor:
// the earliest month the system considers billable.
type Calculator struct {
	SystemStart Month
}

// Standing computes the donor's standing at the given active month
// from the full payment ledger. Entries for other donors are ignored;
// entries dated before the donor's effective start are excluded from
// credit (a correction recorded "in the past" cannot retroactively
// satisfy an obligation).
//
// Total over its domain: every input yields a defined result, with
// clamping in place of errors.
func (c Calculator) Standing(donor Donor, ledger []PaymentRecord, active Month) Standing {
	s := Standing{
		DonorID:          donor.ID,
		ActiveMonth:      active,
		TotalDue:         ZeroAmount(),
		Arrears:          ZeroAmount(),
		PaidThisMonth:    ZeroAmount(),
		CurrentShortfall: ZeroAmount(),
	}

	// A donor who joined before the system start is billed from the
	// system start; one who joined after, from their own join month.
	effectiveStart := MaxMonth(donor.EnrollmentMonth(c.SystemStart), c.SystemStart)

	// Billing has not begun for this donor relative to the active
	// period. Normal state for a future-dated donor, not an error.
	if active.Before(effectiveStart) {
		return s
	}

	periodCount := MonthsBetweenInclusive(effectiveStart, active)
	totalExpected := donor.MonthlyPledge.MulInt(periodCount)

	totalPaid := ZeroAmount()
	paidBeforeActive := ZeroAmount()
	for _, p := range ledger {
		if p.DonorID != donor.ID {
			continue
		}
		pm := p.PaymentMonth()
		if pm.Before(effectiveStart) {
			continue
		}
		totalPaid = totalPaid.Add(p.Amount)
		if pm.Before(active) {
			paidBeforeActive = paidBeforeActive.Add(p.Amount)
		}
		if pm.Equal(active) {
			s.PaidThisMonth = s.PaidThisMonth.Add(p.Amount)
		}
	}

	s.TotalDue = totalExpected.Sub(totalPaid).ClampZero()

	// There is no "before the beginning": at the system start month
	// arrears is exactly zero regardless of ledger contents.
	if !active.Equal(c.SystemStart) {
		expectedBefore := donor.MonthlyPledge.MulInt(periodCount - 1)
		s.Arrears = expectedBefore.Sub(paidBeforeActive).ClampZero()
	}

	s.CurrentShortfall = donor.MonthlyPledge.Sub(s.PaidThisMonth).ClampZero()

	return s
}
