/*
period.go - Billing period state machine

PURPOSE:
  Maintains the single active-month value that defines "now" for
  billing, independent of the real calendar. An operator can open next
  month's cycle early or step back to audit a prior one; the pointer
  only moves through these explicit operations.

STATE MACHINE:
  A totally ordered counter over (year, month) with one reflecting
  boundary at the bottom (the system start month) and none at the top.

    advance: m -> m+1
    rewind:  m -> m-1 if m-1 >= floor, else m (unchanged)
    reset:   m -> floor (performed store-side, combined with the
             ledger wipe so a partial reset is never observable)

  There is no jump-to-arbitrary-month operation: sequential steps or a
  full reset only.

FAILURE SEMANTICS:
  Rewind at the floor is a defined no-op, not an error. Callers disable
  the affordance via AtFloor, but the guard lives here too and does not
  rely on the call site.
*/
package billing

// BillingPeriod is the process-wide active-month pointer plus its
// fixed floor. It is a value type; operations return the next state.
type BillingPeriod struct {
	Active Month
	Floor  Month
}

// NewBillingPeriod starts a period at the floor.
func NewBillingPeriod(floor Month) BillingPeriod {
	return BillingPeriod{Active: floor, Floor: floor}
}

// Advance opens the following month's cycle. No upper bound.
func (p BillingPeriod) Advance() BillingPeriod {
	p.Active = p.Active.Next()
	return p
}

// Rewind steps back one month. Guarded: stepping below the floor is a
// silent no-op.
func (p BillingPeriod) Rewind() BillingPeriod {
	if prev := p.Active.Prev(); prev.AfterOrEqual(p.Floor) {
		p.Active = prev
	}
	return p
}

// AtFloor reports whether the active month is the system start month,
// used to disable the rewind affordance in callers.
func (p BillingPeriod) AtFloor() bool {
	return p.Active.Equal(p.Floor)
}

// Valid reports whether the pointer respects its floor. Snapshots from
// the external store are re-checked with this before use.
func (p BillingPeriod) Valid() bool {
	return p.Active.AfterOrEqual(p.Floor)
}

// Clamp pins an out-of-range pointer back to the floor. Used when a
// restored snapshot carries an active month below the system start.
func (p BillingPeriod) Clamp() BillingPeriod {
	if !p.Valid() {
		p.Active = p.Floor
	}
	return p
}
