/*
month.go - Calendar month arithmetic

PURPOSE:
  The billing engine never works at day granularity. Obligations accrue
  once per calendar month, the active collection cycle is a month, and
  every ledger entry is bucketed into the month of its timestamp. Month
  is the single time abstraction the engine needs.

KEY CONCEPTS:
  - Month: a (year, month) pair with a total order
  - MonthsBetweenInclusive: the period count both endpoints included
    (same month = 1), which drives the expected-amount calculation

WIRE FORMAT:
  Months serialize as "YYYY-MM" (e.g. "2026-01"), the same key format
  the shared state document uses for its active month pointer, so the
  string order and the calendar order agree.

SEE ALSO:
  - period.go: The active-month state machine built on Month
  - calculator.go: Consumes Month for all standing arithmetic
*/
package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - (year, month) pair, the engine's only time unit
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

// NewMonth builds a Month. The month component is normalized, so
// NewMonth(2025, 13) == NewMonth(2026, time.January).
func NewMonth(year int, month time.Month) Month {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// CurrentMonth returns the wall-clock month. The engine itself never
// consults it; the active month is moved only by explicit operations.
func CurrentMonth() Month {
	return MonthOf(time.Now().UTC())
}

// ParseMonth parses the "YYYY-MM" wire format.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// index flattens the pair into a single comparable counter.
func (m Month) index() int { return m.Year*12 + int(m.Month) - 1 }

// Comparison
func (m Month) Before(other Month) bool        { return m.index() < other.index() }
func (m Month) After(other Month) bool         { return m.index() > other.index() }
func (m Month) Equal(other Month) bool         { return m.index() == other.index() }
func (m Month) BeforeOrEqual(other Month) bool { return m.index() <= other.index() }
func (m Month) AfterOrEqual(other Month) bool  { return m.index() >= other.index() }

// Arithmetic
func (m Month) Next() Month { return m.AddMonths(1) }
func (m Month) Prev() Month { return m.AddMonths(-1) }

func (m Month) AddMonths(n int) Month {
	return NewMonth(m.Year, m.Month+time.Month(n))
}

// MaxMonth returns the later of two months.
func MaxMonth(a, b Month) Month {
	if a.After(b) {
		return a
	}
	return b
}

// MonthsBetweenInclusive counts the calendar months from 'from' through
// 'to', both endpoints included: same month = 1. Returns 0 when 'to'
// precedes 'from'.
func MonthsBetweenInclusive(from, to Month) int {
	n := to.index() - from.index() + 1
	if n < 0 {
		return 0
	}
	return n
}

// =============================================================================
// JSON
// =============================================================================

func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Month) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid month JSON: %s", data)
	}
	parsed, err := ParseMonth(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
