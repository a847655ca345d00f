/*
report.go - Read-side rollups for the dashboards

PURPOSE:
  Aggregates a state snapshot into the figures the admin dashboard and
  collector visit list show: monthly target vs collected, cash/online
  split, total arrears and deficit, per-city performance, and the
  status board. All of it is recomputed from the snapshot on every
  query; nothing here is cached or stored.

STATUS SEMANTICS:
  A donor counts as collected when any payment lands in the active
  month, even a partial one. The shortfall figures still reflect the
  partial amount; the binary status does not.
*/
package collection

import (
	"context"
	"sort"

	"github.com/esaar/collection-engine/billing"
)

// Summary is the dashboard headline for one month, optionally scoped
// to a city.
type Summary struct {
	ActiveMonth billing.Month `json:"activeMonth"`
	City        string        `json:"city,omitempty"` // empty = all areas

	MonthlyTarget      billing.Amount `json:"monthlyTarget"`
	CollectedThisMonth billing.Amount `json:"collectedThisMonth"`
	CashTotal          billing.Amount `json:"cashTotal"`
	OnlineTotal        billing.Amount `json:"onlineTotal"`

	TotalArrears        billing.Amount `json:"totalArrears"`
	TotalCurrentDeficit billing.Amount `json:"totalCurrentDeficit"`

	PaidDonors     int `json:"paidDonors"`
	PendingDonors  int `json:"pendingDonors"`
	CashPayments   int `json:"cashPayments"`
	OnlinePayments int `json:"onlinePayments"`
}

// CityPerformance is one bar of the target-vs-received chart.
type CityPerformance struct {
	City      string         `json:"city"`
	Target    billing.Amount `json:"target"`
	Collected billing.Amount `json:"collected"`
}

// StatusRow is one line of the status board: donor, derived standing,
// and the attribution of the active month's payment if there is one.
type StatusRow struct {
	Donor         billing.Donor         `json:"donor"`
	Standing      billing.Standing      `json:"standing"`
	Collected     bool                  `json:"collected"`
	CollectorName string                `json:"collectorName,omitempty"`
	Method        billing.PaymentMethod `json:"method,omitempty"`
}

// DashboardSummary computes the headline figures for the active month.
// An empty city means all areas.
func (s *Service) DashboardSummary(ctx context.Context, city string) (Summary, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	p, err := s.Period(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		ActiveMonth:         p.Active,
		City:                city,
		MonthlyTarget:       billing.ZeroAmount(),
		CollectedThisMonth:  billing.ZeroAmount(),
		CashTotal:           billing.ZeroAmount(),
		OnlineTotal:         billing.ZeroAmount(),
		TotalArrears:        billing.ZeroAmount(),
		TotalCurrentDeficit: billing.ZeroAmount(),
	}

	donors := activeDonors(doc.Donors, city)
	inScope := make(map[billing.DonorID]bool, len(donors))
	for _, d := range donors {
		inScope[d.ID] = true
		sum.MonthlyTarget = sum.MonthlyTarget.Add(d.MonthlyPledge)

		st := s.calc.Standing(d, doc.Payments, p.Active)
		sum.TotalArrears = sum.TotalArrears.Add(st.Arrears)
		sum.TotalCurrentDeficit = sum.TotalCurrentDeficit.Add(st.CurrentShortfall)
		if st.Collected() {
			sum.PaidDonors++
		} else {
			sum.PendingDonors++
		}
	}

	for _, rec := range doc.Payments {
		if !rec.PaymentMonth().Equal(p.Active) || !inScope[rec.DonorID] {
			continue
		}
		sum.CollectedThisMonth = sum.CollectedThisMonth.Add(rec.Amount)
		switch rec.Method {
		case billing.MethodCash:
			sum.CashTotal = sum.CashTotal.Add(rec.Amount)
			sum.CashPayments++
		case billing.MethodOnline:
			sum.OnlineTotal = sum.OnlineTotal.Add(rec.Amount)
			sum.OnlinePayments++
		}
	}

	return sum, nil
}

// CityReport computes target vs collected per city for the active
// month. Cities with no pledged target are omitted.
func (s *Service) CityReport(ctx context.Context) ([]CityPerformance, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.Period(ctx)
	if err != nil {
		return nil, err
	}

	donorCity := make(map[billing.DonorID]string)
	targets := make(map[string]billing.Amount)
	for _, d := range doc.Donors {
		if d.Deleted {
			continue
		}
		donorCity[d.ID] = d.City
		t, ok := targets[d.City]
		if !ok {
			t = billing.ZeroAmount()
		}
		targets[d.City] = t.Add(d.MonthlyPledge)
	}

	collected := make(map[string]billing.Amount)
	for _, rec := range doc.Payments {
		if !rec.PaymentMonth().Equal(p.Active) {
			continue
		}
		city, ok := donorCity[rec.DonorID]
		if !ok {
			continue
		}
		c, ok := collected[city]
		if !ok {
			c = billing.ZeroAmount()
		}
		collected[city] = c.Add(rec.Amount)
	}

	var out []CityPerformance
	for _, city := range doc.Cities {
		target, ok := targets[city]
		if !ok || target.IsZero() {
			continue
		}
		got, ok := collected[city]
		if !ok {
			got = billing.ZeroAmount()
		}
		out = append(out, CityPerformance{City: city, Target: target, Collected: got})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out, nil
}

// StatusFilter selects status board rows.
type StatusFilter string

const (
	FilterAll       StatusFilter = "ALL"
	FilterCollected StatusFilter = "COLLECTED"
	FilterPending   StatusFilter = "PENDING"
)

// StatusBoard lists every in-scope donor with derived standing and the
// active month's payment attribution.
func (s *Service) StatusBoard(ctx context.Context, city string, filter StatusFilter) ([]StatusRow, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.Period(ctx)
	if err != nil {
		return nil, err
	}

	// First payment of the active month per donor, for the collector
	// and mode columns.
	firstOfMonth := make(map[billing.DonorID]billing.PaymentRecord)
	for _, rec := range doc.Payments {
		if !rec.PaymentMonth().Equal(p.Active) {
			continue
		}
		if _, seen := firstOfMonth[rec.DonorID]; !seen {
			firstOfMonth[rec.DonorID] = rec
		}
	}

	var rows []StatusRow
	for _, d := range activeDonors(doc.Donors, city) {
		st := s.calc.Standing(d, doc.Payments, p.Active)
		row := StatusRow{Donor: d, Standing: st, Collected: st.Collected()}
		if rec, ok := firstOfMonth[d.ID]; ok && row.Collected {
			row.CollectorName = rec.CollectorName
			row.Method = rec.Method
		}
		switch filter {
		case FilterCollected:
			if !row.Collected {
				continue
			}
		case FilterPending:
			if row.Collected {
				continue
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// VisitList returns the donors a collector still needs to visit this
// month: assigned to them and not yet collected. Status is derived
// from the ledger, never from a stored flag.
func (s *Service) VisitList(ctx context.Context, collectorID billing.UserID) ([]billing.Donor, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.Period(ctx)
	if err != nil {
		return nil, err
	}

	var out []billing.Donor
	for _, d := range doc.Donors {
		if d.Deleted || d.AssignedCollectorID != collectorID {
			continue
		}
		if s.calc.Standing(d, doc.Payments, p.Active).Collected() {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// CollectorHistory returns the payments a collector recorded in the
// active month.
func (s *Service) CollectorHistory(ctx context.Context, collectorID billing.UserID) ([]billing.PaymentRecord, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.Period(ctx)
	if err != nil {
		return nil, err
	}

	var out []billing.PaymentRecord
	for _, rec := range doc.Payments {
		if rec.CollectorID == collectorID && rec.PaymentMonth().Equal(p.Active) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func activeDonors(donors []billing.Donor, city string) []billing.Donor {
	var out []billing.Donor
	for _, d := range donors {
		if d.Deleted {
			continue
		}
		if city != "" && d.City != city {
			continue
		}
		out = append(out, d)
	}
	return out
}
