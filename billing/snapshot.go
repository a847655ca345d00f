/*
snapshot.go - The shared state document and its backup format

PURPOSE:
  StateDocument is the canonical shape of the whole system state, and
  also the backup/restore wire format. Export is pure serialization
  with no recomputation; import replaces the targeted fields wholesale.

FIELD NAMES:
  The JSON keys (donors, collectors, donationHistory, cities,
  currentMonthKey) are the document's long-standing wire names, so old
  backups restore without translation.
*/
package billing

import (
	"encoding/json"
	"fmt"
)

// StateDocument is the full shared state. Derived values (standings,
// rollups) are intentionally absent: they are recomputed on demand.
type StateDocument struct {
	Donors             []Donor         `json:"donors"`
	Collectors         []User          `json:"collectors"`
	Payments           []PaymentRecord `json:"donationHistory"`
	Cities             []string        `json:"cities"`
	ActiveMonth        Month           `json:"currentMonthKey"`
	AdminPassword      string          `json:"adminPassword,omitempty"`
	SuperAdminPassword string          `json:"superAdminPassword,omitempty"`
}

// Export serializes the document. Pure: no recomputation, no
// normalization beyond JSON encoding.
func (d StateDocument) Export() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export state: %w", err)
	}
	return out, nil
}

// ImportStateDocument parses a backup produced by Export (or by hand,
// as long as the field names match).
func ImportStateDocument(data []byte) (StateDocument, error) {
	var doc StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return StateDocument{}, fmt.Errorf("%w: parse backup: %v", ErrInvalidInput, err)
	}
	return doc, nil
}
