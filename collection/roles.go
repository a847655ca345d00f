/*
Package collection is the workflow layer over the billing engine.

PURPOSE:
  Where billing/ holds the pure data model and arithmetic, this
  package holds the operations actors perform against it: recording
  payments, managing donors and collectors, moving the billing period,
  reporting rollups, and backup/restore. Every operation is explicit
  about which role may perform it.

KEY CONCEPTS IN THIS FILE (roles.go):
  Role permissions are decided in one place with exhaustive switches,
  instead of string comparisons scattered across call sites. The three
  tiers:

    SuperAdmin: everything, including destructive re-baselining
    Admin:      day-to-day administration and period stepping
    Collector:  recording payments and changing their own password

SEE ALSO:
  - auth.go:    Credential check producing a User with a Role
  - service.go: Operations that consult these permissions
*/
package collection

import "github.com/esaar/collection-engine/billing"

// CanRecordPayment reports whether the role may append ledger entries.
func CanRecordPayment(r billing.Role) bool {
	switch r {
	case billing.RoleSuperAdmin, billing.RoleAdmin, billing.RoleCollector:
		return true
	default:
		return false
	}
}

// CanManageDonors covers donor create/edit/remove and collector
// management.
func CanManageDonors(r billing.Role) bool {
	switch r {
	case billing.RoleSuperAdmin, billing.RoleAdmin:
		return true
	case billing.RoleCollector:
		return false
	default:
		return false
	}
}

// CanMovePeriod covers advancing and rewinding the active month.
func CanMovePeriod(r billing.Role) bool {
	switch r {
	case billing.RoleSuperAdmin, billing.RoleAdmin:
		return true
	case billing.RoleCollector:
		return false
	default:
		return false
	}
}

// CanResetSystem covers the destructive operations: master reset,
// ledger wipe, restore from backup, and admin account creation.
func CanResetSystem(r billing.Role) bool {
	switch r {
	case billing.RoleSuperAdmin:
		return true
	case billing.RoleAdmin, billing.RoleCollector:
		return false
	default:
		return false
	}
}
