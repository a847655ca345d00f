package collection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/esaar/collection-engine/billing"
	"github.com/esaar/collection-engine/collection"
)

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role    billing.Role
		record  bool
		manage  bool
		period  bool
		destroy bool
	}{
		{billing.RoleSuperAdmin, true, true, true, true},
		{billing.RoleAdmin, true, true, true, false},
		{billing.RoleCollector, true, false, false, false},
		{billing.Role("GUEST"), false, false, false, false}, // unknown role gets nothing
	}
	for _, c := range cases {
		assert.Equal(t, c.record, collection.CanRecordPayment(c.role), "record: %s", c.role)
		assert.Equal(t, c.manage, collection.CanManageDonors(c.role), "manage: %s", c.role)
		assert.Equal(t, c.period, collection.CanMovePeriod(c.role), "period: %s", c.role)
		assert.Equal(t, c.destroy, collection.CanResetSystem(c.role), "destroy: %s", c.role)
	}
}
