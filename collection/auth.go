/*
auth.go - Flat credential check

PURPOSE:
  Resolves a username/password pair to a User with a Role. This is a
  plain equality check against the shared state document: credential
  hardening (hashing, sessions, lockout) is explicitly out of scope
  for this system.

ACCOUNTS:
  - "superadmin" and "admin" are fixed usernames whose passwords live
    in the state document, with well-known defaults for a fresh
    install.
  - Collectors and created admins are matched from the user list by
    username; a collector with no password set accepts the legacy
    default.
*/
package collection

import (
	"context"
	"errors"
	"strings"

	"github.com/esaar/collection-engine/billing"
)

const (
	superAdminUsername = "superadmin"
	adminUsername      = "admin"

	defaultSuperAdminPassword = "superadmin"
	defaultAdminPassword      = "admin"

	// Legacy default for collector accounts created without a password.
	defaultCollectorPassword = "123"
)

// Authenticator checks credentials against the state document.
type Authenticator struct {
	Store billing.Store
}

// Login resolves credentials to a User. Returns ErrInvalidCredentials
// on any mismatch; the caller gets no hint which part was wrong.
func (a Authenticator) Login(ctx context.Context, username, password string) (billing.User, error) {
	clean := strings.ToLower(strings.TrimSpace(username))

	adminPw, superPw, err := a.Store.AdminPasswords(ctx)
	if err != nil {
		return billing.User{}, err
	}
	if adminPw == "" {
		adminPw = defaultAdminPassword
	}
	if superPw == "" {
		superPw = defaultSuperAdminPassword
	}

	switch clean {
	case superAdminUsername:
		if password == superPw {
			return billing.User{
				ID:       "superadmin",
				Name:     "Super Admin",
				Role:     billing.RoleSuperAdmin,
				Username: superAdminUsername,
			}, nil
		}
		return billing.User{}, billing.ErrInvalidCredentials

	case adminUsername:
		if password == adminPw {
			return billing.User{
				ID:       "admin",
				Name:     "System Admin",
				Role:     billing.RoleAdmin,
				Username: adminUsername,
			}, nil
		}
		return billing.User{}, billing.ErrInvalidCredentials
	}

	u, err := a.Store.GetUserByUsername(ctx, clean)
	if err != nil {
		if errors.Is(err, billing.ErrUserNotFound) {
			return billing.User{}, billing.ErrInvalidCredentials
		}
		return billing.User{}, err
	}

	expected := u.Password
	if expected == "" {
		expected = defaultCollectorPassword
	}
	if password != expected {
		return billing.User{}, billing.ErrInvalidCredentials
	}
	return u, nil
}
