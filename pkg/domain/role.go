package domain

import dErrors "corebank/pkg/domain-errors"

// Role is the authenticated caller's role. The token layer (out of scope for
// the core) asserts it; the authorization gate maps it to allowed operations.
type Role string

const (
	// RoleClient is an account owner: may transfer between accounts and view
	// their own data.
	RoleClient Role = "client"
	// RoleOperator is bank staff: may open accounts, move cash in and out,
	// and read reports.
	RoleOperator Role = "operator"
)

// ParseRole validates a role string from an external source (token claims).
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RoleOperator:
		return Role(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
}
