// Package domain holds shared domain vocabulary: typed identifiers and roles.
//
// IDs are distinct named UUID types so the compiler rejects cross-type
// assignment (a UserID can never be passed where an AccountID is expected).
// Parse helpers enforce the trust-boundary invariant that IDs must be valid,
// non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "corebank/pkg/domain-errors"
)

type (
	// UserID identifies a client or operator.
	UserID uuid.UUID
	// AccountID identifies a bank account.
	AccountID uuid.UUID
	// TransactionID identifies a ledger transaction.
	TransactionID uuid.UUID
)

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id AccountID) String() string     { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// The ID types render as canonical UUID strings in JSON and text forms.
// Unmarshalling runs the same validation as the Parse helpers.

func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id AccountID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TransactionID) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewUserID generates a fresh user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewAccountID generates a fresh account ID.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewTransactionID generates a fresh transaction ID.
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseAccountID parses and validates an account ID from its string form.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account id")
	return AccountID(u), err
}

// ParseTransactionID parses and validates a transaction ID from its string form.
func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID(s, "transaction id")
	return TransactionID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}
