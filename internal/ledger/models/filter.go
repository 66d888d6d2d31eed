package models

import (
	"time"

	id "corebank/pkg/domain"
)

// TransactionFilter narrows transaction listings and reports. Zero values
// mean "any". AccountIDs scopes the result to transactions touching one of
// the given accounts; the engine fills it for client-role listings.
type TransactionFilter struct {
	Type       TransactionType
	Status     TransactionStatus
	CreatedBy  id.UserID
	AccountIDs []id.AccountID
	From       time.Time
	To         time.Time
}

// Matches applies the filter in memory. The memory store and the report
// projector share it; the postgres store compiles the same predicate to SQL.
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if !f.CreatedBy.IsZero() && t.CreatedBy != f.CreatedBy {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.CreatedAt.After(f.To) {
		return false
	}
	if len(f.AccountIDs) > 0 {
		touched := false
		for _, accountID := range f.AccountIDs {
			if t.Touches(accountID) {
				touched = true
				break
			}
		}
		if !touched {
			return false
		}
	}
	return true
}
