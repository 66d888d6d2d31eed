package audit

import "context"

// Store is an append-only sink for audit records. Implementations must never
// update or delete appended records.
type Store interface {
	Append(ctx context.Context, record Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}
