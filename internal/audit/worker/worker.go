package worker

import (
	"context"

	"corebank/internal/audit"
)

// Worker consumes audit records from a channel and persists them. It keeps
// background processing testable without wiring queue implementations yet.
type Worker struct {
	store audit.Store
	inbox <-chan audit.Record
}

func NewWorker(store audit.Store, inbox <-chan audit.Record) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record := <-w.inbox:
			if err := w.store.Append(ctx, record); err != nil {
				return err
			}
		}
	}
}
