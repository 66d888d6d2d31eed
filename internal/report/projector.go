// Package report projects read-only views over the transaction ledger for
// operator reporting. The projector never mutates ledger state.
package report

import (
	"context"
	"iter"
	"time"

	"corebank/internal/ledger/models"
	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
)

// Filter narrows a report query. Zero values mean "any".
type Filter struct {
	Type       models.TransactionType
	Status     models.TransactionStatus
	From       time.Time
	To         time.Time
	OperatorID id.UserID
}

func (f Filter) toStoreFilter() models.TransactionFilter {
	return models.TransactionFilter{
		Type:      f.Type,
		Status:    f.Status,
		CreatedBy: f.OperatorID,
		From:      f.From,
		To:        f.To,
	}
}

// TransactionLister is the read slice of the transaction store.
type TransactionLister interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
}

type Projector struct {
	transactions TransactionLister
}

func New(transactions TransactionLister) *Projector {
	return &Projector{transactions: transactions}
}

// Query returns matching transactions in insertion order as a finite,
// restartable sequence over a snapshot taken at call time. Ranging the
// sequence again replays the same snapshot; later ledger writes are not
// reflected.
func (p *Projector) Query(ctx context.Context, filter Filter) (iter.Seq[models.Transaction], error) {
	rows, err := p.transactions.List(ctx, filter.toStoreFilter())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "report query failed")
	}
	return func(yield func(models.Transaction) bool) {
		for _, tx := range rows {
			if !yield(*tx) {
				return
			}
		}
	}, nil
}
