// Package pipeline orchestrates one card's ingestion pass:
// fetch → normalize → insert-if-absent → notify.
package pipeline

import (
	"context"

	"hopwatch/internal/domain"
	"hopwatch/internal/logger"
	"hopwatch/internal/metrics"
	"hopwatch/internal/notify"
	"hopwatch/internal/portal"
	"hopwatch/internal/store"
)

type Pipeline struct {
	store    *store.Store
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func New(st *store.Store, n notify.Notifier, m *metrics.Metrics) *Pipeline {
	return &Pipeline{store: st, notifier: n, metrics: m}
}

// Run processes one card and returns the number of newly stored
// transactions. Failures are contained to this card: a fetch or store error
// logs, yields 0 and leaves the other cards untouched. Notifications go out
// only after the card's batch has committed, so a rolled-back insert can
// never have been announced.
func (p *Pipeline) Run(ctx context.Context, session *portal.Session, card domain.CardRef) int {
	log := logger.FromContext(ctx).With().
		Str("card_id", card.ID).
		Str("card_name", card.DisplayName()).
		Logger()
	ctx = logger.WithContext(ctx, log)

	raws, err := portal.FetchTransactions(ctx, session, card.ID)
	if err != nil {
		log.Error().Err(err).Msg("fetching transactions failed")
		return 0
	}
	p.metrics.Fetched.Add(float64(len(raws)))

	batch, err := p.store.BeginBatch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("opening card batch failed")
		return 0
	}

	var fresh []*domain.Transaction
	for _, raw := range raws {
		txn, err := portal.Normalize(card, raw)
		if err != nil {
			// One malformed entry never aborts the rest of the batch.
			log.Warn().Err(err).Msg("skipping malformed transaction")
			continue
		}
		if txn == nil {
			log.Debug().Msg("skipping pending transaction")
			continue
		}

		inserted, err := batch.InsertIfAbsent(ctx, txn)
		if err != nil {
			log.Error().Err(err).Msg("insert failed, aborting card batch")
			if rbErr := batch.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("rollback failed")
			}
			return 0
		}
		if !inserted {
			p.metrics.Duplicates.Inc()
			continue
		}
		fresh = append(fresh, txn)
		log.Info().
			Str("transaction_id", txn.CardTransactionID).
			Str("description", txn.Description).
			Str("occurred_at", txn.TransactionDateTime).
			Msg("new transaction")
	}

	if err := batch.Commit(); err != nil {
		log.Error().Err(err).Msg("committing card batch failed")
		return 0
	}

	for _, txn := range fresh {
		p.metrics.Inserted.WithLabelValues(card.ID).Inc()
		if err := p.notifier.Notify(ctx, txn); err != nil {
			// Advisory only; the record is already durable.
			p.metrics.NotifyFailures.Inc()
			log.Warn().Err(err).
				Str("transaction_id", txn.CardTransactionID).
				Msg("notification failed")
		}
	}
	return len(fresh)
}
