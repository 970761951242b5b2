// Package notify delivers best-effort alerts for newly stored transactions.
// Persistence is authoritative; a lost notification is logged and forgotten.
package notify

import (
	"context"
	"errors"

	"hopwatch/internal/domain"
)

// ErrTransport marks a delivery failure. Callers log it and move on — it
// must never abort ingestion.
var ErrTransport = errors.New("notify: transport failure")

// Notifier sends one alert per newly inserted transaction.
type Notifier interface {
	Notify(ctx context.Context, t *domain.Transaction) error
}

// Nop is the disabled notifier used when no channel is configured.
type Nop struct{}

func (Nop) Notify(context.Context, *domain.Transaction) error { return nil }
