// Package services orchestrates the core ledger rules over the record store
// and hands the resulting domain events to a publisher.
//
// The store is the source of truth: a failed publish is logged and never
// fails the operation that produced the event.
package services

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"
	applog "fintrack/internal/log"
)

type clock func() time.Time

// checkOwner hides records of other owners behind a not found error.
func checkOwner(kind, id, recordOwner, ownerID string) error {
	if recordOwner != ownerID {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		fields := applog.NewFields().
			WithOwner(e.OwnerID).
			WithError(err).
			WithOperation(applog.OpPublish).
			With(applog.FieldEventType, string(e.Type))
		slog.ErrorContext(ctx, "Failed to publish event", fields.ToSlice()...)
	}
}

func publisherOrNop(p events.Publisher) events.Publisher {
	if p == nil {
		return events.Nop{}
	}
	return p
}
