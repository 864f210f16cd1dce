package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	"carbontracker/internal/storage"
)

// Outbox persists purchases that still have to reach the remote store.
type Outbox interface {
	SavePending(ctx context.Context, userID string, in core.PurchaseInput) (storage.PendingPurchase, error)
}

// SyncPublisher announces outbox rows to the worker.
type SyncPublisher interface {
	PublishPurchaseSync(ctx context.Context, id, version int64) error
}

// PurchaseService is the local-first write path: a purchase is committed to the
// outbox first and the sync message is best effort.
type PurchaseService struct {
	outbox    Outbox
	publisher SyncPublisher
}

// NewPurchaseService wires the outbox with an optional publisher. Without a
// publisher the worker's periodic sweep picks rows up.
func NewPurchaseService(outbox Outbox, publisher SyncPublisher) *PurchaseService {
	return &PurchaseService{outbox: outbox, publisher: publisher}
}

// LogPurchase validates in, stores it for the session's user and queues a
// sync message.
func (s *PurchaseService) LogPurchase(ctx context.Context, sess auth.Session, in core.PurchaseInput) (storage.PendingPurchase, error) {
	if !sess.Valid() {
		return storage.PendingPurchase{}, auth.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return storage.PendingPurchase{}, err
	}

	p, err := s.outbox.SavePending(ctx, sess.UserID, in)
	if err != nil {
		return storage.PendingPurchase{}, fmt.Errorf("save purchase to outbox: %w", err)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, purchase left for the sweep", "id", p.ID)
		return p, nil
	}
	if err := s.publisher.PublishPurchaseSync(ctx, p.ID, p.Version); err != nil {
		// The row is durable; the sweep retries it.
		slog.WarnContext(ctx, "Failed to publish purchase sync message",
			"id", p.ID,
			"user_id", sess.UserID,
			"error", err)
		return p, nil
	}

	slog.InfoContext(ctx, "Purchase queued for sync",
		"id", p.ID,
		"user_id", sess.UserID,
		"product_name", p.Input.ProductName)
	return p, nil
}

// Close releases the outbox and publisher when they hold resources.
func (s *PurchaseService) Close() error {
	var errs []error
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if c, ok := s.outbox.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close outbox: %w", err))
		}
	}
	return errors.Join(errs...)
}
