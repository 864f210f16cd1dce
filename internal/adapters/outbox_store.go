package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	"carbontracker/internal/records"
	"carbontracker/internal/storage"
)

// PendingIDPrefix marks records that only exist in the local outbox.
const PendingIDPrefix = "pending:"

type (
	// PendingLister reads a user's rows that have not reached the record store.
	PendingLister interface {
		ListUnsynced(ctx context.Context, userID string) ([]storage.PendingPurchase, error)
	}

	// PurchaseLogger is the local-first write path.
	PurchaseLogger interface {
		LogPurchase(ctx context.Context, sess auth.Session, in core.PurchaseInput) (storage.PendingPurchase, error)
	}
)

// OutboxStore adapts the outbox and the remote record store to records.Store,
// so handlers work unchanged whether writes go straight to the API or through
// SQLite and AMQP.
type OutboxStore struct {
	remote  records.Store
	pending PendingLister
	logger  PurchaseLogger
}

var _ records.Store = (*OutboxStore)(nil)

func NewOutboxStore(remote records.Store, pending PendingLister, logger PurchaseLogger) *OutboxStore {
	return &OutboxStore{remote: remote, pending: pending, logger: logger}
}

// List returns the remote records followed by the user's queued ones.
func (s *OutboxStore) List(ctx context.Context, sess auth.Session) ([]core.Purchase, error) {
	remote, err := s.remote.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	rows, err := s.pending.ListUnsynced(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list queued purchases: %w", err)
	}
	out := make([]core.Purchase, 0, len(remote)+len(rows))
	out = append(out, remote...)
	for _, row := range rows {
		out = append(out, toPurchase(row))
	}
	return out, nil
}

// Create queues the purchase locally and returns it with a pending id.
func (s *OutboxStore) Create(ctx context.Context, sess auth.Session, in core.PurchaseInput) (core.Purchase, error) {
	row, err := s.logger.LogPurchase(ctx, sess, in)
	if err != nil {
		return core.Purchase{}, err
	}
	return toPurchase(row), nil
}

func (s *OutboxStore) Update(ctx context.Context, sess auth.Session, p core.Purchase) (core.Purchase, error) {
	if IsPending(p.ID) {
		return core.Purchase{}, records.ErrReadOnly
	}
	return s.remote.Update(ctx, sess, p)
}

func (s *OutboxStore) Delete(ctx context.Context, sess auth.Session, id string) error {
	if IsPending(id) {
		return records.ErrReadOnly
	}
	return s.remote.Delete(ctx, sess, id)
}

// IsPending reports whether id names a record that is still in the outbox.
func IsPending(id string) bool {
	return strings.HasPrefix(id, PendingIDPrefix)
}

func toPurchase(row storage.PendingPurchase) core.Purchase {
	return core.Purchase{
		ID:                  PendingIDPrefix + strconv.FormatInt(row.ID, 10),
		UserID:              row.UserID,
		ProductName:         row.Input.ProductName,
		PurchaseDate:        row.PurchaseDate,
		Weight:              core.NewQuantity(row.Input.Weight),
		ShippingDistance:    core.NewQuantity(row.Input.ShippingDistance),
		DeliveryMode:        row.Input.DeliveryMode,
		Category:            row.Input.Category,
		CarbonEmissionValue: row.Emission,
	}
}
