package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carbontracker/internal/amqp"
	"carbontracker/internal/auth"
	"carbontracker/internal/records"
	"carbontracker/internal/sheets"
	"carbontracker/internal/storage"
)

// DefaultMaxAttempts bounds how often a row is pushed before it is marked error.
const DefaultMaxAttempts = 5

// Outbox is the part of the local repository the worker drives.
type Outbox interface {
	GetPending(ctx context.Context, id int64) (storage.PendingPurchase, error)
	ListPendingForSync(ctx context.Context, limit int) ([]storage.PendingPurchase, error)
	MarkSynced(ctx context.Context, id int64, remoteID string) error
	RecordFailure(ctx context.Context, id int64, cause error, maxAttempts int) (storage.SyncStatus, error)
}

// Notifier fans out the "purchase logged" event.
type Notifier interface {
	PublishPurchaseLogged(ctx context.Context, msg *amqp.PurchaseLoggedMessage) error
}

// Config wires optional collaborators. Exporter and Notifier may be nil.
type Config struct {
	ServiceToken string
	Exporter     sheets.PurchaseExporter
	Notifier     Notifier
	MaxAttempts  int
}

// SyncWorker pushes outbox rows to the purchase API on behalf of their owner,
// using the service credential.
type SyncWorker struct {
	outbox       Outbox
	remote       records.Store
	serviceToken string
	exporter     sheets.PurchaseExporter
	notifier     Notifier
	maxAttempts  int
}

func NewSyncWorker(outbox Outbox, remote records.Store, cfg Config) *SyncWorker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &SyncWorker{
		outbox:       outbox,
		remote:       remote,
		serviceToken: cfg.ServiceToken,
		exporter:     cfg.Exporter,
		notifier:     cfg.Notifier,
		maxAttempts:  cfg.MaxAttempts,
	}
}

// HandleSyncMessage processes a single purchase sync message from AMQP. A
// returned error requeues the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.PurchaseSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	row, err := w.outbox.GetPending(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Sync message for unknown purchase, dropping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get purchase from outbox: %w", err)
	}

	if row.Status != storage.StatusPending {
		slog.InfoContext(ctx, "Purchase already settled, skipping",
			"id", row.ID,
			"status", row.Status,
			"remote_id", row.RemoteID)
		return nil
	}

	status, err := w.sync(ctx, row)
	if err != nil && status == storage.StatusPending {
		return err
	}
	return nil
}

// ProcessPending pushes up to limit rows still waiting for sync. This is the
// backup path for lost AMQP messages. It returns how many rows it attempted.
func (w *SyncWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	rows, err := w.outbox.ListPendingForSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending purchases: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending purchases", "count", len(rows))

	processed, failed := 0, 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		processed++
		if _, err := w.sync(ctx, row); err != nil {
			failed++
		}
	}

	slog.InfoContext(ctx, "Pending purchases processed",
		"total", processed,
		"synced", processed-failed,
		"errors", failed)
	return processed, nil
}

// sync pushes one row and records the outcome. The returned status is the
// row's status after a failure.
func (w *SyncWorker) sync(ctx context.Context, row storage.PendingPurchase) (storage.SyncStatus, error) {
	sess := auth.Session{UserID: row.UserID, Token: w.serviceToken}

	created, err := w.remote.Create(ctx, sess, row.Input)
	if err != nil {
		status, recErr := w.outbox.RecordFailure(ctx, row.ID, err, w.maxAttempts)
		if recErr != nil {
			slog.ErrorContext(ctx, "Failed to record sync failure", "id", row.ID, "error", recErr)
			status = storage.StatusPending
		}
		slog.ErrorContext(ctx, "Failed to create purchase in record store",
			"id", row.ID,
			"user_id", row.UserID,
			"status", status,
			"error", err)
		return status, fmt.Errorf("create purchase %d: %w", row.ID, err)
	}

	if err := w.outbox.MarkSynced(ctx, row.ID, created.ID); err != nil {
		// The remote write happened; the row is retried by the sweep otherwise.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", row.ID, "error", err)
	}

	if w.exporter != nil {
		if ref, err := w.exporter.AppendPurchase(ctx, created); err != nil {
			slog.WarnContext(ctx, "Failed to export purchase to sheets", "id", row.ID, "error", err)
		} else {
			slog.DebugContext(ctx, "Purchase exported", "id", row.ID, "sheets_ref", ref)
		}
	}

	if w.notifier != nil {
		msg := amqp.NewPurchaseLoggedMessage(row.UserID, created.ID, created.ProductName, created.Emission())
		if err := w.notifier.PublishPurchaseLogged(ctx, msg); err != nil {
			slog.WarnContext(ctx, "Failed to publish purchase logged notification", "id", row.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Successfully synced purchase",
		"id", row.ID,
		"remote_id", created.ID,
		"user_id", row.UserID,
		"emission", created.CarbonEmissionValue.String())
	return storage.StatusSynced, nil
}
