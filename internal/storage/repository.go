package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carbontracker/internal/core"

	_ "modernc.org/sqlite"
)

type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusError   SyncStatus = "error"
)

var ErrNotFound = errors.New("pending purchase not found")

// PendingPurchase is a purchase logged locally and queued for the remote store.
type PendingPurchase struct {
	ID           int64
	UserID       string
	Input        core.PurchaseInput
	Emission     core.Quantity
	PurchaseDate string
	Status       SyncStatus
	Attempts     int
	LastError    string
	RemoteID     string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; the worker and web process share the file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SavePending stores a validated input for userID and returns the queued row.
// The emission is pre-computed so the purchase can be shown before it syncs.
func (r *SQLiteRepository) SavePending(ctx context.Context, userID string, in core.PurchaseInput) (PendingPurchase, error) {
	if err := in.Validate(); err != nil {
		return PendingPurchase{}, err
	}
	in = in.Normalized()
	now := r.now().UTC()
	emission := core.EstimateEmission(in.Weight, in.ShippingDistance)

	id, err := r.queries.InsertPending(ctx, insertPendingParams{
		UserID:           userID,
		ProductName:      in.ProductName,
		Weight:           in.Weight,
		ShippingDistance: in.ShippingDistance,
		DeliveryMode:     string(in.DeliveryMode),
		Category:         string(in.Category),
		CarbonEmission:   emission.Decimal().String(),
		PurchaseDate:     core.FormatPurchaseDate(now),
		Now:              now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return PendingPurchase{}, fmt.Errorf("insert pending purchase: %w", err)
	}

	slog.InfoContext(ctx, "Purchase saved to outbox",
		"id", id,
		"user_id", userID,
		"product_name", in.ProductName,
		"emission", emission.String())

	return r.GetPending(ctx, id)
}

func (r *SQLiteRepository) GetPending(ctx context.Context, id int64) (PendingPurchase, error) {
	row, err := r.queries.GetPending(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingPurchase{}, ErrNotFound
	}
	if err != nil {
		return PendingPurchase{}, fmt.Errorf("get pending purchase %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// ListUnsynced returns the user's rows that have not reached the remote store,
// including rows that gave up with an error.
func (r *SQLiteRepository) ListUnsynced(ctx context.Context, userID string) ([]PendingPurchase, error) {
	rows, err := r.queries.ListUnsyncedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unsynced purchases: %w", err)
	}
	return toDomain(rows), nil
}

// ListPendingForSync returns up to limit rows still waiting for sync, oldest first.
func (r *SQLiteRepository) ListPendingForSync(ctx context.Context, limit int) ([]PendingPurchase, error) {
	rows, err := r.queries.ListPendingForSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending purchases: %w", err)
	}
	return toDomain(rows), nil
}

// MarkSynced records the remote id. Marking an already synced row is a no-op.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, remoteID string) error {
	n, err := r.queries.MarkSynced(ctx, id, remoteID, r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("mark purchase synced: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Purchase marked as synced", "id", id, "remote_id", remoteID)
	}
	return nil
}

// RecordFailure counts a failed sync attempt. Once maxAttempts is reached the
// row moves to StatusError and is no longer picked up.
func (r *SQLiteRepository) RecordFailure(ctx context.Context, id int64, cause error, maxAttempts int) (SyncStatus, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	status, attempts, err := r.queries.RecordFailure(ctx, id, msg, int64(maxAttempts), r.now().UTC().Format(time.RFC3339Nano))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("record sync failure: %w", err)
	}

	if SyncStatus(status) == StatusError {
		slog.WarnContext(ctx, "Purchase sync gave up", "id", id, "attempts", attempts, "error", msg)
	} else {
		slog.WarnContext(ctx, "Purchase sync attempt failed", "id", id, "attempts", attempts, "error", msg)
	}
	return SyncStatus(status), nil
}

// Counts returns the number of rows per sync status.
func (r *SQLiteRepository) Counts(ctx context.Context) (map[SyncStatus]int64, error) {
	raw, err := r.queries.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count purchases by status: %w", err)
	}
	out := make(map[SyncStatus]int64, len(raw))
	for k, v := range raw {
		out[SyncStatus(k)] = v
	}
	return out, nil
}

func (row pendingRow) toDomain() PendingPurchase {
	created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	return PendingPurchase{
		ID:     row.ID,
		UserID: row.UserID,
		Input: core.PurchaseInput{
			ProductName:      row.ProductName,
			Weight:           row.Weight,
			ShippingDistance: row.ShippingDistance,
			DeliveryMode:     core.DeliveryMode(row.DeliveryMode),
			Category:         core.Category(row.Category),
		},
		Emission:     core.ParseQuantity(row.CarbonEmission),
		PurchaseDate: row.PurchaseDate,
		Status:       SyncStatus(row.SyncStatus),
		Attempts:     int(row.Attempts),
		LastError:    row.LastError,
		RemoteID:     row.RemoteID,
		Version:      row.Version,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}
}

func toDomain(rows []pendingRow) []PendingPurchase {
	out := make([]PendingPurchase, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}
