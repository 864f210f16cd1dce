package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// pendingRow mirrors one pending_purchases row.
type pendingRow struct {
	ID               int64
	UserID           string
	ProductName      string
	Weight           float64
	ShippingDistance float64
	DeliveryMode     string
	Category         string
	CarbonEmission   string
	PurchaseDate     string
	SyncStatus       string
	Attempts         int64
	LastError        string
	RemoteID         string
	Version          int64
	CreatedAt        string
	UpdatedAt        string
}

const pendingColumns = `id, user_id, product_name, weight, shipping_distance, delivery_mode,
	category, carbon_emission, purchase_date, sync_status, attempts, last_error,
	remote_id, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(s rowScanner) (pendingRow, error) {
	var r pendingRow
	err := s.Scan(
		&r.ID, &r.UserID, &r.ProductName, &r.Weight, &r.ShippingDistance, &r.DeliveryMode,
		&r.Category, &r.CarbonEmission, &r.PurchaseDate, &r.SyncStatus, &r.Attempts, &r.LastError,
		&r.RemoteID, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const insertPending = `INSERT INTO pending_purchases (
	user_id, product_name, weight, shipping_distance, delivery_mode,
	category, carbon_emission, purchase_date, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type insertPendingParams struct {
	UserID           string
	ProductName      string
	Weight           float64
	ShippingDistance float64
	DeliveryMode     string
	Category         string
	CarbonEmission   string
	PurchaseDate     string
	Now              string
}

func (q *Queries) InsertPending(ctx context.Context, arg insertPendingParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertPending,
		arg.UserID, arg.ProductName, arg.Weight, arg.ShippingDistance, arg.DeliveryMode,
		arg.Category, arg.CarbonEmission, arg.PurchaseDate, arg.Now, arg.Now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getPending = `SELECT ` + pendingColumns + ` FROM pending_purchases WHERE id = ?`

func (q *Queries) GetPending(ctx context.Context, id int64) (pendingRow, error) {
	return scanPending(q.db.QueryRowContext(ctx, getPending, id))
}

const listUnsyncedByUser = `SELECT ` + pendingColumns + ` FROM pending_purchases
WHERE user_id = ? AND sync_status != 'synced'
ORDER BY id`

func (q *Queries) ListUnsyncedByUser(ctx context.Context, userID string) ([]pendingRow, error) {
	return q.list(ctx, listUnsyncedByUser, userID)
}

const listPendingForSync = `SELECT ` + pendingColumns + ` FROM pending_purchases
WHERE sync_status = 'pending'
ORDER BY id
LIMIT ?`

func (q *Queries) ListPendingForSync(ctx context.Context, limit int64) ([]pendingRow, error) {
	return q.list(ctx, listPendingForSync, limit)
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]pendingRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []pendingRow
	for rows.Next() {
		r, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const markSynced = `UPDATE pending_purchases
SET sync_status = 'synced', remote_id = ?, last_error = '', version = version + 1, updated_at = ?
WHERE id = ? AND sync_status != 'synced'`

func (q *Queries) MarkSynced(ctx context.Context, id int64, remoteID, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSynced, remoteID, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const recordFailure = `UPDATE pending_purchases
SET attempts = attempts + 1,
    last_error = ?,
    sync_status = CASE WHEN attempts + 1 >= ? THEN 'error' ELSE 'pending' END,
    version = version + 1,
    updated_at = ?
WHERE id = ? AND sync_status = 'pending'
RETURNING sync_status, attempts`

func (q *Queries) RecordFailure(ctx context.Context, id int64, msg string, maxAttempts int64, now string) (string, int64, error) {
	var status string
	var attempts int64
	err := q.db.QueryRowContext(ctx, recordFailure, msg, maxAttempts, now, id).Scan(&status, &attempts)
	return status, attempts, err
}

const countByStatus = `SELECT sync_status, COUNT(*) FROM pending_purchases GROUP BY sync_status`

func (q *Queries) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, countByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
