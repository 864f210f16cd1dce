package backend

import (
	"context"
	"time"

	"carbontracker/internal/records"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the record store and its lifecycle hooks
type BackendResult struct {
	Store records.Store
	// Ready reports whether local dependencies are usable. Nil means always ready.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Purchase API, used by api and outbox
	RecordsAPIURL  string
	RequestTimeout time.Duration

	// Outbox specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	APIBackend    BackendType = "api"
	OutboxBackend BackendType = "outbox"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, OutboxBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
