package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"carbontracker/internal/adapters"
	"carbontracker/internal/config"
	"carbontracker/internal/records/api"
	"carbontracker/internal/records/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    "outbox",
		RecordsAPIURL:  "https://api.example.com",
		RequestTimeout: 3 * time.Second,
		SQLiteDBPath:   "x.db",
		AMQPQueue:      "q",
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != OutboxBackend || cfg.RecordsAPIURL != "https://api.example.com" || cfg.RequestTimeout != 3*time.Second || cfg.AMQPQueue != "q" {
		t.Errorf("unexpected backend config %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"api", Config{Type: APIBackend, RecordsAPIURL: "https://x"}, false},
		{"api without url", Config{Type: APIBackend}, true},
		{"outbox without db", Config{Type: OutboxBackend, RecordsAPIURL: "https://x"}, true},
		{"unknown", Config{Type: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 3 || got[0] != "api" || got[1] != "outbox" || got[2] != "memory" {
		t.Errorf("unexpected backend types %v", got)
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := res.Store.(*memory.Store); !ok {
		t.Errorf("expected memory store, got %T", res.Store)
	}

	res, err = f.CreateBackend(ctx, Config{Type: APIBackend, RecordsAPIURL: "https://api.example.com/dev", RequestTimeout: time.Second})
	if err != nil {
		t.Fatalf("api: %v", err)
	}
	if _, ok := res.Store.(*api.Client); !ok {
		t.Errorf("expected api client, got %T", res.Store)
	}

	res, err = f.CreateBackend(ctx, Config{
		Type:          OutboxBackend,
		RecordsAPIURL: "https://api.example.com/dev",
		SQLiteDBPath:  filepath.Join(t.TempDir(), "carbon.db"),
	})
	if err != nil {
		t.Fatalf("outbox: %v", err)
	}
	defer res.Cleanup()
	if _, ok := res.Store.(*adapters.OutboxStore); !ok {
		t.Errorf("expected outbox store, got %T", res.Store)
	}
	if res.Ready == nil || res.Ready(ctx) != nil {
		t.Error("outbox backend should report ready")
	}

	if _, err := f.CreateBackend(ctx, Config{Type: APIBackend, RecordsAPIURL: "not a url"}); err == nil {
		t.Error("expected error for a relative records URL")
	}
}
