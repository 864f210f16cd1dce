package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	"carbontracker/internal/records"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return now })
	alice := auth.Session{UserID: "alice", Token: "t"}
	bob := auth.Session{UserID: "bob", Token: "t"}

	p, err := s.Create(ctx, alice, core.PurchaseInput{ProductName: "Laptop", Weight: 2.5, ShippingDistance: 150})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" || p.Emission() != 37.5 || p.Category != core.Other || p.DeliveryMode != core.Ground {
		t.Fatalf("unexpected purchase %+v", p)
	}
	if p.PurchaseDate != "2025-06-01T09:30:00.000000" {
		t.Fatalf("unexpected date %s", p.PurchaseDate)
	}

	if list, _ := s.List(ctx, bob); len(list) != 0 {
		t.Fatalf("bob sees alice's records: %v", list)
	}
	if err := s.Delete(ctx, bob, p.ID); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected bob's delete to miss, got %v", err)
	}

	p.Weight = core.NewQuantity(1)
	updated, err := s.Update(ctx, alice, p)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Emission() != 15 {
		t.Fatalf("expected recomputed emission 15, got %v", updated.Emission())
	}

	list, _ := s.List(ctx, alice)
	if len(list) != 1 || list[0].Emission() != 15 {
		t.Fatalf("unexpected list %v", list)
	}
	list[0].ProductName = "mutated"
	if again, _ := s.List(ctx, alice); again[0].ProductName != "Laptop" {
		t.Fatalf("list returned shared storage")
	}

	if err := s.Delete(ctx, alice, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Update(ctx, alice, p); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStoreRejects(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.List(ctx, auth.Session{}); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	_, err := s.Create(ctx, auth.Session{UserID: "u", Token: "t"}, core.PurchaseInput{ProductName: "x", Weight: 1})
	if !errors.Is(err, core.ErrInvalidDistance) {
		t.Fatalf("expected invalid distance, got %v", err)
	}
}

func TestSeed(t *testing.T) {
	s := New()
	s.Seed("u", core.Purchase{ProductName: "legacy", CarbonEmissionValue: core.ParseQuantity("oops")})
	list, err := s.List(context.Background(), auth.Session{UserID: "u", Token: "t"})
	if err != nil || len(list) != 1 || list[0].ID == "" || list[0].UserID != "u" {
		t.Fatalf("unexpected seeded list %v (%v)", list, err)
	}
}
