// Package memory is an in-process purchase store used as the development
// backend and as a test double.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	"carbontracker/internal/records"
)

type Store struct {
	mu    sync.Mutex
	items map[string][]core.Purchase // by user id, in insertion order
	now   func() time.Time
}

func New() *Store {
	return &Store{items: make(map[string][]core.Purchase), now: time.Now}
}

// NewWithClock is New with an injectable clock for purchase dates.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

var _ records.Store = (*Store)(nil)

// Seed adds existing records for user as they are, without validation.
func (s *Store) Seed(user string, ps ...core.Purchase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ps {
		p.UserID = user
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.items[user] = append(s.items[user], p)
	}
}

func (s *Store) List(_ context.Context, sess auth.Session) ([]core.Purchase, error) {
	if !sess.Valid() {
		return nil, auth.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Purchase{}, s.items[sess.UserID]...), nil
}

func (s *Store) Create(_ context.Context, sess auth.Session, in core.PurchaseInput) (core.Purchase, error) {
	if !sess.Valid() {
		return core.Purchase{}, auth.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return core.Purchase{}, err
	}
	in = in.Normalized()
	p := core.Purchase{
		ID:                  uuid.NewString(),
		UserID:              sess.UserID,
		ProductName:         in.ProductName,
		PurchaseDate:        core.FormatPurchaseDate(s.now()),
		Weight:              core.NewQuantity(in.Weight),
		ShippingDistance:    core.NewQuantity(in.ShippingDistance),
		DeliveryMode:        in.DeliveryMode,
		Category:            in.Category,
		CarbonEmissionValue: core.EstimateEmission(in.Weight, in.ShippingDistance),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sess.UserID] = append(s.items[sess.UserID], p)
	return p, nil
}

// Update replaces the stored record with the same id. The emission is
// recomputed from weight and distance.
func (s *Store) Update(_ context.Context, sess auth.Session, p core.Purchase) (core.Purchase, error) {
	if !sess.Valid() {
		return core.Purchase{}, auth.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.items[sess.UserID]
	for i := range list {
		if list[i].ID != p.ID {
			continue
		}
		p.UserID = sess.UserID
		if p.Weight.Valid() && p.ShippingDistance.Valid() {
			p.CarbonEmissionValue = core.EstimateEmission(p.Weight.Float(), p.ShippingDistance.Float())
		}
		list[i] = p
		return p, nil
	}
	return core.Purchase{}, records.ErrNotFound
}

func (s *Store) Delete(_ context.Context, sess auth.Session, id string) error {
	if !sess.Valid() {
		return auth.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.items[sess.UserID]
	for i := range list {
		if list[i].ID == id {
			s.items[sess.UserID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return records.ErrNotFound
}
