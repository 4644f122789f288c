// Package payment drives Stripe checkout and webhook fulfilment for the
// storefront, and records completed purchases.
package payment

import (
	"context"
	"sync"
	"time"
)

// Purchase is one completed checkout.
type Purchase struct {
	// UserID identifies the buyer ("anonymous" when checkout had no user).
	UserID string

	// BookID is the purchased catalog id.
	BookID string

	// StripeSessionID is the checkout session that paid for it.
	StripeSessionID string

	// AmountTotal is the charged amount in cents.
	AmountTotal int64

	// Status is the fulfilment status, "completed" on webhook insert.
	Status string

	// CreatedAt is when the record was written.
	CreatedAt time.Time
}

// PurchaseStore persists completed purchases.
//
// Implementations must be safe for concurrent use and idempotent on the
// Stripe session id, since Stripe retries webhook delivery.
type PurchaseStore interface {
	// Record stores p. Recording the same StripeSessionID again is a no-op.
	Record(ctx context.Context, p Purchase) error

	// ByUser returns all purchases for a user, newest first.
	ByUser(ctx context.Context, userID string) ([]Purchase, error)
}

// Compile-time interface check.
var _ PurchaseStore = (*MemoryPurchases)(nil)

// MemoryPurchases is an in-memory purchase store for tests and storeless runs.
type MemoryPurchases struct {
	mu        sync.Mutex
	purchases []Purchase
	seen      map[string]bool
}

// NewMemoryPurchases creates an empty in-memory purchase store.
func NewMemoryPurchases() *MemoryPurchases {
	return &MemoryPurchases{seen: make(map[string]bool)}
}

// Record implements [PurchaseStore].
func (s *MemoryPurchases) Record(_ context.Context, p Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[p.StripeSessionID] {
		return nil
	}
	s.seen[p.StripeSessionID] = true
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.purchases = append(s.purchases, p)
	return nil
}

// ByUser implements [PurchaseStore].
func (s *MemoryPurchases) ByUser(_ context.Context, userID string) ([]Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Purchase
	for i := len(s.purchases) - 1; i >= 0; i-- {
		if s.purchases[i].UserID == userID {
			out = append(out, s.purchases[i])
		}
	}
	return out, nil
}

// Len returns the number of recorded purchases.
func (s *MemoryPurchases) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.purchases)
}
