package checkout

import (
	"sync"

	"github.com/shopagent/cartwright/pkg/models"
)

// Store is the process-wide receipt store and card-velocity counter.
// Both maps are mutated only under the mutex so concurrent saga runs can
// share one store. Retention is the host's concern; Reset supports
// host-driven eviction.
type Store struct {
	mu       sync.Mutex
	receipts map[string]models.Receipt // idempotency key -> receipt
	velocity map[string]int            // card digits -> consecutive failures
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		receipts: make(map[string]models.Receipt),
		velocity: make(map[string]int),
	}
}

// Get returns the receipt stored under the idempotency key.
func (s *Store) Get(key string) (models.Receipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[key]
	return r, ok
}

// PutIfAbsent stores the receipt unless the key is already present, in
// which case the stored receipt is returned unchanged.
func (s *Store) PutIfAbsent(key string, receipt models.Receipt) models.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.receipts[key]; ok {
		return existing
	}
	s.receipts[key] = receipt
	return receipt
}

// Len returns the number of stored receipts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}

// Velocity returns the consecutive failed attempts recorded for a card.
func (s *Store) Velocity(cardDigits string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocity[cardDigits]
}

// BumpVelocity increments the card's failed-attempt counter.
func (s *Store) BumpVelocity(cardDigits string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velocity[cardDigits]++
}

// ResetVelocity clears the card's failed-attempt counter after a
// successful payment.
func (s *Store) ResetVelocity(cardDigits string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velocity[cardDigits] = 0
}

// Reset drops all receipts and velocity counters.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = make(map[string]models.Receipt)
	s.velocity = make(map[string]int)
}
