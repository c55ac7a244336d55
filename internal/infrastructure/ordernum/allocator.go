package ordernum

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	domain "github.com/stitchmall/ordercore/internal/domain/order"
)

const maxAttempts = 10

// Allocator produces order numbers of the form ORD-YYYYMMDD-NNNNN with a
// random 5-digit suffix. It pre-checks the repository to keep collisions
// rare; the repository's unique constraint remains the source of truth.
type Allocator struct {
	orders domain.Repository

	mu     sync.Mutex
	random *rand.Rand
	now    func() time.Time
}

func New(orders domain.Repository) *Allocator {
	return &Allocator{
		orders: orders,
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := a.candidate()

		exists, err := a.orders.OrderNumberExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("ordernum: uniqueness check: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", domain.ErrAllocationExhausted
}

func (a *Allocator) candidate() string {
	a.mu.Lock()
	suffix := 10000 + a.random.Intn(90000)
	a.mu.Unlock()

	return fmt.Sprintf("ORD-%s-%05d", a.now().UTC().Format("20060102"), suffix)
}
