// Package identity allocates record ids and human-facing member numbers.
package identity

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Allocator produces six-digit member numbers from the clock and a random
// offset. Numbers are best effort: collisions are possible and are caught by
// the primary store's unique constraint.
type Allocator struct {
	mu   sync.Mutex
	now  func() time.Time
	rand func(n int) int
	last int64
}

// Option customises an Allocator.
type Option func(*Allocator)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

// WithRand replaces the random source; fn must return a value in [0, n).
func WithRand(fn func(n int) int) Option {
	return func(a *Allocator) { a.rand = fn }
}

func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{now: time.Now, rand: rand.IntN}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MemberNumber returns (millis + rand[0,1000)) mod 1e6 as six digits. The
// millisecond reading never goes backwards within a process.
func (a *Allocator) MemberNumber() string {
	a.mu.Lock()
	millis := a.now().UnixMilli()
	if millis < a.last {
		millis = a.last
	}
	a.last = millis
	offset := int64(a.rand(1000))
	a.mu.Unlock()

	return fmt.Sprintf("%06d", (millis+offset)%1_000_000)
}

// NewID returns a random UUID string for members, payments and notices.
func NewID() string {
	return uuid.NewString()
}
