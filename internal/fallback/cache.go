// Package fallback is the always-available local store used when the primary
// store cannot be reached. Every method is synchronous and infallible: a
// missing or corrupt slot reads as the empty value.
package fallback

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"gymdesk/internal/domain"
)

// Slot keys. They match the keys written by earlier releases so existing
// caches keep loading.
const (
	KeyMembers      = "warriors_gym_members"
	KeyPayments     = "warriors_gym_payments"
	KeySettings     = "warriors_gym_settings"
	KeyNextMemberID = "warriors_gym_next_member_id"
)

// Cache stores members, payments and settings as JSON documents in a Backend.
type Cache struct {
	mu      sync.Mutex
	backend Backend
	logger  *slog.Logger
}

// New returns a cache over backend; nil means Disabled.
func New(backend Backend, logger *slog.Logger) *Cache {
	if backend == nil {
		backend = Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{backend: backend, logger: logger}
}

func (c *Cache) Members() []domain.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return loadList[domain.Member](c, KeyMembers)
}

// UpsertMember replaces the member with the same id or appends it.
func (c *Cache) UpsertMember(m domain.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := loadList[domain.Member](c, KeyMembers)
	members = upsert(members, m, func(x domain.Member) string { return x.ID })
	c.store(KeyMembers, members)
}

func (c *Cache) DeleteMember(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := loadList[domain.Member](c, KeyMembers)
	c.store(KeyMembers, remove(members, id, func(x domain.Member) string { return x.ID }))
}

func (c *Cache) Payments() []domain.Payment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return loadList[domain.Payment](c, KeyPayments)
}

// UpsertPayment replaces the payment with the same id or appends it.
func (c *Cache) UpsertPayment(p domain.Payment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payments := loadList[domain.Payment](c, KeyPayments)
	payments = upsert(payments, p, func(x domain.Payment) string { return x.ID })
	c.store(KeyPayments, payments)
}

func (c *Cache) DeletePayment(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payments := loadList[domain.Payment](c, KeyPayments)
	c.store(KeyPayments, remove(payments, id, func(x domain.Payment) string { return x.ID }))
}

// Settings returns the cached settings record and whether one was present.
func (c *Cache) Settings() (domain.Settings, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.backend.Get(KeySettings)
	if !ok || strings.TrimSpace(raw) == "" {
		return domain.Settings{}, false
	}
	var s domain.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		c.logger.Warn("discarding unreadable fallback slot", "key", KeySettings, "error", err)
		return domain.Settings{}, false
	}
	return s, true
}

func (c *Cache) SaveSettings(s domain.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(KeySettings, s)
}

// LegacyNextMemberID reads the sequential counter kept by older releases.
// It defaults to 1 and is informational only.
func (c *Cache) LegacyNextMemberID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.backend.Get(KeyNextMemberID)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(raw), `"`))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func loadList[T any](c *Cache, key string) []T {
	out := make([]T, 0)
	raw, ok := c.backend.Get(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.logger.Warn("discarding unreadable fallback slot", "key", key, "error", err)
		return make([]T, 0)
	}
	if out == nil {
		out = make([]T, 0)
	}
	return out
}

func (c *Cache) store(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("fallback slot encode failed", "key", key, "error", err)
		return
	}
	c.backend.Set(key, string(data))
}

func upsert[T any](items []T, item T, id func(T) string) []T {
	for i := range items {
		if id(items[i]) == id(item) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func remove[T any](items []T, target string, id func(T) string) []T {
	out := items[:0]
	for _, it := range items {
		if id(it) != target {
			out = append(out, it)
		}
	}
	return out
}
