// Package store is the persistence facade every caller goes through. Reads and
// saves try the primary store first and quietly answer from the fallback
// cache when it fails; deletes have no fallback.
package store

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
	"gymdesk/internal/fallback"
)

var (
	// ErrNotFound is returned by single-record reads when neither store has it.
	ErrNotFound = errors.New("not found")
	// ErrNoPrimary is returned by operations that need the primary store when
	// none is configured.
	ErrNoPrimary = errors.New("no primary store configured")
)

// Primary is the remote store contract the facade consumes.
type Primary interface {
	ListMembers(ctx context.Context) ([]domain.Member, error)
	GetMember(ctx context.Context, id string) (domain.Member, error)
	UpsertMember(ctx context.Context, m domain.Member) error
	DeleteMember(ctx context.Context, id string) error

	ListPayments(ctx context.Context) ([]domain.Payment, error)
	ListPaymentsByMember(ctx context.Context, memberID string) ([]domain.Payment, error)
	GetPayment(ctx context.Context, id string) (domain.Payment, error)
	UpsertPayment(ctx context.Context, p domain.Payment) error

	GetSettings(ctx context.Context) (domain.Settings, error)
	UpsertSettings(ctx context.Context, s domain.Settings) error

	MemberPaymentHistory(ctx context.Context, memberNumber string) ([]domain.PaymentHistoryEntry, error)
	PaymentSummary(ctx context.Context) ([]domain.PaymentSummaryRow, error)
}

// Facade selects between the primary store and the fallback cache per call.
// Results always come from exactly one of them.
type Facade struct {
	primary   Primary
	cache     *fallback.Cache
	logger    *slog.Logger
	fallbacks metric.Int64Counter
}

// New builds a facade. A nil primary gives a fallback-only configuration.
func New(primary Primary, cache *fallback.Cache, logger *slog.Logger) *Facade {
	if cache == nil {
		cache = fallback.New(fallback.Disabled{}, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	counter, err := otel.Meter("gymdesk/store").Int64Counter(
		"gymdesk.store.fallbacks",
		metric.WithDescription("Operations answered by the fallback cache after a primary failure"),
	)
	if err != nil {
		logger.Warn("fallback counter unavailable", "error", err)
	}
	return &Facade{primary: primary, cache: cache, logger: logger, fallbacks: counter}
}

// Cache exposes the fallback cache for inspection tools.
func (f *Facade) Cache() *fallback.Cache {
	return f.cache
}

// HasPrimary reports whether a primary store is configured.
func (f *Facade) HasPrimary() bool {
	return f.primary != nil
}

func (f *Facade) downgrade(ctx context.Context, op string, err error) {
	if err != nil {
		f.logger.WarnContext(ctx, "primary store failed, using fallback cache", "op", op, "error", err)
	}
	if f.fallbacks != nil {
		f.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

// GetMembers lists members from the primary store, or from the fallback
// cache when the primary read fails. The two are never merged.
func (f *Facade) GetMembers(ctx context.Context) []domain.Member {
	if f.primary != nil {
		members, err := f.primary.ListMembers(ctx)
		if err == nil {
			return members
		}
		f.downgrade(ctx, "get_members", err)
	}
	return f.cache.Members()
}

// GetMember reads one member from the primary store, then the fallback cache.
// Any primary error, including not found, falls through to the cache.
func (f *Facade) GetMember(ctx context.Context, id string) (domain.Member, error) {
	if f.primary != nil {
		m, err := f.primary.GetMember(ctx, id)
		if err == nil {
			return m, nil
		}
		f.downgrade(ctx, "get_member", err)
	}
	for _, m := range f.cache.Members() {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Member{}, ErrNotFound
}

// SaveMember validates m and writes it to the primary store, or to the
// fallback cache if the primary write fails. Only validation errors surface.
func (f *Facade) SaveMember(ctx context.Context, m domain.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if f.primary != nil {
		err := f.primary.UpsertMember(ctx, m)
		if err == nil {
			return nil
		}
		f.downgrade(ctx, "save_member", err)
	}
	f.cache.UpsertMember(m)
	return nil
}

// DeleteMember removes the member from the primary store only. Failures are
// returned, and the fallback cache is left untouched.
func (f *Facade) DeleteMember(ctx context.Context, id string) error {
	if f.primary == nil {
		return ErrNoPrimary
	}
	return f.primary.DeleteMember(ctx, id)
}

// GetPayments lists payments from the primary store or the fallback cache.
func (f *Facade) GetPayments(ctx context.Context) []domain.Payment {
	if f.primary != nil {
		payments, err := f.primary.ListPayments(ctx)
		if err == nil {
			return payments
		}
		f.downgrade(ctx, "get_payments", err)
	}
	return f.cache.Payments()
}

// GetPaymentsByMember lists one member's payments, newest first from the
// primary store or filtered from the fallback cache.
func (f *Facade) GetPaymentsByMember(ctx context.Context, memberID string) []domain.Payment {
	if f.primary != nil {
		payments, err := f.primary.ListPaymentsByMember(ctx, memberID)
		if err == nil {
			return payments
		}
		f.downgrade(ctx, "get_payments_by_member", err)
	}
	out := make([]domain.Payment, 0)
	for _, p := range f.cache.Payments() {
		if p.MemberID == memberID {
			out = append(out, p)
		}
	}
	return out
}

// GetPayment reads one payment from the primary store, then the fallback cache.
func (f *Facade) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	if f.primary != nil {
		p, err := f.primary.GetPayment(ctx, id)
		if err == nil {
			return p, nil
		}
		f.downgrade(ctx, "get_payment", err)
	}
	for _, p := range f.cache.Payments() {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Payment{}, ErrNotFound
}

// SavePayment validates p and writes it to the primary store, or to the
// fallback cache if the primary write fails.
func (f *Facade) SavePayment(ctx context.Context, p domain.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if f.primary != nil {
		err := f.primary.UpsertPayment(ctx, p)
		if err == nil {
			return nil
		}
		f.downgrade(ctx, "save_payment", err)
	}
	f.cache.UpsertPayment(p)
	return nil
}

// GetSettings never fails: primary, then the fallback record, then defaults.
func (f *Facade) GetSettings(ctx context.Context) domain.Settings {
	if f.primary != nil {
		s, err := f.primary.GetSettings(ctx)
		if err == nil {
			return s
		}
		f.downgrade(ctx, "get_settings", err)
	}
	if s, ok := f.cache.Settings(); ok {
		return s
	}
	return domain.DefaultSettings()
}

// SaveSettings validates s and writes it to the primary store, or to the
// fallback cache if the primary write fails.
func (f *Facade) SaveSettings(ctx context.Context, s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if f.primary != nil {
		err := f.primary.UpsertSettings(ctx, s)
		if err == nil {
			return nil
		}
		f.downgrade(ctx, "save_settings", err)
	}
	f.cache.SaveSettings(s)
	return nil
}

// MemberPaymentHistory reads the history view, or rebuilds it from the
// fallback snapshot.
func (f *Facade) MemberPaymentHistory(ctx context.Context, memberNumber string) []domain.PaymentHistoryEntry {
	if f.primary != nil {
		entries, err := f.primary.MemberPaymentHistory(ctx, memberNumber)
		if err == nil {
			return entries
		}
		f.downgrade(ctx, "member_payment_history", err)
	}
	return derive.PaymentHistory(f.cache.Members(), f.cache.Payments(), memberNumber)
}

// PaymentSummary reads the summary view, or rebuilds it from the fallback
// snapshot.
func (f *Facade) PaymentSummary(ctx context.Context) []domain.PaymentSummaryRow {
	if f.primary != nil {
		rows, err := f.primary.PaymentSummary(ctx)
		if err == nil {
			return rows
		}
		f.downgrade(ctx, "payment_summary", err)
	}
	return derive.PaymentSummary(f.cache.Payments())
}
