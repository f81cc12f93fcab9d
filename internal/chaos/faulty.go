package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"gymdesk/internal/domain"
	"gymdesk/internal/store"
)

// ErrInjected is the failure returned by a FaultyPrimary during an outage.
var ErrInjected = errors.New("chaos: injected primary outage")

// FaultyPrimary wraps a primary store and fails or slows its calls while a
// fault is injected.
type FaultyPrimary struct {
	inner store.Primary

	mu       sync.Mutex
	err      error
	latency  time.Duration
	failures int
}

var _ store.Primary = (*FaultyPrimary)(nil)

func NewFaultyPrimary(inner store.Primary) *FaultyPrimary {
	return &FaultyPrimary{inner: inner}
}

// Fail makes every call return err. A nil err injects ErrInjected.
func (f *FaultyPrimary) Fail(err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Delay holds every call for d before it reaches the wrapped store.
func (f *FaultyPrimary) Delay(d time.Duration) {
	f.mu.Lock()
	f.latency = d
	f.mu.Unlock()
}

// Heal removes every injected fault.
func (f *FaultyPrimary) Heal() {
	f.mu.Lock()
	f.err = nil
	f.latency = 0
	f.mu.Unlock()
}

// Failures counts the calls that were failed on purpose.
func (f *FaultyPrimary) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

func (f *FaultyPrimary) fault(ctx context.Context) error {
	f.mu.Lock()
	err, latency := f.err, f.latency
	if err != nil {
		f.failures++
	}
	f.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func (f *FaultyPrimary) ListMembers(ctx context.Context) ([]domain.Member, error) {
	if err := f.fault(ctx); err != nil {
		return nil, err
	}
	return f.inner.ListMembers(ctx)
}

func (f *FaultyPrimary) GetMember(ctx context.Context, id string) (domain.Member, error) {
	if err := f.fault(ctx); err != nil {
		return domain.Member{}, err
	}
	return f.inner.GetMember(ctx, id)
}

func (f *FaultyPrimary) UpsertMember(ctx context.Context, m domain.Member) error {
	if err := f.fault(ctx); err != nil {
		return err
	}
	return f.inner.UpsertMember(ctx, m)
}

func (f *FaultyPrimary) DeleteMember(ctx context.Context, id string) error {
	if err := f.fault(ctx); err != nil {
		return err
	}
	return f.inner.DeleteMember(ctx, id)
}

func (f *FaultyPrimary) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	if err := f.fault(ctx); err != nil {
		return nil, err
	}
	return f.inner.ListPayments(ctx)
}

func (f *FaultyPrimary) ListPaymentsByMember(ctx context.Context, memberID string) ([]domain.Payment, error) {
	if err := f.fault(ctx); err != nil {
		return nil, err
	}
	return f.inner.ListPaymentsByMember(ctx, memberID)
}

func (f *FaultyPrimary) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	if err := f.fault(ctx); err != nil {
		return domain.Payment{}, err
	}
	return f.inner.GetPayment(ctx, id)
}

func (f *FaultyPrimary) UpsertPayment(ctx context.Context, p domain.Payment) error {
	if err := f.fault(ctx); err != nil {
		return err
	}
	return f.inner.UpsertPayment(ctx, p)
}

func (f *FaultyPrimary) GetSettings(ctx context.Context) (domain.Settings, error) {
	if err := f.fault(ctx); err != nil {
		return domain.Settings{}, err
	}
	return f.inner.GetSettings(ctx)
}

func (f *FaultyPrimary) UpsertSettings(ctx context.Context, s domain.Settings) error {
	if err := f.fault(ctx); err != nil {
		return err
	}
	return f.inner.UpsertSettings(ctx, s)
}

func (f *FaultyPrimary) MemberPaymentHistory(ctx context.Context, memberNumber string) ([]domain.PaymentHistoryEntry, error) {
	if err := f.fault(ctx); err != nil {
		return nil, err
	}
	return f.inner.MemberPaymentHistory(ctx, memberNumber)
}

func (f *FaultyPrimary) PaymentSummary(ctx context.Context) ([]domain.PaymentSummaryRow, error) {
	if err := f.fault(ctx); err != nil {
		return nil, err
	}
	return f.inner.PaymentSummary(ctx)
}
