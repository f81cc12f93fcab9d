package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gymdesk/internal/domain"
	"gymdesk/internal/fallback"
	"gymdesk/internal/primary"
)

var errOffline = errors.New("dial tcp: connection refused")

func newMember(id, number string) domain.Member {
	start := domain.NewDate(2024, time.March, 1)
	return domain.Member{
		ID:               id,
		MemberNumber:     number,
		FirstName:        "Said",
		LastName:         "Al Kindi",
		Gender:           domain.Male,
		MobileNumber:     "+968 9333 4444",
		RenewDuration:    domain.Monthly,
		RegistrationDate: start,
		StartingDate:     start,
		ExpiryDate:       start.AddMonths(1),
		MembershipCost:   decimal.NewFromInt(30),
		PaymentDate:      start,
		Status:           domain.StatusActive,
	}
}

func newPayment(id, memberID string, amount int64) domain.Payment {
	return domain.Payment{
		ID:       id,
		MemberID: memberID,
		Amount:   decimal.NewFromInt(amount),
		Date:     domain.NewDate(2024, time.March, 1),
		Type:     domain.PaymentMembership,
		Method:   domain.MethodCash,
	}
}

func setup() (*Facade, *primary.Memory, *fallback.Cache) {
	p := primary.NewMemory()
	c := fallback.New(fallback.NewMemoryBackend(), nil)
	return New(p, c, nil), p, c
}

func TestReadsComeFromPrimaryOnly(t *testing.T) {
	ctx := context.Background()
	f, p, c := setup()
	require.NoError(t, p.UpsertMember(ctx, newMember("p", "000001")))
	c.UpsertMember(newMember("c", "000002"))

	members := f.GetMembers(ctx)
	require.Len(t, members, 1)
	assert.Equal(t, "p", members[0].ID, "no merge with the fallback cache")
}

func TestReadsFallBackOnPrimaryFailure(t *testing.T) {
	ctx := context.Background()
	f, p, c := setup()
	require.NoError(t, p.UpsertMember(ctx, newMember("p", "000001")))
	c.UpsertMember(newMember("c", "000002"))
	c.UpsertPayment(newPayment("pay", "c", 55))
	p.WithError(errOffline)

	members := f.GetMembers(ctx)
	require.Len(t, members, 1)
	assert.Equal(t, "c", members[0].ID)

	m, err := f.GetMember(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "000002", m.MemberNumber)
	_, err = f.GetMember(ctx, "p")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, f.GetPayments(ctx), 1)
	assert.Len(t, f.GetPaymentsByMember(ctx, "c"), 1)
	assert.Empty(t, f.GetPaymentsByMember(ctx, "p"))
	got, err := f.GetPayment(ctx, "pay")
	require.NoError(t, err)
	assert.Equal(t, "55", got.Amount.String())

	history := f.MemberPaymentHistory(ctx, "000002")
	require.Len(t, history, 1)
	assert.Equal(t, "Said", history[0].FirstName)
	assert.Len(t, f.PaymentSummary(ctx), 1)
}

func TestSaveGoesToExactlyOneStore(t *testing.T) {
	ctx := context.Background()
	f, p, c := setup()

	require.NoError(t, f.SaveMember(ctx, newMember("a", "000001")))
	assert.Empty(t, c.Members(), "primary success does not write through")

	p.WithError(errOffline)
	require.NoError(t, f.SaveMember(ctx, newMember("b", "000002")))
	require.Len(t, c.Members(), 1)
	assert.Equal(t, "b", c.Members()[0].ID)

	p.WithError(nil)
	members, err := p.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "a", members[0].ID, "divergence is not reconciled")
}

func TestSaveRejectsInvalidBeforeAnyStore(t *testing.T) {
	ctx := context.Background()
	f, p, c := setup()

	bad := newMember("a", "1")
	bad.FirstName = ""
	err := f.SaveMember(ctx, bad)
	v, ok := domain.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "firstName")
	assert.Contains(t, v.Fields, "memberNumber")

	err = f.SavePayment(ctx, domain.Payment{ID: "x", Amount: decimal.NewFromInt(-1)})
	_, ok = domain.AsValidationError(err)
	require.True(t, ok)

	assert.Empty(t, p.Calls())
	assert.Empty(t, c.Members())
	assert.Empty(t, c.Payments())
}

func TestDeleteIsPrimaryOnly(t *testing.T) {
	ctx := context.Background()
	f, p, c := setup()
	c.UpsertMember(newMember("a", "000001"))

	p.WithError(errOffline)
	err := f.DeleteMember(ctx, "a")
	require.ErrorIs(t, err, errOffline)
	assert.Len(t, c.Members(), 1, "fallback untouched by a failed delete")

	p.WithError(nil)
	require.NoError(t, p.UpsertMember(ctx, newMember("a", "000001")))
	require.NoError(t, f.DeleteMember(ctx, "a"))
	_, err = p.GetMember(ctx, "a")
	assert.ErrorIs(t, err, primary.ErrNotFound)
	assert.Len(t, c.Members(), 1)

	fallbackOnly := New(nil, c, nil)
	assert.ErrorIs(t, fallbackOnly.DeleteMember(ctx, "a"), ErrNoPrimary)
}

func TestSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	f, p, c := setup()

	p.WithError(errOffline)
	assert.Equal(t, domain.DefaultSettings().GymName, f.GetSettings(ctx).GymName)

	s := domain.DefaultSettings()
	s.GymName = "Warriors Gym Ruwi"
	require.NoError(t, f.SaveSettings(ctx, s))
	stored, ok := c.Settings()
	require.True(t, ok)
	assert.Equal(t, "Warriors Gym Ruwi", stored.GymName)
	assert.Equal(t, "Warriors Gym Ruwi", f.GetSettings(ctx).GymName)

	p.WithError(nil)
	require.NoError(t, f.SaveSettings(ctx, domain.DefaultSettings()))
	assert.Equal(t, domain.DefaultSettings().GymName, f.GetSettings(ctx).GymName)

	_, isValidation := domain.AsValidationError(f.SaveSettings(ctx, domain.Settings{}))
	assert.True(t, isValidation)
}

func TestFallbackTransparency(t *testing.T) {
	ctx := context.Background()
	failing := primary.NewMemory().WithError(errOffline)
	viaFailure := New(failing, fallback.New(fallback.NewMemoryBackend(), nil), nil)
	fallbackOnly := New(nil, fallback.New(fallback.NewMemoryBackend(), nil), nil)

	for i, number := range []string{"000001", "000002", "000003"} {
		m := newMember(string(rune('a'+i)), number)
		require.NoError(t, viaFailure.SaveMember(ctx, m))
		require.NoError(t, fallbackOnly.SaveMember(ctx, m))
	}
	assert.Equal(t, fallbackOnly.GetMembers(ctx), viaFailure.GetMembers(ctx))
	assert.Equal(t, fallbackOnly.GetSettings(ctx), viaFailure.GetSettings(ctx))
}

func TestSaveIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		offline := rapid.Bool().Draw(t, "offline")
		p := primary.NewMemory()
		if offline {
			p.WithError(errOffline)
		}
		f := New(p, fallback.New(fallback.NewMemoryBackend(), nil), nil)

		m := newMember("m1", rapid.StringMatching(`[0-9]{6}`).Draw(t, "number"))
		m.Status = rapid.SampledFrom([]domain.MemberStatus{domain.StatusActive, domain.StatusSuspended}).Draw(t, "status")

		if err := f.SaveMember(ctx, m); err != nil {
			t.Fatalf("first save: %v", err)
		}
		once := f.GetMembers(ctx)
		times := rapid.IntRange(1, 4).Draw(t, "repeats")
		for i := 0; i < times; i++ {
			if err := f.SaveMember(ctx, m); err != nil {
				t.Fatalf("repeat save: %v", err)
			}
		}
		again := f.GetMembers(ctx)
		if len(once) != 1 || len(again) != 1 || once[0].Status != again[0].Status {
			t.Fatalf("repeated save changed state: %v -> %v", once, again)
		}
	})
}

func TestSaveMemberAbsorbsInsertRace(t *testing.T) {
	ctx := context.Background()
	var probed sync.WaitGroup
	probed.Add(2)
	p := primary.NewMemory().OnProbe(func() {
		probed.Done()
		probed.Wait()
	})
	c := fallback.New(fallback.NewMemoryBackend(), nil)
	f := New(p, c, nil)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- f.SaveMember(ctx, newMember("same", "000042")) }()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	stored, err := p.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "one insert wins in the primary store")
	cached := c.Members()
	require.Len(t, cached, 1, "the duplicate is absorbed by the fallback cache")
	assert.Equal(t, "same", cached[0].ID)
}
