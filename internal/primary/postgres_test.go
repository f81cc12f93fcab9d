package primary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymdesk/internal/domain"
)

// setupPostgres connects using the PG* environment and skips the test when no
// server is reachable.
func setupPostgres(t *testing.T) *Postgres {
	t.Helper()

	env := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		env("PGHOST", "localhost"), env("PGPORT", "5432"), env("PGUSER", "user"),
		env("PGPASSWORD", "password"), env("PGDATABASE", "testdb"))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("skipping postgres tests: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, classify(fmt.Errorf("wrapped: %w", sql.ErrNoRows)), ErrNotFound)
	assert.ErrorIs(t, classify(&pq.Error{Code: "23505", Detail: "Key (member_number)=(000001) already exists."}), ErrDuplicate)

	other := errors.New("timeout")
	assert.Equal(t, other, classify(other))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholders(3))
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), " ")
	assert.Error(t, err)
}

func TestPostgresMemberLifecycle(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	m := sampleMember(uuid.NewString(), fmt.Sprintf("%06d", time.Now().UnixNano()%1_000_000))
	m.Notes = "left knee injury"
	require.NoError(t, store.UpsertMember(ctx, m))
	t.Cleanup(func() { _ = store.DeleteMember(context.Background(), m.ID) })

	got, err := store.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.MemberNumber, got.MemberNumber)
	assert.Equal(t, m.ExpiryDate.String(), got.ExpiryDate.String())
	assert.True(t, m.MembershipCost.Equal(got.MembershipCost))
	assert.Equal(t, "left knee injury", got.Notes)

	m.Status = domain.StatusSuspended
	require.NoError(t, store.UpsertMember(ctx, m))
	got, err = store.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, got.Status)

	clash := sampleMember(uuid.NewString(), m.MemberNumber)
	assert.ErrorIs(t, store.UpsertMember(ctx, clash), ErrDuplicate)

	p := domain.Payment{
		ID: uuid.NewString(), MemberID: m.ID, Amount: decimal.RequireFromString("30.500"),
		Date: m.PaymentDate, Type: domain.PaymentMembership, Method: domain.MethodCash,
	}
	require.NoError(t, store.UpsertPayment(ctx, p))
	history, err := store.MemberPaymentHistory(ctx, m.MemberNumber)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "30.5", history[0].Amount.String())

	require.NoError(t, store.DeleteMember(ctx, m.ID))
	_, err = store.GetMember(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresSettings(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	s := domain.DefaultSettings()
	s.Phone = "+968 2400 0000"
	require.NoError(t, store.UpsertSettings(ctx, s))
	require.NoError(t, store.UpsertSettings(ctx, s))

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Phone, got.Phone)
	assert.True(t, s.MembershipPrices.Yearly.Equal(got.MembershipPrices.Yearly))
}
