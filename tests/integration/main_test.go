// tests/integration/main_test.go
package integration

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"gymdesk/internal/chaos"
	"gymdesk/internal/clients"
	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
	"gymdesk/internal/fallback"
	"gymdesk/internal/membership"
	"gymdesk/internal/notify"
	"gymdesk/internal/primary"
	"gymdesk/internal/store"
)

type TestSuite struct {
	faulty  *chaos.FaultyPrimary
	backend *fallback.SQLiteBackend
	client  *clients.GymClient
	server  *httptest.Server
}

func setupTestSuite(t *testing.T, inner store.Primary) *TestSuite {
	t.Helper()
	backend, err := fallback.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)

	faulty := chaos.NewFaultyPrimary(inner)
	facade := store.New(faulty, fallback.New(backend, nil), nil)
	svc := membership.NewService(facade, membership.Options{
		Notifier: notify.NewCenter(),
		Limiter:  rate.NewLimiter(rate.Inf, 0),
	})

	hash, err := membership.HashPassword("integration")
	require.NoError(t, err)
	srv := httptest.NewServer(membership.NewHandler(svc, nil, membership.BasicAuthGate("admin", hash), nil).Router())

	return &TestSuite{
		faulty:  faulty,
		backend: backend,
		client:  clients.NewGymClient(srv.URL, clients.WithBasicAuth("admin", "integration")),
		server:  srv,
	}
}

func (ts *TestSuite) teardown() {
	ts.server.Close()
	ts.backend.Close()
}

func registration(first, mobile string, d domain.RenewDuration) membership.RegisterInput {
	return membership.RegisterInput{
		FirstName:                    first,
		LastName:                     "Integration",
		Gender:                       domain.Female,
		DateOfBirth:                  domain.NewDate(1995, time.May, 4),
		MobileNumber:                 mobile,
		EmergencyContactName:         "Fatma Integration",
		EmergencyContactPhone:        "+968 9222 9999",
		EmergencyContactRelationship: "Sister",
		IDNumber:                     "88776655",
		RenewDuration:                d,
		PaymentMethod:                domain.MethodCash,
	}
}

func TestRegistrationFlow(t *testing.T) {
	ts := setupTestSuite(t, primary.NewMemory())
	defer ts.teardown()
	ctx := context.Background()

	member, err := ts.client.RegisterMember(ctx, registration("Noor", "+968 9222 0001", domain.SixMonths))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, member.Status)
	assert.True(t, member.MembershipCost.Equal(decimal.NewFromInt(150)))

	members, err := ts.client.ListMembers(ctx, derive.FilterActive, "")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, member.ID, members[0].ID)

	payments, err := ts.client.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, member.ID, payments[0].MemberID)

	dash, err := ts.client.Dashboard(ctx, domain.Today())
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Stats.ActiveMembers)
	assert.True(t, dash.Stats.TotalRevenue.Equal(decimal.NewFromInt(150)))
}

func TestPrimaryOutageFallsBackToCache(t *testing.T) {
	ts := setupTestSuite(t, primary.NewMemory())
	defer ts.teardown()
	ctx := context.Background()

	before, err := ts.client.RegisterMember(ctx, registration("Layla", "+968 9222 0002", domain.Monthly))
	require.NoError(t, err)

	ts.faulty.Fail(nil)
	during, err := ts.client.RegisterMember(ctx, registration("Huda", "+968 9222 0003", domain.Monthly))
	require.NoError(t, err, "saves are absorbed by the fallback cache")

	view, err := ts.client.GetMember(ctx, during.ID)
	require.NoError(t, err)
	assert.Equal(t, during.MemberNumber, view.MemberNumber)

	members, err := ts.client.ListMembers(ctx, derive.FilterAll, "")
	require.NoError(t, err)
	require.Len(t, members, 1, "the outage listing only holds what the cache has")
	assert.Equal(t, during.ID, members[0].ID)

	ts.faulty.Heal()
	members, err = ts.client.ListMembers(ctx, derive.FilterAll, "")
	require.NoError(t, err)
	require.Len(t, members, 1, "primary answers again and results are never merged")
	assert.Equal(t, before.ID, members[0].ID)

	_, err = ts.client.GetMember(ctx, during.ID)
	require.NoError(t, err, "an id the primary lacks is answered from the cache")
}

func TestConcurrentRegistrations(t *testing.T) {
	ts := setupTestSuite(t, primary.NewMemory())
	defer ts.teardown()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.client.RegisterMember(ctx, registration("Sara", "+968 9222 1000", domain.Monthly))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	payments, err := ts.client.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, n, "every registration saves exactly one payment")
	for _, p := range payments {
		_, err := ts.client.GetMember(ctx, p.MemberID)
		assert.NoError(t, err, "member %s is readable from one of the stores", p.MemberID)
	}
}

func TestPostgresRegistrationFlow(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := primary.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	defer pg.Close()
	require.NoError(t, pg.EnsureSchema(ctx))

	ts := setupTestSuite(t, pg)
	defer ts.teardown()

	member, err := ts.client.RegisterMember(ctx, registration("Rania", "+968 9222 0009", domain.Yearly))
	require.NoError(t, err)

	view, err := ts.client.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, member.MemberNumber, view.MemberNumber)
	assert.True(t, view.MembershipCost.Equal(decimal.NewFromInt(300)))

	require.NoError(t, pg.DeleteMember(ctx, member.ID))
}
