package clients

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
	"gymdesk/internal/fallback"
	"gymdesk/internal/membership"
	"gymdesk/internal/notify"
	"gymdesk/internal/primary"
	"gymdesk/internal/store"
)

func newServer(t *testing.T, gate membership.Gate) *httptest.Server {
	t.Helper()
	facade := store.New(primary.NewMemory(), fallback.New(fallback.NewMemoryBackend(), nil), nil)
	svc := membership.NewService(facade, membership.Options{
		Limiter: rate.NewLimiter(rate.Inf, 0),
		Now:     func() time.Time { return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC) },
	})
	srv := httptest.NewServer(membership.NewHandler(svc, notify.NewCenter(), gate, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestGymClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)
	c := NewGymClient(srv.URL)

	member, err := c.RegisterMember(ctx, membership.RegisterInput{
		FirstName:                    "Aisha",
		LastName:                     "Al Said",
		Gender:                       domain.Female,
		DateOfBirth:                  domain.NewDate(1998, time.February, 12),
		MobileNumber:                 "+968 9111 1111",
		EmergencyContactName:         "Khalid Al Said",
		EmergencyContactPhone:        "+968 9111 2222",
		EmergencyContactRelationship: "Father",
		IDNumber:                     "12345678",
		RenewDuration:                domain.Monthly,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-10", member.ExpiryDate.String())

	view, err := c.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, member.MemberNumber, view.MemberNumber)
	assert.False(t, view.ExpiringSoon)

	members, err := c.ListMembers(ctx, derive.FilterActive, "aisha")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	payments, err := c.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(decimal.NewFromInt(30)))

	dash, err := c.Dashboard(ctx, domain.NewDate(2024, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Stats.NewMembersThisMonth)
	assert.True(t, dash.Stats.MonthlyRevenue.Equal(decimal.NewFromInt(30)))

	report, err := c.MonthlyReport(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, report.Year)
	assert.Equal(t, 1, report.NewMembers)
}

func TestGymClientSettings(t *testing.T) {
	ctx := context.Background()
	c := NewGymClient(newServer(t, nil).URL)

	s, err := c.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings().GymName, s.GymName)

	s.GymName = "Warriors Gym Muscat"
	require.NoError(t, c.SaveSettings(ctx, s))
	got, err := c.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Warriors Gym Muscat", got.GymName)

	s.GymName = ""
	err = c.SaveSettings(ctx, s)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
	assert.Contains(t, apiErr.Fields, "gymName")
}

func TestGymClientErrors(t *testing.T) {
	ctx := context.Background()
	hash, err := membership.HashPassword("s3cret")
	require.NoError(t, err)
	srv := newServer(t, membership.BasicAuthGate("admin", hash))

	_, err = NewGymClient(srv.URL).GetSettings(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)

	authed := NewGymClient(srv.URL, WithBasicAuth("admin", "s3cret"))
	_, err = authed.GetSettings(ctx)
	require.NoError(t, err)

	_, err = authed.GetMember(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
