package identity

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMemberNumberFormula(t *testing.T) {
	clock := time.UnixMilli(1_709_251_200_123)
	a := NewAllocator(
		WithClock(func() time.Time { return clock }),
		WithRand(func(int) int { return 900 }),
	)
	// 1709251200123 + 900 = 1709251201023 -> 201023
	assert.Equal(t, "201023", a.MemberNumber())
}

func TestMemberNumberPadsToSixDigits(t *testing.T) {
	a := NewAllocator(
		WithClock(func() time.Time { return time.UnixMilli(3_000_042) }),
		WithRand(func(int) int { return 0 }),
	)
	assert.Equal(t, "000042", a.MemberNumber())
}

func TestMemberNumberClockNeverGoesBack(t *testing.T) {
	readings := []int64{5_000_500, 5_000_100}
	i := 0
	a := NewAllocator(
		WithClock(func() time.Time {
			ms := readings[i]
			i++
			return time.UnixMilli(ms)
		}),
		WithRand(func(int) int { return 0 }),
	)
	assert.Equal(t, "000500", a.MemberNumber())
	assert.Equal(t, "000500", a.MemberNumber())
}

func TestMemberNumberShape(t *testing.T) {
	shape := regexp.MustCompile(`^[0-9]{6}$`)
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(0, 1<<45).Draw(t, "ms")
		r := rapid.IntRange(0, 999).Draw(t, "rand")
		a := NewAllocator(
			WithClock(func() time.Time { return time.UnixMilli(ms) }),
			WithRand(func(int) int { return r }),
		)
		if n := a.MemberNumber(); !shape.MatchString(n) {
			t.Fatalf("member number %q is not six digits", n)
		}
	})
}

func TestDefaultAllocator(t *testing.T) {
	n := NewAllocator().MemberNumber()
	assert.Len(t, n, 6)
}

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}
