package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gymdesk/internal/domain"
	"gymdesk/internal/fallback"
	"gymdesk/internal/identity"
	"gymdesk/internal/primary"
)

// Target is the persistence surface the drills exercise.
type Target interface {
	GetMembers(ctx context.Context) []domain.Member
	GetMember(ctx context.Context, id string) (domain.Member, error)
	SaveMember(ctx context.Context, m domain.Member) error
	DeleteMember(ctx context.Context, id string) error
	Cache() *fallback.Cache
}

// Drills returns the built-in experiments against target, whose primary
// store must be faulty.
func Drills(faulty *FaultyPrimary, target Target, alloc *identity.Allocator) []Experiment {
	return []Experiment{
		PrimaryOutage(faulty, target, alloc),
		PrimaryLatency(faulty, target, 2*time.Second, 50*time.Millisecond),
	}
}

// probeMembers writes throwaway members and removes them again afterwards.
type probeMembers struct {
	target Target
	alloc  *identity.Allocator

	mu  sync.Mutex
	ids []string
}

func (p *probeMembers) member() domain.Member {
	today := domain.Today()
	expiry, _ := domain.ExpiryFor(today, domain.Monthly)
	return domain.Member{
		ID:               identity.NewID(),
		MemberNumber:     p.alloc.MemberNumber(),
		FirstName:        "Chaos",
		LastName:         "Probe",
		Gender:           domain.Male,
		MobileNumber:     "000000",
		RenewDuration:    domain.Monthly,
		RegistrationDate: today,
		StartingDate:     today,
		ExpiryDate:       expiry,
		MembershipCost:   decimal.Zero,
		Status:           domain.StatusActive,
		Notes:            "written by the primary outage drill",
	}
}

// roundTrip saves a probe member and reports 100 when the read that follows
// returns it.
func (p *probeMembers) roundTrip(ctx context.Context) (float64, error) {
	m := p.member()
	if err := p.target.SaveMember(ctx, m); err != nil {
		return 0, fmt.Errorf("save probe member: %w", err)
	}
	p.mu.Lock()
	p.ids = append(p.ids, m.ID)
	p.mu.Unlock()

	got, err := p.target.GetMember(ctx, m.ID)
	if err != nil || got.MemberNumber != m.MemberNumber {
		return 0, nil
	}
	return 100, nil
}

func (p *probeMembers) cleanup(ctx context.Context) error {
	p.mu.Lock()
	ids := p.ids
	p.ids = nil
	p.mu.Unlock()

	var errs []error
	for _, id := range ids {
		p.target.Cache().DeleteMember(id)
		if err := p.target.DeleteMember(ctx, id); err != nil && !errors.Is(err, primary.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PrimaryOutage takes the primary store down and checks that a member saved
// during the outage can be read back through the fallback cache.
func PrimaryOutage(faulty *FaultyPrimary, target Target, alloc *identity.Allocator) Experiment {
	probes := &probeMembers{target: target, alloc: alloc}

	return Experiment{
		Name:       "primary-store-outage",
		Hypothesis: "Saves and reads keep working from the fallback cache while the primary store is down",
		SteadyState: []Probe{
			{
				Name:      "member_round_trip",
				Query:     probes.roundTrip,
				Threshold: Threshold{Operator: "==", Value: 100},
			},
			{
				Name: "injected_failures",
				Query: func(context.Context) (float64, error) {
					return float64(faulty.Failures()), nil
				},
				Threshold: Threshold{Operator: ">=", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "failure",
				Target: "primary-store",
				Execute: func(context.Context) error {
					faulty.Fail(nil)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "heal",
				Target: "primary-store",
				Execute: func(context.Context) error {
					faulty.Heal()
					return nil
				},
			},
			{
				Type:    "cleanup",
				Target:  "probe-members",
				Execute: probes.cleanup,
			},
		},
		Validation: []Assertion{
			{
				Probe:     "member_round_trip",
				Condition: func(v float64) bool { return v == 100 },
				Message:   "A member saved during the outage should read back from the fallback cache",
			},
			{
				Probe:     "injected_failures",
				Condition: func(v float64) bool { return v > 0 },
				Message:   "The primary store should have been attempted during the outage",
			},
		},
		Duration: 3 * time.Second,
		Interval: 500 * time.Millisecond,
	}
}

// PrimaryLatency slows the primary store down and checks that callers with a
// deadline of budget are still answered from the fallback cache in time.
func PrimaryLatency(faulty *FaultyPrimary, target Target, latency, budget time.Duration) Experiment {
	limit := float64((10 * budget).Milliseconds())

	return Experiment{
		Name:       "primary-store-latency",
		Hypothesis: "Member listings return within the caller deadline while the primary store is slow",
		SteadyState: []Probe{
			{
				Name: "member_list_ms",
				Query: func(ctx context.Context) (float64, error) {
					ctx, cancel := context.WithTimeout(ctx, budget)
					defer cancel()
					start := time.Now()
					target.GetMembers(ctx)
					return float64(time.Since(start).Milliseconds()), nil
				},
				Threshold: Threshold{Operator: "<", Value: limit},
			},
		},
		Method: []Action{
			{
				Type:   "latency",
				Target: "primary-store",
				Execute: func(context.Context) error {
					faulty.Delay(latency)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "heal",
				Target: "primary-store",
				Execute: func(context.Context) error {
					faulty.Heal()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Probe:     "member_list_ms",
				Condition: func(v float64) bool { return v < limit },
				Message:   "Listings should fall back before the primary store answers",
			},
		},
		Duration: 3 * time.Second,
		Interval: 500 * time.Millisecond,
	}
}
