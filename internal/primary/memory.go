package primary

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
)

// Memory is an in-process primary store. It backs the "memory" primary
// driver for local development and stands in for Postgres in tests.
type Memory struct {
	mu       sync.Mutex
	members  []domain.Member
	payments []domain.Payment
	settings *domain.Settings
	err      error
	calls    []string
	onProbe  func()
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// WithError makes every subsequent call fail with err; nil restores service.
func (m *Memory) WithError(err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// OnProbe installs fn to run in UpsertMember after the existence probe and
// before the write.
func (m *Memory) OnProbe(fn func()) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProbe = fn
	return m
}

// Calls returns the operations executed so far, e.g. "upsert member".
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Memory) begin(op, entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op+" "+entity)
	if m.err != nil {
		return storeErr(op, entity, m.err)
	}
	return nil
}

func (m *Memory) ListMembers(context.Context) ([]domain.Member, error) {
	if err := m.begin("list", "member"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Member, 0, len(m.members))
	for i := len(m.members) - 1; i >= 0; i-- {
		out = append(out, m.members[i])
	}
	return out, nil
}

func (m *Memory) GetMember(_ context.Context, id string) (domain.Member, error) {
	if err := m.begin("get", "member"); err != nil {
		return domain.Member{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.memberIndex(id); i >= 0 {
		return m.members[i], nil
	}
	return domain.Member{}, storeErr("get", "member", ErrNotFound)
}

// UpsertMember keeps the probe and the write as separate critical sections,
// like the Postgres store, and enforces unique member numbers on insert.
func (m *Memory) UpsertMember(_ context.Context, member domain.Member) error {
	if err := m.begin("upsert", "member"); err != nil {
		return err
	}
	m.mu.Lock()
	exists := m.memberIndex(member.ID) >= 0
	probed := m.onProbe
	m.mu.Unlock()
	if probed != nil {
		probed()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if exists {
		// A row deleted between probe and write is not resurrected, matching
		// an UPDATE that touches zero rows.
		if i := m.memberIndex(member.ID); i >= 0 {
			m.members[i] = member
		}
		return nil
	}
	for _, existing := range m.members {
		if existing.ID == member.ID {
			return storeErr("upsert", "member", fmt.Errorf("%w: id %s", ErrDuplicate, member.ID))
		}
		if existing.MemberNumber == member.MemberNumber {
			return storeErr("upsert", "member", fmt.Errorf("%w: member number %s", ErrDuplicate, member.MemberNumber))
		}
	}
	m.members = append(m.members, member)
	return nil
}

func (m *Memory) DeleteMember(_ context.Context, id string) error {
	if err := m.begin("delete", "member"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.memberIndex(id); i >= 0 {
		m.members = append(m.members[:i], m.members[i+1:]...)
	}
	return nil
}

func (m *Memory) ListPayments(context.Context) ([]domain.Payment, error) {
	if err := m.begin("list", "payment"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedByDateDesc(m.payments, func(domain.Payment) bool { return true }), nil
}

func (m *Memory) ListPaymentsByMember(_ context.Context, memberID string) ([]domain.Payment, error) {
	if err := m.begin("list_by_member", "payment"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedByDateDesc(m.payments, func(p domain.Payment) bool { return p.MemberID == memberID }), nil
}

func (m *Memory) GetPayment(_ context.Context, id string) (domain.Payment, error) {
	if err := m.begin("get", "payment"); err != nil {
		return domain.Payment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Payment{}, storeErr("get", "payment", ErrNotFound)
}

func (m *Memory) UpsertPayment(_ context.Context, p domain.Payment) error {
	if err := m.begin("upsert", "payment"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.payments {
		if m.payments[i].ID == p.ID {
			m.payments[i] = p
			return nil
		}
	}
	m.payments = append(m.payments, p)
	return nil
}

func (m *Memory) GetSettings(context.Context) (domain.Settings, error) {
	if err := m.begin("get", "settings"); err != nil {
		return domain.Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return domain.Settings{}, storeErr("get", "settings", ErrNotFound)
	}
	return *m.settings, nil
}

func (m *Memory) UpsertSettings(_ context.Context, s domain.Settings) error {
	if err := m.begin("upsert", "settings"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

// MemberPaymentHistory joins payments to members the way the Postgres view does.
func (m *Memory) MemberPaymentHistory(_ context.Context, memberNumber string) ([]domain.PaymentHistoryEntry, error) {
	if err := m.begin("history", "payment"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return derive.PaymentHistory(m.members, m.payments, memberNumber), nil
}

func (m *Memory) PaymentSummary(context.Context) ([]domain.PaymentSummaryRow, error) {
	if err := m.begin("summary", "payment"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return derive.PaymentSummary(m.payments), nil
}

func (m *Memory) memberIndex(id string) int {
	for i := range m.members {
		if m.members[i].ID == id {
			return i
		}
	}
	return -1
}

func sortedByDateDesc(payments []domain.Payment, keep func(domain.Payment) bool) []domain.Payment {
	out := make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
