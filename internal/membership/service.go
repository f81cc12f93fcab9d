// internal/membership/service.go
package membership

import (
	"context"

	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterMember(ctx context.Context, in RegisterInput) (domain.Member, error)
	UpdateMember(ctx context.Context, id string, details MemberDetails) (domain.Member, error)
	RenewMember(ctx context.Context, id string, in RenewInput) (domain.Member, error)
	SuspendMember(ctx context.Context, id string) (domain.Member, error)
	ReactivateMember(ctx context.Context, id string) (domain.Member, error)
	DeleteMember(ctx context.Context, id string) error
	GetMember(ctx context.Context, id string) (MemberView, error)
	ListMembers(ctx context.Context, q ListQuery) []MemberView

	RecordPayment(ctx context.Context, in PaymentInput) (domain.Payment, error)
	CorrectPayment(ctx context.Context, id string, changes PaymentChanges) (domain.Payment, error)
	ListPayments(ctx context.Context, memberID string) []domain.Payment
	PaymentHistory(ctx context.Context, memberNumber string) []domain.PaymentHistoryEntry
	PaymentSummary(ctx context.Context) []domain.PaymentSummaryRow

	GetSettings(ctx context.Context) domain.Settings
	SaveSettings(ctx context.Context, s domain.Settings) error

	Dashboard(ctx context.Context, asOf domain.Date) derive.DashboardView
	MonthlyReport(ctx context.Context, year int) Report
}

// Store is the persistence the service needs; store.Facade satisfies it.
type Store interface {
	GetMembers(ctx context.Context) []domain.Member
	GetMember(ctx context.Context, id string) (domain.Member, error)
	SaveMember(ctx context.Context, m domain.Member) error
	DeleteMember(ctx context.Context, id string) error

	GetPayments(ctx context.Context) []domain.Payment
	GetPaymentsByMember(ctx context.Context, memberID string) []domain.Payment
	GetPayment(ctx context.Context, id string) (domain.Payment, error)
	SavePayment(ctx context.Context, p domain.Payment) error

	GetSettings(ctx context.Context) domain.Settings
	SaveSettings(ctx context.Context, s domain.Settings) error

	MemberPaymentHistory(ctx context.Context, memberNumber string) []domain.PaymentHistoryEntry
	PaymentSummary(ctx context.Context) []domain.PaymentSummaryRow
}
