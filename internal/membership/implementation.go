// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
	"gymdesk/internal/identity"
	"gymdesk/internal/notify"
)

// Options configures a service. Zero values get working defaults.
type Options struct {
	Notifier       notify.Notifier
	Allocator      *identity.Allocator
	Limiter        *rate.Limiter
	Logger         *slog.Logger
	Now            func() time.Time
	ExpiringWindow int
}

// service implements the Service interface.
type service struct {
	store       Store
	notifier    notify.Notifier
	allocator   *identity.Allocator
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	now         func() time.Time
	window      int
}

// NewService creates a new membership service instance.
func NewService(st Store, opts Options) Service {
	s := &service{
		store:       st,
		notifier:    opts.Notifier,
		allocator:   opts.Allocator,
		rateLimiter: opts.Limiter,
		logger:      opts.Logger,
		now:         opts.Now,
		window:      opts.ExpiringWindow,
	}
	if s.notifier == nil {
		s.notifier = notify.Discard{}
	}
	if s.allocator == nil {
		s.allocator = identity.NewAllocator()
	}
	if s.rateLimiter == nil {
		s.rateLimiter = rate.NewLimiter(rate.Every(1*time.Minute), 5) // 5 registrations per minute
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.window <= 0 {
		s.window = derive.DefaultExpiringWindow
	}
	return s
}

func (s *service) today() domain.Date {
	return domain.DateOf(s.now())
}

// RegisterMember creates the member and exactly one membership payment for
// the first term.
func (s *service) RegisterMember(ctx context.Context, in RegisterInput) (domain.Member, error) {
	if !s.rateLimiter.Allow() {
		return domain.Member{}, ErrRateLimited
	}

	registered := in.RegistrationDate
	if registered.IsZero() {
		registered = s.today()
	}
	start := in.StartingDate
	if start.IsZero() {
		start = registered
	}
	method := in.PaymentMethod
	if method == "" {
		method = domain.MethodCash
	}

	cost := termCost(s.store.GetSettings(ctx), in.RenewDuration)
	// An unknown duration leaves the expiry zero; Validate reports both fields.
	expiry, _ := domain.ExpiryFor(start, in.RenewDuration)

	member := domain.Member{
		ID:                           identity.NewID(),
		MemberNumber:                 s.allocator.MemberNumber(),
		FirstName:                    in.FirstName,
		LastName:                     in.LastName,
		Gender:                       in.Gender,
		DateOfBirth:                  in.DateOfBirth,
		Nationality:                  in.Nationality,
		MobileNumber:                 in.MobileNumber,
		Address:                      in.Address,
		Email:                        in.Email,
		RenewDuration:                in.RenewDuration,
		RegistrationDate:             registered,
		StartingDate:                 start,
		ExpiryDate:                   expiry,
		EmergencyContactName:         in.EmergencyContactName,
		EmergencyContactPhone:        in.EmergencyContactPhone,
		EmergencyContactRelationship: in.EmergencyContactRelationship,
		MembershipCost:               cost,
		PaymentDate:                  registered,
		IDNumber:                     in.IDNumber,
		ProfileImage:                 in.ProfileImage,
		Status:                       domain.StatusActive,
		Notes:                        in.Notes,
	}
	payment := domain.Payment{
		ID:          identity.NewID(),
		MemberID:    member.ID,
		Amount:      cost,
		Date:        registered,
		Type:        domain.PaymentMembership,
		Method:      method,
		Description: "Membership registration - " + string(in.RenewDuration),
	}
	if err := validateTerm(member.ValidateRegistration(), payment); err != nil {
		return domain.Member{}, s.rejected(err)
	}

	if err := s.store.SaveMember(ctx, member); err != nil {
		return domain.Member{}, s.rejected(err)
	}
	if err := s.store.SavePayment(ctx, payment); err != nil {
		return domain.Member{}, s.rejected(err)
	}

	s.logger.InfoContext(ctx, "member registered", "member_id", member.ID, "member_number", member.MemberNumber)
	s.notifier.Success("Member Registered Successfully!", fmt.Sprintf("%s is member #%s", member.FullName(), member.MemberNumber))
	return member, nil
}

func (s *service) UpdateMember(ctx context.Context, id string, d MemberDetails) (domain.Member, error) {
	member, err := s.store.GetMember(ctx, id)
	if err != nil {
		return domain.Member{}, s.missing("Member Not Found", err)
	}

	member.FirstName = d.FirstName
	member.LastName = d.LastName
	member.Gender = d.Gender
	member.DateOfBirth = d.DateOfBirth
	member.Nationality = d.Nationality
	member.MobileNumber = d.MobileNumber
	member.Address = d.Address
	member.Email = d.Email
	member.EmergencyContactName = d.EmergencyContactName
	member.EmergencyContactPhone = d.EmergencyContactPhone
	member.EmergencyContactRelationship = d.EmergencyContactRelationship
	member.IDNumber = d.IDNumber
	member.ProfileImage = d.ProfileImage
	member.Notes = d.Notes

	if err := member.ValidateRegistration(); err != nil {
		return domain.Member{}, s.rejected(err)
	}
	if err := s.store.SaveMember(ctx, member); err != nil {
		return domain.Member{}, s.rejected(err)
	}
	s.notifier.Success("Member Updated Successfully!", member.FullName())
	return member, nil
}

// RenewMember starts a new term and records its membership payment.
func (s *service) RenewMember(ctx context.Context, id string, in RenewInput) (domain.Member, error) {
	member, err := s.store.GetMember(ctx, id)
	if err != nil {
		return domain.Member{}, s.missing("Member Not Found", err)
	}

	today := s.today()
	start := in.StartingDate
	if start.IsZero() {
		start = today
	}
	method := in.PaymentMethod
	if method == "" {
		method = domain.MethodCash
	}

	cost := termCost(s.store.GetSettings(ctx), in.RenewDuration)
	expiry, _ := domain.ExpiryFor(start, in.RenewDuration)

	member.RenewDuration = in.RenewDuration
	member.StartingDate = start
	member.ExpiryDate = expiry
	member.MembershipCost = cost
	member.PaymentDate = today
	member.Status = domain.StatusActive
	payment := domain.Payment{
		ID:          identity.NewID(),
		MemberID:    member.ID,
		Amount:      cost,
		Date:        today,
		Type:        domain.PaymentMembership,
		Method:      method,
		Description: "Membership renewal - " + string(in.RenewDuration),
	}
	if err := validateTerm(member.Validate(), payment); err != nil {
		return domain.Member{}, s.rejected(err)
	}

	if err := s.store.SaveMember(ctx, member); err != nil {
		return domain.Member{}, s.rejected(err)
	}
	if err := s.store.SavePayment(ctx, payment); err != nil {
		return domain.Member{}, s.rejected(err)
	}

	s.logger.InfoContext(ctx, "member renewed", "member_id", member.ID, "expiry", member.ExpiryDate.String())
	s.notifier.Success("Membership Renewed!", fmt.Sprintf("%s now expires on %s", member.FullName(), member.ExpiryDate))
	return member, nil
}

func (s *service) SuspendMember(ctx context.Context, id string) (domain.Member, error) {
	return s.setStatus(ctx, id, domain.StatusSuspended, "Member Suspended")
}

// ReactivateMember lifts a suspension. A member past expiry still derives as
// expired until renewed.
func (s *service) ReactivateMember(ctx context.Context, id string) (domain.Member, error) {
	return s.setStatus(ctx, id, domain.StatusActive, "Member Reactivated")
}

func (s *service) setStatus(ctx context.Context, id string, status domain.MemberStatus, title string) (domain.Member, error) {
	member, err := s.store.GetMember(ctx, id)
	if err != nil {
		return domain.Member{}, s.missing("Member Not Found", err)
	}
	member.Status = status
	if err := s.store.SaveMember(ctx, member); err != nil {
		return domain.Member{}, s.rejected(err)
	}
	s.notifier.Success(title, member.FullName())
	return member, nil
}

// DeleteMember has no fallback path; a failure leaves both stores as they were.
func (s *service) DeleteMember(ctx context.Context, id string) error {
	if err := s.store.DeleteMember(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "delete member failed", "member_id", id, "error", err)
		s.notifier.Error("Delete Failed", "Failed to delete member. Please try again.")
		return fmt.Errorf("delete member %s: %w", id, err)
	}
	s.notifier.Success("Member Deleted", "")
	return nil
}

func (s *service) GetMember(ctx context.Context, id string) (MemberView, error) {
	member, err := s.store.GetMember(ctx, id)
	if err != nil {
		return MemberView{}, fmt.Errorf("member %s: %w", id, err)
	}
	return s.view(member, s.today()), nil
}

func (s *service) ListMembers(ctx context.Context, q ListQuery) []MemberView {
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = s.today()
	}
	filter := q.Filter
	if filter == "" {
		filter = derive.FilterAll
	}

	members := s.store.GetMembers(ctx)
	members = derive.FilterByStatusWindow(members, filter, asOf, s.window)
	members = derive.SearchMembers(members, q.Search)

	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, s.view(m, asOf))
	}
	return views
}

func (s *service) view(m domain.Member, asOf domain.Date) MemberView {
	return MemberView{
		Member:          m,
		EffectiveStatus: derive.EffectiveStatus(m, asOf),
		DaysLeft:        derive.DaysLeft(m, asOf),
		ExpiringSoon:    derive.IsExpiringSoon(m, asOf, s.window),
	}
}

// RecordPayment stores a standalone payment. The amount must be positive.
func (s *service) RecordPayment(ctx context.Context, in PaymentInput) (domain.Payment, error) {
	v := domain.NewValidationError()
	if !in.Amount.IsPositive() {
		v.Add("amount", "please enter a valid amount")
	}
	if in.MemberID == "" {
		v.Add("memberId", "please select a member")
	}
	if in.Date.IsZero() {
		v.Add("date", "please select a date")
	}
	if err := v.OrNil(); err != nil {
		return domain.Payment{}, s.rejected(err)
	}

	paymentType := in.Type
	if paymentType == "" {
		paymentType = domain.PaymentMembership
	}
	method := in.Method
	if method == "" {
		method = domain.MethodCash
	}
	payment := domain.Payment{
		ID:          identity.NewID(),
		MemberID:    in.MemberID,
		Amount:      in.Amount,
		Date:        in.Date,
		Type:        paymentType,
		Method:      method,
		Description: in.Description,
	}
	if err := s.store.SavePayment(ctx, payment); err != nil {
		return domain.Payment{}, s.rejected(err)
	}

	s.notifier.Success("Payment Recorded Successfully!", fmt.Sprintf("%s OMR payment recorded", payment.Amount.StringFixed(3)))
	return payment, nil
}

// CorrectPayment edits a payment in place; its id never changes.
func (s *service) CorrectPayment(ctx context.Context, id string, c PaymentChanges) (domain.Payment, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return domain.Payment{}, s.missing("Payment Not Found", err)
	}

	if c.Amount != nil {
		if !c.Amount.IsPositive() {
			return domain.Payment{}, s.rejected(invalidField("amount", "please enter a valid amount"))
		}
		payment.Amount = *c.Amount
	}
	if c.Date != nil {
		payment.Date = *c.Date
	}
	if c.Type != nil {
		payment.Type = *c.Type
	}
	if c.Method != nil {
		payment.Method = *c.Method
	}
	if c.Description != nil {
		payment.Description = *c.Description
	}

	if err := s.store.SavePayment(ctx, payment); err != nil {
		return domain.Payment{}, s.rejected(err)
	}
	s.notifier.Success("Payment Updated Successfully!", "")
	return payment, nil
}

func (s *service) ListPayments(ctx context.Context, memberID string) []domain.Payment {
	if memberID != "" {
		return s.store.GetPaymentsByMember(ctx, memberID)
	}
	return s.store.GetPayments(ctx)
}

func (s *service) PaymentHistory(ctx context.Context, memberNumber string) []domain.PaymentHistoryEntry {
	return s.store.MemberPaymentHistory(ctx, memberNumber)
}

func (s *service) PaymentSummary(ctx context.Context) []domain.PaymentSummaryRow {
	return s.store.PaymentSummary(ctx)
}

func (s *service) GetSettings(ctx context.Context) domain.Settings {
	return s.store.GetSettings(ctx)
}

func (s *service) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return s.rejected(err)
	}
	s.notifier.Success("Settings Saved", "")
	return nil
}

func (s *service) Dashboard(ctx context.Context, asOf domain.Date) derive.DashboardView {
	if asOf.IsZero() {
		asOf = s.today()
	}
	return derive.Dashboard(s.store.GetMembers(ctx), s.store.GetPayments(ctx), asOf, s.window)
}

func (s *service) MonthlyReport(ctx context.Context, year int) Report {
	members := s.store.GetMembers(ctx)
	payments := s.store.GetPayments(ctx)
	today := s.today()
	return Report{
		YearReport:     derive.MonthlyReport(members, payments, year),
		Durations:      derive.DurationDistribution(members),
		Statuses:       derive.StatusDistribution(members, today),
		AvailableYears: derive.AvailableYears(members, payments, today),
	}
}

// termCost is the settings price for d. An unknown duration prices at zero
// and is rejected by validation.
func termCost(settings domain.Settings, d domain.RenewDuration) decimal.Decimal {
	price, err := settings.MembershipPrices.For(d)
	if err != nil {
		return decimal.Zero
	}
	return price
}

// validateTerm checks a member and its term payment together, so neither is
// written unless both are valid.
func validateTerm(memberErr error, payment domain.Payment) error {
	v := domain.NewValidationError()
	v.Merge(memberErr)
	v.Merge(payment.Validate())
	return v.OrNil()
}

// rejected reports a validation failure to the notifier and passes it on.
func (s *service) rejected(err error) error {
	if _, ok := domain.AsValidationError(err); ok {
		s.notifier.Error("Validation Error", "Please correct the errors and try again")
		return err
	}
	s.notifier.Error("Save Failed", "Please try again.")
	return err
}

func (s *service) missing(title string, err error) error {
	if errors.Is(err, ErrNotFound) {
		s.notifier.Error(title, "The record you are trying to edit does not exist.")
	}
	return err
}

func invalidField(field, message string) error {
	v := domain.NewValidationError()
	v.Add(field, message)
	return v
}
