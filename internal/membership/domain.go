// internal/membership/domain.go
package membership

import (
	"errors"

	"github.com/shopspring/decimal"

	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
	"gymdesk/internal/store"
)

var (
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrNotFound    = store.ErrNotFound
	ErrNoPrimary   = store.ErrNoPrimary
)

// RegisterInput is the registration form. Zero dates default to today. The
// cost always comes from the settings price table.
type RegisterInput struct {
	FirstName                    string               `json:"firstName"`
	LastName                     string               `json:"lastName"`
	Gender                       domain.Gender        `json:"gender"`
	DateOfBirth                  domain.Date          `json:"dateOfBirth"`
	Nationality                  string               `json:"nationality"`
	MobileNumber                 string               `json:"mobileNumber"`
	Address                      string               `json:"address"`
	Email                        string               `json:"email"`
	RenewDuration                domain.RenewDuration `json:"renewDuration"`
	RegistrationDate             domain.Date          `json:"registrationDate"`
	StartingDate                 domain.Date          `json:"startingDate"`
	EmergencyContactName         string               `json:"emergencyContactName"`
	EmergencyContactPhone        string               `json:"emergencyContactPhone"`
	EmergencyContactRelationship string               `json:"emergencyContactRelationship"`
	IDNumber                     string               `json:"idNumber"`
	ProfileImage                 string               `json:"profileImage,omitempty"`
	Notes                        string               `json:"notes,omitempty"`
	PaymentMethod                domain.PaymentMethod `json:"paymentMethod"`
}

// MemberDetails are the personal fields editable after registration.
type MemberDetails struct {
	FirstName                    string        `json:"firstName"`
	LastName                     string        `json:"lastName"`
	Gender                       domain.Gender `json:"gender"`
	DateOfBirth                  domain.Date   `json:"dateOfBirth"`
	Nationality                  string        `json:"nationality"`
	MobileNumber                 string        `json:"mobileNumber"`
	Address                      string        `json:"address"`
	Email                        string        `json:"email"`
	EmergencyContactName         string        `json:"emergencyContactName"`
	EmergencyContactPhone        string        `json:"emergencyContactPhone"`
	EmergencyContactRelationship string        `json:"emergencyContactRelationship"`
	IDNumber                     string        `json:"idNumber"`
	ProfileImage                 string        `json:"profileImage,omitempty"`
	Notes                        string        `json:"notes,omitempty"`
}

// RenewInput starts a new term. A zero start date means today.
type RenewInput struct {
	RenewDuration domain.RenewDuration `json:"renewDuration"`
	StartingDate  domain.Date          `json:"startingDate"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

// PaymentInput records a standalone payment.
type PaymentInput struct {
	MemberID    string               `json:"memberId"`
	Amount      decimal.Decimal      `json:"amount"`
	Date        domain.Date          `json:"date"`
	Type        domain.PaymentType   `json:"type"`
	Method      domain.PaymentMethod `json:"method"`
	Description string               `json:"description,omitempty"`
}

// PaymentChanges corrects an existing payment; nil fields are kept.
type PaymentChanges struct {
	Amount      *decimal.Decimal      `json:"amount,omitempty"`
	Date        *domain.Date          `json:"date,omitempty"`
	Type        *domain.PaymentType   `json:"type,omitempty"`
	Method      *domain.PaymentMethod `json:"method,omitempty"`
	Description *string               `json:"description,omitempty"`
}

// ListQuery narrows the member list.
type ListQuery struct {
	Filter derive.Filter
	Search string
	AsOf   domain.Date
}

// MemberView is a member with the facts derived for display.
type MemberView struct {
	domain.Member
	EffectiveStatus domain.MemberStatus `json:"effectiveStatus"`
	DaysLeft        int                 `json:"daysLeft"`
	ExpiringSoon    bool                `json:"expiringSoon"`
}

// Report is everything the reports page shows for one year.
type Report struct {
	derive.YearReport
	Durations      map[domain.RenewDuration]int `json:"durations"`
	Statuses       derive.StatusCounts          `json:"statuses"`
	AvailableYears []int                        `json:"availableYears"`
}
