package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RenewDuration is a membership term tier.
type RenewDuration string

const (
	Monthly     RenewDuration = "monthly"
	TwoMonths   RenewDuration = "twoMonths"
	ThreeMonths RenewDuration = "threeMonths"
	SixMonths   RenewDuration = "sixMonths"
	Yearly      RenewDuration = "yearly"
)

// RenewDurations lists every tier in ascending length.
var RenewDurations = []RenewDuration{Monthly, TwoMonths, ThreeMonths, SixMonths, Yearly}

// Months returns the calendar length of the tier.
func (d RenewDuration) Months() (int, error) {
	switch d {
	case Monthly:
		return 1, nil
	case TwoMonths:
		return 2, nil
	case ThreeMonths:
		return 3, nil
	case SixMonths:
		return 6, nil
	case Yearly:
		return 12, nil
	default:
		return 0, fmt.Errorf("unknown renew duration %q", string(d))
	}
}

func (d RenewDuration) Valid() bool {
	_, err := d.Months()
	return err == nil
}

// MemberStatus is the stored membership status.
type MemberStatus string

const (
	StatusActive    MemberStatus = "active"
	StatusExpired   MemberStatus = "expired"
	StatusSuspended MemberStatus = "suspended"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusSuspended:
		return true
	}
	return false
}

// Gender of a member as captured on the registration form.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

func (g Gender) Valid() bool {
	return g == Male || g == Female
}

// Member is a registered gym member.
type Member struct {
	ID                           string          `json:"id"`
	MemberNumber                 string          `json:"memberNumber"`
	FirstName                    string          `json:"firstName"`
	LastName                     string          `json:"lastName"`
	Gender                       Gender          `json:"gender"`
	DateOfBirth                  Date            `json:"dateOfBirth"`
	Nationality                  string          `json:"nationality"`
	MobileNumber                 string          `json:"mobileNumber"`
	Address                      string          `json:"address"`
	Email                        string          `json:"email"`
	RenewDuration                RenewDuration   `json:"renewDuration"`
	RegistrationDate             Date            `json:"registrationDate"`
	StartingDate                 Date            `json:"startingDate"`
	ExpiryDate                   Date            `json:"expiryDate"`
	EmergencyContactName         string          `json:"emergencyContactName"`
	EmergencyContactPhone        string          `json:"emergencyContactPhone"`
	EmergencyContactRelationship string          `json:"emergencyContactRelationship"`
	MembershipCost               decimal.Decimal `json:"membershipCost"`
	PaymentDate                  Date            `json:"paymentDate"`
	IDNumber                     string          `json:"idNumber"`
	ProfileImage                 string          `json:"profileImage,omitempty"`
	Status                       MemberStatus    `json:"status"`
	Notes                        string          `json:"notes,omitempty"`
}

// FullName joins first and last name.
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// ExpiryFor returns start plus the calendar interval of the tier.
func ExpiryFor(start Date, d RenewDuration) (Date, error) {
	months, err := d.Months()
	if err != nil {
		return Date{}, err
	}
	return start.AddMonths(months), nil
}

// Validate checks the fields a member must carry before it is persisted.
func (m Member) Validate() error {
	v := NewValidationError()
	m.check(v)
	return v.OrNil()
}

// ValidateRegistration also requires the personal details the registration
// form asks for. Records saved before those fields existed still pass Validate.
func (m Member) ValidateRegistration() error {
	v := NewValidationError()
	m.check(v)
	if m.DateOfBirth.IsZero() {
		v.Add("dateOfBirth", "date of birth is required")
	}
	if m.EmergencyContactName == "" {
		v.Add("emergencyContactName", "emergency contact name is required")
	}
	if m.EmergencyContactPhone == "" {
		v.Add("emergencyContactPhone", "emergency contact phone is required")
	}
	if m.EmergencyContactRelationship == "" {
		v.Add("emergencyContactRelationship", "emergency contact relationship is required")
	}
	if m.IDNumber == "" {
		v.Add("idNumber", "id number is required")
	}
	return v.OrNil()
}

// check reports into v. Any all-digit member number is accepted, including the
// 4-digit numbers of the legacy counter.
func (m Member) check(v *ValidationError) {
	if m.ID == "" {
		v.Add("id", "id is required")
	}
	if m.MemberNumber == "" || !allDigits(m.MemberNumber) {
		v.Add("memberNumber", "member number must be digits")
	}
	if m.FirstName == "" {
		v.Add("firstName", "first name is required")
	}
	if m.LastName == "" {
		v.Add("lastName", "last name is required")
	}
	if !m.Gender.Valid() {
		v.Add("gender", "gender must be male or female")
	}
	if m.MobileNumber == "" {
		v.Add("mobileNumber", "mobile number is required")
	}
	if m.Email != "" && !looksLikeEmail(m.Email) {
		v.Add("email", "email is invalid")
	}
	if !m.RenewDuration.Valid() {
		v.Add("renewDuration", "renew duration is invalid")
	}
	if m.StartingDate.IsZero() {
		v.Add("startingDate", "starting date is required")
	}
	if m.ExpiryDate.IsZero() {
		v.Add("expiryDate", "expiry date is required")
	} else if !m.StartingDate.IsZero() && m.ExpiryDate.Before(m.StartingDate) {
		v.Add("expiryDate", "expiry date is before starting date")
	}
	if m.MembershipCost.IsNegative() {
		v.Add("membershipCost", "membership cost cannot be negative")
	}
	if !m.Status.Valid() {
		v.Add("status", "status is invalid")
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
