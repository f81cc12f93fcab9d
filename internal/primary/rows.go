package primary

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"gymdesk/internal/domain"
)

// memberRow is the wire shape of the members table.
type memberRow struct {
	ID                           string          `db:"id"`
	MemberNumber                 string          `db:"member_number"`
	FirstName                    string          `db:"first_name"`
	LastName                     string          `db:"last_name"`
	Gender                       string          `db:"gender"`
	DateOfBirth                  domain.Date     `db:"date_of_birth"`
	Nationality                  string          `db:"nationality"`
	MobileNumber                 string          `db:"mobile_number"`
	Address                      string          `db:"address"`
	Email                        string          `db:"email"`
	RenewDuration                string          `db:"renew_duration"`
	RegistrationDate             domain.Date     `db:"registration_date"`
	StartingDate                 domain.Date     `db:"starting_date"`
	ExpiryDate                   domain.Date     `db:"expiry_date"`
	EmergencyContactName         string          `db:"emergency_contact_name"`
	EmergencyContactPhone        string          `db:"emergency_contact_phone"`
	EmergencyContactRelationship string          `db:"emergency_contact_relationship"`
	MembershipCost               decimal.Decimal `db:"membership_cost"`
	PaymentDate                  domain.Date     `db:"payment_date"`
	IDNumber                     string          `db:"id_number"`
	ProfileImage                 sql.NullString  `db:"profile_image"`
	Status                       string          `db:"status"`
	Notes                        sql.NullString  `db:"notes"`
}

// memberColumns is the column order shared by every members query.
var memberColumns = []string{
	"id", "member_number", "first_name", "last_name", "gender", "date_of_birth",
	"nationality", "mobile_number", "address", "email", "renew_duration",
	"registration_date", "starting_date", "expiry_date", "emergency_contact_name",
	"emergency_contact_phone", "emergency_contact_relationship", "membership_cost",
	"payment_date", "id_number", "profile_image", "status", "notes",
}

func toMemberRow(m domain.Member) memberRow {
	return memberRow{
		ID:                           m.ID,
		MemberNumber:                 m.MemberNumber,
		FirstName:                    m.FirstName,
		LastName:                     m.LastName,
		Gender:                       string(m.Gender),
		DateOfBirth:                  m.DateOfBirth,
		Nationality:                  m.Nationality,
		MobileNumber:                 m.MobileNumber,
		Address:                      m.Address,
		Email:                        m.Email,
		RenewDuration:                string(m.RenewDuration),
		RegistrationDate:             m.RegistrationDate,
		StartingDate:                 m.StartingDate,
		ExpiryDate:                   m.ExpiryDate,
		EmergencyContactName:         m.EmergencyContactName,
		EmergencyContactPhone:        m.EmergencyContactPhone,
		EmergencyContactRelationship: m.EmergencyContactRelationship,
		MembershipCost:               m.MembershipCost,
		PaymentDate:                  m.PaymentDate,
		IDNumber:                     m.IDNumber,
		ProfileImage:                 nullable(m.ProfileImage),
		Status:                       string(m.Status),
		Notes:                        nullable(m.Notes),
	}
}

func (r memberRow) toDomain() domain.Member {
	return domain.Member{
		ID:                           r.ID,
		MemberNumber:                 r.MemberNumber,
		FirstName:                    r.FirstName,
		LastName:                     r.LastName,
		Gender:                       domain.Gender(r.Gender),
		DateOfBirth:                  r.DateOfBirth,
		Nationality:                  r.Nationality,
		MobileNumber:                 r.MobileNumber,
		Address:                      r.Address,
		Email:                        r.Email,
		RenewDuration:                domain.RenewDuration(r.RenewDuration),
		RegistrationDate:             r.RegistrationDate,
		StartingDate:                 r.StartingDate,
		ExpiryDate:                   r.ExpiryDate,
		EmergencyContactName:         r.EmergencyContactName,
		EmergencyContactPhone:        r.EmergencyContactPhone,
		EmergencyContactRelationship: r.EmergencyContactRelationship,
		MembershipCost:               r.MembershipCost,
		PaymentDate:                  r.PaymentDate,
		IDNumber:                     r.IDNumber,
		ProfileImage:                 r.ProfileImage.String,
		Status:                       domain.MemberStatus(r.Status),
		Notes:                        r.Notes.String,
	}
}

// args returns the row values in memberColumns order.
func (r *memberRow) args() []any {
	return []any{
		r.ID, r.MemberNumber, r.FirstName, r.LastName, r.Gender, r.DateOfBirth,
		r.Nationality, r.MobileNumber, r.Address, r.Email, r.RenewDuration,
		r.RegistrationDate, r.StartingDate, r.ExpiryDate, r.EmergencyContactName,
		r.EmergencyContactPhone, r.EmergencyContactRelationship, r.MembershipCost,
		r.PaymentDate, r.IDNumber, r.ProfileImage, r.Status, r.Notes,
	}
}

// dest returns scan targets in memberColumns order.
func (r *memberRow) dest() []any {
	return []any{
		&r.ID, &r.MemberNumber, &r.FirstName, &r.LastName, &r.Gender, &r.DateOfBirth,
		&r.Nationality, &r.MobileNumber, &r.Address, &r.Email, &r.RenewDuration,
		&r.RegistrationDate, &r.StartingDate, &r.ExpiryDate, &r.EmergencyContactName,
		&r.EmergencyContactPhone, &r.EmergencyContactRelationship, &r.MembershipCost,
		&r.PaymentDate, &r.IDNumber, &r.ProfileImage, &r.Status, &r.Notes,
	}
}

// paymentRow is the wire shape of the payments table.
type paymentRow struct {
	ID          string          `db:"id"`
	MemberID    string          `db:"member_id"`
	Amount      decimal.Decimal `db:"amount"`
	Date        domain.Date     `db:"date"`
	Type        string          `db:"type"`
	Description sql.NullString  `db:"description"`
	Method      string          `db:"method"`
}

var paymentColumns = []string{"id", "member_id", "amount", "date", "type", "description", "method"}

func toPaymentRow(p domain.Payment) paymentRow {
	return paymentRow{
		ID:          p.ID,
		MemberID:    p.MemberID,
		Amount:      p.Amount,
		Date:        p.Date,
		Type:        string(p.Type),
		Description: nullable(p.Description),
		Method:      string(p.Method),
	}
}

func (r paymentRow) toDomain() domain.Payment {
	return domain.Payment{
		ID:          r.ID,
		MemberID:    r.MemberID,
		Amount:      r.Amount,
		Date:        r.Date,
		Type:        domain.PaymentType(r.Type),
		Description: r.Description.String,
		Method:      domain.PaymentMethod(r.Method),
	}
}

func (r *paymentRow) args() []any {
	return []any{r.ID, r.MemberID, r.Amount, r.Date, r.Type, r.Description, r.Method}
}

func (r *paymentRow) dest() []any {
	return []any{&r.ID, &r.MemberID, &r.Amount, &r.Date, &r.Type, &r.Description, &r.Method}
}

// settingsRow is the wire shape of the settings table. The price table is
// stored as a JSON document keyed by renew duration.
type settingsRow struct {
	ID               string `db:"id"`
	GymName          string `db:"gym_name"`
	Address          string `db:"address"`
	Phone            string `db:"phone"`
	Email            string `db:"email"`
	MembershipPrices []byte `db:"membership_prices"`
}

func toSettingsRow(id string, s domain.Settings) (settingsRow, error) {
	prices, err := json.Marshal(wirePrices{
		Monthly:     wireNumber{s.MembershipPrices.Monthly},
		TwoMonths:   wireNumber{s.MembershipPrices.TwoMonths},
		ThreeMonths: wireNumber{s.MembershipPrices.ThreeMonths},
		SixMonths:   wireNumber{s.MembershipPrices.SixMonths},
		Yearly:      wireNumber{s.MembershipPrices.Yearly},
	})
	if err != nil {
		return settingsRow{}, fmt.Errorf("encode membership prices: %w", err)
	}
	return settingsRow{
		ID:               id,
		GymName:          s.GymName,
		Address:          s.Address,
		Phone:            s.Phone,
		Email:            s.Email,
		MembershipPrices: prices,
	}, nil
}

func (r settingsRow) toDomain() (domain.Settings, error) {
	var prices wirePrices
	if len(r.MembershipPrices) > 0 {
		if err := json.Unmarshal(r.MembershipPrices, &prices); err != nil {
			return domain.Settings{}, fmt.Errorf("decode membership prices: %w", err)
		}
	}
	return domain.Settings{
		GymName: r.GymName,
		Address: r.Address,
		Phone:   r.Phone,
		Email:   r.Email,
		MembershipPrices: domain.MembershipPrices{
			Monthly:     prices.Monthly.Decimal,
			TwoMonths:   prices.TwoMonths.Decimal,
			ThreeMonths: prices.ThreeMonths.Decimal,
			SixMonths:   prices.SixMonths.Decimal,
			Yearly:      prices.Yearly.Decimal,
		},
	}, nil
}

// wirePrices keeps the JSONB document numeric rather than quoted.
type wirePrices struct {
	Monthly     wireNumber `json:"monthly"`
	TwoMonths   wireNumber `json:"twoMonths"`
	ThreeMonths wireNumber `json:"threeMonths"`
	SixMonths   wireNumber `json:"sixMonths"`
	Yearly      wireNumber `json:"yearly"`
}

type wireNumber struct {
	decimal.Decimal
}

func (n wireNumber) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
