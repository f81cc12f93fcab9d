package domain

import "github.com/shopspring/decimal"

// PaymentType classifies what a payment was for.
type PaymentType string

const (
	PaymentMembership PaymentType = "membership"
	PaymentTraining   PaymentType = "training"
	PaymentEquipment  PaymentType = "equipment"
	PaymentOther      PaymentType = "other"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentMembership, PaymentTraining, PaymentEquipment, PaymentOther:
		return true
	}
	return false
}

// PaymentMethod is how the money was received.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "cash"
	MethodCard PaymentMethod = "card"
	MethodBank PaymentMethod = "bank"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBank:
		return true
	}
	return false
}

// Payment is a single receipt. MemberID is a weak reference; nothing enforces
// that the member still exists.
type Payment struct {
	ID          string          `json:"id"`
	MemberID    string          `json:"memberId"`
	Amount      decimal.Decimal `json:"amount"`
	Date        Date            `json:"date"`
	Type        PaymentType     `json:"type"`
	Description string          `json:"description,omitempty"`
	Method      PaymentMethod   `json:"method"`
}

// Validate checks the invariants of a stored payment.
func (p Payment) Validate() error {
	v := NewValidationError()
	if p.ID == "" {
		v.Add("id", "id is required")
	}
	if p.MemberID == "" {
		v.Add("memberId", "please select a member")
	}
	if p.Amount.IsNegative() {
		v.Add("amount", "amount cannot be negative")
	}
	if p.Date.IsZero() {
		v.Add("date", "please select a date")
	}
	if !p.Type.Valid() {
		v.Add("type", "payment type is invalid")
	}
	if !p.Method.Valid() {
		v.Add("method", "payment method is invalid")
	}
	return v.OrNil()
}

// PaymentHistoryEntry is one row of the per-member payment history view.
type PaymentHistoryEntry struct {
	MemberNumber string          `json:"memberNumber"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Amount       decimal.Decimal `json:"amount"`
	Date         Date            `json:"date"`
	Type         string          `json:"type"`
	Method       string          `json:"method"`
	Description  string          `json:"description"`
}

// PaymentSummaryRow is one row of the per-month/type/method summary view.
// Month is formatted YYYY-MM.
type PaymentSummaryRow struct {
	Month         string          `json:"month"`
	Type          string          `json:"type"`
	Method        string          `json:"method"`
	PaymentCount  int             `json:"paymentCount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AverageAmount decimal.Decimal `json:"averageAmount"`
}
