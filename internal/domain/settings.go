package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MembershipPrices maps every tier to its price.
type MembershipPrices struct {
	Monthly     decimal.Decimal `json:"monthly" yaml:"monthly"`
	TwoMonths   decimal.Decimal `json:"twoMonths" yaml:"twoMonths"`
	ThreeMonths decimal.Decimal `json:"threeMonths" yaml:"threeMonths"`
	SixMonths   decimal.Decimal `json:"sixMonths" yaml:"sixMonths"`
	Yearly      decimal.Decimal `json:"yearly" yaml:"yearly"`
}

// For returns the price of the tier.
func (p MembershipPrices) For(d RenewDuration) (decimal.Decimal, error) {
	switch d {
	case Monthly:
		return p.Monthly, nil
	case TwoMonths:
		return p.TwoMonths, nil
	case ThreeMonths:
		return p.ThreeMonths, nil
	case SixMonths:
		return p.SixMonths, nil
	case Yearly:
		return p.Yearly, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown renew duration %q", string(d))
	}
}

// Settings is the singleton gym profile and price table.
type Settings struct {
	GymName          string           `json:"gymName" yaml:"gymName"`
	Address          string           `json:"address" yaml:"address"`
	Phone            string           `json:"phone" yaml:"phone"`
	Email            string           `json:"email" yaml:"email"`
	MembershipPrices MembershipPrices `json:"membershipPrices" yaml:"membershipPrices"`
}

// DefaultSettings is used when no settings record exists anywhere.
func DefaultSettings() Settings {
	return Settings{
		GymName: "Warriors Gym",
		Address: "AL MAHA ST, BOSHER AL KHUWAIR, MUSCAT",
		Phone:   "+968 92223330",
		Email:   "info@warriorsgym.com",
		MembershipPrices: MembershipPrices{
			Monthly:     decimal.NewFromInt(30),
			TwoMonths:   decimal.NewFromInt(55),
			ThreeMonths: decimal.NewFromInt(80),
			SixMonths:   decimal.NewFromInt(150),
			Yearly:      decimal.NewFromInt(300),
		},
	}
}

func (s Settings) Validate() error {
	v := NewValidationError()
	if s.GymName == "" {
		v.Add("gymName", "gym name is required")
	}
	if s.Email != "" && !looksLikeEmail(s.Email) {
		v.Add("email", "email is invalid")
	}
	for _, d := range RenewDurations {
		price, _ := s.MembershipPrices.For(d)
		if price.IsNegative() {
			v.Add("membershipPrices."+string(d), "price cannot be negative")
		}
	}
	return v.OrNil()
}
