package derive

import (
	"time"

	"github.com/shopspring/decimal"

	"gymdesk/internal/domain"
)

// PaymentPredicate selects payments for aggregation.
type PaymentPredicate func(domain.Payment) bool

// AnyPayment accepts every payment.
func AnyPayment(domain.Payment) bool { return true }

// InMonth accepts payments dated in the given calendar month.
func InMonth(year int, month time.Month) PaymentPredicate {
	return func(p domain.Payment) bool {
		return p.Date.Year() == year && p.Date.Month() == month
	}
}

// InYear accepts payments dated in the given year.
func InYear(year int) PaymentPredicate {
	return func(p domain.Payment) bool {
		return p.Date.Year() == year
	}
}

// InRange accepts payments dated in [from, to], both inclusive.
func InRange(from, to domain.Date) PaymentPredicate {
	return func(p domain.Payment) bool {
		return !p.Date.Before(from) && !p.Date.After(to)
	}
}

// SumRevenue adds the amounts of the payments accepted by pred, exactly.
func SumRevenue(payments []domain.Payment, pred PaymentPredicate) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if pred(p) {
			total = total.Add(p.Amount)
		}
	}
	return total
}

func TotalRevenue(payments []domain.Payment) decimal.Decimal {
	return SumRevenue(payments, AnyPayment)
}

func MonthlyRevenue(payments []domain.Payment, year int, month time.Month) decimal.Decimal {
	return SumRevenue(payments, InMonth(year, month))
}

func YearlyRevenue(payments []domain.Payment, year int) decimal.Decimal {
	return SumRevenue(payments, InYear(year))
}

func RevenueInRange(payments []domain.Payment, from, to domain.Date) decimal.Decimal {
	return SumRevenue(payments, InRange(from, to))
}

// AverageMonthlyRevenue is the mean of the twelve monthly totals ending with
// (year, month). Months without payments count as zero.
func AverageMonthlyRevenue(payments []domain.Payment, year int, month time.Month) decimal.Decimal {
	sum := decimal.Zero
	first := domain.FirstOfMonth(year, month)
	for i := 0; i < 12; i++ {
		m := first.AddMonths(-i)
		sum = sum.Add(MonthlyRevenue(payments, m.Year(), m.Month()))
	}
	return sum.Div(decimal.NewFromInt(12))
}
