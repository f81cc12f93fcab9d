package derive

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"gymdesk/internal/domain"
)

// RevenueStats are the dashboard headline figures.
type RevenueStats struct {
	TotalRevenue          decimal.Decimal `json:"totalRevenue"`
	MonthlyRevenue        decimal.Decimal `json:"monthlyRevenue"`
	YearlyRevenue         decimal.Decimal `json:"yearlyRevenue"`
	ActiveMembers         int             `json:"activeMembers"`
	ExpiringMembers       int             `json:"expiringMembers"`
	NewMembersThisMonth   int             `json:"newMembersThisMonth"`
	AverageMonthlyRevenue decimal.Decimal `json:"averageMonthlyRevenue"`
}

// DashboardView is everything the dashboard renders.
type DashboardView struct {
	Stats         RevenueStats    `json:"stats"`
	RecentMembers []domain.Member `json:"recentMembers"`
	Expiring      []domain.Member `json:"expiring"`
}

const dashboardListSize = 5

// Dashboard derives the dashboard for asOf.
func Dashboard(members []domain.Member, payments []domain.Payment, asOf domain.Date, windowDays int) DashboardView {
	year, month := asOf.Year(), asOf.Month()
	expiring := FilterByStatusWindow(members, FilterExpiring, asOf, windowDays)

	newThisMonth := 0
	for _, m := range members {
		if m.RegistrationDate.Year() == year && m.RegistrationDate.Month() == month {
			newThisMonth++
		}
	}

	view := DashboardView{
		Stats: RevenueStats{
			TotalRevenue:          TotalRevenue(payments),
			MonthlyRevenue:        MonthlyRevenue(payments, year, month),
			YearlyRevenue:         YearlyRevenue(payments, year),
			ActiveMembers:         len(FilterByStatusWindow(members, FilterActive, asOf, windowDays)),
			ExpiringMembers:       len(expiring),
			NewMembersThisMonth:   newThisMonth,
			AverageMonthlyRevenue: AverageMonthlyRevenue(payments, year, month),
		},
		RecentMembers: RecentMembers(members, dashboardListSize),
	}
	if len(expiring) > dashboardListSize {
		expiring = expiring[:dashboardListSize]
	}
	view.Expiring = expiring
	return view
}

// MonthRow is one line of the yearly report.
type MonthRow struct {
	Month      time.Month      `json:"month"`
	Revenue    decimal.Decimal `json:"revenue"`
	NewMembers int             `json:"newMembers"`
	Renewals   int             `json:"renewals"`
}

// YearReport aggregates a whole year month by month.
type YearReport struct {
	Year                  int             `json:"year"`
	Months                []MonthRow      `json:"months"`
	Revenue               decimal.Decimal `json:"revenue"`
	NewMembers            int             `json:"newMembers"`
	Renewals              int             `json:"renewals"`
	AverageMonthlyRevenue decimal.Decimal `json:"averageMonthlyRevenue"`
}

// MonthlyReport builds the twelve month rows of year. A renewal is a payment
// of a known member dated on a day other than that member's registration.
func MonthlyReport(members []domain.Member, payments []domain.Payment, year int) YearReport {
	byID := make(map[string]domain.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	report := YearReport{Year: year, Revenue: decimal.Zero, Months: make([]MonthRow, 0, 12)}
	for month := time.January; month <= time.December; month++ {
		row := MonthRow{Month: month, Revenue: MonthlyRevenue(payments, year, month)}
		for _, m := range members {
			if m.RegistrationDate.Year() == year && m.RegistrationDate.Month() == month {
				row.NewMembers++
			}
		}
		for _, p := range payments {
			if p.Date.Year() != year || p.Date.Month() != month {
				continue
			}
			m, ok := byID[p.MemberID]
			if ok && !m.RegistrationDate.Equal(p.Date) {
				row.Renewals++
			}
		}
		report.Months = append(report.Months, row)
		report.Revenue = report.Revenue.Add(row.Revenue)
		report.NewMembers += row.NewMembers
		report.Renewals += row.Renewals
	}
	report.AverageMonthlyRevenue = report.Revenue.Div(decimal.NewFromInt(12))
	return report
}

// DurationDistribution counts members per renew duration.
func DurationDistribution(members []domain.Member) map[domain.RenewDuration]int {
	out := make(map[domain.RenewDuration]int, len(domain.RenewDurations))
	for _, d := range domain.RenewDurations {
		out[d] = 0
	}
	for _, m := range members {
		if m.RenewDuration.Valid() {
			out[m.RenewDuration]++
		}
	}
	return out
}

// StatusCounts is the reports page status breakdown. The buckets can overlap:
// a suspended member past expiry counts as both expired and suspended.
type StatusCounts struct {
	Active    int `json:"active"`
	Expired   int `json:"expired"`
	Suspended int `json:"suspended"`
}

func StatusDistribution(members []domain.Member, asOf domain.Date) StatusCounts {
	counts := StatusCounts{
		Active:  len(FilterByStatus(members, FilterActive, asOf)),
		Expired: len(FilterByStatus(members, FilterExpired, asOf)),
	}
	for _, m := range members {
		if m.Status == domain.StatusSuspended {
			counts.Suspended++
		}
	}
	return counts
}

// AvailableYears lists every year with a registration or payment, plus the
// current year, newest first.
func AvailableYears(members []domain.Member, payments []domain.Payment, asOf domain.Date) []int {
	seen := map[int]bool{asOf.Year(): true}
	for _, m := range members {
		if !m.RegistrationDate.IsZero() {
			seen[m.RegistrationDate.Year()] = true
		}
	}
	for _, p := range payments {
		if !p.Date.IsZero() {
			seen[p.Date.Year()] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
