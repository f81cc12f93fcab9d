// Package derive computes membership status, filters and revenue figures from
// snapshots returned by the persistence facade. Nothing here mutates or keeps
// its inputs.
package derive

import (
	"sort"
	"strings"

	"gymdesk/internal/domain"
)

// DefaultExpiringWindow is the look-ahead, in days, for "expiring soon".
const DefaultExpiringWindow = 30

// Filter selects members by derived status.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = "active"
	FilterExpired  Filter = "expired"
	FilterExpiring Filter = "expiring"
)

// ParseFilter maps a query value to a Filter; unknown values mean FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterActive:
		return FilterActive
	case FilterExpired:
		return FilterExpired
	case FilterExpiring:
		return FilterExpiring
	default:
		return FilterAll
	}
}

// PastExpiry reports whether asOf is strictly after the member's expiry date.
func PastExpiry(m domain.Member, asOf domain.Date) bool {
	return asOf.After(m.ExpiryDate)
}

// EffectiveStatus is the status used for display. A stored suspension always
// wins; otherwise a stored expiry or a passed expiry date yields expired.
func EffectiveStatus(m domain.Member, asOf domain.Date) domain.MemberStatus {
	if m.Status == domain.StatusSuspended {
		return domain.StatusSuspended
	}
	if m.Status == domain.StatusExpired || PastExpiry(m, asOf) {
		return domain.StatusExpired
	}
	return m.Status
}

// IsExpiringSoon reports an active member whose expiry falls in
// [asOf, asOf+windowDays]. It is evaluated independently of EffectiveStatus.
func IsExpiringSoon(m domain.Member, asOf domain.Date, windowDays int) bool {
	if m.Status != domain.StatusActive {
		return false
	}
	return !m.ExpiryDate.Before(asOf) && !m.ExpiryDate.After(asOf.AddDays(windowDays))
}

// FilterByStatus applies filter with the default expiring window.
func FilterByStatus(members []domain.Member, filter Filter, asOf domain.Date) []domain.Member {
	return FilterByStatusWindow(members, filter, asOf, DefaultExpiringWindow)
}

// FilterByStatusWindow applies filter with an explicit expiring window.
func FilterByStatusWindow(members []domain.Member, filter Filter, asOf domain.Date, windowDays int) []domain.Member {
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if matches(m, filter, asOf, windowDays) {
			out = append(out, m)
		}
	}
	return out
}

func matches(m domain.Member, filter Filter, asOf domain.Date, windowDays int) bool {
	switch filter {
	case FilterActive:
		return EffectiveStatus(m, asOf) == domain.StatusActive && !PastExpiry(m, asOf)
	case FilterExpired:
		return EffectiveStatus(m, asOf) == domain.StatusExpired || PastExpiry(m, asOf)
	case FilterExpiring:
		return matches(m, FilterActive, asOf, windowDays) && IsExpiringSoon(m, asOf, windowDays)
	default:
		return true
	}
}

// DaysLeft is the number of days from asOf to expiry; negative once expired.
func DaysLeft(m domain.Member, asOf domain.Date) int {
	return asOf.DaysUntil(m.ExpiryDate)
}

// SearchMembers matches term case-insensitively against first and last name
// and as a substring of member number or mobile number. An empty term keeps all.
func SearchMembers(members []domain.Member, term string) []domain.Member {
	term = strings.TrimSpace(term)
	if term == "" {
		return append([]domain.Member(nil), members...)
	}
	lower := strings.ToLower(term)
	out := make([]domain.Member, 0)
	for _, m := range members {
		if strings.Contains(strings.ToLower(m.FirstName), lower) ||
			strings.Contains(strings.ToLower(m.LastName), lower) ||
			strings.Contains(strings.ToLower(m.FullName()), lower) ||
			strings.Contains(m.MemberNumber, term) ||
			strings.Contains(m.MobileNumber, term) {
			out = append(out, m)
		}
	}
	return out
}

// RecentMembers returns up to n members, latest registration first.
func RecentMembers(members []domain.Member, n int) []domain.Member {
	sorted := append([]domain.Member(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RegistrationDate.After(sorted[j].RegistrationDate)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
