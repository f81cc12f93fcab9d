package derive

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"gymdesk/internal/domain"
)

// PaymentHistory rebuilds the member_payment_history view for one member
// number, newest payment first.
func PaymentHistory(members []domain.Member, payments []domain.Payment, memberNumber string) []domain.PaymentHistoryEntry {
	entries := make([]domain.PaymentHistoryEntry, 0)
	ids := make(map[string]domain.Member)
	for _, m := range members {
		if m.MemberNumber == memberNumber {
			ids[m.ID] = m
		}
	}
	if len(ids) == 0 {
		return entries
	}
	for _, p := range payments {
		m, ok := ids[p.MemberID]
		if !ok {
			continue
		}
		entries = append(entries, domain.PaymentHistoryEntry{
			MemberNumber: m.MemberNumber,
			FirstName:    m.FirstName,
			LastName:     m.LastName,
			Amount:       p.Amount,
			Date:         p.Date,
			Type:         string(p.Type),
			Method:       string(p.Method),
			Description:  p.Description,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	return entries
}

type summaryKey struct {
	month  string
	typ    string
	method string
}

// PaymentSummary rebuilds the payment_summary view: one row per month, type
// and method, newest month first.
func PaymentSummary(payments []domain.Payment) []domain.PaymentSummaryRow {
	groups := make(map[summaryKey]*domain.PaymentSummaryRow)
	for _, p := range payments {
		key := summaryKey{
			month:  fmt.Sprintf("%04d-%02d", p.Date.Year(), int(p.Date.Month())),
			typ:    string(p.Type),
			method: string(p.Method),
		}
		row, ok := groups[key]
		if !ok {
			row = &domain.PaymentSummaryRow{Month: key.month, Type: key.typ, Method: key.method, TotalAmount: decimal.Zero}
			groups[key] = row
		}
		row.PaymentCount++
		row.TotalAmount = row.TotalAmount.Add(p.Amount)
	}

	out := make([]domain.PaymentSummaryRow, 0, len(groups))
	for _, row := range groups {
		row.AverageAmount = row.TotalAmount.Div(decimal.NewFromInt(int64(row.PaymentCount)))
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Method < out[j].Method
	})
	return out
}
