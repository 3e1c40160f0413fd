package channel

import (
	"context"
	"sort"

	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
)

const revenueBySourceKey = "channel.revenue_by_source"

type RevenueBySourceQuery struct{}

func (q RevenueBySourceQuery) Key() string { return revenueBySourceKey }

type SourceRevenueView struct {
	Source          string `json:"source"`
	BookingCount    int    `json:"booking_count"`
	TotalCents      int64  `json:"total_cents"`
	CommissionCents int64  `json:"commission_cents"`
	NetCents        int64  `json:"net_cents"`
	Currency        string `json:"currency"`
}

type RevenueReport struct {
	Sources []SourceRevenueView `json:"sources"`
}

// RevenueBySourceHandler reports aggregate revenue per booking source over
// reservations that still count toward revenue.
type RevenueBySourceHandler struct {
	UoWFactory uow.Factory
}

func (h *RevenueBySourceHandler) Handle(ctx context.Context, _ RevenueBySourceQuery) (*RevenueReport, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	bySource, err := unit.Reservations().RevenueBySource(ctx)
	if err != nil {
		return nil, err
	}
	report := &RevenueReport{Sources: make([]SourceRevenueView, 0, len(bySource))}
	for source, rev := range bySource {
		report.Sources = append(report.Sources, SourceRevenueView{
			Source:          string(source),
			BookingCount:    rev.BookingCount,
			TotalCents:      rev.TotalRevenue.Amount,
			CommissionCents: rev.TotalCommission.Amount,
			NetCents:        rev.NetRevenue.Amount,
			Currency:        rev.TotalRevenue.Currency,
		})
	}
	sort.Slice(report.Sources, func(i, j int) bool {
		return report.Sources[i].Source < report.Sources[j].Source
	})
	return report, nil
}

var _ queries.Handler[RevenueBySourceQuery, *RevenueReport] = (*RevenueBySourceHandler)(nil)
