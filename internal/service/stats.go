package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
	"github.com/shopspring/decimal"
)

var sixty = decimal.NewFromInt(60)

// StatsAggregator builds daily rollup increments and the admin stats view.
type StatsAggregator struct {
	store repository.Store
	loc   *time.Location
}

// NewStatsAggregator constructs a StatsAggregator. Days are cut in loc
// (UTC when nil).
func NewStatsAggregator(store repository.Store, loc *time.Location) *StatsAggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsAggregator{store: store, loc: loc}
}

// Delta is the rollup increment for op closing at endedAt. The day is the
// one the operation ended on.
func (a *StatsAggregator) Delta(op *model.Operation, endedAt time.Time, byCategory map[string]int) model.DailyStatDelta {
	d := model.NewDuration(op.StartedAt, endedAt)
	total := 0
	for _, n := range byCategory {
		total += n
	}
	return model.DailyStatDelta{
		BoothID:                op.BoothID,
		Date:                   endedAt.In(a.loc).Format(time.DateOnly),
		ParticipantsByCategory: byCategory,
		TotalParticipants:      total,
		Minutes:                d.TotalMinutes,
		Hours:                  hoursOf(d.TotalMinutes),
	}
}

// Summary returns operation totals and daily rollups for one booth, or every
// booth when boothID is empty.
func (a *StatsAggregator) Summary(ctx context.Context, boothID string) (*model.StatsSummary, error) {
	if boothID != "" {
		if _, err := a.store.GetBooth(ctx, boothID); err != nil {
			return nil, storageError("get booth", err)
		}
	}
	totals, err := a.store.OperationTotals(ctx, boothID)
	if err != nil {
		return nil, storageError("operation totals", err)
	}
	daily, err := a.store.ListDailyStats(ctx, boothID)
	if err != nil {
		return nil, storageError("list daily stats", err)
	}
	if daily == nil {
		daily = []model.DailyStat{}
	}

	summary := &model.StatsSummary{
		BoothID:    boothID,
		Operations: totals,
		TotalHours: hoursOf(totals.TotalMinutes),
		Daily:      daily,
	}
	if totals.Closed > 0 {
		summary.AverageMinutes = totals.TotalMinutes / totals.Closed
	}
	return summary, nil
}

func hoursOf(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(4)
}
