// Package productivity derives rolling statistics from closed time-log
// entries: total and average hours, the current consecutive-day streak and
// utilization against a fixed eight-hour day.
package productivity

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fentz26/worklog/internal/clock"
	"github.com/fentz26/worklog/internal/models"
	"github.com/fentz26/worklog/internal/store"
	"golang.org/x/sync/singleflight"
)

// TargetHoursPerDay is the utilization baseline. It is not configurable per user.
const TargetHoursPerDay = 8

// DefaultWindowDays applies when a caller asks for a window shorter than a day.
const DefaultWindowDays = 30

// MaxWindowDays is the longest window Stats accepts.
const MaxWindowDays = 3650

// EntrySource lists time-log entries. *store.Store satisfies it.
type EntrySource interface {
	ListTimeLogs(ctx context.Context, f store.TimeLogFilter) ([]models.TimeLogEntry, error)
}

// Aggregator computes productivity stats.
type Aggregator struct {
	source        EntrySource
	clock         clock.Clock
	loc           *time.Location
	defaultWindow int

	group singleflight.Group
}

// NewAggregator creates an Aggregator. Calendar days for streaks are taken in
// loc (UTC when nil).
func NewAggregator(src EntrySource, clk clock.Clock, loc *time.Location, defaultWindow int) *Aggregator {
	if clk == nil {
		clk = clock.System{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if defaultWindow < 1 {
		defaultWindow = DefaultWindowDays
	}
	if defaultWindow > MaxWindowDays {
		defaultWindow = MaxWindowDays
	}
	return &Aggregator{source: src, clock: clk, loc: loc, defaultWindow: defaultWindow}
}

// Stats returns the user's statistics over the last windowDays days. An empty
// window yields zeros. Concurrent identical requests share one computation,
// which runs detached from any single caller's cancellation.
func (a *Aggregator) Stats(ctx context.Context, userID string, windowDays int) (*models.ProductivityStats, error) {
	if windowDays < 1 {
		windowDays = a.defaultWindow
	}
	if windowDays > MaxWindowDays {
		return nil, models.Validationf("window of %d days exceeds %d", windowDays, MaxWindowDays)
	}

	key := fmt.Sprintf("%s|%d", userID, windowDays)
	ch := a.group.DoChan(key, func() (interface{}, error) {
		return a.compute(context.WithoutCancel(ctx), userID, windowDays)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		stats := *res.Val.(*models.ProductivityStats)
		return &stats, nil
	}
}

func (a *Aggregator) compute(ctx context.Context, userID string, windowDays int) (*models.ProductivityStats, error) {
	now := a.clock.Now()
	from := now.AddDate(0, 0, -windowDays)

	entries, err := a.source.ListTimeLogs(ctx, store.TimeLogFilter{
		UserID:     userID,
		From:       from,
		To:         now,
		ClosedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list time logs: %w", err)
	}

	var seconds int64
	for _, e := range entries {
		seconds += e.Duration
	}
	hours := float64(seconds) / 3600

	return &models.ProductivityStats{
		UserID:             userID,
		WindowDays:         windowDays,
		TotalHours:         round2(hours),
		AverageDailyHours:  round2(hours / float64(windowDays)),
		StreakDays:         Streak(entries, now, a.loc, windowDays),
		UtilizationPercent: round2(hours / float64(windowDays*TargetHoursPerDay) * 100),
	}, nil
}

// Streak counts consecutive calendar days, walking back from the day
// containing now, on which at least one entry started. It stops at the first
// day without entries and never looks further back than maxDays.
func Streak(entries []models.TimeLogEntry, now time.Time, loc *time.Location, maxDays int) int {
	days := make(map[civilDay]bool, len(entries))
	for _, e := range entries {
		days[dayOf(e.StartTime.In(loc))] = true
	}

	today := now.In(loc)
	streak := 0
	for i := 0; i < maxDays; i++ {
		if !days[dayOf(today.AddDate(0, 0, -i))] {
			break
		}
		streak++
	}
	return streak
}

type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) civilDay {
	y, m, d := t.Date()
	return civilDay{y, m, d}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
