package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kamishop/kamishop-backend/internal/stats"
	"github.com/kamishop/kamishop-backend/pkg/logger"
)

// reportBuilder aggregates one day of sales.
type reportBuilder interface {
	BuildDailyReport(ctx context.Context, day time.Time) (*stats.DailyReport, error)
}

// reportSender posts the report to the operator channel.
type reportSender interface {
	DailyReport(ctx context.Context, report stats.DailyReport) error
}

// DailyReportJobParams configure the daily sales report.
type DailyReportJobParams struct {
	Logger  *logger.Logger
	Stats   reportBuilder
	Notify  reportSender
	Now     func() time.Time
}

// NewDailyReportJob builds the cron job that reports yesterday's sales and
// current low-stock warnings to the operator channel.
func NewDailyReportJob(params DailyReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stats == nil {
		return nil, fmt.Errorf("stats service required")
	}
	if params.Notify == nil {
		return nil, fmt.Errorf("notify dispatcher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &dailyReportJob{
		logg:   params.Logger,
		stats:  params.Stats,
		notify: params.Notify,
		now:    now,
	}, nil
}

type dailyReportJob struct {
	logg   *logger.Logger
	stats  reportBuilder
	notify reportSender
	now    func() time.Time
}

func (j *dailyReportJob) Name() string { return "daily-report" }

func (j *dailyReportJob) Run(ctx context.Context) error {
	day := j.now().UTC().Add(-24 * time.Hour)

	report, err := j.stats.BuildDailyReport(ctx, day)
	if err != nil {
		return fmt.Errorf("build daily report: %w", err)
	}
	if err := j.notify.DailyReport(ctx, *report); err != nil {
		return fmt.Errorf("send daily report: %w", err)
	}

	ctx = j.logg.WithFields(ctx, map[string]any{
		"orders":  report.OrderCount,
		"revenue": report.Revenue.StringFixed(2),
	})
	j.logg.Info(ctx, "daily report sent")
	return nil
}
