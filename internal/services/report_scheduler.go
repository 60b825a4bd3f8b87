package services

import (
	"context"
	"fmt"
	"time"

	"treasury/internal/core"
	"treasury/internal/log"
)

// ScheduledReportAuthor is the GeneratedBy value of reports saved by the scheduler.
const ScheduledReportAuthor = "report-scheduler"

// ReportSaver is the part of TreasuryService the scheduler needs.
type ReportSaver interface {
	SaveReport(ctx context.Context, generatedBy string) (core.Report, error)
	Reports(ctx context.Context) ([]core.Report, error)
}

// ReportScheduler saves a statistics report whenever one is due.
type ReportScheduler struct {
	reports ReportSaver
	checker DuenessChecker
	day     int
	logger  *log.Logger
}

// NewReportScheduler creates a scheduler for frequency (daily, weekly or
// monthly). day is the weekday or the day of the month.
func NewReportScheduler(reports ReportSaver, frequency string, day int, logger *log.Logger) (*ReportScheduler, error) {
	checker, err := GetDuenessChecker(frequency)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportScheduler{
		reports: reports,
		checker: checker,
		day:     day,
		logger:  logger.WithComponent(log.ComponentReports),
	}, nil
}

// ProcessDueReport saves a report if one is due at now and reports whether it did.
func (p *ReportScheduler) ProcessDueReport(ctx context.Context, now time.Time) (bool, error) {
	reports, err := p.reports.Reports(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list reports: %w", err)
	}

	lastRun := lastScheduled(reports)
	if !p.checker.IsDue(lastRun, now, p.day) {
		p.logger.DebugContext(ctx, "No report due", "last_run", lastRun, "now", now)
		return false, nil
	}

	report, err := p.reports.SaveReport(ctx, ScheduledReportAuthor)
	if err != nil {
		return false, fmt.Errorf("failed to save scheduled report: %w", err)
	}

	p.logger.InfoContext(ctx, "Scheduled report saved",
		log.FieldOperation, log.OpReport,
		log.FieldReportID, report.ID,
		"net_balance", report.Statistics.NetBalance.String())
	return true, nil
}

// lastScheduled returns when the newest scheduler-generated report was saved.
// Reports saved by hand do not count.
func lastScheduled(reports []core.Report) time.Time {
	var last time.Time
	for _, r := range reports {
		if r.GeneratedBy == ScheduledReportAuthor && r.GeneratedAt.After(last) {
			last = r.GeneratedAt
		}
	}
	return last
}
