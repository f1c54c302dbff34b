// Package scheduler runs the daily summary and low-stock jobs on cron
// schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"clothpos/backend/internal/archive"
	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/notify"
)

const jobTimeout = 2 * time.Minute

// Ledger is the read side of the ledger API the jobs depend on.
type Ledger interface {
	CorrectedDailySummary(ctx context.Context, date string) (domain.DailyReport, error)
	LowStock(ctx context.Context) ([]domain.LowStockVariety, error)
}

type Options struct {
	NotifyPhone      string
	DailySchedule    string
	LowStockSchedule string
	Location         *time.Location
}

type Scheduler struct {
	cron    *cron.Cron
	ledger  Ledger
	sender  notify.Sender
	archive archive.ReportArchive
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a scheduler. A nil archive discards reports and a nil location
// means UTC.
func New(ledger Ledger, sender notify.Sender, reports archive.ReportArchive, opts Options, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reports == nil {
		reports = archive.Noop{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(opts.Location)),
		ledger:  ledger,
		sender:  sender,
		archive: reports,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers both jobs and starts the cron loop. A bad schedule
// expression is returned before anything runs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.opts.DailySchedule, s.runDailySummary); err != nil {
		return fmt.Errorf("schedule daily summary %q: %w", s.opts.DailySchedule, err)
	}
	if _, err := s.cron.AddFunc(s.opts.LowStockSchedule, s.runLowStock); err != nil {
		return fmt.Errorf("schedule low stock alert %q: %w", s.opts.LowStockSchedule, err)
	}

	s.logger.Info("starting scheduler",
		zap.String("daily_schedule", s.opts.DailySchedule),
		zap.String("low_stock_schedule", s.opts.LowStockSchedule),
		zap.String("timezone", s.opts.Location.String()))
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDailySummary() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.SendDailySummary(ctx); err != nil {
		s.logger.Error("daily summary job failed", zap.Error(err))
		return
	}
	s.logger.Info("daily summary sent")
}

func (s *Scheduler) runLowStock() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sent, err := s.SendLowStockAlerts(ctx)
	if err != nil {
		s.logger.Error("low stock job failed", zap.Int("sent", sent), zap.Error(err))
		return
	}
	s.logger.Info("low stock alerts sent", zap.Int("sent", sent))
}

// SendDailySummary sends today's corrected summary and archives it. Archiving
// still happens when the send fails.
func (s *Scheduler) SendDailySummary(ctx context.Context) error {
	date := s.now().In(s.opts.Location).Format(domain.DateLayout)

	report, err := s.ledger.CorrectedDailySummary(ctx, date)
	if err != nil {
		return fmt.Errorf("fetch daily summary %s: %w", date, err)
	}

	var errs []error
	if err := s.sender.Send(ctx, s.opts.NotifyPhone, notify.DailySummary(report)); err != nil {
		errs = append(errs, fmt.Errorf("send daily summary: %w", err))
	}
	if err := s.archive.SaveDailyReport(ctx, report); err != nil {
		errs = append(errs, fmt.Errorf("archive daily summary: %w", err))
	}
	return errors.Join(errs...)
}

// SendLowStockAlerts sends one alert per low variety and returns how many
// went out.
func (s *Scheduler) SendLowStockAlerts(ctx context.Context) (int, error) {
	items, err := s.ledger.LowStock(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch low stock: %w", err)
	}

	sent := 0
	var errs []error
	for _, item := range items {
		if err := s.sender.Send(ctx, s.opts.NotifyPhone, notify.LowStockAlert(item)); err != nil {
			errs = append(errs, fmt.Errorf("alert %s: %w", item.Variety.ID, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}
