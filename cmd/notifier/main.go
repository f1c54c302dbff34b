package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"clothpos/backend/internal/archive"
	"clothpos/backend/internal/config"
	"clothpos/backend/internal/ledgerclient"
	"clothpos/backend/internal/logger"
	"clothpos/backend/internal/notify"
	"clothpos/backend/internal/scheduler"
)

func main() {
	once := flag.String("once", "", "run a single job and exit: daily or low-stock")
	flag.Parse()

	cfg, err := config.LoadNotifier()
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	loc, _ := time.LoadLocation(cfg.Timezone)

	reports, closers := openArchives(cfg, baseLogger)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(context.Background()); err != nil {
				baseLogger.Error("failed to close archive", zap.Error(err))
			}
		}
	}()

	ledger := ledgerclient.New(ledgerclient.Config{
		BaseURL:  cfg.LedgerBaseURL,
		Username: cfg.LedgerUsername,
		Password: cfg.LedgerPassword,
	})
	sched := scheduler.New(ledger, notify.NewBridgeClient(cfg.BridgeBaseURL), reports, scheduler.Options{
		NotifyPhone:      cfg.NotifyPhone,
		DailySchedule:    cfg.ReportCronSchedule,
		LowStockSchedule: cfg.LowStockCronSchedule,
		Location:         loc,
	}, baseLogger.Named("scheduler"))

	if *once != "" {
		runOnce(sched, *once, baseLogger)
		return
	}

	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	baseLogger.Info("shutdown signal received")
	sched.Stop()
}

func runOnce(sched *scheduler.Scheduler, job string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch job {
	case "daily":
		if err := sched.SendDailySummary(ctx); err != nil {
			log.Fatal("daily summary failed", zap.Error(err))
		}
	case "low-stock":
		sent, err := sched.SendLowStockAlerts(ctx)
		if err != nil {
			log.Fatal("low stock alerts failed", zap.Int("sent", sent), zap.Error(err))
		}
		log.Info("low stock alerts sent", zap.Int("sent", sent))
	default:
		log.Fatal("unknown job", zap.String("job", job))
	}
}

// openArchives connects every configured report archive. An archive that
// cannot be opened is logged and skipped.
func openArchives(cfg config.NotifierConfig, log *zap.Logger) (archive.ReportArchive, []func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var targets archive.Fanout
	var closers []func(context.Context) error

	if cfg.MongoURI != "" {
		mongoArchive, err := archive.NewMongo(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Error("mongodb archive disabled", zap.Error(err))
		} else {
			targets = append(targets, mongoArchive)
			closers = append(closers, mongoArchive.Close)
			log.Info("archive: mongodb")
		}
	}

	if cfg.SpreadsheetID != "" {
		sheets, err := archive.NewSheets(context.Background(), cfg.SheetsCredentials, cfg.SpreadsheetID, log.Named("archive.sheets"))
		if err != nil {
			log.Error("google sheets archive disabled", zap.Error(err))
		} else {
			targets = append(targets, sheets)
			log.Info("archive: google sheets")
		}
	}

	if len(targets) == 0 {
		log.Info("archive: noop")
		return archive.Noop{}, closers
	}
	return targets, closers
}
