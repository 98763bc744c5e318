package scheduler

import (
	"context"
	"fmt"
	"time"

	"codentor-backend/pkg/logger"

	"github.com/robfig/cron/v3"
)

// ReminderScheduler runs reminder scans on a fixed interval inside the API
// process. A scan still running when the next tick fires is skipped.
type ReminderScheduler struct {
	scanner  *Scanner
	interval time.Duration
	cron     *cron.Cron
	entry    cron.EntryID
}

func NewReminderScheduler(scanner *Scanner, interval time.Duration) *ReminderScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	cronLog := cron.PrintfLogger(logger.WithComponent("Cron"))
	return &ReminderScheduler{
		scanner:  scanner,
		interval: interval,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

// Start registers the scan job and starts the cron loop.
func (s *ReminderScheduler) Start() error {
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.run)
	if err != nil {
		return fmt.Errorf("schedule reminder scan: %w", err)
	}
	s.entry = id
	s.cron.Start()
	logger.WithComponent("ReminderScheduler").
		Infof("[Scheduler] Reminder scanner started (interval: %s)", s.interval)
	return nil
}

// Stop waits for a running scan to finish.
func (s *ReminderScheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.WithComponent("ReminderScheduler").Info("[Scheduler] Reminder scanner stopped")
}

func (s *ReminderScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval*5)
	defer cancel()
	if _, err := s.scanner.Scan(ctx); err != nil {
		logger.WithComponent("ReminderScheduler").WithError(err).Error("[Scheduler] Reminder scan failed")
	}
}
