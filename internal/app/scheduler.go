package app

import (
	"context"
	"fmt"

	"github.com/klokku/calsync/pkg/reconcile"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Runner is one sync cycle, satisfied by *Application.
type Runner interface {
	RunOnce(ctx context.Context) (reconcile.Result, error)
}

// Scheduler repeats sync cycles on a cron schedule, one at a time.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	ctx    context.Context
}

func NewScheduler(spec string, runner Runner) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{cron: c, runner: runner, spec: spec}, nil
}

// Start runs the first cycle right away, then follows the schedule until ctx
// is done. It returns once the running cycle, if any, has finished.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	if _, err := s.cron.AddFunc(s.spec, s.runOnce); err != nil {
		return fmt.Errorf("add sync job: %w", err)
	}

	s.runOnce()
	if ctx.Err() != nil {
		return nil
	}

	s.cron.Start()
	log.Infof("Scheduler started (%s), next run at %s", s.spec, s.cron.Entries()[0].Next.Format("15:04:05"))

	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}

func (s *Scheduler) runOnce() {
	if _, err := s.runner.RunOnce(s.ctx); err != nil {
		log.Errorf("Scheduled sync failed: %v", err)
	}
}

// cronLogger routes cron's own messages to logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(keysAndValues []any) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
