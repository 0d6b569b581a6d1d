// Package jobs runs the application's scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
)

const sweepTimeout = 30 * time.Minute

// Scheduler runs jobs on cron schedules; overlapping runs of a job are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
}

func NewScheduler(logger core.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		logger: logger,
	}
}

// AddAttendanceSweep schedules svc.Sweep; an empty spec schedules nothing.
func (s *Scheduler) AddAttendanceSweep(spec string, svc attendance.Service) error {
	if spec == "" {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() { s.runSweep(svc) })
	if err != nil {
		return errors.Wrapf(err, "scheduling attendance sweep %q", spec)
	}
	s.logger.Info(fmt.Sprintf("jobs: attendance sweep scheduled %q", spec))
	return nil
}

func (s *Scheduler) runSweep(svc attendance.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	flagged, err := svc.Sweep(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("jobs: attendance sweep: %v", err), err)
		return
	}
	s.logger.Info(fmt.Sprintf("jobs: attendance sweep done in %v, %d student(s) flagged", time.Since(start), len(flagged)))
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvMap(keysAndValues))
}

func kvMap(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		m[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return m
}
