package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs a batch job on a cron schedule. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	job    func(ctx context.Context) error
	logger *zap.Logger
}

// New creates a scheduler whose jobs receive a context derived from parent.
func New(parent context.Context, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	chainLog := cronLogger{log: logger.Sugar(), verbose: true}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{log: logger.Sugar()}),
			cron.WithChain(
				cron.Recover(chainLog),
				cron.SkipIfStillRunning(chainLog),
			),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

func (s *Scheduler) SetJob(f func(ctx context.Context) error) {
	s.job = f
}

// Start registers the job under schedule (standard five-field cron syntax or
// descriptors such as "@every 1h") and starts the cron loop.
func (s *Scheduler) Start(schedule string) error {
	if s.job == nil {
		return errors.New("scheduler: job not set")
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.logger.Info("scheduled batch triggered", zap.String("schedule", schedule))
		if err := s.job(s.ctx); err != nil {
			s.logger.Error("scheduled batch failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", schedule))
	return nil
}

// Stop halts further ticks, cancels the context of a running job and waits
// for it to return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether a job has been registered.
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}

// cronLogger routes cron's own logging through zap. Routine scheduler events
// go to debug unless verbose is set; skipped ticks and recovered panics use
// the verbose logger.
type cronLogger struct {
	log     *zap.SugaredLogger
	verbose bool
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.verbose {
		l.log.Infow(msg, keysAndValues...)
		return
	}
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
