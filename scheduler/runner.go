package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ArtJustine/scheduler-sub001/utils"
)

// Runner triggers sweeps in-process on a cron schedule, as an alternative to
// the external trigger hitting the cron endpoint.
type Runner struct {
	cron *cron.Cron
}

// NewRunner schedules s on spec, e.g. "@every 1m" or "*/5 * * * *".
func NewRunner(spec string, s *Sweeper) (*Runner, error) {
	logger := cronLogger{utils.Sugar.Named("cron")}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Run(context.Background()); err != nil && !errors.Is(err, ErrSweepInProgress) {
			utils.Logger.Error("scheduled sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return &Runner{cron: c}, nil
}

// Start begins running sweeps in the background.
func (r *Runner) Start() { r.cron.Start() }

// Stop prevents new sweeps and waits for a running one to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
