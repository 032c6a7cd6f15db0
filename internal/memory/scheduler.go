package memory

import (
	"fmt"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// startScheduler registers the consolidation and forgetting sweeps on fixed
// intervals. A sweep still running when its next tick fires is skipped.
// Intervals under a second are rounded up to one second.
func (m *Manager) startScheduler() error {
	if m.cfg.ConsolidationInterval <= 0 {
		return fmt.Errorf("consolidation interval must be positive, got %s", m.cfg.ConsolidationInterval)
	}

	l := cronLogger{m.logger.Named("scheduler").Sugar()}
	c := rcron.New(
		rcron.WithLogger(l),
		rcron.WithChain(rcron.Recover(l), rcron.SkipIfStillRunning(l)),
	)

	c.Schedule(rcron.Every(m.cfg.ConsolidationInterval), rcron.FuncJob(func() {
		m.consolidate()
	}))
	if m.cfg.EnableForgetting {
		c.Schedule(rcron.Every(m.cfg.EffectiveForgettingInterval()), rcron.FuncJob(func() {
			m.forget()
		}))
	}

	c.Start()
	m.scheduler = c
	m.logger.Info("sweeps scheduled",
		zap.Duration("consolidation_interval", m.cfg.ConsolidationInterval),
		zap.Duration("forgetting_interval", m.cfg.EffectiveForgettingInterval()),
		zap.Bool("forgetting", m.cfg.EnableForgetting),
	)
	return nil
}
