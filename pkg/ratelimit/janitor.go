package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"gatekit/pkg/logger"
)

// defaultJanitorCron sweeps idle limiter keys every five minutes.
const defaultJanitorCron = "*/5 * * * *"

// StartJanitor schedules periodic SweepIdle runs against l on a cron
// expression. It returns a cancel func for shutdown. The limiter already
// sweeps opportunistically during admission; the janitor reclaims memory
// for keys that simply stopped sending.
func StartJanitor(ctx context.Context, l *Limiter, cronExpr string) (context.CancelFunc, error) {
	if cronExpr == "" {
		cronExpr = defaultJanitorCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid janitor cron expression: %s", cronExpr)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runJanitor(ctx2, l, cronExpr)
	logger.Info("ratelimit_janitor_started", "cron", cronExpr)
	return cancel, nil
}

func runJanitor(ctx context.Context, l *Limiter, cronExpr string) {
	for {
		next, err := gronx.NextTickAfter(cronExpr, time.Now().UTC(), false)
		if err != nil {
			logger.Error("ratelimit_janitor_schedule_failed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			logger.Info("ratelimit_janitor_stopping")
			return
		case <-time.After(time.Until(next)):
		}
		removed := l.SweepIdle()
		if removed > 0 {
			logger.Debug("ratelimit_janitor_swept", "removed", removed, "remaining", l.Len())
		}
	}
}
