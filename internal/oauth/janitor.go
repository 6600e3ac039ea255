package oauth

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/storage"
)

// StateJanitor periodically removes expired state rows from the relational
// store. Redis-backed states expire on their own and do not need it.
type StateJanitor struct {
	store  storage.Store
	cron   *cron.Cron
	logger logging.Logger
}

// NewStateJanitor creates a janitor that sweeps every five minutes once
// started.
func NewStateJanitor(store storage.Store, logger logging.Logger) *StateJanitor {
	return &StateJanitor{
		store:  store,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start schedules the sweep. It returns an error only if the schedule
// expression fails to parse.
func (j *StateJanitor) Start() error {
	_, err := j.cron.AddFunc("@every 5m", j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *StateJanitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *StateJanitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := j.store.DeleteExpiredStates(ctx, time.Now())
	if err != nil {
		j.logger.Warn("expired state sweep failed", logging.Err(err))
		return
	}
	if removed > 0 {
		j.logger.Debug("removed expired oauth states", logging.Int("count", int(removed)))
	}
}
