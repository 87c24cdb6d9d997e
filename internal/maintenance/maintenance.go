// Package maintenance runs periodic housekeeping: expired invites, old read
// notifications and stale rate-limit windows.
package maintenance

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/store"
)

const (
	DefaultSchedule  = "@every 1h"
	DefaultRetention = 30 * 24 * time.Hour
)

// Cleaner drops expired in-memory state.
type Cleaner interface {
	Cleanup() int
}

type Config struct {
	// Schedule is a cron spec, for example "@every 1h" or "15 3 * * *".
	Schedule string
	// Retention is how long read notifications are kept.
	Retention time.Duration
}

// Report counts what one sweep removed.
type Report struct {
	ExpiredInvites    int64
	ReadNotifications int64
	RateWindows       int
}

type Janitor struct {
	invites       *store.InviteStore
	notifications *store.NotificationStore
	limiter       Cleaner
	logger        *slog.Logger
	cfg           Config
	now           func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// New builds a Janitor. limiter may be nil.
func New(db database.DBTX, limiter Cleaner, logger *slog.Logger, cfg Config) *Janitor {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Janitor{
		invites:       store.NewInviteStore(db),
		notifications: store.NewNotificationStore(db),
		limiter:       limiter,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Sweep runs every cleanup once. A failing step is logged and the rest
// still run.
func (j *Janitor) Sweep() Report {
	var r Report
	now := j.now()

	n, err := j.invites.DeleteExpired(now)
	if err != nil {
		j.logger.Error("purge expired invites", "error", err)
	}
	r.ExpiredInvites = n

	n, err = j.notifications.DeleteReadBefore(now.Add(-j.cfg.Retention))
	if err != nil {
		j.logger.Error("prune read notifications", "error", err)
	}
	r.ReadNotifications = n

	if j.limiter != nil {
		r.RateWindows = j.limiter.Cleanup()
	}

	j.logger.Info("maintenance sweep",
		"expired_invites", r.ExpiredInvites,
		"read_notifications", r.ReadNotifications,
		"rate_windows", r.RateWindows,
	)
	return r
}

// Start schedules Sweep on the configured cron spec.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(j.cfg.Schedule, func() { j.Sweep() }); err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", j.cfg.Schedule, err)
	}
	c.Start()
	j.cron = c
	j.logger.Info("maintenance scheduled", "schedule", j.cfg.Schedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
