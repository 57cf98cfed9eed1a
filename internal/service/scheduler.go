package service

import (
	"context"
	"time"

	"github.com/invoicely/backend/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	OverdueSweepSchedule   = "@every 1h"
	SessionCleanupSchedule = "@every 15m"
	jobTimeout             = 2 * time.Minute
)

// Job is a unit of background work. It returns the number of rows touched.
type Job func(ctx context.Context) (int64, error)

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewScheduler creates a scheduler. Jobs are added with Register.
func NewScheduler(log *logrus.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     log,
		metrics: metrics,
	}
}

// Register adds a named job on a cron schedule.
func (s *Scheduler) Register(name, schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() { s.Run(name, job) })
	return err
}

// Run executes a job once with a timeout and records the outcome.
func (s *Scheduler) Run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := job(ctx)
	entry := s.log.WithFields(logrus.Fields{"job": name, "duration": time.Since(start).String()})
	if err != nil {
		s.metrics.JobRunsTotal.WithLabelValues(name, "error").Inc()
		entry.WithError(err).Error("scheduled job failed")
		return
	}
	s.metrics.JobRunsTotal.WithLabelValues(name, "ok").Inc()
	entry.WithField("affected", n).Debug("scheduled job completed")
}

// RegisterMaintenance wires the overdue sweep and session cleanup.
func (s *Scheduler) RegisterMaintenance(invoices *InvoiceService, auth *AuthService) error {
	if err := s.Register("overdue_sweep", OverdueSweepSchedule, func(ctx context.Context) (int64, error) {
		n, err := invoices.SweepOverdue(ctx)
		return int64(n), err
	}); err != nil {
		return err
	}
	return s.Register("session_cleanup", SessionCleanupSchedule, auth.ExpireSessions)
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
