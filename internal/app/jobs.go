package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob(ctx context.Context) error {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	jobs := a.appConfig.Jobs
	if _, err := a.sched.AddFunc(jobs.OrphanRetry, func() { a.SchedOrphanRetryTask(ctx) }); err != nil {
		zap.S().Errorf("init job error %s", err.Error())
		return err
	}
	if _, err := a.sched.AddFunc(jobs.OrphanSweep, func() { a.SchedOrphanSweepTask(ctx) }); err != nil {
		zap.S().Errorf("init job error %s", err.Error())
		return err
	}
	if _, err := a.sched.AddFunc("@daily", func() { a.SchedClearExpireData(ctx) }); err != nil {
		zap.S().Errorf("init job error %s", err.Error())
		return err
	}

	a.sched.Start()
	zap.L().Info("background jobs started",
		zap.String("namespace", "jobs"),
		zap.String("orphan_retry", jobs.OrphanRetry),
		zap.String("orphan_sweep", jobs.OrphanSweep))
	return nil
}

// SchedOrphanRetryTask retries asset removals queued in the orphan ledger
func (a *Application) SchedOrphanRetryTask(ctx context.Context) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if _, err := a.reconciler.RetryOrphans(ctx); err != nil {
		zap.L().Error("orphan retry failed", zap.String("namespace", "jobs"), zap.Error(err))
	}
}

// SchedOrphanSweepTask removes asset files no product references
func (a *Application) SchedOrphanSweepTask(ctx context.Context) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if _, err := a.reconciler.Sweep(ctx); err != nil {
		zap.L().Error("asset sweep failed", zap.String("namespace", "jobs"), zap.Error(err))
	}
}

// SchedClearExpireData purges operator logs past the retention period
func (a *Application) SchedClearExpireData(ctx context.Context) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	days := a.appConfig.Jobs.AuditRetentionDays
	if days <= 0 {
		days = 365
	}
	n, err := a.audit.Purge(ctx, time.Now().Add(-time.Hour*24*time.Duration(days)))
	if err != nil {
		zap.L().Error("purge operator logs failed", zap.String("namespace", "jobs"), zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("purged operator logs", zap.String("namespace", "jobs"), zap.Int64("rows", n))
	}
}
