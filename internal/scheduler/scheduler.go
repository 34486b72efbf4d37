package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
)

// Jobs holds the periodic work the scheduler drives. Each job receives a
// fresh context per firing.
type Jobs struct {
	RecalculatePriorities func(ctx context.Context) error
	RetrainModel          func(ctx context.Context) error
}

// Scheduler drives the recurring triage maintenance jobs on two independent
// timers. A firing is skipped when the previous run of the same job is still
// in flight.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New builds the scheduler from the configured cadences: priority
// recalculation every recalculation_frequency_minutes and model retraining
// daily at the fixed UTC hour. Cadences are read once at construction; a
// triage config reload does not reschedule existing entries, a changed
// recalculation frequency takes effect on the next process start.
func New(cfg config.SchedulerConfig, triageCfg *config.TriageConfig, jobs Jobs, logger *zap.Logger) (*Scheduler, error) {
	cronLogger := &zapCronLogger{logger: logger.Named("scheduler")}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)

	recalcSpec := fmt.Sprintf("@every %dm", triageCfg.Ranking.RecalculationFrequencyMinutes)
	if _, err := c.AddFunc(recalcSpec, runJob(logger, "priority_recalculation", jobs.RecalculatePriorities)); err != nil {
		return nil, fmt.Errorf("schedule priority recalculation: %w", err)
	}

	retrainSpec := fmt.Sprintf("0 %d * * *", cfg.RetrainHourUTC)
	if _, err := c.AddFunc(retrainSpec, runJob(logger, "model_retraining", jobs.RetrainModel)); err != nil {
		return nil, fmt.Errorf("schedule model retraining: %w", err)
	}

	logger.Info("scheduler configured",
		zap.String("recalculation", recalcSpec),
		zap.String("retraining", retrainSpec))
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins firing jobs in background goroutines.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// runJob wraps a job with a fresh context and duration logging. Job errors
// are logged and absorbed so one bad run never stops the timer.
func runJob(logger *zap.Logger, name string, job func(ctx context.Context) error) func() {
	return func() {
		if job == nil {
			return
		}
		start := time.Now()
		logger.Info("scheduled job starting", zap.String("job", name))
		if err := job(context.Background()); err != nil {
			logger.Error("scheduled job failed",
				zap.String("job", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return
		}
		logger.Info("scheduled job completed",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// zapCronLogger adapts zap to the cron logging interface.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l *zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
