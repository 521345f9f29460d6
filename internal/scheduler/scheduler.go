package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/runner"
)

// ErrUnsupportedCadence marks an interval that maps to neither a
// seconds-field nor a minutes/hours-field repeat (for example 90s).
// Such jobs are left unscheduled until the cadence is corrected.
var ErrUnsupportedCadence = errors.New("unsupported cadence")

// Scheduler registers every enabled job's cadence with a cron engine and
// hands fired jobs to the task runner. Reload rebuilds the whole trigger
// set from the current jobs table, so cadence edits take effect without
// a process restart.
type Scheduler struct {
	repo    repository.Repository
	runner  *runner.Runner
	logger  *zap.Logger
	baseCtx context.Context

	mu   sync.Mutex
	cron *cron.Cron
}

func New(repo repository.Repository, run *runner.Runner, logger *zap.Logger, baseCtx context.Context) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Scheduler{
		repo:    repo,
		runner:  run,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// CronSpec derives the six-field cron expression for a job. A stored
// cron expression wins; otherwise the interval is translated:
// n<=59s to a seconds repeat, whole minutes to a minutes repeat, whole
// hours to an hours repeat. Anything else is unsupported.
func CronSpec(job *models.Job) (string, error) {
	if job.CronExpr != nil && strings.TrimSpace(*job.CronExpr) != "" {
		expr := strings.TrimSpace(*job.CronExpr)
		if strings.HasPrefix(expr, "@") {
			return expr, nil
		}
		// Five-field expressions get a zero seconds field so they parse
		// under the seconds-aware engine.
		if len(strings.Fields(expr)) == 5 {
			return "0 " + expr, nil
		}
		return expr, nil
	}

	if job.IntervalSeconds == nil || *job.IntervalSeconds <= 0 {
		return "", fmt.Errorf("%w: no cadence configured", ErrUnsupportedCadence)
	}
	n := *job.IntervalSeconds
	if n <= 59 {
		return fmt.Sprintf("*/%d * * * * *", n), nil
	}
	if n%60 != 0 {
		return "", fmt.Errorf("%w: %ds is not a whole number of minutes", ErrUnsupportedCadence, n)
	}
	minutes := n / 60
	if minutes <= 59 {
		return fmt.Sprintf("0 */%d * * * *", minutes), nil
	}
	if minutes%60 != 0 || minutes/60 > 23 {
		return "", fmt.Errorf("%w: %ds is not a whole number of hours", ErrUnsupportedCadence, n)
	}
	return fmt.Sprintf("0 0 */%d * * *", minutes/60), nil
}

// Reload swaps in a trigger set rebuilt from the currently enabled
// jobs. The previous cron engine is drained in the background.
func (s *Scheduler) Reload(ctx context.Context) error {
	jobs, err := s.repo.ListEnabledJobs(ctx)
	if err != nil {
		return fmt.Errorf("list enabled jobs: %w", err)
	}

	next := cron.New(cron.WithSeconds())
	registered := 0
	for i := range jobs {
		job := jobs[i]
		spec, err := CronSpec(&job)
		if err != nil {
			s.logger.Warn("job left unscheduled",
				zap.String("job_type", job.JobType),
				zap.Error(err),
			)
			continue
		}
		jobType := job.JobType
		if _, err := next.AddFunc(spec, func() {
			outcome := s.runner.Run(s.baseCtx, jobType)
			s.logger.Debug("scheduled run finished",
				zap.String("job_type", jobType),
				zap.String("status", outcome.Status),
			)
		}); err != nil {
			s.logger.Warn("cron registration failed",
				zap.String("job_type", job.JobType),
				zap.String("spec", spec),
				zap.Error(err),
			)
			continue
		}
		registered++
	}

	s.mu.Lock()
	prev := s.cron
	s.cron = next
	s.mu.Unlock()

	next.Start()
	if prev != nil {
		go func() { <-prev.Stop().Done() }()
	}

	s.logger.Info("scheduler reloaded",
		zap.Int("scheduled", registered),
		zap.Int("enabled_jobs", len(jobs)),
	)
	return nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	return s.Reload(ctx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	current := s.cron
	s.cron = nil
	s.mu.Unlock()
	if current != nil {
		<-current.Stop().Done()
	}
	s.logger.Info("scheduler stopped")
}
