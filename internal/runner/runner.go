package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/events"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
)

// Skip reasons the runner produces on its own.
const (
	SkipAlreadyRunning = "already running"
	SkipUnknownJob     = "unknown job type"
)

// Handler executes one job type. A non-empty skip reason short-circuits
// the run as skipped; payload is persisted as the job's last_result.
type Handler func(ctx context.Context, job *models.Job) (payload any, skipReason string, err error)

type Outcome struct {
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	Result       any       `json:"result,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Runner executes jobs with an at-most-one-per-job-id guarantee and
// records an outcome on the job row after every run. It serves both cron
// fires and operator run-now requests.
type Runner struct {
	Repo   repository.Repository
	Events *events.Client
	Logger *zap.Logger

	mu      sync.Mutex
	running map[uint64]struct{}

	handlers map[string]Handler
	prefixes map[string]Handler
}

func New(repo repository.Repository, sink *events.Client, logger *zap.Logger) *Runner {
	return &Runner{
		Repo:     repo,
		Events:   sink,
		Logger:   logger,
		running:  make(map[uint64]struct{}),
		handlers: make(map[string]Handler),
		prefixes: make(map[string]Handler),
	}
}

func (r *Runner) Register(jobType string, handler Handler) {
	r.handlers[jobType] = handler
}

// RegisterPrefix routes every job_type with the given prefix to one
// handler. Used for the per-source sync jobs, whose types are minted at
// provisioning time.
func (r *Runner) RegisterPrefix(prefix string, handler Handler) {
	r.prefixes[prefix] = handler
}

// Run executes the job exactly once. Concurrent calls for the same job
// id beyond the first return skipped("already running") with no side
// effects. The guard is process-scoped; a restart rebuilds it empty.
func (r *Runner) Run(ctx context.Context, jobType string) Outcome {
	outcome := Outcome{RunID: uuid.NewString()}

	job, err := r.Repo.GetJobByType(ctx, jobType)
	if err != nil {
		outcome.Status = models.JobStatusError
		outcome.ErrorMessage = fmt.Sprintf("load job: %v", err)
		outcome.FinishedAt = time.Now().UTC()
		return outcome
	}
	if job == nil {
		outcome.Status = models.JobStatusSkipped
		outcome.ErrorMessage = SkipUnknownJob
		outcome.FinishedAt = time.Now().UTC()
		return outcome
	}

	if !r.tryAcquire(job.ID) {
		outcome.Status = models.JobStatusSkipped
		outcome.ErrorMessage = SkipAlreadyRunning
		outcome.FinishedAt = time.Now().UTC()
		return outcome
	}
	defer r.release(job.ID)

	handler := r.resolve(job.JobType)
	if handler == nil {
		outcome.Status = models.JobStatusSkipped
		outcome.ErrorMessage = SkipUnknownJob
		outcome.FinishedAt = time.Now().UTC()
		r.record(ctx, job, outcome)
		r.emit(job, outcome)
		return outcome
	}

	payload, skipReason, runErr := r.execute(ctx, job, handler)
	outcome.FinishedAt = time.Now().UTC()
	switch {
	case runErr != nil:
		outcome.Status = models.JobStatusError
		outcome.ErrorMessage = runErr.Error()
		outcome.Result = payload
	case skipReason != "":
		outcome.Status = models.JobStatusSkipped
		outcome.ErrorMessage = skipReason
		outcome.Result = payload
	default:
		outcome.Status = models.JobStatusSuccess
		outcome.Result = payload
	}

	r.record(ctx, job, outcome)
	r.emit(job, outcome)
	return outcome
}

// execute shields the runner from handler panics so the outcome is
// still recorded and the single-flight slot still released.
func (r *Runner) execute(ctx context.Context, job *models.Job, handler Handler) (payload any, skipReason string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("job handler panicked",
				zap.String("job_type", job.JobType),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, job)
}

func (r *Runner) resolve(jobType string) Handler {
	if handler, ok := r.handlers[jobType]; ok {
		return handler
	}
	for prefix, handler := range r.prefixes {
		if strings.HasPrefix(jobType, prefix) {
			return handler
		}
	}
	return nil
}

func (r *Runner) tryAcquire(jobID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[jobID]; busy {
		return false
	}
	r.running[jobID] = struct{}{}
	return true
}

func (r *Runner) release(jobID uint64) {
	r.mu.Lock()
	delete(r.running, jobID)
	r.mu.Unlock()
}

func (r *Runner) record(ctx context.Context, job *models.Job, outcome Outcome) {
	var result []byte
	if outcome.Result != nil {
		if b, err := json.Marshal(outcome.Result); err == nil {
			result = b
		}
	}
	rec := repository.RunRecord{
		RunAt:      outcome.FinishedAt,
		Status:     outcome.Status,
		Result:     result,
		BumpErrors: outcome.Status == models.JobStatusError,
	}
	if err := r.Repo.RecordJobRun(ctx, job.ID, rec); err != nil {
		r.Logger.Warn("recording job outcome failed",
			zap.String("job_type", job.JobType),
			zap.Error(err),
		)
	}
}

// emit pushes the outcome to the event sink. Best-effort: a sink failure
// never fails the run.
func (r *Runner) emit(job *models.Job, outcome Outcome) {
	if r.Events == nil {
		return
	}
	var result map[string]any
	if outcome.Result != nil {
		if b, err := json.Marshal(outcome.Result); err == nil {
			_ = json.Unmarshal(b, &result)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := r.Events.Emit(ctx, events.Event{
		Name:       "job_finished",
		RunID:      outcome.RunID,
		JobType:    job.JobType,
		Component:  job.Component,
		Status:     outcome.Status,
		Result:     result,
		Error:      outcome.ErrorMessage,
		FinishedAt: outcome.FinishedAt,
	})
	if err != nil {
		r.Logger.Debug("event emit failed", zap.Error(err))
	}
}
