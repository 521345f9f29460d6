package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
)

func newTestRunner(repo *stubRepo) *Runner {
	return New(repo, nil, zap.NewNop())
}

func TestRun_UnknownJobTypeIsSkippedUnrecorded(t *testing.T) {
	repo := newStubRepo()
	r := newTestRunner(repo)

	outcome := r.Run(context.Background(), "does_not_exist")
	if outcome.Status != models.JobStatusSkipped {
		t.Fatalf("status=%s want=skipped", outcome.Status)
	}
	if outcome.ErrorMessage != SkipUnknownJob {
		t.Fatalf("message=%q want=%q", outcome.ErrorMessage, SkipUnknownJob)
	}
	if got := repo.recorded(); len(got) != 0 {
		t.Fatalf("records=%d want=0 (nothing to record on)", len(got))
	}
}

func TestRun_Success(t *testing.T) {
	repo := newStubRepo(&models.Job{ID: 1, JobType: "demo"})
	r := newTestRunner(repo)
	r.Register("demo", func(ctx context.Context, job *models.Job) (any, string, error) {
		return map[string]int{"items": 3}, "", nil
	})

	outcome := r.Run(context.Background(), "demo")
	if outcome.Status != models.JobStatusSuccess {
		t.Fatalf("status=%s want=success", outcome.Status)
	}
	if outcome.RunID == "" {
		t.Fatalf("run id missing")
	}
	records := repo.recorded()
	if len(records) != 1 || records[0].Status != models.JobStatusSuccess {
		t.Fatalf("records=%+v want one success record", records)
	}
	if records[0].BumpErrors {
		t.Fatalf("success must not bump error count")
	}
}

func TestRun_HandlerErrorBumpsErrors(t *testing.T) {
	repo := newStubRepo(&models.Job{ID: 1, JobType: "demo"})
	r := newTestRunner(repo)
	r.Register("demo", func(ctx context.Context, job *models.Job) (any, string, error) {
		return nil, "", errors.New("boom")
	})

	outcome := r.Run(context.Background(), "demo")
	if outcome.Status != models.JobStatusError || outcome.ErrorMessage != "boom" {
		t.Fatalf("outcome=%+v want error boom", outcome)
	}
	records := repo.recorded()
	if len(records) != 1 || !records[0].BumpErrors {
		t.Fatalf("records=%+v want one error record with bump", records)
	}
}

func TestRun_SkipReason(t *testing.T) {
	repo := newStubRepo(&models.Job{ID: 1, JobType: "demo"})
	r := newTestRunner(repo)
	r.Register("demo", func(ctx context.Context, job *models.Job) (any, string, error) {
		return nil, "daily limit reached", nil
	})

	outcome := r.Run(context.Background(), "demo")
	if outcome.Status != models.JobStatusSkipped || outcome.ErrorMessage != "daily limit reached" {
		t.Fatalf("outcome=%+v want skipped with reason", outcome)
	}
}

func TestRun_SingleFlightPerJobID(t *testing.T) {
	repo := newStubRepo(&models.Job{ID: 1, JobType: "demo"})
	r := newTestRunner(repo)

	entered := make(chan struct{})
	release := make(chan struct{})
	r.Register("demo", func(ctx context.Context, job *models.Job) (any, string, error) {
		close(entered)
		<-release
		return nil, "", nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var first Outcome
	go func() {
		defer wg.Done()
		first = r.Run(context.Background(), "demo")
	}()

	<-entered
	second := r.Run(context.Background(), "demo")
	if second.Status != models.JobStatusSkipped || second.ErrorMessage != SkipAlreadyRunning {
		t.Fatalf("second=%+v want skipped(already running)", second)
	}

	close(release)
	wg.Wait()
	if first.Status != models.JobStatusSuccess {
		t.Fatalf("first=%+v want success", first)
	}

	// Overlap rejections leave no trace on the job row.
	if got := repo.recorded(); len(got) != 1 {
		t.Fatalf("records=%d want=1", len(got))
	}
}

func TestRun_PanicRecordedAndSlotReleased(t *testing.T) {
	repo := newStubRepo(&models.Job{ID: 1, JobType: "demo"})
	r := newTestRunner(repo)
	calls := 0
	r.Register("demo", func(ctx context.Context, job *models.Job) (any, string, error) {
		calls++
		if calls == 1 {
			panic("bad state")
		}
		return nil, "", nil
	})

	first := r.Run(context.Background(), "demo")
	if first.Status != models.JobStatusError {
		t.Fatalf("first=%+v want error", first)
	}

	second := r.Run(context.Background(), "demo")
	if second.Status != models.JobStatusSuccess {
		t.Fatalf("second=%+v want success after slot release", second)
	}
}

func TestRun_PrefixRouting(t *testing.T) {
	repo := newStubRepo(&models.Job{ID: 7, JobType: "source_sync_7"})
	r := newTestRunner(repo)
	var seen string
	r.RegisterPrefix(SourceJobPrefix, func(ctx context.Context, job *models.Job) (any, string, error) {
		seen = job.JobType
		return nil, "", nil
	})

	outcome := r.Run(context.Background(), "source_sync_7")
	if outcome.Status != models.JobStatusSuccess {
		t.Fatalf("outcome=%+v want success", outcome)
	}
	if seen != "source_sync_7" {
		t.Fatalf("handler saw %q", seen)
	}
}
