package runner

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
)

// stubRepo is a test-only in-memory repository.Repository. Runner tests
// use the job lookup and run-record paths; everything else is inert.
type stubRepo struct {
	mu      sync.Mutex
	jobs    map[string]*models.Job
	records []repository.RunRecord
}

func newStubRepo(jobs ...*models.Job) *stubRepo {
	s := &stubRepo{jobs: make(map[string]*models.Job)}
	for _, job := range jobs {
		s.jobs[job.JobType] = job
	}
	return s
}

func (s *stubRepo) recorded() []repository.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.RunRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) CreateJobTx(ctx context.Context, tx *gorm.DB, job *models.Job) error { return nil }
func (s *stubRepo) GetJobByType(ctx context.Context, jobType string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[jobType], nil
}
func (s *stubRepo) ListJobs(ctx context.Context) ([]models.Job, error)        { return nil, nil }
func (s *stubRepo) ListEnabledJobs(ctx context.Context) ([]models.Job, error) { return nil, nil }
func (s *stubRepo) SaveJob(ctx context.Context, job *models.Job) error        { return nil }
func (s *stubRepo) DeleteJobTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	return nil
}
func (s *stubRepo) EnsureJob(ctx context.Context, job *models.Job) error { return nil }
func (s *stubRepo) RecordJobRun(ctx context.Context, jobID uint64, rec repository.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *stubRepo) CreateSourceTx(ctx context.Context, tx *gorm.DB, source *models.Source) error {
	return nil
}
func (s *stubRepo) GetSourceByID(ctx context.Context, id uint64) (*models.Source, error) {
	return nil, nil
}
func (s *stubRepo) ListSources(ctx context.Context) ([]models.Source, error)        { return nil, nil }
func (s *stubRepo) ListEnabledSources(ctx context.Context) ([]models.Source, error) { return nil, nil }
func (s *stubRepo) SaveSource(ctx context.Context, source *models.Source) error     { return nil }
func (s *stubRepo) SaveSourceTx(ctx context.Context, tx *gorm.DB, source *models.Source) error {
	return nil
}
func (s *stubRepo) DeleteSourceTx(ctx context.Context, tx *gorm.DB, id uint64) error { return nil }

func (s *stubRepo) FindItemByKey(ctx context.Context, providerType, externalID, url string) (*models.Item, error) {
	return nil, nil
}
func (s *stubRepo) CreateItem(ctx context.Context, item *models.Item) error { return nil }
func (s *stubRepo) SaveItem(ctx context.Context, item *models.Item) error   { return nil }
func (s *stubRepo) ListItems(ctx context.Context, params repository.ListItemsParams) ([]models.Item, error) {
	return nil, nil
}
func (s *stubRepo) CountItemsBySource(ctx context.Context, sourceID uint64) (int64, error) {
	return 0, nil
}
func (s *stubRepo) DeleteOldestPrunable(ctx context.Context, sourceID uint64, excess int) (int64, error) {
	return 0, nil
}
