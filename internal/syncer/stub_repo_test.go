package syncer

import (
	"context"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
)

type pruneCall struct {
	sourceID uint64
	excess   int
}

// stubRepo is a test-only in-memory repository.Repository covering the
// source and item paths the sync pipeline exercises.
type stubRepo struct {
	mu      sync.Mutex
	sources map[uint64]*models.Source
	jobs    map[uint64]*models.Job
	items   []*models.Item

	nextSourceID uint64
	nextJobID    uint64
	nextItemID   uint64

	// itemCount, when set, overrides the live count for pruning tests.
	itemCount  *int64
	pruneCalls []pruneCall
}

func newStubRepo(sources ...*models.Source) *stubRepo {
	s := &stubRepo{
		sources: make(map[uint64]*models.Source),
		jobs:    make(map[uint64]*models.Job),
	}
	for _, src := range sources {
		if src.ID > s.nextSourceID {
			s.nextSourceID = src.ID
		}
		s.sources[src.ID] = src
	}
	return s
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) CreateJobTx(ctx context.Context, tx *gorm.DB, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJobID++
	job.ID = s.nextJobID
	s.jobs[job.ID] = job
	return nil
}
func (s *stubRepo) GetJobByType(ctx context.Context, jobType string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.JobType == jobType {
			return job, nil
		}
	}
	return nil, nil
}
func (s *stubRepo) ListJobs(ctx context.Context) ([]models.Job, error)        { return nil, nil }
func (s *stubRepo) ListEnabledJobs(ctx context.Context) ([]models.Job, error) { return nil, nil }
func (s *stubRepo) SaveJob(ctx context.Context, job *models.Job) error        { return nil }
func (s *stubRepo) DeleteJobTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}
func (s *stubRepo) EnsureJob(ctx context.Context, job *models.Job) error { return nil }
func (s *stubRepo) RecordJobRun(ctx context.Context, jobID uint64, rec repository.RunRecord) error {
	return nil
}

func (s *stubRepo) CreateSourceTx(ctx context.Context, tx *gorm.DB, source *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSourceID++
	source.ID = s.nextSourceID
	s.sources[source.ID] = source
	return nil
}
func (s *stubRepo) GetSourceByID(ctx context.Context, id uint64) (*models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[id], nil
}
func (s *stubRepo) ListSources(ctx context.Context) ([]models.Source, error) { return nil, nil }
func (s *stubRepo) ListEnabledSources(ctx context.Context) ([]models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Source
	for id := uint64(1); id <= s.nextSourceID; id++ {
		if src, ok := s.sources[id]; ok && src.Enabled {
			out = append(out, *src)
		}
	}
	return out, nil
}
func (s *stubRepo) SaveSource(ctx context.Context, source *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.ID] = source
	return nil
}
func (s *stubRepo) SaveSourceTx(ctx context.Context, tx *gorm.DB, source *models.Source) error {
	return s.SaveSource(ctx, source)
}
func (s *stubRepo) DeleteSourceTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, id)
	return nil
}

func (s *stubRepo) FindItemByKey(ctx context.Context, providerType, externalID, url string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ProviderType != providerType {
			continue
		}
		if strings.TrimSpace(externalID) != "" {
			if item.ExternalID == externalID {
				return item, nil
			}
			continue
		}
		if item.URL == url {
			return item, nil
		}
	}
	return nil, nil
}
func (s *stubRepo) CreateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextItemID++
	item.ID = s.nextItemID
	s.items = append(s.items, item)
	return nil
}
func (s *stubRepo) SaveItem(ctx context.Context, item *models.Item) error { return nil }
func (s *stubRepo) ListItems(ctx context.Context, params repository.ListItemsParams) ([]models.Item, error) {
	return nil, nil
}
func (s *stubRepo) CountItemsBySource(ctx context.Context, sourceID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.itemCount != nil {
		return *s.itemCount, nil
	}
	var n int64
	for _, item := range s.items {
		if item.SourceID == sourceID {
			n++
		}
	}
	return n, nil
}
func (s *stubRepo) DeleteOldestPrunable(ctx context.Context, sourceID uint64, excess int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneCalls = append(s.pruneCalls, pruneCall{sourceID: sourceID, excess: excess})
	return int64(excess), nil
}
