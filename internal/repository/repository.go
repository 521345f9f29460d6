package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
)

type ListItemsParams struct {
	SourceID *uint64
	Limit    int
	Offset   int
	OrderBy  string
	Asc      *bool
}

// RunRecord is what the task runner persists onto a job row after every
// execution, success or not.
type RunRecord struct {
	RunAt      time.Time
	Status     string
	Result     []byte
	BumpErrors bool
}

type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Jobs
	CreateJobTx(ctx context.Context, tx *gorm.DB, job *models.Job) error
	GetJobByType(ctx context.Context, jobType string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	ListEnabledJobs(ctx context.Context) ([]models.Job, error)
	SaveJob(ctx context.Context, job *models.Job) error
	DeleteJobTx(ctx context.Context, tx *gorm.DB, id uint64) error
	EnsureJob(ctx context.Context, job *models.Job) error
	RecordJobRun(ctx context.Context, jobID uint64, rec RunRecord) error

	// Sources
	CreateSourceTx(ctx context.Context, tx *gorm.DB, source *models.Source) error
	GetSourceByID(ctx context.Context, id uint64) (*models.Source, error)
	ListSources(ctx context.Context) ([]models.Source, error)
	ListEnabledSources(ctx context.Context) ([]models.Source, error)
	SaveSource(ctx context.Context, source *models.Source) error
	SaveSourceTx(ctx context.Context, tx *gorm.DB, source *models.Source) error
	DeleteSourceTx(ctx context.Context, tx *gorm.DB, id uint64) error

	// Items
	FindItemByKey(ctx context.Context, providerType, externalID, url string) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	SaveItem(ctx context.Context, item *models.Item) error
	ListItems(ctx context.Context, params ListItemsParams) ([]models.Item, error)
	CountItemsBySource(ctx context.Context, sourceID uint64) (int64, error)
	DeleteOldestPrunable(ctx context.Context, sourceID uint64, excess int) (int64, error)
}
