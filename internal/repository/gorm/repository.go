package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Jobs -------------------------------------------------------------------

func (s *Store) CreateJobTx(ctx context.Context, tx *gorm.DB, job *models.Job) error {
	if job == nil {
		return nil
	}
	return s.conn(ctx, tx).Create(job).Error
}

func (s *Store) GetJobByType(ctx context.Context, jobType string) (*models.Job, error) {
	var item models.Job
	err := s.db.WithContext(ctx).Where("job_type = ?", strings.TrimSpace(jobType)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]models.Job, error) {
	var items []models.Job
	if err := s.db.WithContext(ctx).Order("component asc, job_type asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListEnabledJobs(ctx context.Context) ([]models.Job, error) {
	var items []models.Job
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("job_type asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveJob(ctx context.Context, job *models.Job) error {
	if job == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(job).Error
}

func (s *Store) DeleteJobTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	return s.conn(ctx, tx).Delete(&models.Job{}, id).Error
}

// EnsureJob inserts the job unless a row with the same job_type already
// exists. Used by the startup seed step.
func (s *Store) EnsureJob(ctx context.Context, job *models.Job) error {
	if job == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_type"}},
		DoNothing: true,
	}).Create(job).Error
}

func (s *Store) RecordJobRun(ctx context.Context, jobID uint64, rec repository.RunRecord) error {
	updates := map[string]any{
		"last_run_at": rec.RunAt,
		"last_status": rec.Status,
		"last_result": rec.Result,
	}
	if rec.BumpErrors {
		updates["error_count"] = gorm.Expr("error_count + 1")
	}
	return s.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", jobID).Updates(updates).Error
}

// --- Sources ----------------------------------------------------------------

func (s *Store) CreateSourceTx(ctx context.Context, tx *gorm.DB, source *models.Source) error {
	if source == nil {
		return nil
	}
	return s.conn(ctx, tx).Create(source).Error
}

func (s *Store) GetSourceByID(ctx context.Context, id uint64) (*models.Source, error) {
	var item models.Source
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSources(ctx context.Context) ([]models.Source, error) {
	var items []models.Source
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListEnabledSources(ctx context.Context) ([]models.Source, error) {
	var items []models.Source
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveSource(ctx context.Context, source *models.Source) error {
	if source == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(source).Error
}

func (s *Store) SaveSourceTx(ctx context.Context, tx *gorm.DB, source *models.Source) error {
	if source == nil {
		return nil
	}
	return s.conn(ctx, tx).Save(source).Error
}

func (s *Store) DeleteSourceTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	return s.conn(ctx, tx).Delete(&models.Source{}, id).Error
}

// --- Items ------------------------------------------------------------------

// FindItemByKey looks a row up by (provider_type, external_id), falling
// back to (provider_type, url) when the provider issued no id.
func (s *Store) FindItemByKey(ctx context.Context, providerType, externalID, url string) (*models.Item, error) {
	query := s.db.WithContext(ctx).Where("provider_type = ?", providerType)
	if strings.TrimSpace(externalID) != "" {
		query = query.Where("external_id = ?", externalID)
	} else {
		query = query.Where("url = ?", url)
	}
	var item models.Item
	err := query.First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) SaveItem(ctx context.Context, item *models.Item) error {
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListItems(ctx context.Context, params repository.ListItemsParams) ([]models.Item, error) {
	query := s.db.WithContext(ctx).Model(&models.Item{})
	if params.SourceID != nil {
		query = query.Where("source_id = ?", *params.SourceID)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "fetched_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Item
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountItemsBySource(ctx context.Context, sourceID uint64) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Item{}).Where("source_id = ?", sourceID).Count(&total).Error
	return total, err
}

// DeleteOldestPrunable removes up to excess unprotected rows for the
// source, oldest first. Pinned, starred, dismissed and note-linked rows
// survive regardless of age.
func (s *Store) DeleteOldestPrunable(ctx context.Context, sourceID uint64, excess int) (int64, error) {
	if excess <= 0 {
		return 0, nil
	}
	sub := s.db.WithContext(ctx).Model(&models.Item{}).
		Select("id").
		Where("source_id = ?", sourceID).
		Where("pinned = false AND starred = false AND dismissed = false AND linked_note_id IS NULL").
		Order("fetched_at asc, id asc").
		Limit(excess)
	res := s.db.WithContext(ctx).Where("id IN (?)", sub).Delete(&models.Item{})
	return res.RowsAffected, res.Error
}

// --- helpers ----------------------------------------------------------------

func (s *Store) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	col := strings.TrimSpace(orderBy)
	switch col {
	case "fetched_at", "published_at", "created_at", "id":
	default:
		col = fallback
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(col + " " + dir)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
