package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/config"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/connector"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/quota"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/secrets"
)

// Skip reasons surfaced in SourceResult.Reason.
const (
	SkipDisabled     = "disabled"
	SkipNoKey        = "no key"
	SkipQuotaReached = "daily limit reached"
)

type Service struct {
	Repo     repository.Repository
	Registry *connector.Registry
	Secrets  *secrets.Codec
	HTTP     *http.Client
	Limiter  *connector.HostLimiter
	Logger   *zap.Logger
	Config   config.SyncConfig
}

type SourceResult struct {
	SourceID     uint64 `json:"source_id"`
	Name         string `json:"name"`
	Success      bool   `json:"success"`
	Skipped      bool   `json:"skipped"`
	Reason       string `json:"reason,omitempty"`
	ItemsAdded   int    `json:"items_added"`
	ItemsUpdated int    `json:"items_updated"`
	CallsUsed    int    `json:"calls_used"`
	Pruned       int64  `json:"pruned,omitempty"`
	Error        string `json:"error,omitempty"`
}

type BatchResult struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	TotalItems int            `json:"total_items"`
	Results    []SourceResult `json:"results"`
}

// SyncSource runs one source end to end. The returned error is non-nil
// only when the source row itself cannot be loaded; connector and
// persistence failures are folded into the result so batch runs keep
// going.
func (s *Service) SyncSource(ctx context.Context, id uint64) (SourceResult, error) {
	source, err := s.Repo.GetSourceByID(ctx, id)
	if err != nil {
		return SourceResult{}, fmt.Errorf("load source %d: %w", id, err)
	}
	if source == nil {
		return SourceResult{}, fmt.Errorf("source %d not found", id)
	}
	return s.syncLoaded(ctx, source), nil
}

// SyncAll runs every enabled source sequentially. One source failing
// never aborts the batch.
func (s *Service) SyncAll(ctx context.Context) (BatchResult, error) {
	sources, err := s.Repo.ListEnabledSources(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list sources: %w", err)
	}

	batch := BatchResult{Total: len(sources)}
	for i := range sources {
		result := s.syncLoaded(ctx, &sources[i])
		batch.Results = append(batch.Results, result)
		batch.TotalItems += result.ItemsAdded
		switch {
		case result.Skipped:
			batch.Skipped++
		case result.Success:
			batch.Successful++
		default:
			batch.Failed++
		}
	}
	return batch, nil
}

func (s *Service) syncLoaded(ctx context.Context, source *models.Source) SourceResult {
	result := SourceResult{SourceID: source.ID, Name: source.Name}
	logger := s.Logger.With(zap.Uint64("source_id", source.ID), zap.String("provider", source.ProviderType))

	if !source.Enabled {
		result.Skipped = true
		result.Reason = SkipDisabled
		return result
	}

	// Fail closed on credentials: a missing or undecryptable key skips
	// the source, it is never treated as an empty credential.
	if !source.HasCredential() {
		result.Skipped = true
		result.Reason = SkipNoKey
		return result
	}
	credential, err := s.Secrets.Decrypt(*source.Credential)
	if err != nil {
		logger.Warn("credential decrypt failed, skipping source", zap.Error(err))
		result.Skipped = true
		result.Reason = SkipNoKey
		return result
	}

	tracker := quota.Tracker{
		CallsUsedToday: source.CallsUsedToday,
		DailyCallQuota: source.DailyCallQuota,
		ResetDate:      derefString(source.QuotaResetDate),
	}
	tracker.Rollover(time.Now().UTC())
	budget := tracker.Budget(s.Config.MaxPages)
	if budget <= 0 {
		s.persistQuota(ctx, source, &tracker, logger)
		result.Skipped = true
		result.Reason = SkipQuotaReached
		return result
	}

	conn, err := s.Registry.New(source.ProviderType, connector.Options{
		Credential: credential,
		RawConfig:  json.RawMessage(source.Config),
		HTTP:       s.HTTP,
		Limiter:    s.Limiter,
		Logger:     logger,
	})
	if err != nil {
		return s.failSource(ctx, source, &tracker, result, err, logger)
	}

	fetched, fetchErr := conn.Fetch(ctx, source.LastSyncAt, budget)
	tracker.Consume(fetched.CallsUsed)
	result.CallsUsed = fetched.CallsUsed
	for _, warning := range fetched.Warnings {
		logger.Warn("connector warning", zap.String("warning", warning))
	}
	if fetchErr != nil {
		return s.failSource(ctx, source, &tracker, result, fetchErr, logger)
	}

	inserted, updated, upsertErr := s.upsertItems(ctx, source, fetched.Items)
	result.ItemsAdded = inserted
	result.ItemsUpdated = updated
	if upsertErr != nil {
		return s.failSource(ctx, source, &tracker, result, upsertErr, logger)
	}

	now := time.Now().UTC()
	source.ItemCount += inserted
	source.LastSyncAt = &now
	source.LastError = nil
	source.ErrorCount = 0
	source.CallsUsedToday = tracker.CallsUsedToday
	source.QuotaResetDate = &tracker.ResetDate
	if err := s.Repo.SaveSource(ctx, source); err != nil {
		result.Error = err.Error()
		return result
	}

	pruned, err := s.prune(ctx, source)
	if err != nil {
		logger.Warn("retention pruning failed", zap.Error(err))
	}
	result.Pruned = pruned

	result.Success = true
	logger.Info("source synced",
		zap.Int("added", inserted),
		zap.Int("updated", updated),
		zap.Int("calls_used", fetched.CallsUsed),
		zap.Int64("pruned", pruned),
	)
	return result
}

// upsertItems makes re-ingestion idempotent: an item already stored
// under the same composite key has its mutable fields updated in place.
func (s *Service) upsertItems(ctx context.Context, source *models.Source, items []connector.NormalizedItem) (int, int, error) {
	inserted, updated := 0, 0
	now := time.Now().UTC()

	for i := range items {
		item := &items[i]
		existing, err := s.Repo.FindItemByKey(ctx, item.ProviderType, item.ExternalID, item.URL)
		if err != nil {
			return inserted, updated, fmt.Errorf("lookup item: %w", err)
		}

		tags, err := json.Marshal(item.Tags)
		if err != nil {
			return inserted, updated, err
		}

		if existing == nil {
			row := &models.Item{
				SourceID:     source.ID,
				ProviderType: item.ProviderType,
				ExternalID:   item.ExternalID,
				URL:          item.URL,
				Title:        item.Title,
				Excerpt:      item.Excerpt,
				Author:       item.Author,
				PublishedAt:  item.PublishedAt,
				Tags:         datatypes.JSON(tags),
				RawJSON:      datatypes.JSON(item.Raw),
				FetchedAt:    now,
			}
			if err := s.Repo.CreateItem(ctx, row); err != nil {
				return inserted, updated, fmt.Errorf("insert item: %w", err)
			}
			inserted++
			continue
		}

		existing.Title = item.Title
		existing.Excerpt = item.Excerpt
		existing.Author = item.Author
		existing.PublishedAt = item.PublishedAt
		existing.Tags = datatypes.JSON(tags)
		existing.RawJSON = datatypes.JSON(item.Raw)
		if err := s.Repo.SaveItem(ctx, existing); err != nil {
			return inserted, updated, fmt.Errorf("update item: %w", err)
		}
		updated++
	}
	return inserted, updated, nil
}

func (s *Service) prune(ctx context.Context, source *models.Source) (int64, error) {
	if s.Config.MaxKeep <= 0 {
		return 0, nil
	}
	total, err := s.Repo.CountItemsBySource(ctx, source.ID)
	if err != nil {
		return 0, err
	}
	excess := int(total) - s.Config.MaxKeep
	if excess <= 0 {
		return 0, nil
	}
	return s.Repo.DeleteOldestPrunable(ctx, source.ID, excess)
}

func (s *Service) failSource(ctx context.Context, source *models.Source, tracker *quota.Tracker, result SourceResult, cause error, logger *zap.Logger) SourceResult {
	logger.Warn("source sync failed", zap.Error(cause))
	message := cause.Error()
	source.LastError = &message
	source.ErrorCount++
	source.CallsUsedToday = tracker.CallsUsedToday
	source.QuotaResetDate = &tracker.ResetDate
	if err := s.Repo.SaveSource(ctx, source); err != nil {
		logger.Warn("persisting source error state failed", zap.Error(err))
	}
	result.Error = message
	return result
}

// persistQuota writes back a rollover that happened without a run (for
// example when the budget was already exhausted).
func (s *Service) persistQuota(ctx context.Context, source *models.Source, tracker *quota.Tracker, logger *zap.Logger) {
	if source.CallsUsedToday == tracker.CallsUsedToday && derefString(source.QuotaResetDate) == tracker.ResetDate {
		return
	}
	source.CallsUsedToday = tracker.CallsUsedToday
	source.QuotaResetDate = &tracker.ResetDate
	if err := s.Repo.SaveSource(ctx, source); err != nil {
		logger.Warn("persisting quota rollover failed", zap.Error(err))
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
