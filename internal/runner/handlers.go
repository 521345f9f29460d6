package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/syncer"
)

// JobTypeSyncAll is the whole-fleet sync job seeded at startup.
const JobTypeSyncAll = "sync_all_sources"

// SourceJobPrefix matches the per-source job types minted at source
// provisioning time.
const SourceJobPrefix = "source_sync_"

func SyncAllHandler(svc *syncer.Service) Handler {
	return func(ctx context.Context, job *models.Job) (any, string, error) {
		batch, err := svc.SyncAll(ctx)
		if err != nil {
			return nil, "", err
		}
		return batch, "", nil
	}
}

func SourceSyncHandler(svc *syncer.Service) Handler {
	return func(ctx context.Context, job *models.Job) (any, string, error) {
		raw := strings.TrimPrefix(job.JobType, SourceJobPrefix)
		sourceID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("malformed source job type %q", job.JobType)
		}
		result, err := svc.SyncSource(ctx, sourceID)
		if err != nil {
			return nil, "", err
		}
		if result.Skipped {
			return result, result.Reason, nil
		}
		if result.Error != "" {
			return result, "", errors.New(result.Error)
		}
		return result, "", nil
	}
}
