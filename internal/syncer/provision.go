package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/connector"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/models"
)

// SourceJobType is the job_type of the per-source sync job.
func SourceJobType(sourceID uint64) string {
	return fmt.Sprintf("source_sync_%d", sourceID)
}

type CreateSourceParams struct {
	Name            string          `json:"name"`
	ProviderType    string          `json:"provider_type"`
	Credential      string          `json:"credential"`
	Config          json.RawMessage `json:"config"`
	DailyCallQuota  int             `json:"daily_call_quota"`
	IntervalSeconds int             `json:"interval_seconds"`
	Enabled         *bool           `json:"enabled"`
}

// CreateSource provisions a source and its owning job in one
// transaction. The credential is encrypted before it touches the row.
func (s *Service) CreateSource(ctx context.Context, p CreateSourceParams) (*models.Source, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	providerType := strings.TrimSpace(p.ProviderType)
	if !s.Registry.Has(providerType) {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}

	source := &models.Source{
		Name:           name,
		ProviderType:   providerType,
		Enabled:        p.Enabled == nil || *p.Enabled,
		DailyCallQuota: p.DailyCallQuota,
	}
	if source.DailyCallQuota <= 0 {
		source.DailyCallQuota = s.Config.DefaultQuota
	}
	if len(p.Config) > 0 {
		source.Config = datatypes.JSON(p.Config)
	}
	if strings.TrimSpace(p.Credential) != "" {
		ciphertext, err := s.Secrets.Encrypt(p.Credential)
		if err != nil {
			return nil, fmt.Errorf("encrypt credential: %w", err)
		}
		source.Credential = &ciphertext
	}

	interval := p.IntervalSeconds
	if interval <= 0 {
		interval = 3600
	}

	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.CreateSourceTx(ctx, tx, source); err != nil {
			return err
		}
		job := &models.Job{
			Name:            "Sync " + name,
			JobType:         SourceJobType(source.ID),
			Component:       "sources",
			IntervalSeconds: &interval,
			Enabled:         source.Enabled,
		}
		if err := s.Repo.CreateJobTx(ctx, tx, job); err != nil {
			return err
		}
		source.JobID = &job.ID
		return s.Repo.SaveSourceTx(ctx, tx, source)
	})
	if err != nil {
		return nil, err
	}
	return source, nil
}

// DeleteSource removes the source together with its owning job.
func (s *Service) DeleteSource(ctx context.Context, id uint64) error {
	source, err := s.Repo.GetSourceByID(ctx, id)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("source %d not found", id)
	}
	return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if source.JobID != nil {
			if err := s.Repo.DeleteJobTx(ctx, tx, *source.JobID); err != nil {
				return err
			}
		}
		return s.Repo.DeleteSourceTx(ctx, tx, source.ID)
	})
}

// TestSource builds a throwaway connector for the source and runs its
// connection test.
func (s *Service) TestSource(ctx context.Context, id uint64) (connector.TestResult, error) {
	source, err := s.Repo.GetSourceByID(ctx, id)
	if err != nil {
		return connector.TestResult{}, err
	}
	if source == nil {
		return connector.TestResult{}, fmt.Errorf("source %d not found", id)
	}
	if !source.HasCredential() {
		return connector.TestResult{OK: false, Message: SkipNoKey}, nil
	}
	credential, err := s.Secrets.Decrypt(*source.Credential)
	if err != nil {
		return connector.TestResult{OK: false, Message: "credential unreadable"}, nil
	}
	conn, err := s.Registry.New(source.ProviderType, connector.Options{
		Credential: credential,
		RawConfig:  json.RawMessage(source.Config),
		HTTP:       s.HTTP,
		Limiter:    s.Limiter,
		Logger:     s.Logger,
	})
	if err != nil {
		return connector.TestResult{}, err
	}
	return conn.TestConnection(ctx)
}
