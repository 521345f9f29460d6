package models

import (
	"time"

	"gorm.io/datatypes"
)

// Source is one provisioned external content provider account. Each
// Source owns exactly one Job (created and deleted together). Credential
// holds AES-GCM ciphertext and must never be logged or returned raw.
type Source struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string         `gorm:"type:varchar(120);not null" json:"name"`
	ProviderType string         `gorm:"type:varchar(60);index;not null" json:"provider_type"`
	Enabled      bool           `gorm:"not null;default:true" json:"enabled"`
	Credential   *string        `gorm:"type:text" json:"-"`
	Config       datatypes.JSON `gorm:"type:jsonb" json:"config,omitempty"`
	JobID        *uint64        `gorm:"uniqueIndex" json:"job_id,omitempty"`

	LastSyncAt *time.Time `gorm:"type:timestamptz" json:"last_sync_at,omitempty"`
	LastError  *string    `gorm:"type:text" json:"last_error,omitempty"`
	ItemCount  int        `gorm:"not null;default:0" json:"item_count"`
	ErrorCount int        `gorm:"not null;default:0" json:"error_count"`

	CallsUsedToday int     `gorm:"not null;default:0" json:"calls_used_today"`
	DailyCallQuota int     `gorm:"not null;default:180" json:"daily_call_quota"`
	QuotaResetDate *string `gorm:"type:varchar(10)" json:"quota_reset_date,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Source) TableName() string {
	return "sources"
}

func (s *Source) HasCredential() bool {
	return s.Credential != nil && *s.Credential != ""
}
