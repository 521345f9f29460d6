package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobStatusSuccess = "success"
	JobStatusSkipped = "skipped"
	JobStatusError   = "error"
)

// Job is a persisted schedulable unit. Cadence is either CronExpr or
// IntervalSeconds, never both; updating one clears the other.
type Job struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string  `gorm:"type:varchar(120);not null" json:"name"`
	JobType         string  `gorm:"type:varchar(120);uniqueIndex;not null" json:"job_type"`
	Component       string  `gorm:"type:varchar(60);index" json:"component"`
	CronExpr        *string `gorm:"type:varchar(120)" json:"cron_expr,omitempty"`
	IntervalSeconds *int    `json:"interval_seconds,omitempty"`
	Enabled         bool    `gorm:"not null;default:true" json:"enabled"`

	LastRunAt  *time.Time     `gorm:"type:timestamptz" json:"last_run_at,omitempty"`
	LastStatus *string        `gorm:"type:varchar(20)" json:"last_status,omitempty"`
	LastResult datatypes.JSON `gorm:"type:jsonb" json:"last_result,omitempty"`
	ErrorCount int            `gorm:"not null;default:0" json:"error_count"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}
