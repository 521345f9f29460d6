package models

import (
	"time"

	"gorm.io/datatypes"
)

// Item is a persisted normalized record fetched from a provider. The pair
// (provider_type, external_id) identifies a row; when the provider issues
// no id, (provider_type, url) is the fallback key. Pinned, starred,
// dismissed and note-linked rows are protected from retention pruning.
type Item struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID     uint64 `gorm:"index;not null" json:"source_id"`
	ProviderType string `gorm:"type:varchar(60);index:idx_items_provider_external;index:idx_items_provider_url;not null" json:"provider_type"`
	ExternalID   string `gorm:"type:varchar(255);index:idx_items_provider_external" json:"external_id"`
	URL          string `gorm:"type:text;index:idx_items_provider_url" json:"url"`

	Title       string         `gorm:"type:text;not null" json:"title"`
	Excerpt     string         `gorm:"type:text" json:"excerpt"`
	Author      string         `gorm:"type:varchar(255)" json:"author"`
	PublishedAt *time.Time     `gorm:"type:timestamptz;index" json:"published_at,omitempty"`
	Tags        datatypes.JSON `gorm:"type:jsonb" json:"tags,omitempty"`
	RawJSON     datatypes.JSON `gorm:"type:jsonb" json:"-"`

	Pinned       bool    `gorm:"not null;default:false" json:"pinned"`
	Starred      bool    `gorm:"not null;default:false" json:"starred"`
	Dismissed    bool    `gorm:"not null;default:false" json:"dismissed"`
	LinkedNoteID *uint64 `json:"linked_note_id,omitempty"`

	FetchedAt time.Time `gorm:"type:timestamptz;not null" json:"fetched_at"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Item) TableName() string {
	return "items"
}

// Protected reports whether the row is exempt from retention pruning.
func (i *Item) Protected() bool {
	return i.Pinned || i.Starred || i.Dismissed || i.LinkedNoteID != nil
}
