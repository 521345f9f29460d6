package newsdata

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config is the operator-editable, provider-specific part of a source
// row. It lives as jsonb in sources.config.
type Config struct {
	Query    string `json:"query,omitempty"`
	Language string `json:"language,omitempty"`
	Category string `json:"category,omitempty"`
	Country  string `json:"country,omitempty"`
	MaxPages int    `json:"max_pages"`
}

func DefaultConfig() Config {
	return Config{
		Language: "en",
		MaxPages: 3,
	}
}

func ParseConfig(raw json.RawMessage) (Config, error) {
	cfg := DefaultConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse newsdata config: %w", err)
		}
	}
	cfg.Query = strings.TrimSpace(cfg.Query)
	cfg.Language = strings.TrimSpace(cfg.Language)
	cfg.Category = strings.TrimSpace(cfg.Category)
	cfg.Country = strings.TrimSpace(cfg.Country)
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	if cfg.MaxPages > 10 {
		cfg.MaxPages = 10
	}
	return cfg, nil
}
