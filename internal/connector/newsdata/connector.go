package newsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/connector"
)

const ProviderType = "newsdata"

const defaultHost = "https://newsdata.io"

// pubDate arrives as "2006-01-02 15:04:05" in UTC; some mirrors send
// RFC3339.
var pubDateLayouts = []string{"2006-01-02 15:04:05", time.RFC3339}

type Connector struct {
	cfg    Config
	client *client
	logger *zap.Logger
}

// Factory builds a per-invocation connector bound to the given base URL.
func Factory(baseURL string) connector.Factory {
	return func(opts connector.Options) (connector.Connector, error) {
		if strings.TrimSpace(opts.Credential) == "" {
			return nil, errors.New("newsdata: missing api key")
		}
		cfg, err := ParseConfig(opts.RawConfig)
		if err != nil {
			return nil, err
		}
		host := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if host == "" {
			host = defaultHost
		}
		logger := opts.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		return &Connector{
			cfg: cfg,
			client: &client{
				host:       host,
				apiKey:     opts.Credential,
				httpClient: opts.HTTP,
				limiter:    opts.Limiter,
				logger:     logger,
			},
			logger: logger.With(zap.String("provider", ProviderType)),
		}, nil
	}
}

func (c *Connector) Metadata() connector.Metadata {
	return connector.Metadata{
		ProviderType: ProviderType,
		Label:        "NewsData.io",
		DocsURL:      "https://newsdata.io/documentation",
	}
}

func (c *Connector) EstimateCalls(maxPages int) int {
	if maxPages > 0 && maxPages < c.cfg.MaxPages {
		return maxPages
	}
	return c.cfg.MaxPages
}

// TestConnection issues a single minimal page request and reports
// reachability plus whatever account metadata the provider exposes.
func (c *Connector) TestConnection(ctx context.Context) (connector.TestResult, error) {
	query := c.baseQuery()
	query.Set("size", "1")

	resp, err := c.client.fetchPage(ctx, query)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Status == 403) {
			return connector.TestResult{OK: false, Message: "credential rejected"}, nil
		}
		return connector.TestResult{}, err
	}
	return connector.TestResult{
		OK:      true,
		Message: "ok",
		Details: map[string]string{
			"total_results": fmt.Sprintf("%d", resp.TotalResults),
		},
	}, nil
}

// Fetch walks the provider's cursor pagination up to maxPages logical
// page requests. A page that exhausts its retries surfaces as an error;
// items from earlier pages are returned with it so the caller can decide
// what to keep.
func (c *Connector) Fetch(ctx context.Context, since *time.Time, maxPages int) (connector.FetchResult, error) {
	pages := c.cfg.MaxPages
	if maxPages > 0 && maxPages < pages {
		pages = maxPages
	}

	result := connector.FetchResult{}
	cursor := ""
	for page := 0; page < pages; page++ {
		query := c.baseQuery()
		if cursor != "" {
			query.Set("page", cursor)
		}

		resp, err := c.client.fetchPage(ctx, query)
		// One logical page request is one call used, retries included.
		result.CallsUsed++
		if err != nil {
			return result, fmt.Errorf("fetch page %d: %w", page+1, err)
		}

		items, warnings := c.mapArticles(resp.Results, since)
		result.Items = append(result.Items, items...)
		result.Warnings = append(result.Warnings, warnings...)

		c.logger.Debug("fetched page",
			zap.Int("page", page+1),
			zap.Int("articles", len(resp.Results)),
			zap.Int("total", len(result.Items)),
		)

		cursor = resp.NextPage
		if cursor == "" || len(resp.Results) == 0 {
			break
		}
	}
	return result, nil
}

func (c *Connector) baseQuery() url.Values {
	query := url.Values{}
	query.Set("apikey", c.client.apiKey)
	if c.cfg.Query != "" {
		query.Set("q", c.cfg.Query)
	}
	if c.cfg.Language != "" {
		query.Set("language", c.cfg.Language)
	}
	if c.cfg.Category != "" {
		query.Set("category", c.cfg.Category)
	}
	if c.cfg.Country != "" {
		query.Set("country", c.cfg.Country)
	}
	return query
}

func (c *Connector) mapArticles(raws []json.RawMessage, since *time.Time) ([]connector.NormalizedItem, []string) {
	items := make([]connector.NormalizedItem, 0, len(raws))
	var warnings []string

	for _, raw := range raws {
		var art apiArticle
		if err := json.Unmarshal(raw, &art); err != nil {
			warnings = append(warnings, "unparseable article: "+err.Error())
			continue
		}
		if strings.TrimSpace(art.Title) == "" || strings.TrimSpace(art.Link) == "" {
			warnings = append(warnings, "article missing title or link, dropped")
			continue
		}

		publishedAt := parsePubDate(art.PubDate)
		if since != nil && publishedAt != nil && publishedAt.Before(*since) {
			continue
		}

		item := connector.NormalizedItem{
			ProviderType: ProviderType,
			ExternalID:   strings.TrimSpace(art.ArticleID),
			URL:          strings.TrimSpace(art.Link),
			Title:        strings.TrimSpace(art.Title),
			Author:       strings.Join(art.Creator, ", "),
			PublishedAt:  publishedAt,
			Tags:         mergeTags(art.Category, art.Keywords, art.Country),
			Raw:          raw,
		}
		if art.Description != nil {
			item.Excerpt = strings.TrimSpace(*art.Description)
		}
		items = append(items, item)
	}
	return items, warnings
}

func parsePubDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if at, err := time.Parse(layout, raw); err == nil {
			utc := at.UTC()
			return &utc
		}
	}
	return nil
}

// mergeTags flattens category/keyword/country values into one de-duped
// homogeneous string list.
func mergeTags(groups ...flexibleStrings) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, group := range groups {
		for _, tag := range group {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
