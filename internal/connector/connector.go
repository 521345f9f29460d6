package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// NormalizedItem is the provider-agnostic record shape a connector hands
// to the sync pipeline before persistence.
type NormalizedItem struct {
	ProviderType string
	ExternalID   string
	URL          string
	Title        string
	Excerpt      string
	Author       string
	PublishedAt  *time.Time
	Tags         []string
	Raw          json.RawMessage
}

type FetchResult struct {
	Items     []NormalizedItem
	CallsUsed int
	Warnings  []string
}

type TestResult struct {
	OK      bool
	Message string
	Details map[string]string
}

type Metadata struct {
	ProviderType string
	Label        string
	DocsURL      string
}

// Connector adapts one external provider API. Instances are built per
// invocation because they carry decrypted credential material; only the
// provider_type -> factory mapping lives for the process lifetime.
type Connector interface {
	Metadata() Metadata
	TestConnection(ctx context.Context) (TestResult, error)
	Fetch(ctx context.Context, since *time.Time, maxPages int) (FetchResult, error)
	EstimateCalls(maxPages int) int
}

// Options carries everything a factory needs to build a connector for
// one invocation.
type Options struct {
	Credential string
	RawConfig  json.RawMessage
	HTTP       *http.Client
	Limiter    *HostLimiter
	Logger     *zap.Logger
}

type Factory func(opts Options) (Connector, error)
