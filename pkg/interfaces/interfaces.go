// Package interfaces defines the core abstractions of the resolution chain.
// Extractors implement these interfaces, making the chain easy to extend
// and to exercise against fake origins.
package interfaces

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"m3u8-resolver/pkg/types"
)

// Transport builds HTTP clients that share routing and connection pools but
// carry their own cookie jar.
type Transport interface {
	NewHTTPClient(jar http.CookieJar, timeout time.Duration) *http.Client
}

// Session is the per-resolution request context. Implementations are owned
// by one resolution and must never be shared between resolutions.
type Session interface {
	// Get fetches a URL; non-2xx statuses come back as pages, transport
	// failures as network errors.
	Get(ctx context.Context, stage types.Stage, rawURL string, headers map[string]string) (*types.Page, error)

	// Post is Get with a POST and an optional form body.
	Post(ctx context.Context, stage types.Stage, rawURL string, headers map[string]string, form url.Values) (*types.Page, error)

	// SiteURL is the origin site without trailing slash.
	SiteURL() string

	PlayerDomain() string
	SetPlayerDomain(domain string)
	AuthToken() string
	SetAuthToken(token string)
}

// ChallengeSolver clears an anti-bot challenge in front of a site and
// returns the cookies and user agent the site accepts afterwards.
type ChallengeSolver interface {
	Solve(ctx context.Context, rawURL string) (cookies []*http.Cookie, userAgent string, err error)
}

// Extractor turns one kind of input URL into flattened stream descriptors.
//
// To add a new extractor:
// 1. Create a new file in pkg/extractors/
// 2. Implement this interface
// 3. Register it in the ExtractorRegistry
type Extractor interface {
	// Name returns a unique identifier for this extractor.
	Name() string

	// CanExtract returns true if this extractor can handle the given URL.
	CanExtract(url string) bool

	// Extract walks the chain for url using sess, recording progress in trace.
	Extract(ctx context.Context, sess Session, url string, trace *types.Trace) ([]types.StreamDescriptor, error)

	// Close releases any resources held by the extractor.
	Close() error
}

// Registry is a generic interface for component registries.
type Registry[T any] interface {
	// Register adds a component to the registry.
	Register(component T)

	// Get returns the appropriate component for the given URL.
	Get(url string) T

	// All returns all registered components.
	All() []T
}
