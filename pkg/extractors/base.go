// Package extractors provides the resolution chain: pattern extraction,
// embed resolution, manifest fetching, tree flattening and playlist retrieval,
// plus the extractors that drive the chain for each kind of input URL.
//
// To add a new extractor:
// 1. Create a new file (e.g., mirror.go)
// 2. Implement the Extractor interface
// 3. Register it in the registry (see setup in internal/app/app.go)
package extractors

import (
	"context"
	"net/url"
	"strings"

	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/types"
)

// CSRFHeader carries the auth token on manifest and playlist requests.
const CSRFHeader = "X-CSRF-TOKEN"

// Options are the knobs shared by every extractor.
type Options struct {
	DefaultPlayerDomain string
	PlayerScheme        string
	MaxCandidates       int
}

// OptionsFromConfig picks the extractor options out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultPlayerDomain: cfg.DefaultPlayerDomain,
		PlayerScheme:        cfg.PlayerScheme,
		MaxCandidates:       cfg.MaxCandidates,
	}
}

// BaseExtractor provides the embed → manifest → flatten tail of the chain
// that every extractor shares.
type BaseExtractor struct {
	opts     Options
	log      *logging.Logger
	embed    *EmbedResolver
	manifest *ManifestFetcher
}

// NewBaseExtractor creates a new base extractor.
func NewBaseExtractor(opts Options, log *logging.Logger) *BaseExtractor {
	if opts.PlayerScheme == "" {
		opts.PlayerScheme = config.DefaultPlayerScheme
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 3
	}
	return &BaseExtractor{
		opts:     opts,
		log:      log,
		embed:    NewEmbedResolver(opts.PlayerScheme, opts.MaxCandidates, log),
		manifest: NewManifestFetcher(log),
	}
}

// Close releases resources.
func (b *BaseExtractor) Close() error {
	return nil
}

// resolveCandidates runs the chain from the candidate list down to flattened
// descriptors, recording each finished stage in trace.
func (b *BaseExtractor) resolveCandidates(ctx context.Context, sess interfaces.Session, referer string, candidates []string, trace *types.Trace) ([]types.StreamDescriptor, error) {
	res, err := b.embed.Resolve(ctx, sess, referer, candidates, trace)
	if err != nil {
		return nil, err
	}
	trace.EmbedURL = res.URL
	trace.PayloadDecoded = true
	trace.TokenKnown = res.Payload.Key != ""
	trace.Complete(types.StageEmbed)

	text, err := b.manifest.Fetch(ctx, sess, res.URL, res.Payload.File)
	if err != nil {
		return nil, err
	}
	trace.Complete(types.StageManifest)

	shape, streams, err := Flatten(text)
	trace.ManifestShape = shape
	if err != nil {
		return nil, err
	}
	trace.StreamCount = len(streams)
	trace.Complete(types.StageFlatten)

	b.log.Debug("manifest flattened", "shape", shape, "streams", len(streams))
	return streams, nil
}

// GetDomain extracts the host from a URL.
func GetDomain(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// hostMatches reports whether host is domain or one of its subdomains.
func hostMatches(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return domain != "" && (host == domain || strings.HasSuffix(host, "."+domain))
}
