package extractors

import (
	"context"
	"strings"

	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/types"
)

// EmbedPageExtractor handles player URLs given directly, skipping the content
// page. The player domain is the URL's own host.
type EmbedPageExtractor struct {
	*BaseExtractor
	log *logging.Logger
}

// NewEmbedPageExtractor creates an embed page extractor.
func NewEmbedPageExtractor(opts Options, log *logging.Logger) *EmbedPageExtractor {
	log = log.WithComponent("embed-extractor")
	return &EmbedPageExtractor{
		BaseExtractor: NewBaseExtractor(opts, log),
		log:           log,
	}
}

// Name returns the extractor name.
func (e *EmbedPageExtractor) Name() string {
	return "embed-page"
}

// CanExtract returns true for /play/ URLs.
func (e *EmbedPageExtractor) CanExtract(url string) bool {
	return strings.Contains(url, "/play/") && GetDomain(url) != ""
}

// Extract resolves the player page itself as the only candidate.
func (e *EmbedPageExtractor) Extract(ctx context.Context, sess interfaces.Session, embedURL string, trace *types.Trace) ([]types.StreamDescriptor, error) {
	if trace == nil {
		trace = &types.Trace{}
	}
	e.log.Debug("extracting embed page", "url", embedURL)

	domain := GetDomain(embedURL)
	sess.SetPlayerDomain(domain)
	trace.PlayerDomain = domain
	trace.CandidateCount = 1
	trace.Complete(types.StagePatterns)

	return e.resolveCandidates(ctx, sess, sess.SiteURL()+"/", []string{embedURL}, trace)
}

var _ interfaces.Extractor = (*EmbedPageExtractor)(nil)
