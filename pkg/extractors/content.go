package extractors

import (
	"context"

	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/types"
)

// ContentPageExtractor resolves site content pages: it reads the player
// domain and candidates out of the page and runs the rest of the chain.
type ContentPageExtractor struct {
	*BaseExtractor
	siteHost string
	log      *logging.Logger
}

// NewContentPageExtractor creates a content page extractor for the site at siteURL.
func NewContentPageExtractor(opts Options, siteURL string, log *logging.Logger) *ContentPageExtractor {
	log = log.WithComponent("content-extractor")
	return &ContentPageExtractor{
		BaseExtractor: NewBaseExtractor(opts, log),
		siteHost:      GetDomain(siteURL),
		log:           log,
	}
}

// Name returns the extractor name.
func (e *ContentPageExtractor) Name() string {
	return "content-page"
}

// CanExtract returns true for pages on the site host.
func (e *ContentPageExtractor) CanExtract(url string) bool {
	return hostMatches(GetDomain(url), e.siteHost)
}

// Extract fetches the content page and resolves it to stream descriptors.
func (e *ContentPageExtractor) Extract(ctx context.Context, sess interfaces.Session, contentURL string, trace *types.Trace) ([]types.StreamDescriptor, error) {
	if trace == nil {
		trace = &types.Trace{}
	}
	e.log.Debug("extracting content page", "url", contentURL)

	page, err := sess.Get(ctx, types.StageContentPage, contentURL, nil)
	if err != nil {
		return nil, err
	}
	if !page.OK() {
		return nil, failure.Network(types.StageContentPage, page.StatusCode, nil, "content page %s", contentURL)
	}
	trace.Complete(types.StageContentPage)

	hints := ExtractHints(page.Body, e.opts.DefaultPlayerDomain)
	sess.SetPlayerDomain(hints.PlayerDomain)
	trace.PlayerDomain = hints.PlayerDomain
	trace.DomainFallback = hints.DomainFallback
	trace.CandidateCount = len(hints.Candidates)

	if hints.DomainFallback {
		e.log.Warn("player domain marker missing, using fallback", "domain", hints.PlayerDomain)
	}
	if len(hints.Candidates) == 0 {
		fe := failure.NotFound(types.StagePatterns, nil, "no embed candidates in %s", contentURL)
		fe.Preview = failure.Preview(page.Body, failure.MaxPreviewBytes)
		return nil, fe
	}
	trace.Complete(types.StagePatterns)

	return e.resolveCandidates(ctx, sess, contentURL, hints.Candidates, trace)
}

var _ interfaces.Extractor = (*ContentPageExtractor)(nil)
