package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/ratelimit"

	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/extractors"
	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/registry"
	"m3u8-resolver/pkg/session"
	"m3u8-resolver/pkg/types"
	"m3u8-resolver/pkg/urlutil"
)

// ErrInvalidURL is returned for input that is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("url must start with http:// or https://")

// ResolverService runs resolutions. Each call gets its own session; the
// worker pool and rate limiter are shared so concurrent resolutions together
// stay within the configured playlist budget.
type ResolverService struct {
	cfg        *config.Config
	log        *logging.Logger
	transport  interfaces.Transport
	extractors *registry.ExtractorRegistry
	playlists  *extractors.PlaylistProxy
	pool       *ants.Pool
	limiter    ratelimit.Limiter
	solver     interfaces.ChallengeSolver
	baseURL    string
}

// NewResolverService creates a new resolver service.
func NewResolverService(
	cfg *config.Config,
	log *logging.Logger,
	transport interfaces.Transport,
	extractorRegistry *registry.ExtractorRegistry,
) (*ResolverService, error) {
	pool, err := ants.NewPool(cfg.PlaylistWorkers)
	if err != nil {
		return nil, fmt.Errorf("creating playlist pool: %w", err)
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.PlaylistRPS > 0 {
		limiter = ratelimit.New(cfg.PlaylistRPS)
	}

	log = log.WithComponent("resolver")
	return &ResolverService{
		cfg:        cfg,
		log:        log,
		transport:  transport,
		extractors: extractorRegistry,
		playlists:  extractors.NewPlaylistProxy(cfg.PlayerScheme, log),
		pool:       pool,
		limiter:    limiter,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// SetSolver makes every bootstrapping session fall back to solver when the
// site answers with a challenge.
func (s *ResolverService) SetSolver(solver interfaces.ChallengeSolver) {
	s.solver = solver
}

func (s *ResolverService) newSession(log *logging.Logger) *session.Session {
	sess := session.New(s.cfg, s.transport, log)
	if s.solver != nil {
		sess.SetSolver(s.solver)
	}
	return sess
}

// Resolve walks the whole chain for contentURL and fetches every playlist.
// On failure the partial resolution is still returned so callers can report
// how far it got.
func (s *ResolverService) Resolve(ctx context.Context, contentURL string) (*types.Resolution, error) {
	res, sess, descriptors, err := s.run(ctx, contentURL)
	if err != nil {
		return res, err
	}
	res.Streams = s.fetchPlaylists(ctx, sess, descriptors)
	res.Trace.Complete(types.StagePlaylist)
	return res, nil
}

// Diagnose runs the chain without fetching playlists and always returns the
// trace, alongside the failure if any.
func (s *ResolverService) Diagnose(ctx context.Context, contentURL string) (*types.Trace, error) {
	res, _, _, err := s.run(ctx, contentURL)
	if res == nil {
		return nil, err
	}
	return res.Trace, err
}

func (s *ResolverService) run(ctx context.Context, rawURL string) (*types.Resolution, *session.Session, []types.StreamDescriptor, error) {
	contentURL := DecodeURL(rawURL)
	if !urlutil.IsAbsolute(contentURL) {
		return nil, nil, nil, ErrInvalidURL
	}

	id := uuid.NewString()
	trace := &types.Trace{ResolutionID: id}
	res := &types.Resolution{ContentURL: contentURL, Trace: trace}
	log := s.log.WithResolution(id)
	start := time.Now()

	sess := s.newSession(log)
	trace.CookieIssued = sess.Bootstrap(ctx)
	trace.Complete(types.StageBootstrap)

	extractor := s.extractors.Get(contentURL)
	if extractor == nil {
		return res, nil, nil, failure.NotFound(types.StageContentPage, nil, "no extractor for %s", contentURL)
	}
	trace.Extractor = extractor.Name()
	log.Debug("using extractor", "name", extractor.Name(), "url", contentURL)

	descriptors, err := extractor.Extract(ctx, sess, contentURL, trace)
	res.PlayerDomain = sess.PlayerDomain()
	res.AuthToken = sess.AuthToken()
	if err != nil {
		log.WithDuration(time.Since(start)).Warn("resolution failed",
			"url", contentURL,
			"last_stage", trace.LastStage,
			"error", err,
		)
		return res, sess, nil, err
	}

	log.WithDuration(time.Since(start)).Info("resolution complete",
		"url", contentURL,
		"extractor", trace.Extractor,
		"streams", len(descriptors),
	)
	return res, sess, descriptors, nil
}

// fetchPlaylists fetches one playlist per descriptor on the shared pool.
// Results keep descriptor order; a failed fetch only marks its own entry.
func (s *ResolverService) fetchPlaylists(ctx context.Context, sess *session.Session, descriptors []types.StreamDescriptor) []types.StreamResult {
	results := make([]types.StreamResult, len(descriptors))
	domain := sess.PlayerDomain()
	token := sess.AuthToken()

	var wg sync.WaitGroup
	for i, d := range descriptors {
		req := types.PlaylistRequest{Domain: domain, FileToken: d.FileToken, Token: token}
		results[i].StreamDescriptor = d
		results[i].ProxyURL = s.ProxyURL(req)

		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			s.limiter.Take()
			pl, err := s.playlists.Fetch(ctx, sess, req)
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].Playlist = pl
		})
		if err != nil {
			wg.Done()
			results[i].Error = fmt.Sprintf("scheduling playlist fetch: %v", err)
		}
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		s.log.Warn("some playlists failed", "failed", failed, "total", len(results))
	}
	return results
}

// FetchPlaylist retrieves one playlist outside a resolution. With
// requireToken set, a missing token is an auth failure.
func (s *ResolverService) FetchPlaylist(ctx context.Context, req types.PlaylistRequest, requireToken bool) (*types.Playlist, error) {
	if requireToken && req.Token == "" {
		return nil, failure.Auth(types.StagePlaylist, "token required")
	}
	if req.Domain == "" {
		req.Domain = s.cfg.DefaultPlayerDomain
	}
	s.limiter.Take()
	return s.playlists.Fetch(ctx, session.New(s.cfg, s.transport, s.log), req)
}

// Search queries the site search and returns the content pages it lists.
func (s *ResolverService) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, failure.NotFound(types.StageSearch, nil, "empty query")
	}

	sess := s.newSession(s.log)
	sess.Bootstrap(ctx)

	searchURL := sess.SiteURL() + "/index.php?do=opensearch"
	page, err := sess.Post(ctx, types.StageSearch, searchURL, nil, extractors.SearchForm(query))
	if err != nil {
		return nil, err
	}
	if !page.OK() {
		return nil, failure.Network(types.StageSearch, page.StatusCode, nil, "search %q", query)
	}

	results, err := extractors.ParseSearchResults(page.Body, sess.SiteURL())
	if err != nil {
		return nil, err
	}
	s.log.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}

// ProxyURL returns this service's playlist endpoint for req.
func (s *ResolverService) ProxyURL(req types.PlaylistRequest) string {
	q := url.Values{}
	q.Set("file", req.FileToken)
	q.Set("domain", req.Domain)
	if req.Token != "" {
		q.Set("token", req.Token)
	}
	return s.baseURL + "/proxy_m3u8?" + q.Encode()
}

// Extractors returns the registry used to pick extractors.
func (s *ResolverService) Extractors() *registry.ExtractorRegistry {
	return s.extractors
}

// Close releases the worker pool and the extractors.
func (s *ResolverService) Close() error {
	s.pool.Release()
	return s.extractors.Close()
}

// DecodeURL accepts URLs that arrive query-escaped or base64-encoded.
func DecodeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" || urlutil.IsAbsolute(urlStr) {
		return urlStr
	}

	if decoded, err := url.QueryUnescape(urlStr); err == nil && urlutil.IsAbsolute(decoded) {
		return decoded
	}

	padded := urlStr
	switch len(urlStr) % 4 {
	case 2:
		padded += "=="
	case 3:
		padded += "="
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		if decoded, err := enc.DecodeString(padded); err == nil && urlutil.IsAbsolute(string(decoded)) {
			return string(decoded)
		}
	}
	return urlStr
}
