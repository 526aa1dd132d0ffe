// Package session holds the per-resolution state shared by every request of
// one resolution: the cookie jar, the fixed outbound headers, and the player
// domain and auth token discovered along the way.
//
// A Session belongs to exactly one resolution. The discovered secrets are
// written only during bootstrap and embed resolution, both of which finish
// before playlist fan-out begins, so the fan-out reads them without locking.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/types"
)

// Session is the per-resolution context.
type Session struct {
	client       *http.Client
	jar          http.CookieJar
	headers      map[string]string
	siteURL      string
	timeout      time.Duration
	maxBody      int64
	retries      int
	log          *logging.Logger
	solver       interfaces.ChallengeSolver
	playerDomain string
	authToken    string
}

// New creates a session whose requests go through transport.
func New(cfg *config.Config, transport interfaces.Transport, log *logging.Logger) *Session {
	jar, _ := cookiejar.New(nil)
	return &Session{
		client: transport.NewHTTPClient(jar, cfg.RequestTimeout),
		jar:    jar,
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         cfg.SiteRoot(),
		},
		siteURL: cfg.SiteURL,
		timeout: cfg.RequestTimeout,
		maxBody: cfg.MaxBodyBytes,
		retries: cfg.BootstrapRetries,
		log:     log.WithComponent("session"),
	}
}

// Bootstrap requests the site landing page so the origin issues a session
// cookie. When the landing page is behind a challenge and a solver is set,
// the solver's cookies and user agent are adopted instead. Failure is logged
// and tolerated; the return value only reports whether a cookie ended up in
// the jar.
func (s *Session) Bootstrap(ctx context.Context) bool {
	log := s.log.WithStage(types.StageBootstrap)

	status, err := s.fetchLanding(ctx)
	switch {
	case err == nil && !isChallenge(status):
		log.Debug("bootstrap complete", "status", status)
	case s.solver != nil:
		log.Info("landing page challenged, asking solver", "status", status, "error", err)
		s.solve(ctx, log)
	case err != nil:
		log.Warn("bootstrap failed, continuing without cookie", "url", s.siteURL, "error", err)
	default:
		log.Warn("landing page challenged and no solver configured", "status", status)
	}

	issued := s.HasCookies(s.siteURL)
	log.Debug("bootstrap cookie", "issued", issued)
	return issued
}

func (s *Session) fetchLanding(ctx context.Context) (int, error) {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = s.client
	rc.RetryMax = s.retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil

	ctx, cancel := context.WithTimeout(ctx, s.timeout*time.Duration(s.retries+1))
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.siteURL, nil)
	if err != nil {
		return 0, err
	}
	s.applyHeaders(req.Request, nil)

	resp, err := rc.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, s.maxBody))
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *Session) solve(ctx context.Context, log *logging.Logger) {
	cookies, userAgent, err := s.solver.Solve(ctx, s.siteURL+"/")
	if err != nil {
		log.Warn("challenge solver failed, continuing without cookie", "error", err)
		return
	}
	u, err := url.Parse(s.siteURL)
	if err != nil {
		return
	}
	s.jar.SetCookies(u, cookies)
	// clearance cookies are bound to the browser that solved the challenge
	if userAgent != "" {
		s.headers["User-Agent"] = userAgent
	}
}

// isChallenge reports whether status is what an anti-bot front answers with.
func isChallenge(status int) bool {
	return status == http.StatusForbidden || status == http.StatusServiceUnavailable
}

// SetSolver installs the challenge solver used by Bootstrap.
func (s *Session) SetSolver(solver interfaces.ChallengeSolver) { s.solver = solver }

// HasCookies reports whether the jar holds cookies for rawURL.
func (s *Session) HasCookies(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return len(s.jar.Cookies(u)) > 0
}

// Get fetches rawURL. Non-2xx responses are returned as pages, not errors;
// only transport failures and timeouts yield a NetworkError.
func (s *Session) Get(ctx context.Context, stage types.Stage, rawURL string, headers map[string]string) (*types.Page, error) {
	return s.do(ctx, stage, http.MethodGet, rawURL, headers, nil)
}

// Post sends form (may be nil) to rawURL. Same error contract as Get.
func (s *Session) Post(ctx context.Context, stage types.Stage, rawURL string, headers map[string]string, form url.Values) (*types.Page, error) {
	return s.do(ctx, stage, http.MethodPost, rawURL, headers, form)
}

func (s *Session) do(ctx context.Context, stage types.Stage, method, rawURL string, headers map[string]string, form url.Values) (*types.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, failure.Network(stage, 0, err, "invalid request URL %q", rawURL)
	}
	s.applyHeaders(req, headers)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		msg := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return nil, failure.Network(stage, 0, err, "%s %s: %s", method, rawURL, msg)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, failure.Network(stage, resp.StatusCode, err, "%s %s: reading body", method, rawURL)
	}

	s.log.WithStage(stage).WithDuration(time.Since(start)).Debug("request done",
		"method", method,
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(data),
	)

	return &types.Page{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       string(data),
	}, nil
}

// applyHeaders sets the fixed headers, then per-call overrides. An override
// with an empty value removes the header.
func (s *Session) applyHeaders(req *http.Request, overrides map[string]string) {
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	for k, v := range overrides {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
}

// SiteURL returns the origin site URL without trailing slash.
func (s *Session) SiteURL() string { return s.siteURL }

// PlayerDomain returns the discovered player domain, or "" if not yet known.
func (s *Session) PlayerDomain() string { return s.playerDomain }

// SetPlayerDomain records the player domain.
func (s *Session) SetPlayerDomain(domain string) { s.playerDomain = domain }

// AuthToken returns the discovered CSRF token, or "" if not yet known.
func (s *Session) AuthToken() string { return s.authToken }

// SetAuthToken records the CSRF token. An empty token is legitimate.
func (s *Session) SetAuthToken(token string) { s.authToken = token }

// String is safe to log: it never includes the token value.
func (s *Session) String() string {
	return fmt.Sprintf("session{site=%s domain=%s token_known=%t}", s.siteURL, s.playerDomain, s.authToken != "")
}
