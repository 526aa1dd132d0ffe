package extractors

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/httpclient"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/session"
)

// recorded is one request seen by a fake origin.
type recorded struct {
	Method string
	Path   string
	Header http.Header
}

// origin is a fake site + player served from one httptest server.
type origin struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recorded
}

func newOrigin(t *testing.T, routes map[string]http.HandlerFunc) *origin {
	t.Helper()
	o := &origin{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.requests = append(o.requests, recorded{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		o.mu.Unlock()

		if h, ok := routes[r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(o.Close)
	return o
}

// Host is host:port, usable as a player domain.
func (o *origin) Host() string {
	return strings.TrimPrefix(o.URL, "http://")
}

func (o *origin) hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, r := range o.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (o *origin) last(path string) (recorded, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.requests) - 1; i >= 0; i-- {
		if o.requests[i].Path == path {
			return o.requests[i], true
		}
	}
	return recorded{}, false
}

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func testConfig(siteURL string) *config.Config {
	return (&config.Config{
		SiteURL:        siteURL,
		PlayerScheme:   "http",
		RequestTimeout: 5 * time.Second,
	}).WithDefaults()
}

func testOptions(cfg *config.Config) Options {
	return OptionsFromConfig(cfg)
}

func newTestSession(cfg *config.Config) *session.Session {
	log := logging.Discard()
	return session.New(cfg, httpclient.New(cfg, log), log)
}
