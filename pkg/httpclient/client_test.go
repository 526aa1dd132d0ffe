package httpclient

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/logging"
)

func TestTransportForURL(t *testing.T) {
	log := logging.Discard()

	tests := []struct {
		name          string
		cfg           *config.Config
		targetURL     string
		expectUTLS    bool
		expectDefault bool
	}{
		{
			name: "uses global proxy when no transport routes match",
			cfg: &config.Config{
				GlobalProxies: []string{"socks5://proxy.example.com:1080"},
			},
			targetURL:     "https://player.example.com/play/abc",
			expectDefault: false,
		},
		{
			name: "uses transport route when URL matches",
			cfg: &config.Config{
				GlobalProxies: []string{"socks5://global-proxy.example.com:1080"},
				TransportRoutes: []config.TransportRoute{
					{URLPattern: "player.specific.com", Proxy: "socks5://specific-proxy.example.com:1080"},
				},
			},
			targetURL:     "https://player.specific.com/playlist/x.txt",
			expectDefault: false,
		},
		{
			name:          "uses default transport when no proxy configured",
			cfg:           &config.Config{},
			targetURL:     "https://player.example.com/play/abc",
			expectDefault: true,
		},
		{
			name: "direct route bypasses global proxy",
			cfg: &config.Config{
				GlobalProxies: []string{"socks5://global-proxy.example.com:1080"},
				TransportRoutes: []config.TransportRoute{
					{URLPattern: "site.example", Direct: true},
				},
			},
			targetURL:     "https://site.example/",
			expectDefault: true,
		},
		{
			name:          "utls matches whole host labels only",
			cfg:           &config.Config{UTLSDomains: []string{"protected.example"}},
			targetURL:     "https://notprotected.example/play/abc",
			expectDefault: true,
		},
		{
			name:       "configured fingerprinted domain uses utls",
			cfg:        &config.Config{UTLSDomains: []string{"Protected.Example"}},
			targetURL:  "https://cdn.protected.example/play/abc",
			expectUTLS: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.cfg, log)
			u, _ := url.Parse(tt.targetURL)
			transport := client.transportFor(u)

			if tt.expectUTLS {
				if transport != client.utlsTransport {
					t.Error("expected utls transport")
				}
				return
			}

			isDefault := transport == client.defaultTransport
			if tt.expectDefault != isDefault {
				t.Errorf("default transport = %v, want %v", isDefault, tt.expectDefault)
			}
		})
	}
}

func TestProxyTransport_Cached(t *testing.T) {
	client := New(&config.Config{}, logging.Discard())

	first := client.proxyTransport("http://proxy.example:8080", false)
	second := client.proxyTransport("http://proxy.example:8080", false)
	insecure := client.proxyTransport("http://proxy.example:8080", true)

	if first != second {
		t.Error("expected cached transport for identical proxy")
	}
	if first == insecure {
		t.Error("insecure variant must be a separate transport")
	}
}

func TestTransportFor_RotatesGlobalProxies(t *testing.T) {
	client := New(&config.Config{
		GlobalProxies: []string{"http://p1.example:8080", "http://p2.example:8080"},
	}, logging.Discard())
	u, _ := url.Parse("https://player.example/playlist/a.txt")

	first := client.transportFor(u)
	second := client.transportFor(u)
	third := client.transportFor(u)

	if first == second {
		t.Error("consecutive requests should use different proxies")
	}
	if first != third {
		t.Error("rotation should wrap around")
	}
}

func TestNewHTTPClient_KeepsCookies(t *testing.T) {
	var sawCookie bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
			return
		}
		if c, err := r.Cookie("PHPSESSID"); err == nil && c.Value == "abc" {
			sawCookie = true
		}
	}))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	hc := New(&config.Config{}, logging.Discard()).NewHTTPClient(jar, 5*time.Second)

	for _, path := range []string{"/set", "/check"} {
		resp, err := hc.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	if !sawCookie {
		t.Error("cookie from first response was not sent on the second request")
	}
}
