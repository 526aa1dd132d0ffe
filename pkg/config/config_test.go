package config

import (
	"testing"
	"time"
)

func TestParseTransportRoutes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TransportRoute
	}{
		{"empty", "", nil},
		{
			"single route with proxy",
			"{URL=player.example, PROXY=socks5://127.0.0.1:1080}",
			[]TransportRoute{{URLPattern: "player.example", Proxy: "socks5://127.0.0.1:1080"}},
		},
		{
			"two routes",
			"{URL=a.example, DISABLE_SSL=true}, {URL=b.example, DIRECT=true}",
			[]TransportRoute{
				{URLPattern: "a.example", DisableSSL: true},
				{URLPattern: "b.example", Direct: true},
			},
		},
		{"route without url is dropped", "{PROXY=http://p:8080}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTransportRoutes(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d routes, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("route %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SITE_URL", "https://site.example/")
	t.Setenv("REQUEST_TIMEOUT", "5")
	t.Setenv("MAX_CANDIDATES", "")
	t.Setenv("FLARESOLVERR_URL", "http://solver.local:8191/")
	t.Setenv("FLARESOLVERR_TIMEOUT", "")

	cfg := Load()

	if cfg.SiteURL != "https://site.example" {
		t.Errorf("SiteURL = %q", cfg.SiteURL)
	}
	if cfg.SiteRoot() != "https://site.example/" {
		t.Errorf("SiteRoot() = %q", cfg.SiteRoot())
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.MaxCandidates != 3 {
		t.Errorf("MaxCandidates = %d, want 3", cfg.MaxCandidates)
	}
	if cfg.DefaultPlayerDomain != "site.example" {
		t.Errorf("DefaultPlayerDomain = %q, want host of site", cfg.DefaultPlayerDomain)
	}
	if cfg.FlareSolverrURL != "http://solver.local:8191" || cfg.FlareSolverrTimeout != 60*time.Second {
		t.Errorf("solver = %q %v", cfg.FlareSolverrURL, cfg.FlareSolverrTimeout)
	}
}

func TestWithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := (&Config{
		PlayerScheme:        "http",
		DefaultPlayerDomain: "player.example",
		MaxCandidates:       5,
	}).WithDefaults()

	if cfg.PlayerScheme != "http" || cfg.DefaultPlayerDomain != "player.example" || cfg.MaxCandidates != 5 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
	if cfg.PlaylistWorkers != 4 {
		t.Errorf("PlaylistWorkers = %d, want 4", cfg.PlaylistWorkers)
	}
}
