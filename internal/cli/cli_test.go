package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"m3u8-resolver/pkg/types"
)

const playlistText = "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\nseg.ts\n#EXT-X-ENDLIST\n"

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
		case "/film.html":
			fmt.Fprintf(w, `<script>const AwsIndStreamDomain = '%s';</script><script>p({src: 'tt7'})</script>`,
				strings.TrimPrefix(srv.URL, "http://"))
		case "/play/tt7":
			w.Write([]byte(`{"file":"/f.txt","key":"k"}`))
		case "/f.txt":
			w.Write([]byte(`[{"title":"Film","file":"~f"}]`))
		case "/playlist/~f.txt":
			w.Write([]byte(playlistText))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, siteURL string) {
	t.Setenv("SITE_URL", siteURL)
	t.Setenv("PLAYER_SCHEME", "http")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("BOOTSTRAP_RETRIES", "0")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	origin := newOrigin(t)
	setupEnv(t, origin.URL)

	out, err := run(t, "resolve", origin.URL+"/film.html")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var res types.Resolution
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(res.Streams) != 1 || res.Streams[0].Title != "Film" || res.Streams[0].Playlist == nil {
		t.Errorf("resolution = %s", out)
	}
}

func TestResolveCommand_Text(t *testing.T) {
	origin := newOrigin(t)
	setupEnv(t, origin.URL)

	out, err := run(t, "resolve", "--text", origin.URL+"/film.html")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(out, "# Film\n") || !strings.Contains(out, playlistText) {
		t.Errorf("output = %q", out)
	}
}

func TestDiagnoseCommand_PrintsTraceOnFailure(t *testing.T) {
	origin := newOrigin(t)
	setupEnv(t, origin.URL)

	out, err := run(t, "diagnose", origin.URL+"/missing.html")
	if err == nil {
		t.Fatal("expected an error for a missing page")
	}
	var trace types.Trace
	if jerr := json.Unmarshal([]byte(out), &trace); jerr != nil {
		t.Fatalf("decode %q: %v", out, jerr)
	}
	if trace.LastStage != types.StageBootstrap || trace.ResolutionID == "" {
		t.Errorf("trace = %+v", trace)
	}
}

func TestPlaylistCommand(t *testing.T) {
	origin := newOrigin(t)
	setupEnv(t, origin.URL)
	domain := strings.TrimPrefix(origin.URL, "http://")

	out, err := run(t, "playlist", "--domain", domain, "--file", "~f")
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if out != playlistText {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "playlist", "--domain", domain, "--file", "~f", "--require-token"); err == nil {
		t.Error("expected an auth error without --token")
	}
}

func TestCommands_ArgumentValidation(t *testing.T) {
	if _, err := run(t, "resolve"); err == nil {
		t.Error("resolve without URL should fail")
	}
	if _, err := run(t, "playlist", "--domain", "x"); err == nil {
		t.Error("playlist without --file should fail")
	}
}
