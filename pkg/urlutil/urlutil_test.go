package urlutil

import "testing"

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name    string
		urlStr  string
		baseURL string
		want    string
	}{
		{
			name:    "absolute URL unchanged",
			urlStr:  "https://example.com/film.html",
			baseURL: "https://other.com/index.php",
			want:    "https://example.com/film.html",
		},
		{
			name:    "relative path",
			urlStr:  "film.html",
			baseURL: "https://site.example/films/index.php",
			want:    "https://site.example/films/film.html",
		},
		{
			name:    "absolute path",
			urlStr:  "/12-film.html",
			baseURL: "https://site.example/films/index.php",
			want:    "https://site.example/12-film.html",
		},
		{
			name:    "protocol relative",
			urlStr:  "//cdn.example/film.html",
			baseURL: "https://site.example/",
			want:    "https://cdn.example/film.html",
		},
		{
			name:    "multiple parent references",
			urlStr:  "../../other/film.html",
			baseURL: "https://site.example/a/b/c/index.php",
			want:    "https://site.example/a/other/film.html",
		},
		{
			name:    "base without path",
			urlStr:  "film.html",
			baseURL: "https://site.example",
			want:    "https://site.example/film.html",
		},
		{
			name:    "base with query string",
			urlStr:  "film.html",
			baseURL: "https://site.example/films/index.php?do=search",
			want:    "https://site.example/films/film.html",
		},
		{
			name:    "preserves special characters",
			urlStr:  "film(1).html",
			baseURL: "https://site.example/films/index.php",
			want:    "https://site.example/films/film(1).html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveURL(tt.urlStr, tt.baseURL); got != tt.want {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.urlStr, tt.baseURL, got, tt.want)
			}
		})
	}
}

func TestJoinOrigin(t *testing.T) {
	tests := []struct {
		name    string
		urlStr  string
		baseURL string
		want    string
	}{
		{"absolute unchanged", "https://cdn.example/x.txt", "https://player.example/play/1", "https://cdn.example/x.txt"},
		{"root relative", "/x/abc.txt", "https://player.example/play/tt123", "https://player.example/x/abc.txt"},
		{"bare relative uses origin not directory", "x/abc.txt", "https://player.example/play/tt123", "https://player.example/x/abc.txt"},
		{"protocol relative", "//cdn.example/x.txt", "http://player.example/play/1", "http://cdn.example/x.txt"},
		{"keeps port", "/x.txt", "http://127.0.0.1:8080/play/1", "http://127.0.0.1:8080/x.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinOrigin(tt.urlStr, tt.baseURL); got != tt.want {
				t.Errorf("JoinOrigin(%q, %q) = %q, want %q", tt.urlStr, tt.baseURL, got, tt.want)
			}
		})
	}
}

func TestGetSchemeHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://player.example/play/abc?x=1", "https://player.example"},
		{"http://127.0.0.1:9000/a", "http://127.0.0.1:9000"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := GetSchemeHost(tt.in); got != tt.want {
			t.Errorf("GetSchemeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripScheme(t *testing.T) {
	tests := map[string]string{
		"https://player.example/": "player.example",
		"player.example":          "player.example",
		" //player.example ":      "player.example",
		"http://127.0.0.1:8080":   "127.0.0.1:8080",
	}
	for in, want := range tests {
		if got := StripScheme(in); got != want {
			t.Errorf("StripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
