package failure

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"m3u8-resolver/pkg/types"
)

func TestError_IsKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"network", Network(types.StageEmbed, 503, nil, "embed"), ErrNetwork},
		{"parse", Parse(types.StageFlatten, "<html>", nil, "bad json"), ErrParse},
		{"not found", NotFound(types.StagePatterns, nil, "no candidates"), ErrNotFound},
		{"auth", Auth(types.StagePlaylist, "token required"), ErrAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("resolve: %w", tt.err)
			if !errors.Is(wrapped, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.want)
			}
			for _, other := range []error{ErrNetwork, ErrParse, ErrNotFound, ErrAuth} {
				if other != tt.want && errors.Is(wrapped, other) {
					t.Errorf("%v should not match %v", tt.err, other)
				}
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	cause := errors.New("connection refused")
	err := Network(types.StageManifest, 403, cause, "manifest %s", "https://p.example/x.txt")

	msg := err.Error()
	for _, want := range []string{"network", "fetch_manifest", "https://p.example/x.txt", "status 403", "connection refused"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be unwrappable")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NotFound(types.StageEmbed, nil, "x")); got != KindNotFound {
		t.Errorf("KindOf() = %q", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short unchanged", "abc", 10, "abc"},
		{"cut with ellipsis", "abcdefghij", 4, "abcd..."},
		{"does not split runes", "héllo", 2, "h..."},
		{"zero max uses default", strings.Repeat("x", 300), 0, strings.Repeat("x", DefaultPreviewBytes) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.in, tt.max); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_PreviewBounded(t *testing.T) {
	err := Parse(types.StageFlatten, strings.Repeat("<div>", 1000), nil, "bad")
	if len(err.Preview) != MaxPreviewBytes+3 {
		t.Errorf("preview length = %d", len(err.Preview))
	}
}
