package extractors

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/types"
	"m3u8-resolver/pkg/urlutil"
)

// Limits for the brace scanner so a hostile page cannot make decoding quadratic.
const (
	maxObjectStarts = 1024
	maxObjectBytes  = 256 << 10
)

var (
	embedFileRe = regexp.MustCompile(`["']?file["']?\s*:\s*["']([^"']+\.(?:m3u8|txt)[^"']*)["']`)
	embedKeyRe  = regexp.MustCompile(`["']?key["']?\s*:\s*["']([^"']+)["']`)
)

// EmbedResult is the first candidate that yielded a usable payload.
type EmbedResult struct {
	URL     string
	Payload types.EmbedPayload
}

// EmbedResolver tries candidates in order until one yields a payload.
type EmbedResolver struct {
	scheme        string
	maxCandidates int
	log           *logging.Logger
}

// NewEmbedResolver creates an embed resolver that tries at most maxCandidates.
func NewEmbedResolver(scheme string, maxCandidates int, log *logging.Logger) *EmbedResolver {
	return &EmbedResolver{
		scheme:        scheme,
		maxCandidates: maxCandidates,
		log:           log.WithStage(types.StageEmbed),
	}
}

// BuildEmbedURL turns a candidate into a player page URL. Absolute candidates
// are used as-is, protocol-relative ones get scheme, root-relative ones are
// joined to the player domain and bare identifiers go under /play/.
func BuildEmbedURL(scheme, domain, candidate string) string {
	domain = urlutil.StripScheme(domain)
	switch {
	case urlutil.IsAbsolute(candidate):
		return candidate
	case strings.HasPrefix(candidate, "//"):
		return scheme + ":" + candidate
	case strings.HasPrefix(candidate, "/"):
		return fmt.Sprintf("%s://%s%s", scheme, domain, candidate)
	}
	return fmt.Sprintf("%s://%s/play/%s", scheme, domain, candidate)
}

// Resolve fetches embed pages for the first maxCandidates candidates, stopping
// at the first usable payload. Its key, possibly empty, becomes the session
// auth token.
func (r *EmbedResolver) Resolve(ctx context.Context, sess interfaces.Session, referer string, candidates []string, trace *types.Trace) (*EmbedResult, error) {
	if len(candidates) == 0 {
		return nil, failure.NotFound(types.StageEmbed, nil, "no embed candidates")
	}
	limit := min(len(candidates), r.maxCandidates)

	var lastErr error
	for i, candidate := range candidates[:limit] {
		if err := ctx.Err(); err != nil {
			return nil, failure.Network(types.StageEmbed, 0, err, "resolution cancelled")
		}
		trace.CandidatesTried = i + 1

		embedURL := BuildEmbedURL(r.scheme, sess.PlayerDomain(), candidate)
		log := r.log.With("candidate", i+1, "url", embedURL)

		page, err := sess.Get(ctx, types.StageEmbed, embedURL, map[string]string{"Referer": referer})
		if err != nil {
			log.Debug("embed fetch failed", "error", err)
			lastErr = err
			continue
		}
		if !page.OK() {
			log.Debug("embed page rejected", "status", page.StatusCode)
			lastErr = failure.Network(types.StageEmbed, page.StatusCode, nil, "embed page %s", embedURL)
			continue
		}

		payload, ok := DecodeEmbedPayload(page.Body)
		if !ok {
			log.Debug("no payload in embed page")
			lastErr = failure.Parse(types.StageEmbed, page.Body, nil, "no player payload in %s", embedURL)
			continue
		}

		sess.SetAuthToken(payload.Key)
		log.Debug("embed resolved", "token_known", payload.Key != "")
		return &EmbedResult{URL: embedURL, Payload: payload}, nil
	}

	return nil, failure.NotFound(types.StageEmbed, lastErr, "no usable payload in %d of %d candidates", limit, len(candidates))
}

// DecodeEmbedPayload finds the player payload in an embed page: the first JSON
// object with a non-empty "file", or failing that a file assignment in script
// text together with the key of the same object literal.
func DecodeEmbedPayload(body string) (types.EmbedPayload, bool) {
	if p, ok := firstObjectWithFile(body); ok {
		return p, true
	}
	loc := embedFileRe.FindStringSubmatchIndex(body)
	if loc == nil {
		return types.EmbedPayload{}, false
	}
	p := types.EmbedPayload{File: body[loc[2]:loc[3]]}
	if k := embedKeyRe.FindStringSubmatch(enclosingObject(body, loc[0], loc[1])); k != nil {
		p.Key = k[1]
	}
	return p, p.Usable()
}

// enclosingObject returns the innermost {...} literal spanning body[from:to].
// Without one it returns body from the match on, so only keys after the file
// assignment are considered.
func enclosingObject(body string, from, to int) string {
	floor := max(0, from-maxObjectBytes)
	for i := from; i >= floor; i-- {
		if body[i] != '{' {
			continue
		}
		if end := matchBrace(body, i); end >= to-1 {
			return body[i : end+1]
		}
	}
	return body[from:]
}

func firstObjectWithFile(text string) (types.EmbedPayload, bool) {
	starts := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if starts++; starts > maxObjectStarts {
			break
		}
		end := matchBrace(text, i)
		if end < 0 {
			continue
		}
		obj := text[i : end+1]
		if !gjson.Valid(obj) {
			continue
		}
		file := gjson.Get(obj, "file")
		if file.Type != gjson.String {
			continue
		}
		p := types.EmbedPayload{File: file.Str, Key: gjson.Get(obj, "key").String()}
		if p.Usable() {
			return p, true
		}
	}
	return types.EmbedPayload{}, false
}

// matchBrace returns the index of the brace closing the one at start, skipping
// braces inside double-quoted strings, or -1.
func matchBrace(s string, start int) int {
	end := min(len(s), start+maxObjectBytes)
	depth := 0
	inString := false
	for i := start; i < end; i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
