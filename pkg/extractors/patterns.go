package extractors

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"m3u8-resolver/pkg/types"
	"m3u8-resolver/pkg/urlutil"
)

var (
	playerDomainRe  = regexp.MustCompile(`const AwsIndStreamDomain.*?'(.*?)';`)
	scriptBlockRe   = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)
	scriptSourceRe  = regexp.MustCompile(`src:\s*['"]([^'"]+)['"]`)
	fileReferenceRe = regexp.MustCompile(`\bfile\s*:\s*['"]([^'"]+)['"]`)
)

// iframeMarkers select iframes that point at a player rather than ads.
var iframeMarkers = []string{"/play/", "embed", "player"}

// CandidateStrategy finds embed candidates in a content page. Strategies run
// in order and their results are concatenated, so order is priority.
type CandidateStrategy struct {
	Name string
	Find func(html string) []string
}

// CandidateStrategies is the ordered strategy list used by ExtractHints.
var CandidateStrategies = []CandidateStrategy{
	{Name: "script-source", Find: findScriptSources},
	{Name: "file-reference", Find: findFileReferences},
	{Name: "iframe-embed", Find: findIframeEmbeds},
	{Name: "ld-json", Find: findStructuredData},
}

// ExtractPlayerDomain returns the player host declared by the page, without
// scheme or trailing slash.
func ExtractPlayerDomain(html string) (string, bool) {
	m := playerDomainRe.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}
	domain := urlutil.StripScheme(m[1])
	return domain, domain != ""
}

// ExtractHints pulls the player domain and the ordered, deduplicated candidate
// list out of a content page. A page without the domain marker gets
// fallbackDomain and DomainFallback set.
func ExtractHints(html, fallbackDomain string) types.Hints {
	hints := types.Hints{}
	if domain, ok := ExtractPlayerDomain(html); ok {
		hints.PlayerDomain = domain
	} else {
		hints.PlayerDomain = urlutil.StripScheme(fallbackDomain)
		hints.DomainFallback = true
	}

	var found []string
	for _, s := range CandidateStrategies {
		found = append(found, s.Find(html)...)
	}
	found = lo.Map(found, func(c string, _ int) string { return strings.TrimSpace(c) })
	hints.Candidates = lo.Uniq(lo.Compact(found))
	return hints
}

func findScriptSources(html string) []string {
	var out []string
	for _, block := range scriptBlockRe.FindAllStringSubmatch(html, -1) {
		for _, m := range scriptSourceRe.FindAllStringSubmatch(block[1], -1) {
			out = append(out, m[1])
		}
	}
	return out
}

func findFileReferences(html string) []string {
	var out []string
	for _, block := range scriptBlockRe.FindAllStringSubmatch(html, -1) {
		for _, m := range fileReferenceRe.FindAllStringSubmatch(block[1], -1) {
			out = append(out, m[1])
		}
	}
	return out
}

func findIframeEmbeds(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			src, _ = s.Attr("data-src")
		}
		if src == "" {
			return
		}
		lower := strings.ToLower(src)
		if lo.SomeBy(iframeMarkers, func(m string) bool { return strings.Contains(lower, m) }) {
			out = append(out, src)
		}
	})
	return out
}

// ldVideoPaths are the schema.org fields that can carry a player URL.
var ldVideoPaths = []string{"embedUrl", "contentUrl", "video.embedUrl", "video.contentUrl"}

func findStructuredData(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if !gjson.Valid(text) {
			return
		}
		out = append(out, structuredDataURLs(gjson.Parse(text))...)
	})
	return out
}

func structuredDataURLs(node gjson.Result) []string {
	var out []string
	switch {
	case node.IsArray():
		node.ForEach(func(_, item gjson.Result) bool {
			out = append(out, structuredDataURLs(item)...)
			return true
		})
	case node.IsObject():
		for _, path := range ldVideoPaths {
			if v := node.Get(path); v.Type == gjson.String && v.Str != "" {
				out = append(out, v.Str)
			}
		}
		node.ForEach(func(key, value gjson.Result) bool {
			if key.Str == "@graph" {
				out = append(out, structuredDataURLs(value)...)
			}
			return true
		})
	}
	return out
}
