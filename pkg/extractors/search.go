package extractors

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/types"
	"m3u8-resolver/pkg/urlutil"
)

// SearchForm returns the form fields of the site's search endpoint.
func SearchForm(query string) url.Values {
	return url.Values{
		"do":           {"search"},
		"subaction":    {"search"},
		"search_start": {"0"},
		"full_search":  {"0"},
		"result_from":  {"1"},
		"story":        {query},
	}
}

// ParseSearchResults collects content page links from a search result page.
// Links are resolved against siteURL and deduplicated in page order.
func ParseSearchResults(html, siteURL string) ([]types.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, failure.Parse(types.StageSearch, html, err, "search page is not HTML")
	}

	var results []types.SearchResult
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, ".html") {
			return
		}
		title := strings.TrimSpace(s.Text())
		if title == "" {
			title, _ = s.Attr("title")
		}
		if title == "" {
			title = strings.TrimSpace(s.Find("img").AttrOr("alt", ""))
		}
		if title == "" {
			return
		}
		results = append(results, types.SearchResult{
			Title: title,
			URL:   urlutil.ResolveURL(href, siteURL+"/"),
		})
	})

	return lo.UniqBy(results, func(r types.SearchResult) string { return r.URL }), nil
}
