// Package urlutil provides URL manipulation utilities that preserve original encoding.
package urlutil

import (
	"net/url"
	"strings"
)

// IsAbsolute reports whether urlStr carries an http(s) scheme.
func IsAbsolute(urlStr string) bool {
	return strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://")
}

// ResolveURL resolves a potentially relative URL against a base URL.
// Uses string manipulation to preserve original URL encoding.
// Go's url.ResolveReference re-encodes special characters which breaks
// URLs for hosts that use parentheses, brackets, or other special chars.
func ResolveURL(urlStr string, baseURL string) string {
	if IsAbsolute(urlStr) {
		return urlStr
	}
	if strings.HasPrefix(urlStr, "//") {
		if parsed, err := url.Parse(baseURL); err == nil && parsed.Scheme != "" {
			return parsed.Scheme + ":" + urlStr
		}
		return "https:" + urlStr
	}

	// Base directory: drop query string and last path segment
	base := baseURL
	if idx := strings.Index(base, "?"); idx > 0 {
		base = base[:idx]
	}
	if lastSlash := strings.LastIndex(base, "/"); lastSlash > len("https://") {
		base = base[:lastSlash+1]
	} else {
		base = strings.TrimSuffix(base, "/") + "/"
	}

	if strings.HasPrefix(urlStr, "/") {
		if origin := GetSchemeHost(baseURL); origin != "" {
			return origin + urlStr
		}
		return base + strings.TrimPrefix(urlStr, "/")
	}

	if strings.HasPrefix(urlStr, "../") {
		result := base
		remaining := urlStr
		for strings.HasPrefix(remaining, "../") {
			remaining = remaining[3:]
			result = strings.TrimSuffix(result, "/")
			if lastSlash := strings.LastIndex(result, "/"); lastSlash > len("https://") {
				result = result[:lastSlash+1]
			} else {
				result += "/"
			}
		}
		return result + remaining
	}

	return base + urlStr
}

// JoinOrigin absolutizes urlStr against the scheme+host of baseURL only,
// ignoring the base path. Absolute inputs are returned unchanged.
func JoinOrigin(urlStr string, baseURL string) string {
	if IsAbsolute(urlStr) {
		return urlStr
	}
	origin := GetSchemeHost(baseURL)
	if strings.HasPrefix(urlStr, "//") {
		scheme := "https"
		if i := strings.Index(origin, "://"); i > 0 {
			scheme = origin[:i]
		}
		return scheme + ":" + urlStr
	}
	if !strings.HasPrefix(urlStr, "/") {
		urlStr = "/" + urlStr
	}
	return origin + urlStr
}

// GetSchemeHost extracts scheme://host from a URL.
func GetSchemeHost(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// StripScheme turns "https://host/" into "host".
func StripScheme(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "//")
	return strings.TrimRight(host, "/")
}
