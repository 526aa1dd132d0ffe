package extractors

import (
	"context"
	"strings"

	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/types"
	"m3u8-resolver/pkg/urlutil"
)

// manifestArtifact is a serialization glitch the origin leaves in manifests.
const manifestArtifact = ", []"

// SanitizeManifest removes every occurrence of the ", []" artifact.
func SanitizeManifest(text string) string {
	return strings.ReplaceAll(text, manifestArtifact, "")
}

// ResolveFileURL absolutizes a payload file reference against the origin of
// the embed page it came from.
func ResolveFileURL(file, embedURL string) string {
	return urlutil.JoinOrigin(file, embedURL)
}

// ManifestFetcher retrieves the manifest a payload points at.
type ManifestFetcher struct {
	log *logging.Logger
}

// NewManifestFetcher creates a manifest fetcher.
func NewManifestFetcher(log *logging.Logger) *ManifestFetcher {
	return &ManifestFetcher{log: log.WithStage(types.StageManifest)}
}

// Fetch POSTs to the file URL with the embed page as referer and the session
// token when one is known, returning the sanitized manifest text.
func (f *ManifestFetcher) Fetch(ctx context.Context, sess interfaces.Session, embedURL, file string) (string, error) {
	fileURL := ResolveFileURL(file, embedURL)

	headers := map[string]string{"Referer": embedURL}
	if token := sess.AuthToken(); token != "" {
		headers[CSRFHeader] = token
	}

	page, err := sess.Post(ctx, types.StageManifest, fileURL, headers, nil)
	if err != nil {
		return "", err
	}
	if !page.OK() {
		return "", failure.Network(types.StageManifest, page.StatusCode, nil, "manifest %s", fileURL)
	}

	f.log.Debug("manifest fetched", "url", fileURL, "bytes", len(page.Body))
	return SanitizeManifest(page.Body), nil
}
