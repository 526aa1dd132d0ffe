package extractors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"

	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/types"
	"m3u8-resolver/pkg/urlutil"
)

// BuildPlaylistURL returns the playlist endpoint for a file token. Each path
// segment of the token is escaped.
func BuildPlaylistURL(scheme, domain, fileToken string) string {
	segments := strings.Split(strings.TrimPrefix(fileToken, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s://%s/playlist/%s.txt", scheme, urlutil.StripScheme(domain), strings.Join(segments, "/"))
}

// PlaylistProxy fetches playlist text for one descriptor. It reads the
// session but never writes to it, so concurrent fetches may share one.
type PlaylistProxy struct {
	scheme string
	log    *logging.Logger
}

// NewPlaylistProxy creates a playlist proxy.
func NewPlaylistProxy(scheme string, log *logging.Logger) *PlaylistProxy {
	return &PlaylistProxy{
		scheme: scheme,
		log:    log.WithStage(types.StagePlaylist),
	}
}

// Fetch POSTs to the playlist endpoint with the site root as referer and the
// token, when present, as CSRF header. The text is returned unmodified.
func (p *PlaylistProxy) Fetch(ctx context.Context, sess interfaces.Session, req types.PlaylistRequest) (*types.Playlist, error) {
	if req.Domain == "" {
		return nil, failure.NotFound(types.StagePlaylist, nil, "player domain unknown")
	}
	if req.FileToken == "" {
		return nil, failure.NotFound(types.StagePlaylist, nil, "file token empty")
	}

	playlistURL := BuildPlaylistURL(p.scheme, req.Domain, req.FileToken)
	headers := map[string]string{"Referer": sess.SiteURL() + "/"}
	if req.Token != "" {
		headers[CSRFHeader] = req.Token
	}

	page, err := sess.Post(ctx, types.StagePlaylist, playlistURL, headers, nil)
	if err != nil {
		return nil, err
	}
	if !page.OK() {
		return nil, failure.Network(types.StagePlaylist, page.StatusCode, nil, "playlist %s", playlistURL)
	}

	pl := InspectPlaylist(page.Body)
	pl.URL = playlistURL
	p.log.Debug("playlist fetched", "url", playlistURL, "kind", pl.Kind)
	return pl, nil
}

// InspectPlaylist classifies playlist text. Text that does not decode is kept
// as-is with kind unknown.
func InspectPlaylist(text string) *types.Playlist {
	pl := &types.Playlist{Text: text, Kind: types.PlaylistUnknown}
	if strings.TrimSpace(text) == "" {
		pl.Kind = types.PlaylistEmpty
		return pl
	}

	decoded, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil {
		return pl
	}
	switch listType {
	case m3u8.MASTER:
		if master, ok := decoded.(*m3u8.MasterPlaylist); ok {
			pl.Kind = types.PlaylistMaster
			pl.Variants = len(master.Variants)
		}
	case m3u8.MEDIA:
		if media, ok := decoded.(*m3u8.MediaPlaylist); ok {
			pl.Kind = types.PlaylistMedia
			pl.Segments = int(media.Count())
		}
	}
	return pl
}
