// Package types defines core domain types used throughout the application.
package types

// Stage names a step of the resolution chain.
type Stage string

const (
	StageBootstrap   Stage = "bootstrap"
	StageContentPage Stage = "fetch_content"
	StagePatterns    Stage = "extract_patterns"
	StageEmbed       Stage = "resolve_embed"
	StageManifest    Stage = "fetch_manifest"
	StageFlatten     Stage = "flatten"
	StagePlaylist    Stage = "fetch_playlist"
	StageSearch      Stage = "search"
)

// Page is a fetched page: status plus body text.
type Page struct {
	URL        string
	StatusCode int
	Body       string
}

// OK reports whether the page was served with a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Hints is what the pattern extractor pulls out of a content page.
type Hints struct {
	PlayerDomain   string   `json:"player_domain"`
	DomainFallback bool     `json:"domain_fallback"`
	Candidates     []string `json:"candidates"`
}

// EmbedPayload is the JSON object embedded in a player page.
type EmbedPayload struct {
	File string `json:"file"`
	Key  string `json:"key,omitempty"`
}

// Usable reports whether the payload references a file.
func (p EmbedPayload) Usable() bool {
	return p.File != ""
}

// ManifestShape identifies the detected manifest variant.
type ManifestShape string

const (
	ManifestFlatList   ManifestShape = "flat_list"
	ManifestSeasonTree ManifestShape = "season_tree"
)

// StreamDescriptor is one playable entry of a manifest.
type StreamDescriptor struct {
	Title     string `json:"title"`
	FileToken string `json:"file"`
	Season    string `json:"season,omitempty"`
	Episode   string `json:"episode,omitempty"`
}

// PlaylistKind classifies fetched playlist text.
type PlaylistKind string

const (
	PlaylistMaster  PlaylistKind = "master"
	PlaylistMedia   PlaylistKind = "media"
	PlaylistEmpty   PlaylistKind = "empty"
	PlaylistUnknown PlaylistKind = "unknown"
)

// PlaylistRequest identifies one playlist on the player domain.
type PlaylistRequest struct {
	Domain    string `json:"domain"`
	FileToken string `json:"file"`
	Token     string `json:"token,omitempty"`
}

// Playlist is the raw playlist text plus what could be learned from it.
type Playlist struct {
	URL      string       `json:"url"`
	Text     string       `json:"-"`
	Kind     PlaylistKind `json:"kind"`
	Variants int          `json:"variants,omitempty"`
	Segments int          `json:"segments,omitempty"`
}

// StreamResult pairs a descriptor with its playlist or the reason it has none.
type StreamResult struct {
	StreamDescriptor
	Playlist *Playlist `json:"playlist,omitempty"`
	ProxyURL string    `json:"m3u8_url,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Trace records how far a resolution got.
type Trace struct {
	ResolutionID    string        `json:"resolution_id"`
	Extractor       string        `json:"extractor"`
	LastStage       Stage         `json:"last_stage,omitempty"`
	CookieIssued    bool          `json:"cookie_issued"`
	PlayerDomain    string        `json:"player_domain,omitempty"`
	DomainFallback  bool          `json:"domain_fallback"`
	CandidateCount  int           `json:"candidate_count"`
	CandidatesTried int           `json:"candidates_tried"`
	EmbedURL        string        `json:"embed_url,omitempty"`
	PayloadDecoded  bool          `json:"payload_decoded"`
	TokenKnown      bool          `json:"token_known"`
	ManifestShape   ManifestShape `json:"manifest_shape,omitempty"`
	StreamCount     int           `json:"stream_count"`
}

// Complete marks stage as the last one that finished.
func (t *Trace) Complete(stage Stage) {
	if t != nil {
		t.LastStage = stage
	}
}

// Resolution is the outcome of resolving one content URL.
type Resolution struct {
	ContentURL   string         `json:"content_url"`
	PlayerDomain string         `json:"player_domain"`
	AuthToken    string         `json:"token,omitempty"`
	Streams      []StreamResult `json:"m3u8_links"`
	Trace        *Trace         `json:"trace"`
}

// SearchResult is one hit of a site search.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
