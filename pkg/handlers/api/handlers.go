// Package api provides HTTP handlers for the resolver API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"m3u8-resolver/pkg/appctx"
	"m3u8-resolver/pkg/failure"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/middleware"
	"m3u8-resolver/pkg/services"
	"m3u8-resolver/pkg/types"
)

// PlaylistContentType is served for proxied playlists.
const PlaylistContentType = "application/vnd.apple.mpegurl"

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("GET /m3u8", h.handleResolve)
	mux.HandleFunc("GET /diagnose", h.handleDiagnose)
	mux.HandleFunc("GET /proxy_m3u8", h.handleProxyPlaylist)
	mux.HandleFunc("GET /direct", h.handleDirectPlaylist)
}

// handleIndex describes the service.
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":    "M3U8 resolver",
		"status":     "active",
		"extractors": h.ctx.Resolver.Extractors().Names(),
		"endpoints": map[string]string{
			"search":   "/search?query=movie_name",
			"get_m3u8": "/m3u8?url=content_url",
			"diagnose": "/diagnose?url=content_url",
			"proxy":    "/proxy_m3u8?file=file&domain=player_domain",
			"direct":   "/direct?file=file&domain=player_domain&token=token",
			"health":   "/health",
		},
		"usage": "Use /search to find content, then /m3u8 with the content URL to get M3U8 links",
	})
}

// handleHealth reports liveness.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"site_url":  h.ctx.Config.SiteURL,
	})
}

// handleSearch runs a site search.
func (h *Handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	results, err := h.ctx.Resolver.Search(r.Context(), query)
	if err != nil {
		h.writeFailure(w, r, err, nil)
		return
	}
	if results == nil {
		results = []types.SearchResult{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

// resolveResponse is the /m3u8 envelope.
type resolveResponse struct {
	Success bool `json:"success"`
	*types.Resolution
}

// handleResolve resolves a content or embed URL to its playlists.
func (h *Handlers) handleResolve(w http.ResponseWriter, r *http.Request) {
	contentURL := r.URL.Query().Get("url")
	if contentURL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	res, err := h.ctx.Resolver.Resolve(r.Context(), contentURL)
	if err != nil {
		var trace *types.Trace
		if res != nil {
			trace = res.Trace
		}
		h.writeFailure(w, r, err, trace)
		return
	}
	if res.Streams == nil {
		res.Streams = []types.StreamResult{}
	}
	h.writeJSON(w, http.StatusOK, resolveResponse{Success: true, Resolution: res})
}

// handleDiagnose runs the chain without playlist fetches and returns the trace.
func (h *Handlers) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	contentURL := r.URL.Query().Get("url")
	if contentURL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	trace, err := h.ctx.Resolver.Diagnose(r.Context(), contentURL)
	if err != nil && trace == nil {
		h.writeFailure(w, r, err, nil)
		return
	}

	body := map[string]any{"success": err == nil, "trace": trace}
	if err != nil {
		body["failure"] = h.failureBody(err)
	}
	h.writeJSON(w, http.StatusOK, body)
}

// handleProxyPlaylist serves one playlist; the token is optional.
func (h *Handlers) handleProxyPlaylist(w http.ResponseWriter, r *http.Request) {
	h.servePlaylist(w, r, false)
}

// handleDirectPlaylist serves one playlist and insists on a token.
func (h *Handlers) handleDirectPlaylist(w http.ResponseWriter, r *http.Request) {
	h.servePlaylist(w, r, true)
}

func (h *Handlers) servePlaylist(w http.ResponseWriter, r *http.Request, requireToken bool) {
	q := r.URL.Query()
	req := types.PlaylistRequest{
		Domain:    q.Get("domain"),
		FileToken: q.Get("file"),
		Token:     q.Get("token"),
	}
	if req.FileToken == "" {
		h.writeError(w, http.StatusBadRequest, "file parameter is required")
		return
	}
	if requireToken && req.Domain == "" {
		h.writeError(w, http.StatusBadRequest, "domain parameter is required")
		return
	}

	pl, err := h.ctx.Resolver.FetchPlaylist(r.Context(), req, requireToken)
	if err != nil {
		h.writeFailure(w, r, err, nil)
		return
	}

	w.Header().Set("Content-Type", PlaylistContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(pl.Text))
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Success        bool         `json:"success"`
	Error          string       `json:"error"`
	Kind           failure.Kind `json:"kind,omitempty"`
	Stage          types.Stage  `json:"stage,omitempty"`
	UpstreamStatus int          `json:"upstream_status,omitempty"`
	Preview        string       `json:"preview,omitempty"`
	Trace          *types.Trace `json:"trace,omitempty"`
}

func (h *Handlers) failureBody(err error) errorResponse {
	body := errorResponse{Error: err.Error()}
	if fe, ok := failure.As(err); ok {
		body.Error = fe.Message
		body.Kind = fe.Kind
		body.Stage = fe.Stage
		body.UpstreamStatus = fe.StatusCode
		body.Preview = failure.Preview(fe.Preview, h.ctx.Config.PreviewBytes)
	}
	return body
}

func (h *Handlers) writeFailure(w http.ResponseWriter, r *http.Request, err error, trace *types.Trace) {
	status := StatusFor(err)
	h.requestLog(r).Warn("request failed",
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	body := h.failureBody(err)
	body.Trace = trace
	h.writeJSON(w, status, body)
}

// requestLog prefers the access logger the middleware put in the context.
func (h *Handlers) requestLog(r *http.Request) *logging.Logger {
	if l, ok := logging.Lookup(r.Context()); ok {
		return l.WithComponent("api")
	}
	return h.log.WithRequestID(r.Header.Get(middleware.RequestIDHeader))
}

// StatusFor maps an error to the HTTP status returned to clients.
func StatusFor(err error) int {
	if errors.Is(err, services.ErrInvalidURL) {
		return http.StatusBadRequest
	}
	switch failure.KindOf(err) {
	case failure.KindNetwork:
		return http.StatusBadGateway
	case failure.KindParse:
		return http.StatusUnprocessableEntity
	case failure.KindNotFound:
		return http.StatusNotFound
	case failure.KindAuth:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
