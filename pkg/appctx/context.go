// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"fmt"

	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/services"
)

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config   *config.Config
	Log      *logging.Logger
	Resolver *services.ResolverService
	BaseURL  string
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	return &Context{
		Config:  cfg,
		Log:     log,
		BaseURL: baseURL,
	}
}

// WithResolver sets the resolver service.
func (c *Context) WithResolver(rs *services.ResolverService) *Context {
	c.Resolver = rs
	return c
}
