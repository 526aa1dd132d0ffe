// Package app provides the main application setup and dependency injection.
package app

import (
	"context"

	"m3u8-resolver/pkg/appctx"
	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/extractors"
	"m3u8-resolver/pkg/flaresolverr"
	"m3u8-resolver/pkg/handlers/api"
	"m3u8-resolver/pkg/httpclient"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/registry"
	"m3u8-resolver/pkg/server"
	"m3u8-resolver/pkg/services"
)

// App is the main application container.
type App struct {
	Ctx          *appctx.Context
	Server       *server.Server
	HTTPClient   *httpclient.Client
	ExtractorReg *registry.ExtractorRegistry
}

// New initializes the application from cfg.
func New(cfg *config.Config, log *logging.Logger) (*App, error) {
	cfg.WithDefaults()
	log.Info("initializing m3u8 resolver",
		"port", cfg.Port,
		"site_url", cfg.SiteURL,
		"log_level", cfg.LogLevel,
	)

	ctx := appctx.New(cfg, log)
	cfg.BaseURL = ctx.BaseURL

	httpClient := httpclient.New(cfg, log)

	extractorReg := registry.NewExtractorRegistry()
	registerExtractors(extractorReg, cfg, log)

	resolver, err := services.NewResolverService(cfg, log, httpClient, extractorReg)
	if err != nil {
		return nil, err
	}
	if cfg.FlareSolverrURL != "" {
		resolver.SetSolver(flaresolverr.NewClient(cfg.FlareSolverrURL, cfg.FlareSolverrTimeout, log))
		log.Info("challenge solver enabled", "url", cfg.FlareSolverrURL)
	}
	ctx.WithResolver(resolver)

	srv := server.New(cfg, log)
	api.NewHandlers(ctx).RegisterRoutes(srv.Router())

	return &App{
		Ctx:          ctx,
		Server:       srv,
		HTTPClient:   httpClient,
		ExtractorReg: extractorReg,
	}, nil
}

// Run serves the API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Ctx.Log.Info("starting m3u8 resolver server", "port", a.Ctx.Config.Port)
	return a.Server.Start(ctx)
}

// Shutdown releases the resolver's workers and extractors.
func (a *App) Shutdown() {
	a.Ctx.Log.Info("shutting down application")
	if err := a.Ctx.Resolver.Close(); err != nil {
		a.Ctx.Log.Warn("shutdown error", "error", err)
	}
}

// registerExtractors registers all URL extractors.
// Add new extractors here by:
// 1. Creating a new extractor in pkg/extractors/
// 2. Registering it below
func registerExtractors(reg *registry.ExtractorRegistry, cfg *config.Config, log *logging.Logger) {
	opts := extractors.OptionsFromConfig(cfg)

	// Player pages given directly
	reg.Register(extractors.NewEmbedPageExtractor(opts, log))

	// Content pages on the site, and the fallback for any other URL
	content := extractors.NewContentPageExtractor(opts, cfg.SiteURL, log)
	reg.Register(content)
	reg.SetFallback(content)

	log.Info("registered extractors", "count", len(reg.All()))
}
