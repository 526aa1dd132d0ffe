// Package cli wires the application into a cobra command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"m3u8-resolver/internal/app"
	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/logging"
	"m3u8-resolver/pkg/types"
)

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "m3u8-resolver",
		Short: "Resolve video pages to their M3U8 playlists",
		Long: `m3u8-resolver walks a video site's content page through its embedded player
down to the HLS playlists, and serves the result over a small JSON API.

Configuration comes from the environment (optionally a .env file).`,
		Example: `  # Start the API server
  m3u8-resolver serve

  # Resolve a content page once and print the result
  m3u8-resolver resolve https://allmovieland.ac/12345-film.html

  # Show how far resolution gets without fetching playlists
  m3u8-resolver diagnose https://allmovieland.ac/12345-film.html`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(&logLevel),
		newResolveCommand(&logLevel),
		newDiagnoseCommand(&logLevel),
		newPlaylistCommand(&logLevel),
		newSearchCommand(&logLevel),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCommand(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *logLevel)
		},
	}
}

func newResolveCommand(logLevel *string) *cobra.Command {
	var withText bool
	cmd := &cobra.Command{
		Use:   "resolve URL",
		Short: "Resolve a content or player URL and print its playlists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *logLevel, func(ctx context.Context, a *app.App) error {
				res, err := a.Ctx.Resolver.Resolve(ctx, args[0])
				if err != nil {
					if res != nil {
						printJSON(cmd.ErrOrStderr(), res.Trace)
					}
					return err
				}
				if withText {
					return printPlaylists(cmd.OutOrStdout(), res.Streams)
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&withText, "text", false, "Print raw playlist text instead of JSON")
	return cmd
}

func newDiagnoseCommand(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose URL",
		Short: "Run the chain without fetching playlists and print the trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *logLevel, func(ctx context.Context, a *app.App) error {
				trace, err := a.Ctx.Resolver.Diagnose(ctx, args[0])
				if trace != nil {
					if perr := printJSON(cmd.OutOrStdout(), trace); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func newPlaylistCommand(logLevel *string) *cobra.Command {
	var req types.PlaylistRequest
	var requireToken bool
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Fetch one playlist by file token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *logLevel, func(ctx context.Context, a *app.App) error {
				pl, err := a.Ctx.Resolver.FetchPlaylist(ctx, req, requireToken)
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), pl.Text)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&req.Domain, "domain", "", "Player domain (defaults to DEFAULT_PLAYER_DOMAIN)")
	cmd.Flags().StringVar(&req.FileToken, "file", "", "File token from a resolution")
	cmd.Flags().StringVar(&req.Token, "token", "", "CSRF token from a resolution")
	cmd.Flags().BoolVar(&requireToken, "require-token", false, "Fail when --token is empty")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newSearchCommand(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the site and print matching content pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *logLevel, func(ctx context.Context, a *app.App) error {
				results, err := a.Ctx.Resolver.Search(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}
}

func runServe(cmd *cobra.Command, logLevel string) error {
	return withApp(cmd, logLevel, func(ctx context.Context, a *app.App) error {
		return a.Run(ctx)
	})
}

// withApp builds the application, runs fn with a context cancelled on
// SIGINT/SIGTERM and releases the application afterwards.
func withApp(cmd *cobra.Command, logLevel string, fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := logging.New(cfg.LogLevel, cfg.LogJSON, cmd.ErrOrStderr())

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPlaylists(w io.Writer, streams []types.StreamResult) error {
	for _, s := range streams {
		if s.Playlist == nil {
			fmt.Fprintf(w, "# %s: %s\n", s.Title, s.Error)
			continue
		}
		fmt.Fprintf(w, "# %s\n%s\n", s.Title, s.Playlist.Text)
	}
	return nil
}
