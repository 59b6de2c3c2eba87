package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/foomo/portfolio-mcp/config"
	"github.com/foomo/portfolio-mcp/mount"
	"github.com/foomo/portfolio-mcp/projects"
	"github.com/foomo/portfolio-mcp/service/vo"
	"github.com/foomo/portfolio-mcp/wire"
)

type ctxKey string

const appKey ctxKey = "app"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"http":      "http_addr",
	"assets":    "assets.dir",
	"source":    "source.kind",
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "portfolio-mcp",
		Short:         "Portfolio projects site and MCP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if cfgPath != "" {
				v.SetConfigFile(cfgPath)
			}
			if err := config.Load(v); err != nil {
				return err
			}
			for name, key := range flagKeys {
				if f := cmd.Flags().Lookup(name); f != nil {
					if err := v.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}
			settings := config.FromViper(v)

			logger, err := newLogger(settings.LogLevel)
			if err != nil {
				return err
			}
			app, err := wire.BuildApp(logger, settings)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app, ok := cmd.Context().Value(appKey).(*wire.App); ok {
				_ = app.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (yaml|toml|json)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("assets", "", "local assets directory")
	cmd.PersistentFlags().String("source", "", "projects source: file, http, scrape or contentserver")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStdioCmd())
	cmd.AddCommand(newRenderCmd())

	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Help() }

	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	return cfg.Build()
}

func getApp(cmd *cobra.Command) *wire.App {
	app, ok := cmd.Context().Value(appKey).(*wire.App)
	if !ok {
		fmt.Fprintln(os.Stderr, "internal error: app not initialized")
		os.Exit(1)
	}
	return app
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site, the projects API and the MCP endpoint over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			ln, err := net.Listen("tcp", app.Settings.HTTPAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", app.Settings.HTTPAddr, err)
			}
			return app.Serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().String("http", "", "HTTP server address (e.g., ':8080')")
	return cmd
}

func newStdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Run the MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			app.Logger.Info("starting MCP server in stdio mode")
			return server.ServeStdio(app.MCP)
		},
	}
}

func newRenderCmd() *cobra.Command {
	var (
		asHTML bool
		lang   string
	)
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a projects document, or the configured source, as JSON or HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)

			var result vo.RenderResult
			if len(args) == 1 {
				document, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", args[0], err)
				}
				result = projects.Render(string(document))
			} else {
				var err error
				if result, err = app.Service.Render(cmd.Context()); err != nil {
					return err
				}
			}

			if !asHTML {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			localizer, err := app.Catalog.Resolve(cmd.Context(), lang)
			if err != nil {
				app.Logger.Warn("rendering with fallback labels", zap.Error(err))
			}
			return mount.Render(cmd.OutOrStdout(), mount.List(mount.ListStateReady, result, localizer)...)
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "write the card markup instead of JSON")
	cmd.Flags().StringVar(&lang, "lang", "", "language of the card labels")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
