package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/foomo/contentserver/requests"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foomo/portfolio-mcp/config"
	"github.com/foomo/portfolio-mcp/fetch"
	"github.com/foomo/portfolio-mcp/i18n"
	"github.com/foomo/portfolio-mcp/mcp"
	"github.com/foomo/portfolio-mcp/service"
	"github.com/foomo/portfolio-mcp/service/vo"
	"github.com/foomo/portfolio-mcp/site"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired components of one process.
type App struct {
	Settings   config.Settings
	Logger     *zap.Logger
	HTTPClient *http.Client
	Assets     *fetch.Cache
	Service    service.Service
	Catalog    *i18n.Catalog
	Hub        *site.Hub
	Site       *site.Server
	MCP        *server.MCPServer
}

func BuildApp(logger *zap.Logger, settings config.Settings) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpClient := &http.Client{Timeout: settings.FetchTimeout}
	fetcher, err := newAssetsFetcher(logger, httpClient, settings)
	if err != nil {
		return nil, err
	}
	assets := fetch.NewCache(fetcher, settings.CacheTTL)

	source, err := newSource(settings, assets, httpClient)
	if err != nil {
		return nil, err
	}

	svc := service.NewService(logger.Named("service"), source)
	catalog := i18n.NewCatalog(assets,
		i18n.WithPathPattern(settings.LangPathPattern),
		i18n.WithLanguages(settings.DefaultLanguage, settings.Languages...),
		i18n.WithLogger(logger.Named("i18n")),
	)
	hub := site.NewHub(logger.Named("events"))

	return &App{
		Settings:   settings,
		Logger:     logger,
		HTTPClient: httpClient,
		Assets:     assets,
		Service:    svc,
		Catalog:    catalog,
		Hub:        hub,
		Site:       site.NewServer(logger.Named("site"), svc, catalog, hub),
		MCP:        mcp.NewServer(logger.Named("mcp"), httpClient, svc, catalog),
	}, nil
}

// newAssetsFetcher reads from assets.base_url for the http source and, unless
// the source is a local file, whenever a base URL is configured.
func newAssetsFetcher(logger *zap.Logger, httpClient *http.Client, settings config.Settings) (fetch.Fetcher, error) {
	useHTTP := settings.SourceKind == config.SourceKindHTTP ||
		(settings.SourceKind != config.SourceKindFile && settings.AssetsBaseURL != "")
	if !useHTTP {
		return fetch.NewDir(settings.AssetsDir), nil
	}
	fetcher, err := fetch.NewHTTP(logger.Named("fetch"), httpClient, settings.AssetsBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create assets fetcher: %w", err)
	}
	return fetcher, nil
}

func newSource(settings config.Settings, assets *fetch.Cache, httpClient *http.Client) (service.Source, error) {
	switch settings.SourceKind {
	case config.SourceKindFile, config.SourceKindHTTP:
		return &service.FetchSource{Fetcher: assets, Path: settings.SourcePath}, nil
	case config.SourceKindScrape:
		return &service.ScrapeSource{
			HTTPClient: httpClient,
			URL:        settings.SourceURL,
			Selector:   settings.SourceSelector,
		}, nil
	case config.SourceKindContentServer:
		mimeTypes := make([]vo.MimeType, len(settings.ContentServerMimeTypes))
		for i, mimeType := range settings.ContentServerMimeTypes {
			mimeTypes[i] = vo.MimeType(mimeType)
		}
		return service.NewContentServerSource(service.SiteSettings{
			Env: &requests.Env{
				Dimensions: settings.ContentServerDimensions,
				Groups:     settings.ContentServerGroups,
			},
			ContentSelector:  settings.SourceSelector,
			BaseURL:          settings.ContentServerBaseURL,
			ContentServerURL: settings.ContentServerURL,
			MimeTypes:        mimeTypes,
		}, httpClient, settings.ContentServerURI), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", settings.SourceKind)
	}
}

// Handler serves the site and the MCP streamable HTTP endpoint.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Site.Register(mux)
	mux.Handle(a.Settings.MCPEndpoint, mcp.NewMcpHTTPServer(a.MCP, a.Settings.MCPEndpoint))
	return mux
}

// Serve runs the HTTP server on ln next to the background refresher until
// ctx is done or one of them fails.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Service.Run(ctx, a.Settings.RefreshInterval)
	})
	g.Go(func() error {
		a.Logger.Info("starting server",
			zap.String("addr", ln.Addr().String()),
			zap.String("source", a.Settings.SourceKind),
			zap.String("mcp", a.Settings.MCPEndpoint),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.Hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.Logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}
