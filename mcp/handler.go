package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/foomo/portfolio-mcp/i18n"
	"github.com/foomo/portfolio-mcp/mount"
	"github.com/foomo/portfolio-mcp/projects"
	"github.com/foomo/portfolio-mcp/scrape"
	"github.com/foomo/portfolio-mcp/service"
	"github.com/foomo/portfolio-mcp/service/vo"
)

const Version = "0.1.0"

type ListProjectsRequest struct {
	Lang string `json:"lang"` // Language of the UI labels
}

type ListProjectsResponse struct {
	Language string            `json:"language"`
	Result   vo.RenderResult   `json:"result"`
	Labels   map[string]string `json:"labels"` // Localized UI texts used around the cards
}

type ParseProjectsRequest struct {
	Markdown string `json:"markdown"` // The projects document
}

type ParseProjectsResponse struct {
	Records []vo.ProjectRecord `json:"records"`
	Result  vo.RenderResult    `json:"result"`
}

type TranslateRequest struct {
	Key      string `json:"key"`      // Dotted message key
	Lang     string `json:"lang"`     // Language, defaults to the site default
	Fallback string `json:"fallback"` // Returned when the key is missing
}

type TranslateResponse struct {
	Language string `json:"language"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Found    bool   `json:"found"`
}

type ScrapeProjectsRequest struct {
	URL      string `json:"url"`      // The URL to scrape
	Selector string `json:"selector"` // CSS selector of the projects section
}

type ScrapeProjectsResponse struct {
	Summary  *vo.PageSummary    `json:"summary"`
	Markdown string             `json:"markdown"` // The section converted to markdown
	Records  []vo.ProjectRecord `json:"records"`
	Result   vo.RenderResult    `json:"result"`
}

// NewServer creates an MCP server exposing the projects tools. listProjects
// is only added when svc is set, translate only when catalog is set.
func NewServer(logger *zap.Logger, client *http.Client, svc service.Service, catalog *i18n.Catalog) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = http.DefaultClient
	}
	s := server.NewMCPServer(
		"Portfolio Projects MCP",
		Version,
		server.WithToolCapabilities(false),
	)

	parseTool := mcp.NewTool("parseProjects",
		mcp.WithDescription("Parse a projects markdown document into records and display cards"),
		mcp.WithString("markdown",
			mcp.Required(),
			mcp.Description("The projects document; every project starts with a '## ' title line"),
		),
	)
	s.AddTool(parseTool, mcp.NewTypedToolHandler(getParseProjectsHandler()))

	scrapeTool := mcp.NewTool("scrapeProjects",
		mcp.WithDescription("Scrape a webpage section, convert it to markdown and parse it as a projects document"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the webpage to scrape"),
		),
		mcp.WithString("selector",
			mcp.Required(),
			mcp.Description("CSS selector of the projects section (e.g., 'main', '#projects')"),
		),
	)
	s.AddTool(scrapeTool, mcp.NewTypedToolHandler(getScrapeProjectsHandler(client)))

	if svc != nil {
		listTool := mcp.NewTool("listProjects",
			mcp.WithDescription("Load the configured projects document and return the rendered project cards"),
			mcp.WithString("lang",
				mcp.Description("Language of the returned labels (e.g., 'de', 'en')"),
			),
		)
		s.AddTool(listTool, mcp.NewTypedToolHandler(getListProjectsHandler(logger, svc, catalog)))
	}

	if catalog != nil {
		translateTool := mcp.NewTool("translate",
			mcp.WithDescription("Look up a localized site text"),
			mcp.WithString("key",
				mcp.Required(),
				mcp.Description("Dotted message key (e.g., 'projects.viewProject')"),
			),
			mcp.WithString("lang",
				mcp.Description("Language; the site default when empty"),
			),
			mcp.WithString("fallback",
				mcp.Description("Text returned when the key is missing"),
			),
		)
		s.AddTool(translateTool, mcp.NewTypedToolHandler(getTranslateHandler(catalog)))
	}

	return s
}

func getParseProjectsHandler() func(ctx context.Context, request mcp.CallToolRequest, args ParseProjectsRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ParseProjectsRequest) (*mcp.CallToolResult, error) {
		records := projects.Parse(args.Markdown)
		return jsonResult(ParseProjectsResponse{
			Records: records,
			Result:  projects.RenderList(records),
		})
	}
}

func getScrapeProjectsHandler(client *http.Client) func(ctx context.Context, request mcp.CallToolRequest, args ScrapeProjectsRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ScrapeProjectsRequest) (*mcp.CallToolResult, error) {
		if args.URL == "" {
			return mcp.NewToolResultError("url is required"), nil
		}
		if args.Selector == "" {
			return mcp.NewToolResultError("selector is required"), nil
		}

		summary, markdown, err := scrape.Scrape(ctx, client, args.URL, args.Selector)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to scrape content: %v", err)), nil
		}

		records := projects.Parse(string(markdown))
		return jsonResult(ScrapeProjectsResponse{
			Summary:  summary,
			Markdown: string(markdown),
			Records:  records,
			Result:   projects.RenderList(records),
		})
	}
}

func getListProjectsHandler(logger *zap.Logger, svc service.Service, catalog *i18n.Catalog) func(ctx context.Context, request mcp.CallToolRequest, args ListProjectsRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ListProjectsRequest) (*mcp.CallToolResult, error) {
		var localizer *i18n.Localizer
		if catalog != nil {
			if args.Lang != "" && !catalog.IsSupported(args.Lang) {
				return mcp.NewToolResultError(fmt.Sprintf("unsupported language %q, use one of %v", args.Lang, catalog.Languages())), nil
			}
			lang := args.Lang
			if lang == "" {
				lang = requestLanguage(ctx)
			}
			var err error
			if localizer, err = catalog.Resolve(ctx, lang); err != nil {
				logger.Warn("listing projects with fallback labels", zap.Error(err))
			}
		}

		result, err := svc.Render(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load projects: %v", err)), nil
		}

		return jsonResult(ListProjectsResponse{
			Language: localizer.Language(),
			Result:   result,
			Labels: map[string]string{
				mount.KeyViewProject: localizer.T(mount.KeyViewProject, mount.FallbackViewProject),
				mount.KeyLoading:     localizer.T(mount.KeyLoading, mount.FallbackLoading),
				mount.KeyEmpty:       localizer.T(mount.KeyEmpty, mount.FallbackEmpty),
				mount.KeyError:       localizer.T(mount.KeyError, mount.FallbackError),
				mount.KeyFullscreen:  localizer.T(mount.KeyFullscreen, mount.FallbackFullscreen),
			},
		})
	}
}

func getTranslateHandler(catalog *i18n.Catalog) func(ctx context.Context, request mcp.CallToolRequest, args TranslateRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args TranslateRequest) (*mcp.CallToolResult, error) {
		if args.Key == "" {
			return mcp.NewToolResultError("key is required"), nil
		}
		lang := args.Lang
		if lang == "" {
			lang = catalog.DefaultLanguage()
		}

		localizer, err := catalog.Localizer(ctx, lang)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load language: %v", err)), nil
		}

		value, found := localizer.Lookup(args.Key)
		if !found {
			value = args.Fallback
		}
		return jsonResult(TranslateResponse{
			Language: lang,
			Key:      args.Key,
			Value:    value,
			Found:    found,
		})
	}
}

func jsonResult(response any) (*mcp.CallToolResult, error) {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseBytes)), nil
}
