package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	contentserverclient "github.com/foomo/contentserver/client"
	"github.com/foomo/contentserver/content"
	"github.com/foomo/contentserver/requests"

	"github.com/foomo/portfolio-mcp/fetch"
	"github.com/foomo/portfolio-mcp/scrape"
	"github.com/foomo/portfolio-mcp/service/vo"
)

// Source supplies the raw projects document.
type Source interface {
	Markdown(ctx context.Context) (vo.Markdown, error)
}

// invalidator is implemented by sources that keep cached text.
type invalidator interface {
	Invalidate()
}

// FetchSource reads the document from a fetcher, e.g. assets/projects.md.
type FetchSource struct {
	Fetcher fetch.Fetcher
	Path    string
}

func (s *FetchSource) Markdown(ctx context.Context) (vo.Markdown, error) {
	text, err := s.Fetcher.Text(ctx, s.Path)
	if err != nil {
		return "", err
	}
	return vo.Markdown(text), nil
}

func (s *FetchSource) Invalidate() {
	if cache, ok := s.Fetcher.(*fetch.Cache); ok {
		cache.Invalidate(s.Path)
	}
}

// ScrapeSource converts a section of an HTML page into the document.
type ScrapeSource struct {
	HTTPClient *http.Client
	URL        string
	Selector   string
}

func (s *ScrapeSource) Markdown(ctx context.Context) (vo.Markdown, error) {
	_, markdown, err := scrape.Scrape(ctx, s.HTTPClient, s.URL, s.Selector)
	if err != nil {
		return "", fmt.Errorf("%w: %w", fetch.ErrFetchFailed, err)
	}
	return markdown, nil
}

type SiteSettings struct {
	Env              *requests.Env
	ContentSelector  string
	BaseURL          string
	ContentServerURL string
	MimeTypes        []vo.MimeType
}

func (siteSettings SiteSettings) mimeTypes() []string {
	mimeTypes := make([]string, len(siteSettings.MimeTypes))
	for i, mimeType := range siteSettings.MimeTypes {
		mimeTypes[i] = string(mimeType)
	}
	return mimeTypes
}

// ContentServerSource resolves the projects page through a content server
// and scrapes it from the site. With MimeTypes set, every child page of that
// type becomes one project section titled after the child's page title.
type ContentServerSource struct {
	contentServerClient *contentserverclient.Client
	httpClient          *http.Client
	siteSettings        SiteSettings
	uri                 string
}

func NewContentServerSource(siteSettings SiteSettings, httpClient *http.Client, uri string) *ContentServerSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	contentServerClient := contentserverclient.New(
		contentserverclient.NewHTTPTransport(
			siteSettings.ContentServerURL,
			contentserverclient.HTTPTransportWithHTTPClient(httpClient),
		))

	return &ContentServerSource{
		contentServerClient: contentServerClient,
		httpClient:          httpClient,
		siteSettings:        siteSettings,
		uri:                 uri,
	}
}

// isValidURI checks if a URI is valid for processing
func isValidURI(uri string) bool {
	return uri != "" && strings.HasPrefix(uri, "/")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (s *ContentServerSource) Markdown(ctx context.Context) (vo.Markdown, error) {
	siteContent, err := s.contentServerClient.GetContent(ctx, &requests.Content{
		URI:   s.uri,
		Env:   s.siteSettings.Env,
		Nodes: map[string]*requests.Node{},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", fetch.ErrFetchFailed, err)
	}
	if siteContent.Item == nil || !isValidURI(siteContent.Item.URI) {
		return "", fmt.Errorf("%w: no page for %s", fetch.ErrFetchFailed, s.uri)
	}

	if len(s.siteSettings.MimeTypes) == 0 {
		return s.scrape(ctx, siteContent.Item)
	}
	return s.children(ctx, siteContent.Item)
}

func (s *ContentServerSource) scrape(ctx context.Context, item *content.Item) (vo.Markdown, error) {
	_, markdown, err := scrape.Scrape(ctx, s.httpClient, s.siteSettings.BaseURL+item.URI, s.siteSettings.ContentSelector)
	if err != nil {
		return "", fmt.Errorf("%w: %w", fetch.ErrFetchFailed, err)
	}
	return markdown, nil
}

func (s *ContentServerSource) children(ctx context.Context, item *content.Item) (vo.Markdown, error) {
	nodes, err := s.contentServerClient.GetNodes(ctx, s.siteSettings.Env, map[string]*requests.Node{
		item.ID: {
			ID:        item.ID,
			MimeTypes: s.siteSettings.mimeTypes(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", fetch.ErrFetchFailed, err)
	}
	contentNode, ok := nodes[item.ID]
	if !ok {
		return "", fmt.Errorf("%w: %w", fetch.ErrFetchFailed, errors.New("content node not found"))
	}

	var sb strings.Builder
	for _, id := range contentNode.Index {
		childNode, ok := contentNode.Nodes[id]
		if !ok {
			return "", fmt.Errorf("%w: %w", fetch.ErrFetchFailed, errors.New("child node not found"))
		}
		if childNode.Item == nil || !isValidURI(childNode.Item.URI) {
			continue
		}
		summary, markdown, err := scrape.Scrape(ctx, s.httpClient, s.siteSettings.BaseURL+childNode.Item.URI, s.siteSettings.ContentSelector)
		if err != nil {
			return "", fmt.Errorf("%w: %w", fetch.ErrFetchFailed, err)
		}
		// titles and descriptions must stay on their marker line
		title := oneLine(summary.Title)
		if title == "" {
			title = childNode.Item.URI
		}
		fmt.Fprintf(&sb, "## %s\n", title)
		if description := oneLine(summary.Description); description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", description)
		}
		fmt.Fprintf(&sb, "Link: %s\n", s.siteSettings.BaseURL+childNode.Item.URI)
		sb.WriteString(string(markdown))
		sb.WriteString("\n\n")
	}
	return vo.Markdown(sb.String()), nil
}
