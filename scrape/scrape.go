package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/foomo/portfolio-mcp/service/vo"
)

var ErrSelectorNotFound = errors.New("selector not found")

// Scrape downloads url, selects the first node matching the CSS selector and
// converts it to markdown. A page whose projects are h2 sections converts
// straight into the projects document format.
func Scrape(ctx context.Context, client *http.Client, url, selector string) (*vo.PageSummary, vo.Markdown, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download HTML: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	summary := summarize(doc)
	summary.URL = url

	markdown, err := Convert(doc, selector)
	if err != nil {
		return nil, "", err
	}
	return summary, markdown, nil
}

// Convert turns the first node matching selector into markdown.
func Convert(doc *goquery.Document, selector string) (vo.Markdown, error) {
	selection := doc.Find(selector).First()
	if selection.Length() == 0 {
		return "", fmt.Errorf("%w: %q", ErrSelectorNotFound, selector)
	}

	markdownBytes, err := htmltomarkdown.ConvertNode(selection.Nodes[0])
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return vo.Markdown(markdownBytes), nil
}
