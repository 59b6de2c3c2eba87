package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/foomo/portfolio-mcp/service/vo"
)

// summarize reads title, meta description and meta keywords.
func summarize(doc *goquery.Document) *vo.PageSummary {
	summary := &vo.PageSummary{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if content, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		summary.Description = strings.TrimSpace(content)
	}
	if content, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content"); ok {
		for _, keyword := range strings.Split(content, ",") {
			if trimmed := strings.TrimSpace(keyword); trimmed != "" {
				summary.Keywords = append(summary.Keywords, trimmed)
			}
		}
	}
	return summary
}
