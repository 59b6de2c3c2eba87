package projects

import (
	"regexp"

	"github.com/foomo/portfolio-mcp/service/vo"
)

var externalLinkPattern = regexp.MustCompile(`(?i)^https?://`)

// ToCardView projects a record onto the card shown for it.
func ToCardView(record vo.ProjectRecord) vo.CardView {
	card := vo.CardView{
		Title:       record.Title,
		Description: record.Description,
		Media:       Classify(record),
	}
	if record.Link != "" {
		card.Link = &vo.CardLink{
			Href:     record.Link,
			External: externalLinkPattern.MatchString(record.Link),
		}
	}
	return card
}

// RenderList maps records to cards, or reports the empty state.
func RenderList(records []vo.ProjectRecord) vo.RenderResult {
	if len(records) == 0 {
		return vo.RenderResult{State: vo.RenderStateEmpty}
	}
	cards := make([]vo.CardView, len(records))
	for i, record := range records {
		cards[i] = ToCardView(record)
	}
	return vo.RenderResult{State: vo.RenderStateCards, Cards: cards}
}

// Render parses document and renders the resulting records.
func Render(document string) vo.RenderResult {
	return RenderList(Parse(document))
}
