package mount

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/foomo/portfolio-mcp/service/vo"
)

type stringsMap map[string]string

func (m stringsMap) T(key, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

var english = stringsMap{
	KeyViewProject: "View project",
	KeyLoading:     "Loading projects…",
	KeyEmpty:       "Projects coming soon.",
	KeyError:       "Projects cannot be loaded.",
	KeyFullscreen:  "Fullscreen",
}

func render(t *testing.T, nodes ...*html.Node) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nodes...))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestCard(t *testing.T) {
	doc := render(t, Card(vo.CardView{
		Title:       "Alpha",
		Description: "A <short> pitch.",
		Link:        &vo.CardLink{Href: "https://example.com/alpha", External: true},
		Media: []vo.MediaItem{
			{Kind: vo.MediaKindImage, Source: "a1.png"},
			{Kind: vo.MediaKindVideo, Source: "a1.mp4"},
		},
	}, english))

	card := doc.Find("article.project-card.card")
	require.Equal(t, 1, card.Length())
	assert.Equal(t, "Alpha", card.Find("h2").Text())
	assert.Equal(t, "A <short> pitch.", card.Find("p.project-description").Text())

	link := card.Find(".project-actions a.button.button-primary")
	assert.Equal(t, "View project", link.Text())
	assert.Equal(t, "https://example.com/alpha", link.AttrOr("href", ""))
	assert.Equal(t, "_blank", link.AttrOr("target", ""))
	assert.Equal(t, "noreferrer", link.AttrOr("rel", ""))

	figures := card.Find(".project-images figure.project-image")
	require.Equal(t, 2, figures.Length())

	img := figures.Eq(0).Find("img")
	assert.Equal(t, "a1.png", img.AttrOr("src", ""))
	assert.Equal(t, "Alpha preview", img.AttrOr("alt", ""))
	assert.Equal(t, "lazy", img.AttrOr("loading", ""))

	videoFigure := figures.Eq(1)
	assert.True(t, videoFigure.HasClass("project-image--video"))
	video := videoFigure.Find("video")
	assert.Equal(t, "a1.mp4", video.AttrOr("src", ""))
	assert.Equal(t, "metadata", video.AttrOr("preload", ""))
	assert.Equal(t, "Alpha video", video.AttrOr("aria-label", ""))
	_, hasControls := video.Attr("controls")
	assert.True(t, hasControls)
	_, playsInline := video.Attr("playsinline")
	assert.True(t, playsInline)

	button := videoFigure.Find("button.project-video-button")
	assert.Equal(t, "Fullscreen", button.Text())
	assert.Equal(t, "button", button.AttrOr("type", ""))
	assert.Equal(t, "Fullscreen", button.AttrOr("aria-label", ""))
}

func TestCardMinimal(t *testing.T) {
	doc := render(t, Card(vo.CardView{
		Title: "Beta",
		Link:  &vo.CardLink{Href: "projects/beta.html"},
	}, nil))

	assert.Equal(t, 0, doc.Find("p.project-description").Length())
	assert.Equal(t, 0, doc.Find(".project-images").Length())

	link := doc.Find("a")
	assert.Equal(t, FallbackViewProject, link.Text())
	_, hasTarget := link.Attr("target")
	assert.False(t, hasTarget)
	_, hasRel := link.Attr("rel")
	assert.False(t, hasRel)
}

func TestList(t *testing.T) {
	cards := vo.RenderResult{State: vo.RenderStateCards, Cards: []vo.CardView{{Title: "A"}, {Title: "B"}}}

	doc := render(t, List(ListStateReady, cards, english)...)
	assert.Equal(t, 2, doc.Find("article").Length())

	doc = render(t, List(ListStateReady, vo.RenderResult{State: vo.RenderStateEmpty}, english)...)
	assert.Equal(t, "Projects coming soon.", doc.Find("p.empty-state").Text())

	doc = render(t, List(ListStateLoading, cards, english)...)
	assert.Equal(t, "Loading projects…", doc.Find("p.note").Text())
	assert.Equal(t, 0, doc.Find("article").Length())

	doc = render(t, List(ListStateFailed, cards, nil)...)
	assert.Equal(t, FallbackError, doc.Find("p.empty-state").Text())
}

func TestReplace(t *testing.T) {
	container := element(atom.Div)
	container.AppendChild(text("old"))
	container.AppendChild(paragraph("x", "older"))

	Replace(container, Loading(nil), Empty(nil))

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, container))
	out := buf.String()
	assert.NotContains(t, out, "old")
	assert.True(t, strings.Contains(out, FallbackLoading) && strings.Contains(out, FallbackEmpty))
}
