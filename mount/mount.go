package mount

import (
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/foomo/portfolio-mcp/service/vo"
)

// Strings looks up localized UI text; *i18n.Localizer implements it.
type Strings interface {
	T(key, fallback string) string
}

// UI text keys and the German texts used when a key is missing.
const (
	KeyViewProject = "projects.viewProject"
	KeyLoading     = "projects.loading"
	KeyEmpty       = "projects.empty"
	KeyError       = "projects.error"
	KeyFullscreen  = "projects.fullscreen"

	FallbackViewProject = "Projekt ansehen"
	FallbackLoading     = "Projekte werden geladen…"
	FallbackEmpty       = "Projekte folgen bald."
	FallbackError       = "Projekte können derzeit nicht geladen werden. Bitte versuche es später erneut."
	FallbackFullscreen  = "Vollbild"
)

// ListState is the state of the project list as seen by the page.
type ListState string

const (
	ListStateLoading ListState = "loading"
	ListStateReady   ListState = "ready"
	ListStateFailed  ListState = "failed"
)

// List builds the content of the project list container.
func List(state ListState, result vo.RenderResult, s Strings) []*html.Node {
	switch state {
	case ListStateLoading:
		return []*html.Node{Loading(s)}
	case ListStateFailed:
		return []*html.Node{Failed(s)}
	case ListStateReady:
	}
	if result.Empty() {
		return []*html.Node{Empty(s)}
	}
	nodes := make([]*html.Node, len(result.Cards))
	for i, card := range result.Cards {
		nodes[i] = Card(card, s)
	}
	return nodes
}

func Loading(s Strings) *html.Node {
	return paragraph("note", lookup(s, KeyLoading, FallbackLoading))
}

func Empty(s Strings) *html.Node {
	return paragraph("empty-state", lookup(s, KeyEmpty, FallbackEmpty))
}

func Failed(s Strings) *html.Node {
	return paragraph("empty-state", lookup(s, KeyError, FallbackError))
}

// Card builds the article for one project.
func Card(card vo.CardView, s Strings) *html.Node {
	article := element(atom.Article, "class", "project-card card")

	title := element(atom.H2)
	title.AppendChild(text(card.Title))
	article.AppendChild(title)

	if card.Description != "" {
		article.AppendChild(paragraph("project-description", card.Description))
	}

	if card.Link != nil {
		actions := element(atom.Div, "class", "project-actions")
		link := element(atom.A, "class", "button button-primary", "href", card.Link.Href)
		if card.Link.External {
			setAttr(link, "target", "_blank")
			setAttr(link, "rel", "noreferrer")
		}
		link.AppendChild(text(lookup(s, KeyViewProject, FallbackViewProject)))
		actions.AppendChild(link)
		article.AppendChild(actions)
	}

	if len(card.Media) > 0 {
		gallery := element(atom.Div, "class", "project-images")
		for _, item := range card.Media {
			gallery.AppendChild(figure(item, card.Title, s))
		}
		article.AppendChild(gallery)
	}
	return article
}

func figure(item vo.MediaItem, title string, s Strings) *html.Node {
	fig := element(atom.Figure, "class", "project-image")
	if item.Kind == vo.MediaKindVideo {
		addClass(fig, "project-image--video")
		fig.AppendChild(element(atom.Video,
			"src", item.Source,
			"controls", "",
			"preload", "metadata",
			"playsinline", "",
			"aria-label", title+" video",
		))
		label := lookup(s, KeyFullscreen, FallbackFullscreen)
		button := element(atom.Button,
			"type", "button",
			"class", "project-video-button",
			"aria-label", label,
		)
		button.AppendChild(text(label))
		fig.AppendChild(button)
		return fig
	}
	fig.AppendChild(element(atom.Img,
		"src", item.Source,
		"alt", title+" preview",
		"loading", "lazy",
	))
	return fig
}

// Replace swaps the children of container for nodes.
func Replace(container *html.Node, nodes ...*html.Node) {
	for c := container.FirstChild; c != nil; {
		next := c.NextSibling
		container.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
}

// Render writes nodes as HTML.
func Render(w io.Writer, nodes ...*html.Node) error {
	for _, n := range nodes {
		if err := html.Render(w, n); err != nil {
			return err
		}
	}
	return nil
}

func lookup(s Strings, key, fallback string) string {
	if s == nil {
		return fallback
	}
	return s.T(key, fallback)
}

func paragraph(class, content string) *html.Node {
	p := element(atom.P, "class", class)
	p.AppendChild(text(content))
	return p
}
