package mount

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	attrI18n           = "data-i18n"
	attrI18nAttr       = "data-i18n-attr"
	attrNavLink        = "data-nav-link"
	attrLanguageToggle = "data-language-toggle"
	activeClass        = "is-active"
)

// Translate localizes every element below root carrying data-i18n (text
// content) or data-i18n-attr ("attr:key;attr:key"). The current text or
// attribute value is the fallback.
func Translate(root *html.Node, s Strings) {
	walkElements(root, func(n *html.Node) {
		if key, ok := getAttr(n, attrI18n); ok {
			Replace(n, text(lookup(s, key, textContent(n))))
		}
		mappings, ok := getAttr(n, attrI18nAttr)
		if !ok {
			return
		}
		for _, pair := range strings.Split(mappings, ";") {
			parts := strings.Split(strings.TrimSpace(pair), ":")
			if len(parts) != 2 {
				continue
			}
			attr, key := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
			if attr == "" || key == "" {
				continue
			}
			current, _ := getAttr(n, attr)
			setAttr(n, attr, lookup(s, key, current))
		}
	})
}

// HighlightNav marks the navigation links pointing at page.
func HighlightNav(root *html.Node, page string) {
	if page == "" {
		return
	}
	walkElements(root, func(n *html.Node) {
		if _, ok := getAttr(n, attrNavLink); !ok {
			return
		}
		href, _ := getAttr(n, "href")
		isHome := page == "home" && (href == "index.html" || href == "./" || href == "/")
		isProjects := page == "projects" && strings.Contains(href, "projects")
		if isHome || isProjects {
			addClass(n, activeClass)
			setAttr(n, "aria-current", "page")
			return
		}
		removeClass(n, activeClass)
		removeAttr(n, "aria-current")
	})
}

// SetLanguage sets the document language and the value of language toggles.
func SetLanguage(root *html.Node, lang string) {
	walkElements(root, func(n *html.Node) {
		if n.DataAtom == atom.Html {
			setAttr(n, "lang", lang)
		}
		if _, ok := getAttr(n, attrLanguageToggle); !ok {
			return
		}
		if n.DataAtom != atom.Select {
			setAttr(n, "value", lang)
			return
		}
		walkElements(n, func(option *html.Node) {
			if option.DataAtom != atom.Option {
				return
			}
			value, ok := getAttr(option, "value")
			if !ok {
				value = strings.TrimSpace(textContent(option))
			}
			if value == lang {
				setAttr(option, "selected", "")
			} else {
				removeAttr(option, "selected")
			}
		})
	})
}

// Page returns the body's data-page value.
func Page(root *html.Node) string {
	var page string
	walkElements(root, func(n *html.Node) {
		if n.DataAtom == atom.Body {
			page, _ = getAttr(n, "data-page")
		}
	})
	return page
}
