package i18n

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/foomo/portfolio-mcp/fetch"
)

const (
	DefaultLanguage = "de"
	// CookieName stores the visitor's language choice.
	CookieName = "preferredLanguage"
)

var (
	SupportedLanguages = []string{"de", "en"}

	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Messages is a decoded language file: nested objects with string leaves.
type Messages map[string]any

type Catalog struct {
	logger          *zap.Logger
	fetcher         fetch.Fetcher
	pathPattern     string
	defaultLanguage string
	supported       []string
}

type Option func(c *Catalog)

// WithPathPattern sets the fmt pattern mapping a language to its file path.
func WithPathPattern(pattern string) Option {
	return func(c *Catalog) {
		c.pathPattern = pattern
	}
}

func WithLanguages(defaultLanguage string, supported ...string) Option {
	return func(c *Catalog) {
		c.defaultLanguage = defaultLanguage
		c.supported = supported
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// NewCatalog loads language files through fetcher; pass a *fetch.Cache to
// keep decoded files from being fetched more than once.
func NewCatalog(fetcher fetch.Fetcher, opts ...Option) *Catalog {
	c := &Catalog{
		logger:          zap.NewNop(),
		fetcher:         fetcher,
		pathPattern:     "lang/%s.json",
		defaultLanguage: DefaultLanguage,
		supported:       SupportedLanguages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) DefaultLanguage() string {
	return c.defaultLanguage
}

func (c *Catalog) Languages() []string {
	return slices.Clone(c.supported)
}

func (c *Catalog) IsSupported(lang string) bool {
	return slices.Contains(c.supported, lang)
}

// Localizer loads the messages for lang.
func (c *Catalog) Localizer(ctx context.Context, lang string) (*Localizer, error) {
	if !c.IsSupported(lang) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	text, err := c.fetcher.Text(ctx, fmt.Sprintf(c.pathPattern, lang))
	if err != nil {
		return nil, fmt.Errorf("failed to load translations for %s: %w", lang, err)
	}
	var messages Messages
	if err := json.Unmarshal([]byte(text), &messages); err != nil {
		return nil, fmt.Errorf("failed to decode translations for %s: %w", lang, err)
	}
	return &Localizer{lang: lang, messages: messages}, nil
}

// Resolve picks preferred when supported, otherwise the default language.
// A failing non-default language falls back to the default; when that fails
// too, the returned localizer resolves every key to its fallback.
func (c *Catalog) Resolve(ctx context.Context, preferred string) (*Localizer, error) {
	lang := c.defaultLanguage
	if c.IsSupported(preferred) {
		lang = preferred
	}
	l, err := c.Localizer(ctx, lang)
	if err == nil {
		return l, nil
	}
	if lang != c.defaultLanguage {
		c.logger.Warn("falling back to default language", zap.String("lang", lang), zap.Error(err))
		if l, err = c.Localizer(ctx, c.defaultLanguage); err == nil {
			return l, nil
		}
	}
	c.logger.Error("localization failed", zap.String("lang", c.defaultLanguage), zap.Error(err))
	return &Localizer{lang: c.defaultLanguage}, err
}

type Localizer struct {
	lang     string
	messages Messages
}

func NewLocalizer(lang string, messages Messages) *Localizer {
	return &Localizer{lang: lang, messages: messages}
}

func (l *Localizer) Language() string {
	if l == nil {
		return ""
	}
	return l.lang
}

// T resolves a dotted key such as "projects.viewProject", returning fallback
// when the key is empty, missing or not a string.
func (l *Localizer) T(key, fallback string) string {
	if value, ok := l.Lookup(key); ok {
		return value
	}
	return fallback
}

// Text is T with the raw key as fallback.
func (l *Localizer) Text(key string) string {
	return l.T(key, key)
}

func (l *Localizer) Lookup(key string) (string, bool) {
	if l == nil || key == "" {
		return "", false
	}
	var value any = map[string]any(l.messages)
	for _, segment := range strings.Split(key, ".") {
		node, ok := value.(map[string]any)
		if !ok {
			return "", false
		}
		if value, ok = node[segment]; !ok {
			return "", false
		}
	}
	s, ok := value.(string)
	return s, ok
}
