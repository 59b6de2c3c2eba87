package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	SourceKindFile          = "file"
	SourceKindHTTP          = "http"
	SourceKindScrape        = "scrape"
	SourceKindContentServer = "contentserver"
)

type ConfigOption struct {
	Key     string
	Default any
	Comment string
}

// GetConfigOptions returns the configuration keys, their defaults and meanings.
func GetConfigOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "http_addr", Default: ":8080", Comment: "Listen address of the site server"},
		{Key: "log.level", Default: "info", Comment: "Log level: debug, info, warn, error"},

		{Key: "assets.dir", Default: "assets", Comment: "Local directory holding projects.md and lang/<lang>.json"},
		{Key: "assets.base_url", Default: "", Comment: "Load assets over HTTP from this base URL instead of assets.dir"},
		{Key: "assets.cache_ttl", Default: "5m", Comment: "How long fetched assets are reused; 0 keeps them until reload"},
		{Key: "assets.fetch_timeout", Default: "10s", Comment: "Timeout of a single asset fetch"},

		{Key: "source.kind", Default: SourceKindFile, Comment: "Projects source: file, http, scrape or contentserver"},
		{Key: "source.path", Default: "projects.md", Comment: "Projects document path relative to the assets location"},
		{Key: "source.url", Default: "", Comment: "Page URL for the scrape source"},
		{Key: "source.selector", Default: "main", Comment: "CSS selector of the projects section for scrape and contentserver sources"},
		{Key: "source.refresh_interval", Default: "5m", Comment: "Background refresh interval; 0 refreshes only at startup and on demand"},

		{Key: "contentserver.url", Default: "", Comment: "Content server endpoint"},
		{Key: "contentserver.base_url", Default: "", Comment: "Site base URL prepended to content server URIs"},
		{Key: "contentserver.uri", Default: "/projects", Comment: "URI of the projects page"},
		{Key: "contentserver.dimensions", Default: []string{}, Comment: "Content server dimensions"},
		{Key: "contentserver.groups", Default: []string{}, Comment: "Content server groups"},
		{Key: "contentserver.mime_types", Default: []string{}, Comment: "Child page mime types; when set every child page is one project"},

		{Key: "i18n.default_language", Default: "de", Comment: "Language used when the visitor has no supported preference"},
		{Key: "i18n.languages", Default: []string{"de", "en"}, Comment: "Supported languages"},
		{Key: "i18n.path_pattern", Default: "lang/%s.json", Comment: "Language file path pattern relative to the assets location"},

		{Key: "mcp.endpoint", Default: "/mcp", Comment: "Path of the MCP streamable HTTP endpoint"},
	}
}

func applyDefaults(v *viper.Viper) {
	for _, o := range GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load resolves configuration with precedence: defaults < file < env < flags.
func Load(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("portfolio")
		v.AddConfigPath(".")
	}

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("portfolio")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return nil
}

type Settings struct {
	HTTPAddr string
	LogLevel string

	AssetsDir     string
	AssetsBaseURL string
	CacheTTL      time.Duration
	FetchTimeout  time.Duration

	SourceKind      string
	SourcePath      string
	SourceURL       string
	SourceSelector  string
	RefreshInterval time.Duration

	ContentServerURL        string
	ContentServerBaseURL    string
	ContentServerURI        string
	ContentServerDimensions []string
	ContentServerGroups     []string
	ContentServerMimeTypes  []string

	DefaultLanguage string
	Languages       []string
	LangPathPattern string

	MCPEndpoint string
}

func FromViper(v *viper.Viper) Settings {
	return Settings{
		HTTPAddr: v.GetString("http_addr"),
		LogLevel: v.GetString("log.level"),

		AssetsDir:     v.GetString("assets.dir"),
		AssetsBaseURL: v.GetString("assets.base_url"),
		CacheTTL:      v.GetDuration("assets.cache_ttl"),
		FetchTimeout:  v.GetDuration("assets.fetch_timeout"),

		SourceKind:      strings.ToLower(strings.TrimSpace(v.GetString("source.kind"))),
		SourcePath:      v.GetString("source.path"),
		SourceURL:       v.GetString("source.url"),
		SourceSelector:  v.GetString("source.selector"),
		RefreshInterval: v.GetDuration("source.refresh_interval"),

		ContentServerURL:        v.GetString("contentserver.url"),
		ContentServerBaseURL:    v.GetString("contentserver.base_url"),
		ContentServerURI:        v.GetString("contentserver.uri"),
		ContentServerDimensions: stringList(v, "contentserver.dimensions"),
		ContentServerGroups:     stringList(v, "contentserver.groups"),
		ContentServerMimeTypes:  stringList(v, "contentserver.mime_types"),

		DefaultLanguage: v.GetString("i18n.default_language"),
		Languages:       stringList(v, "i18n.languages"),
		LangPathPattern: v.GetString("i18n.path_pattern"),

		MCPEndpoint: v.GetString("mcp.endpoint"),
	}
}

// stringList accepts both lists and comma separated env values.
func stringList(v *viper.Viper, key string) []string {
	raw := strings.Split(strings.Join(v.GetStringSlice(key), ","), ",")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate reports every problem at once.
func (s Settings) Validate() error {
	var errs []error
	if s.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if s.AssetsDir == "" && s.AssetsBaseURL == "" {
		errs = append(errs, errors.New("assets.dir or assets.base_url is required"))
	}
	if s.AssetsBaseURL != "" && !isAbsURL(s.AssetsBaseURL) {
		errs = append(errs, errors.New("assets.base_url must be an absolute URL"))
	}
	if s.CacheTTL < 0 {
		errs = append(errs, errors.New("assets.cache_ttl must not be negative"))
	}
	if s.FetchTimeout <= 0 {
		errs = append(errs, errors.New("assets.fetch_timeout must be greater than 0"))
	}
	if s.RefreshInterval < 0 {
		errs = append(errs, errors.New("source.refresh_interval must not be negative"))
	}

	switch s.SourceKind {
	case SourceKindFile:
		if s.AssetsDir == "" {
			errs = append(errs, errors.New("file source requires assets.dir"))
		}
		if s.SourcePath == "" {
			errs = append(errs, errors.New("source.path is required"))
		}
	case SourceKindHTTP:
		if s.AssetsBaseURL == "" {
			errs = append(errs, errors.New("http source requires assets.base_url"))
		}
		if s.SourcePath == "" {
			errs = append(errs, errors.New("source.path is required"))
		}
	case SourceKindScrape:
		if !isAbsURL(s.SourceURL) {
			errs = append(errs, errors.New("scrape source requires an absolute source.url"))
		}
		if s.SourceSelector == "" {
			errs = append(errs, errors.New("source.selector is required"))
		}
	case SourceKindContentServer:
		if !isAbsURL(s.ContentServerURL) {
			errs = append(errs, errors.New("contentserver.url must be an absolute URL"))
		}
		if !isAbsURL(s.ContentServerBaseURL) {
			errs = append(errs, errors.New("contentserver.base_url must be an absolute URL"))
		}
		if !strings.HasPrefix(s.ContentServerURI, "/") {
			errs = append(errs, errors.New("contentserver.uri must start with /"))
		}
		if s.SourceSelector == "" {
			errs = append(errs, errors.New("source.selector is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.kind %q", s.SourceKind))
	}

	if len(s.Languages) == 0 {
		errs = append(errs, errors.New("i18n.languages must not be empty"))
	} else if !slices.Contains(s.Languages, s.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("i18n.default_language %q is not in i18n.languages", s.DefaultLanguage))
	}
	if strings.Count(s.LangPathPattern, "%s") != 1 {
		errs = append(errs, errors.New("i18n.path_pattern must contain exactly one %s"))
	}
	if !strings.HasPrefix(s.MCPEndpoint, "/") {
		errs = append(errs, errors.New("mcp.endpoint must start with /"))
	}
	return errors.Join(errs...)
}

func isAbsURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}
