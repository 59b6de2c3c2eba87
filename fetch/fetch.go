package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrFetchFailed is wrapped by every error a Fetcher returns.
var ErrFetchFailed = errors.New("fetch failed")

// Fetcher retrieves a text resource by relative path.
type Fetcher interface {
	Text(ctx context.Context, path string) (string, error)
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status: %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrFetchFailed
}

// HTTP fetches resources relative to a base URL.
type HTTP struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    *url.URL
}

func NewHTTP(logger *zap.Logger, httpClient *http.Client, baseURL string) (*HTTP, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &HTTP{
		logger:     logger,
		httpClient: httpClient,
		baseURL:    u,
	}, nil
}

// Resolve returns the absolute URL for path.
func (f *HTTP) Resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	return f.baseURL.ResolveReference(ref).String(), nil
}

func (f *HTTP) Text(ctx context.Context, path string) (string, error) {
	target, err := f.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %w", ErrFetchFailed, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %w", ErrFetchFailed, err)
	}
	f.logger.Debug("fetched", zap.String("url", target), zap.Int("bytes", len(body)))
	return string(body), nil
}

// Dir reads resources from a local directory.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Text(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	full := filepath.Join(d.root, filepath.FromSlash(path))
	if !IsSubpath(d.root, full) {
		return "", fmt.Errorf("%w: path %q escapes %s", ErrFetchFailed, path, d.root)
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return string(b), nil
}

// IsSubpath ensures child is within root, preventing path traversal.
func IsSubpath(root, child string) bool {
	absRoot, _ := filepath.Abs(root)
	absChild, _ := filepath.Abs(child)
	rel, err := filepath.Rel(absRoot, absChild)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
