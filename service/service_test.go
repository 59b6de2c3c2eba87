package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foomo/contentserver/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/foomo/portfolio-mcp/fetch"
	"github.com/foomo/portfolio-mcp/service/vo"
)

const document = `## Alpha
Description: A short pitch.
Link: https://example.com/alpha
Images:
- a1.png
- a1.mp4

## Beta
Just free text here.
more free text.
`

type stubSource struct {
	mu          sync.Mutex
	markdown    vo.Markdown
	err         error
	invalidated int
}

func (s *stubSource) Markdown(context.Context) (vo.Markdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markdown, s.err
}

func (s *stubSource) Invalidate() {
	s.mu.Lock()
	s.invalidated++
	s.mu.Unlock()
}

func (s *stubSource) set(markdown vo.Markdown, err error) {
	s.mu.Lock()
	s.markdown, s.err = markdown, err
	s.mu.Unlock()
}

func TestRender(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t), &stubSource{markdown: document})

	records, err := svc.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	result, err := svc.Render(context.Background())
	require.NoError(t, err)
	require.Equal(t, vo.RenderStateCards, result.State)
	assert.Equal(t, "Alpha", result.Cards[0].Title)
	assert.Equal(t, "Just free text here. more free text.", result.Cards[1].Description)
}

func TestRenderFailure(t *testing.T) {
	svc := NewService(nil, &stubSource{err: fetch.ErrFetchFailed})

	_, err := svc.Render(context.Background())
	assert.ErrorIs(t, err, fetch.ErrFetchFailed)
}

func TestRefreshSnapshots(t *testing.T) {
	source := &stubSource{}
	svc := NewService(zaptest.NewLogger(t), source)

	assert.Equal(t, StateLoading, svc.Snapshot().State)

	var seen []Snapshot
	svc.OnRefresh(func(s Snapshot) { seen = append(seen, s) })
	svc.OnRefresh(nil)

	source.set("", nil)
	first := svc.Refresh(context.Background())
	assert.Equal(t, StateReady, first.State)
	assert.Equal(t, vo.RenderStateEmpty, first.Result.State)
	assert.Equal(t, uint64(1), first.Seq)

	source.set("", errors.New("status 500"))
	second := svc.Refresh(context.Background())
	assert.Equal(t, StateFailed, second.State)
	assert.Equal(t, "status 500", second.Error)
	assert.Equal(t, uint64(2), second.Seq)

	source.set(document, nil)
	third := svc.Reload(context.Background())
	assert.Equal(t, StateReady, third.State)
	assert.Len(t, third.Result.Cards, 2)
	assert.Equal(t, 1, source.invalidated)

	assert.Equal(t, third, svc.Snapshot())
	require.Len(t, seen, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{seen[0].Seq, seen[1].Seq, seen[2].Seq})
}

func TestRefreshLastWriteWins(t *testing.T) {
	svc := NewService(nil, &stubSource{markdown: document})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Refresh(context.Background())
		}()
	}
	wg.Wait()

	snapshot := svc.Snapshot()
	assert.Equal(t, uint64(16), snapshot.Seq)
	assert.Equal(t, StateReady, snapshot.State)
}

func TestRefreshCancelledKeepsSnapshot(t *testing.T) {
	source := &stubSource{markdown: document}
	svc := NewService(zaptest.NewLogger(t), source)

	var refreshes atomic.Int32
	svc.OnRefresh(func(Snapshot) { refreshes.Add(1) })

	ready := svc.Refresh(context.Background())
	require.Equal(t, StateReady, ready.State)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source.set("", context.Canceled)
	assert.Equal(t, ready, svc.Refresh(ctx))
	assert.Equal(t, ready, svc.Reload(ctx))

	snapshot := svc.Snapshot()
	assert.Equal(t, StateReady, snapshot.State)
	assert.Equal(t, uint64(1), snapshot.Seq)
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestSnapshotJSON(t *testing.T) {
	svc := NewService(nil, &stubSource{markdown: document})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.(*service).now = func() time.Time { return now }

	b, err := json.Marshal(svc.Snapshot())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "updatedAt")

	snapshot := svc.Refresh(context.Background())
	require.NotNil(t, snapshot.UpdatedAt)
	b, err = json.Marshal(snapshot)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"updatedAt":"2024-01-01T12:00:00Z"`)
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := &stubSource{markdown: document}
	svc := NewService(zaptest.NewLogger(t), source)

	var refreshes atomic.Int32
	svc.OnRefresh(func(Snapshot) { refreshes.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return refreshes.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestFetchSource(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/assets/projects.md" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, document)
	}))
	defer srv.Close()

	fetcher, err := fetch.NewHTTP(zaptest.NewLogger(t), srv.Client(), srv.URL)
	require.NoError(t, err)
	source := &FetchSource{Fetcher: fetch.NewCache(fetcher, 0), Path: "assets/projects.md"}
	svc := NewService(zaptest.NewLogger(t), source)

	snapshot := svc.Refresh(context.Background())
	require.Equal(t, StateReady, snapshot.State)
	svc.Refresh(context.Background())
	assert.Equal(t, int32(1), hits.Load(), "second refresh is served from cache")

	svc.Reload(context.Background())
	assert.Equal(t, int32(2), hits.Load())

	missing := NewService(nil, &FetchSource{Fetcher: fetcher, Path: "assets/missing.md"})
	snapshot = missing.Refresh(context.Background())
	assert.Equal(t, StateFailed, snapshot.State)
	assert.ErrorIs(t, snapshot.Err, fetch.ErrFetchFailed)
	assert.Empty(t, snapshot.Result.Cards)
}

func TestScrapeSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body><main><h2>Alpha</h2><p>Description: Scraped.</p></main></body></html>`)
	}))
	defer srv.Close()

	svc := NewService(nil, &ScrapeSource{HTTPClient: srv.Client(), URL: srv.URL, Selector: "main"})
	records, err := svc.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alpha", records[0].Title)
	assert.Equal(t, "Scraped.", records[0].Description)

	failing := NewService(nil, &ScrapeSource{HTTPClient: srv.Client(), URL: srv.URL, Selector: "#nope"})
	_, err = failing.Records(context.Background())
	assert.ErrorIs(t, err, fetch.ErrFetchFailed)
}

// newContentServer fakes the content server HTTP API under /contentserver and
// serves the project pages it points to.
func newContentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /contentserver/getContent", func(w http.ResponseWriter, r *http.Request) {
		var req requests.Content
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		assert.Equal(t, []string{"de"}, req.Env.Dimensions)
		switch req.URI {
		case "/projects":
			_, _ = io.WriteString(w, `{"Reply":{"status":200,"URI":"/projects","item":{"id":"projects","URI":"/projects"}}}`)
		case "/broken":
			_, _ = io.WriteString(w, `{"Reply":{"status":200,"URI":"/broken","item":{"id":"broken","URI":"/broken"}}}`)
		case "/unresolved":
			_, _ = io.WriteString(w, `{"Reply":{"status":404,"URI":"/unresolved"}}`)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("POST /contentserver/getNodes", func(w http.ResponseWriter, r *http.Request) {
		var req requests.Nodes
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch {
		case req.Nodes["projects"] != nil:
			assert.Equal(t, []string{"application/x-project"}, req.Nodes["projects"].MimeTypes)
			_, _ = io.WriteString(w, `{"Reply":{"projects":{
				"item":{"id":"projects","URI":"/projects"},
				"index":["alpha","external","beta"],
				"nodes":{
					"alpha":{"item":{"id":"alpha","URI":"/projects/alpha"}},
					"external":{"item":{"id":"external","URI":"https://elsewhere.example"}},
					"beta":{"item":{"id":"beta","URI":"/projects/beta"}}
				}
			}}}`)
		case req.Nodes["broken"] != nil:
			_, _ = io.WriteString(w, `{"Reply":{"broken":{
				"item":{"id":"broken","URI":"/broken"},
				"index":["gone"],
				"nodes":{"gone":{"item":{"id":"gone","URI":"/projects/gone"}}}
			}}}`)
		default:
			_, _ = io.WriteString(w, `{"Reply":{}}`)
		}
	})
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><head><title>Projects</title></head><body><main><h2>Gamma</h2><p>Description: Listed directly.</p></main></body></html>`)
	})
	mux.HandleFunc("GET /projects/alpha", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html><head><title>\n  Alpha\n  Project\n</title><meta name=\"description\" content=\"A short pitch.\"></head><body><main><p>Built with Go.</p></main></body></html>")
	})
	mux.HandleFunc("GET /projects/beta", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><head><title>Beta</title></head><body><main><p>Second project.</p></main></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestContentServerSource(srv *httptest.Server, uri string, mimeTypes ...vo.MimeType) *ContentServerSource {
	return NewContentServerSource(SiteSettings{
		Env:              &requests.Env{Dimensions: []string{"de"}},
		ContentSelector:  "main",
		BaseURL:          srv.URL,
		ContentServerURL: srv.URL + "/contentserver",
		MimeTypes:        mimeTypes,
	}, srv.Client(), uri)
}

func TestContentServerSource(t *testing.T) {
	srv := newContentServer(t)

	svc := NewService(zaptest.NewLogger(t), newTestContentServerSource(srv, "/projects", "application/x-project"))
	records, err := svc.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2, "child with an external URI is skipped")

	assert.Equal(t, "Alpha Project", records[0].Title)
	assert.Equal(t, "A short pitch. Built with Go.", records[0].Description)
	assert.Equal(t, srv.URL+"/projects/alpha", records[0].Link)

	assert.Equal(t, "Beta", records[1].Title)
	assert.Equal(t, "Second project.", records[1].Description)
	assert.Equal(t, srv.URL+"/projects/beta", records[1].Link)

	page := NewService(nil, newTestContentServerSource(srv, "/projects"))
	records, err = page.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Gamma", records[0].Title)
	assert.Equal(t, "Listed directly.", records[0].Description)
}

func TestContentServerSourceFailures(t *testing.T) {
	srv := newContentServer(t)

	for name, source := range map[string]*ContentServerSource{
		"content server error": newTestContentServerSource(srv, "/failing"),
		"unresolved uri":       newTestContentServerSource(srv, "/unresolved"),
		"missing child page":   newTestContentServerSource(srv, "/broken", "application/x-project"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := source.Markdown(context.Background())
			assert.ErrorIs(t, err, fetch.ErrFetchFailed)
		})
	}
}

func TestSiteSettings(t *testing.T) {
	settings := SiteSettings{MimeTypes: []vo.MimeType{"application/x-project", "text/html"}}
	assert.Equal(t, []string{"application/x-project", "text/html"}, settings.mimeTypes())

	assert.True(t, isValidURI("/projects"))
	assert.False(t, isValidURI(""))
	assert.False(t, isValidURI("projects"))
}
