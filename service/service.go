package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foomo/portfolio-mcp/projects"
	"github.com/foomo/portfolio-mcp/service/vo"
)

type Service interface {
	// Records fetches and parses the projects document.
	Records(ctx context.Context) ([]vo.ProjectRecord, error)
	// Render fetches, parses and renders the projects document.
	Render(ctx context.Context) (vo.RenderResult, error)
	// Refresh renders and stores the result as the current snapshot. When ctx
	// is done before the render completes the current snapshot is kept.
	Refresh(ctx context.Context) Snapshot
	// Reload drops cached source text before refreshing.
	Reload(ctx context.Context) Snapshot
	Snapshot() Snapshot
	OnRefresh(handler func(Snapshot))
	// Run refreshes now and then every interval until ctx is done.
	Run(ctx context.Context, interval time.Duration) error
}

type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Snapshot is the outcome of the most recently completed refresh.
type Snapshot struct {
	State     State           `json:"state"`
	Result    vo.RenderResult `json:"result"`
	Err       error           `json:"-"`
	Error     string          `json:"error,omitempty"`
	Seq       uint64          `json:"seq"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

type service struct {
	logger *zap.Logger
	source Source
	now    func() time.Time

	mu       sync.RWMutex
	snapshot Snapshot
	handlers []func(Snapshot)
}

func NewService(logger *zap.Logger, source Source) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		logger:   logger,
		source:   source,
		now:      time.Now,
		snapshot: Snapshot{State: StateLoading},
	}
}

func (s *service) Records(ctx context.Context) ([]vo.ProjectRecord, error) {
	markdown, err := s.source.Markdown(ctx)
	if err != nil {
		return nil, err
	}
	return projects.Parse(string(markdown)), nil
}

func (s *service) Render(ctx context.Context) (vo.RenderResult, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return vo.RenderResult{}, err
	}
	return projects.RenderList(records), nil
}

func (s *service) Refresh(ctx context.Context) Snapshot {
	result, err := s.Render(ctx)
	if ctx.Err() != nil {
		s.logger.Debug("refresh abandoned", zap.Error(ctx.Err()))
		return s.Snapshot()
	}

	next := Snapshot{State: StateReady, Result: result}
	if err != nil {
		s.logger.Error("unable to load projects", zap.Error(err))
		next = Snapshot{State: StateFailed, Err: err, Error: err.Error()}
	} else {
		s.logger.Debug("projects refreshed", zap.Int("cards", len(result.Cards)))
	}

	s.mu.Lock()
	next.Seq = s.snapshot.Seq + 1
	updatedAt := s.now()
	next.UpdatedAt = &updatedAt
	s.snapshot = next
	handlers := append([]func(Snapshot){}, s.handlers...)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(next)
	}
	return next
}

func (s *service) Reload(ctx context.Context) Snapshot {
	if inv, ok := s.source.(invalidator); ok {
		inv.Invalidate()
	}
	return s.Refresh(ctx)
}

func (s *service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *service) OnRefresh(handler func(Snapshot)) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

func (s *service) Run(ctx context.Context, interval time.Duration) error {
	s.Reload(ctx)
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Reload(ctx)
		}
	}
}
