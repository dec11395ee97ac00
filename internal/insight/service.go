package insight

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lox/airquality/internal/analysis"
)

// Insight is what the page shows under Conclusions.
type Insight struct {
	Conclusions []string
	Narrative   string
}

// Service combines deterministic conclusions with an optional cached
// narrative.
type Service struct {
	generator *Generator // nil disables narratives
	cache     *Cache     // may be nil

	mu       sync.Mutex
	inflight map[string]bool
}

func NewService(generator *Generator, cache *Cache) *Service {
	return &Service{generator: generator, cache: cache, inflight: make(map[string]bool)}
}

// Summarize returns the conclusions for table. The narrative is served from
// cache when available; otherwise it is generated in the background for key
// and appears on a later call.
func (s *Service) Summarize(ctx context.Context, key string, table *analysis.Table, station string) (Insight, error) {
	facts, err := Gather(table, station)
	if err != nil {
		return Insight{}, err
	}
	in := Insight{Conclusions: Conclusions(facts)}

	if s == nil || s.generator == nil || key == "" || len(in.Conclusions) == 0 {
		return in, nil
	}
	if s.cache != nil {
		if text, ok := s.cache.Get(key); ok {
			in.Narrative = text
			return in, nil
		}
	}

	s.mu.Lock()
	if s.inflight[key] {
		s.mu.Unlock()
		return in, nil
	}
	s.inflight[key] = true
	s.mu.Unlock()

	go s.generate(context.WithoutCancel(ctx), key, in.Conclusions)
	return in, nil
}

func (s *Service) generate(ctx context.Context, key string, conclusions []string) {
	defer func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}()

	log := slog.Default().With("component", "insight", "key", key)
	text, err := s.generator.Narrate(ctx, conclusions)
	if err != nil {
		log.Error("narrative generation failed", "error", err)
		return
	}
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(key, text); err != nil {
		log.Error("cache narrative", "error", err)
	}
}
