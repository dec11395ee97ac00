package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler re-imports a source on a cron schedule, e.g. "@every 6h" or
// "0 3 * * *". Unchanged content is cheap: the import is skipped by hash.
type Scheduler struct {
	importer *Importer
	source   string
	spec     string
	cron     *cron.Cron
	ctx      context.Context
}

func NewScheduler(importer *Importer, source, spec string) (*Scheduler, error) {
	s := &Scheduler{
		importer: importer,
		source:   source,
		spec:     spec,
		cron:     cron.New(),
		ctx:      context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.reload); err != nil {
		return nil, fmt.Errorf("parse reload schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler: started", "spec", s.spec, "source", s.source)
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	slog.Info("scheduler: shutting down")
}

func (s *Scheduler) reload() {
	if _, err := s.importer.Import(s.ctx, s.source); err != nil {
		slog.Error("scheduler: reload failed", "source", s.source, "error", err)
	}
}
