package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/imagegen"
	"github.com/lox/airquality/internal/insight"
	"github.com/lox/airquality/internal/metrics"
	"github.com/lox/airquality/internal/models"
	"github.com/lox/airquality/internal/store"
)

// Options configures a Server.
type Options struct {
	Addr    string
	Author  string           // shown in the page header when set
	Station string           // weekday view station, defaults to Dongsi
	Insight *insight.Service // nil serves deterministic conclusions only
}

type Server struct {
	store   *store.Store
	opts    Options
	tmpl    *template.Template
	ogCache *imagegen.OGImageCache
	insight *insight.Service

	data atomic.Pointer[dataset]
}

// dataset is the immutable snapshot every request renders from. Reload
// swaps it whole.
type dataset struct {
	table    *analysis.Table
	lastRun  *models.ImportRun
	loadedAt time.Time
}

func (d *dataset) empty() bool {
	return d == nil || d.table.Len() == 0
}

// key identifies the dataset content for caches.
func (d *dataset) key() string {
	if d == nil || d.lastRun == nil || !d.lastRun.ContentHash.Valid {
		return ""
	}
	return d.lastRun.ContentHash.String
}

func NewServer(store *store.Store, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.Station == "" {
		opts.Station = models.DefaultWeekdayStation
	}
	svc := opts.Insight
	if svc == nil {
		svc = insight.NewService(nil, nil)
	}
	return &Server{
		store:   store,
		opts:    opts,
		tmpl:    newTemplates(),
		ogCache: imagegen.NewOGImageCache(5 * time.Minute),
		insight: svc,
	}
}

// Reload rebuilds the served dataset from the store. Requests in flight keep
// rendering from the previous snapshot.
func (s *Server) Reload(ctx context.Context) error {
	start := time.Now()
	obs, err := s.store.GetObservations(ctx)
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}
	table, err := analysis.NewTable(obs)
	if err != nil {
		return err
	}
	last, err := s.store.LastSuccessfulImport()
	if err != nil {
		return fmt.Errorf("last import: %w", err)
	}

	s.data.Store(&dataset{table: table, lastRun: last, loadedAt: time.Now()})
	s.ogCache.Invalidate()
	metrics.ObservationsLoaded.Set(float64(table.Len()))

	slog.Info("dataset loaded", "component", "api", "rows", table.Len(),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// current returns the served dataset, or nil if none has been loaded.
func (s *Server) current() *dataset {
	return s.data.Load()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /charts/{name}", s.handleChart)
	mux.HandleFunc("GET /og-image.png", s.handleOGImage)
	mux.HandleFunc("GET /export.xlsx", s.handleExport)

	mux.HandleFunc("GET /api/stations", s.handleAPIStations)
	mux.HandleFunc("GET /api/correlation", s.handleAPICorrelation)
	mux.HandleFunc("GET /api/weekday", s.handleAPIWeekday)
	mux.HandleFunc("GET /api/averages", s.handleAPIAverages)
	mux.HandleFunc("GET /api/heatmap", s.handleAPIHeatmap)
	mux.HandleFunc("GET /api/imports", s.handleAPIImports)
	return requestLogger(mux)
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "component", "api", "addr", s.opts.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
