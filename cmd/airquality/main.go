package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/lox/airquality/internal/analysis"
	"github.com/lox/airquality/internal/api"
	"github.com/lox/airquality/internal/export"
	"github.com/lox/airquality/internal/ingest"
	"github.com/lox/airquality/internal/insight"
	"github.com/lox/airquality/internal/logging"
	"github.com/lox/airquality/internal/models"
	"github.com/lox/airquality/internal/store"
)

var version = "dev"

type CLI struct {
	DB       string `help:"Path to SQLite database." default:"data/airquality.db" env:"AIRQUALITY_DB"`
	Source   string `help:"Dataset location: a file path, http(s):// or ftp:// URL." env:"AIRQUALITY_SOURCE"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info" env:"LOG_LEVEL"`
	AppEnv   string `help:"Environment; prod switches to JSON logs." default:"dev" env:"APP_ENV"`

	Serve  ServeCmd  `cmd:"" default:"withargs" help:"Serve the dashboard (default)."`
	Import ImportCmd `cmd:"" help:"Import the dataset once and exit."`
	Export ExportCmd `cmd:"" help:"Write the summary workbook and exit."`
}

type ServeCmd struct {
	Addr      string `help:"HTTP listen address." default:":8080" env:"ADDR"`
	Watch     bool   `help:"Re-import when the source file changes." env:"AIRQUALITY_WATCH"`
	Reload    string `help:"Cron spec for scheduled re-imports, e.g. '@every 6h'." env:"AIRQUALITY_RELOAD"`
	ImagesDir string `help:"Directory for cached narrative summaries." default:"data/insight" env:"IMAGES_DIR"`
	Author    string `help:"Author line shown in the page header." env:"AIRQUALITY_AUTHOR"`
	OpenAIKey string `name:"openai-api-key" help:"Enables generated narrative summaries." env:"OPENAI_API_KEY"`
}

type ImportCmd struct{}

type ExportCmd struct {
	Output  string `short:"o" help:"Output path." default:"airquality.xlsx"`
	Station string `help:"Station for the weekday sheet." default:"Dongsi"`
}

// app holds the resources shared by every command.
type app struct {
	db    *sql.DB
	store *store.Store
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("airquality"),
		kong.Description("Beijing multi-site air quality dashboard."),
		kong.UsageOnError(),
	)

	level, err := logging.ParseLevel(cli.LogLevel)
	kctx.FatalIfErrorf(err)
	slog.SetDefault(logging.New(os.Stderr, cli.AppEnv, level, version))

	a, err := openApp(cli.DB)
	kctx.FatalIfErrorf(err)
	defer a.db.Close()

	if err := kctx.Run(&cli, a); err != nil {
		slog.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func openApp(path string) (*app, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := st.SeedStations(); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database ready", "path", path)
	return &app{db: db, store: st}, nil
}

func (c *ServeCmd) Run(cli *CLI, a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var generator *insight.Generator
	if c.OpenAIKey != "" {
		gen, err := insight.NewGenerator(c.OpenAIKey)
		if err != nil {
			return err
		}
		generator = gen
	} else {
		slog.Info("narrative summaries disabled, OPENAI_API_KEY not set")
	}

	server := api.NewServer(a.store, api.Options{
		Addr:    c.Addr,
		Author:  c.Author,
		Insight: insight.NewService(generator, insight.NewCache(c.ImagesDir, 0)),
	})
	if err := server.Reload(ctx); err != nil {
		return err
	}

	importer := ingest.NewImporter(a.store, nil)
	importer.OnChange(func(ctx context.Context) {
		if err := server.Reload(ctx); err != nil {
			slog.Error("reload dataset", "error", err)
		}
	})

	if cli.Source != "" {
		// A failed import keeps serving whatever was stored before.
		if _, err := importer.Import(ctx, cli.Source); err != nil {
			slog.Error("initial import failed", "source", cli.Source, "error", err)
		}
	}

	if c.Watch {
		if cli.Source == "" || ingest.Scheme(cli.Source) != "file" {
			return errors.New("--watch needs a local --source file")
		}
		w := ingest.NewWatcher(importer, cli.Source)
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("watcher stopped", "error", err)
			}
		}()
	}

	if c.Reload != "" {
		if cli.Source == "" {
			return errors.New("--reload needs --source")
		}
		sched, err := ingest.NewScheduler(importer, cli.Source, c.Reload)
		if err != nil {
			return err
		}
		go sched.Run(ctx)
	}

	return server.Run(ctx)
}

func (c *ImportCmd) Run(cli *CLI, a *app) error {
	if cli.Source == "" {
		return errors.New("--source is required")
	}
	run, err := ingest.NewImporter(a.store, nil).Import(context.Background(), cli.Source)
	if err != nil {
		return err
	}
	slog.Info("done", "rows", run.RowsStored.Int64, "skipped", run.Skipped,
		"quality_flags", run.QualityFlags.Int64)
	return nil
}

func (c *ExportCmd) Run(cli *CLI, a *app) error {
	if _, err := models.LookupStation(c.Station); err != nil {
		return err
	}
	obs, err := a.store.GetObservations(context.Background())
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}
	table, err := analysis.NewTable(obs)
	if err != nil {
		return err
	}
	if table.Len() == 0 {
		return analysis.ErrNoData
	}

	f, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Output, err)
	}
	if err := export.Write(f, table, c.Station); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c.Output, err)
	}
	slog.Info("wrote workbook", "path", c.Output, "rows", table.Len())
	return nil
}
