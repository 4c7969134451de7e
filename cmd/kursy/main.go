package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/kursy/internal/api"
	"github.com/mtlprog/kursy/internal/config"
	"github.com/mtlprog/kursy/internal/database"
	"github.com/mtlprog/kursy/internal/export"
	"github.com/mtlprog/kursy/internal/fetcher"
	"github.com/mtlprog/kursy/internal/history"
	"github.com/mtlprog/kursy/internal/refresh"
	"github.com/mtlprog/kursy/internal/registry"
	"github.com/mtlprog/kursy/internal/resolver"
	"github.com/mtlprog/kursy/internal/snapshot"
	"github.com/mtlprog/kursy/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cliApp := &cli.App{
		Name:  "kursy",
		Usage: "exchange, metal, crypto and stock rates in the local currency",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the periodic refresh worker",
				Action: serve,
			},
			{
				Name:   "refresh",
				Usage:  "run one refresh cycle and print the rates as JSON",
				Action: refreshOnce,
			},
			{
				Name:  "history",
				Usage: "print or export the historical series of one asset",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "code", Usage: "asset code, e.g. EUR", Required: true},
					&cli.IntFlag{Name: "days", Usage: "window length in days (default DEFAULT_HISTORY_DAYS)"},
					&cli.StringFlag{Name: "xlsx", Usage: "write an XLSX workbook to this path instead of JSON"},
				},
				Action: printHistory,
			},
			{
				Name:   "assets",
				Usage:  "list the asset registry",
				Action: listAssets,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// app bundles the components shared by all commands.
type app struct {
	cfg     config.Config
	reg     *registry.Registry
	store   snapshot.Store
	tracker *refresh.Tracker
	history history.Source
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, reg: reg}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	client := fetcher.NewClient(cfg.FetchTimeout)
	refresher := refresh.NewService(reg, fetcher.New(client), resolver.New(resolver.ConfigFromRegistry(reg)))
	a.tracker = refresh.NewTracker(refresher, store)
	if err := a.tracker.Seed(ctx); err != nil {
		slog.Warn("failed to load last snapshot, starting without baseline", "error", err)
	}

	a.history = history.NewCachedService(history.NewService(reg, client), cfg.HistoryCacheTTL)
	return a, nil
}

// openStore picks Postgres, then Redis, then an in-process store.
func (a *app) openStore(ctx context.Context) (snapshot.Store, error) {
	switch {
	case a.cfg.DatabaseURL != "":
		pool, err := database.Connect(ctx, a.cfg.DatabaseURL, uint(a.cfg.DBConnectAttempts))
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := migrate(ctx, pool); err != nil {
			return nil, err
		}
		slog.Info("using postgres snapshot store")
		return snapshot.NewPgStore(pool), nil

	case a.cfg.RedisURL != "":
		client, err := database.ConnectRedis(ctx, a.cfg.RedisURL, uint(a.cfg.DBConnectAttempts))
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, closeRedis(client))
		slog.Info("using redis snapshot store")
		return snapshot.NewRedisStore(client), nil

	default:
		slog.Warn("DATABASE_URL and REDIS_URL not set, last snapshot will not survive restarts")
		return snapshot.NewMemoryStore(), nil
	}
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, sub); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func closeRedis(client *redis.Client) func() {
	return func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
}

// hooks builds the commit exporters enabled by configuration.
func (a *app) hooks(ctx context.Context) []refresh.Hook {
	var hooks []refresh.Hook

	if a.cfg.SheetsEnabled() {
		sw, err := export.NewSheetsWriter(ctx, a.cfg.SheetsSpreadsheetID, a.cfg.GoogleCredentialsJSON)
		if err != nil {
			slog.Error("failed to create sheets writer, sheets export disabled", "error", err)
		} else {
			hooks = append(hooks, export.NewService(a.reg.Assets(), sw))
			slog.Info("sheets export enabled", "spreadsheet", a.cfg.SheetsSpreadsheetID)
		}
	}

	if a.cfg.KafkaEnabled() {
		pub := export.NewKafkaPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		a.closers = append(a.closers, func() {
			if err := pub.Close(); err != nil {
				slog.Warn("failed to close kafka writer", "error", err)
			}
		})
		hooks = append(hooks, pub)
		slog.Info("kafka publishing enabled", "topic", a.cfg.KafkaTopic, "brokers", strings.Join(a.cfg.KafkaBrokers, ","))
	}

	return hooks
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.tracker.OnCommit(a.hooks(ctx)...)
	refreshWorker := worker.NewRefreshWorker(a.tracker, a.cfg.RefreshInterval)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		refreshWorker.Run(ctx)
	}()

	if a.cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, refresh endpoint is unprotected")
	}

	handler := api.NewHandler(a.reg, a.tracker, a.history, a.cfg.DefaultHistoryDays, a.cfg.MaxHistoryDays)
	srv := api.NewServer(a.cfg.HTTPPort, handler, a.cfg.AdminAPIKey, a.cfg.CORSOrigins)

	go func() {
		slog.Info("HTTP server listening", "port", a.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	<-workerDone

	slog.Info("shutdown complete")
	return nil
}

func refreshOnce(c *cli.Context) error {
	a, err := newApp(c.Context)
	if err != nil {
		return err
	}
	defer a.Close()

	a.tracker.OnCommit(a.hooks(c.Context)...)
	state, err := a.tracker.Run(c.Context)
	if err != nil {
		return fmt.Errorf("refreshing rates: %w", err)
	}
	return printJSON(c.App.Writer, export.BuildRateRows(a.reg.Assets(), state))
}

func printHistory(c *cli.Context) error {
	a, err := newApp(c.Context)
	if err != nil {
		return err
	}
	defer a.Close()

	code := strings.ToUpper(c.String("code"))
	days := c.Int("days")
	if days < 1 {
		days = a.cfg.DefaultHistoryDays
	}
	days = min(days, a.cfg.MaxHistoryDays)

	series, err := a.history.Series(c.Context, code, days)
	if err != nil {
		return err
	}
	if series.Empty() {
		slog.Warn("no historical data obtained", "asset", code, "days", days)
	}

	path := c.String("xlsx")
	if path == "" {
		return printJSON(c.App.Writer, series)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := export.WriteSeriesXLSX(f, series); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	slog.Info("history workbook written", "path", path, "points", len(series.Points))
	return nil
}

func listAssets(c *cli.Context) error {
	reg, err := registry.Load(config.Load().RegistryPath)
	if err != nil {
		return err
	}
	for _, asset := range reg.Assets() {
		fmt.Fprintf(c.App.Writer, "%-5s %-8s %s %s\n", asset.Code, asset.Class, asset.Glyph, asset.DisplayName)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
