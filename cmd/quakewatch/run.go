package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/quakewatch/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/quakewatch/internal/adapter/kafka"
	"github.com/couchcryptid/quakewatch/internal/adapter/telegram"
	"github.com/couchcryptid/quakewatch/internal/adapter/usgs"
	"github.com/couchcryptid/quakewatch/internal/adapter/yandex"
	"github.com/couchcryptid/quakewatch/internal/config"
	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/maprender"
	"github.com/couchcryptid/quakewatch/internal/observability"
	"github.com/couchcryptid/quakewatch/internal/pipeline"
	"github.com/couchcryptid/quakewatch/internal/state"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the feed on an interval and serve health endpoints",
	RunE:  runServe,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single poll cycle and exit",
	Long:  `Runs one poll cycle. The exit code is non-zero when the cycle escalated a fault.`,
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
}

// stateStore is the pipeline's dedup state plus the read-back used at startup.
type stateStore interface {
	pipeline.StateStore
	LastEvent(ctx context.Context) (string, error)
	LastMagnitude(ctx context.Context) (float64, error)
}

// app holds the wired notifier and everything that must be released on exit.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.close()

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.pipeline, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	runErr := a.pipeline.Run(ctx)
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("pipeline: %w", runErr)
	}
	a.logger.Info("shutdown complete")
	return nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.close()

	outcome, err := a.pipeline.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), outcome)
	return nil
}

// build loads configuration and wires every collaborator of the pipeline.
func build(ctx context.Context, metrics *observability.Metrics) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	a := &app{cfg: cfg, logger: logger}

	store, err := openState(ctx, cfg, a)
	if err != nil {
		a.close()
		return nil, err
	}
	logLastEvent(ctx, store, logger)

	feed := usgs.NewFeedReader(cfg.FeedURL, cfg.FeedTimeout, logger)

	detail := usgs.NewClient(cfg.DetailURL, cfg.PlacesURL, cfg.DetailTimeout, logger)
	places := usgs.NewCachedPlaceFinder(detail, cfg.PlacesCacheSize, metrics)
	enricher := usgs.NewEnricher(detail, places, logger)

	renderer := newRenderer(cfg, logger, metrics)

	publisher, err := telegram.NewPublisher(cfg.TelegramToken, cfg.TelegramChannelID, cfg.TelegramEndpoint,
		cfg.TelegramTimeout, logger, metrics)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	deps := pipeline.Deps{
		Feed:      feed,
		State:     store,
		Enricher:  enricher,
		Renderer:  renderer,
		Publisher: publisher,
	}
	if cfg.ArchiveEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		a.closers = append(a.closers, writer.Close)
		deps.Archiver = writer
		logger.Info("publication archive enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("publication archive disabled")
	}

	a.pipeline = pipeline.New(deps, pipeline.Options{
		Threshold: cfg.MagnitudeThreshold,
		Interval:  cfg.PollInterval,
	}, logger, metrics)
	return a, nil
}

func openState(ctx context.Context, cfg *config.Config, a *app) (stateStore, error) {
	switch cfg.StateBackend {
	case "redis":
		client, err := state.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("state backend: redis", "addr", cfg.RedisAddr, "prefix", cfg.RedisKeyPrefix)
		return state.NewRedisStore(client, cfg.RedisKeyPrefix), nil
	default:
		store, err := state.NewFileStore(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}
		a.logger.Info("state backend: file", "dir", cfg.StateDir)
		return store, nil
	}
}

func newRenderer(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *maprender.Renderer {
	maps := yandex.NewClient(cfg.MapAPIURL, cfg.MapMarker, cfg.MapTimeout, logger)
	return maprender.New(maps, maprender.Options{
		Span:          cfg.MapSpan,
		FontFile:      cfg.FontFile,
		FontSize:      cfg.FontSize,
		WatermarkFile: cfg.WatermarkFile,
		BaseFile:      cfg.BaseMapFile(),
		OutputFile:    cfg.MapFile(),
	}, logger, metrics)
}

func logLastEvent(ctx context.Context, store stateStore, logger *slog.Logger) {
	url, err := store.LastEvent(ctx)
	if err != nil {
		logger.Warn("read last event", "error", err)
		return
	}
	if url == "" {
		logger.Info("no event published yet")
		return
	}
	mag, err := store.LastMagnitude(ctx)
	if err != nil {
		logger.Warn("read last magnitude", "error", err)
		mag = domain.UnknownMagnitude
	}
	logger.Info("resuming after last published event", "event_url", url, "magnitude", mag)
}
