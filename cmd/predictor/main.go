package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/namyrrep/MLSportsBetting/internal/agent"
	"github.com/namyrrep/MLSportsBetting/internal/cfg"
	"github.com/namyrrep/MLSportsBetting/internal/collector"
	"github.com/namyrrep/MLSportsBetting/internal/metrics"
	"github.com/namyrrep/MLSportsBetting/internal/storage"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	mode := flag.String("mode", "status", "operation: collect|train|tune|predict|update|backtest|status")
	season := flag.Int("season", time.Now().Year(), "NFL season year")
	week := flag.Int("week", 0, "week number (predict mode; 0 = next unresolved week)")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(settings.DataPath, 0o755); err != nil {
		log.Fatal().Err(err).Msg("data path unavailable")
	}
	store, err := storage.New(settings.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage open failed")
	}
	defer store.Close()

	m := metrics.New()
	startMetricsServer(ctx, settings)

	source := collector.New(settings.ESPNBaseURL, settings.RESTTimeout)
	a := agent.New(settings, store, source, m)
	if n := a.LoadModels(); n > 0 {
		log.Info().Int("models", n).Msg("restored model snapshots")
	}

	if err := run(ctx, a, store, *mode, *season, *week); err != nil {
		log.Fatal().Err(err).Str("mode", *mode).Msg("run failed")
	}
}

func run(ctx context.Context, a *agent.Agent, store *storage.Store, mode string, season, week int) error {
	switch mode {
	case "collect":
		n, err := a.CollectSeason(ctx, season)
		if err != nil {
			return err
		}
		summary, err := store.CoverageSummary(season)
		if err != nil {
			return err
		}
		log.Info().Int("stored", n).Int("total", summary.TotalGames).
			Float64("completion", summary.CompletionRate).Msg("collection complete")
		return nil

	case "train":
		results, err := a.Train(ctx)
		if err != nil {
			return err
		}
		for name, mm := range results {
			log.Info().Str("model", name).
				Float64("accuracy", mm.Accuracy).
				Float64("f1", mm.F1).
				Float64("roc_auc", mm.ROCAUC).
				Msg("holdout metrics")
		}
		return nil

	case "tune":
		results, err := a.Tune(ctx)
		for name, tr := range results {
			log.Info().Str("model", name).
				Float64("cv_accuracy", tr.CVAccuracy).
				Int("candidates", tr.Candidates).
				Msg("tuned")
		}
		return err

	case "predict":
		if week == 0 {
			target, err := store.CurrentTarget()
			if err != nil {
				return err
			}
			if target == nil {
				return fmt.Errorf("no unresolved games stored; run -mode collect first")
			}
			season, week = target.Season, target.Week
		}
		predictions, err := a.PredictWeek(ctx, season, week)
		if err != nil {
			return err
		}
		for _, p := range predictions {
			log.Info().Str("game", p.GameID).
				Str("winner", p.PredictedWinner).
				Float64("probability", p.WinProbability).
				Float64("confidence", p.ConfidenceScore).
				Bool("fallback", p.Fallback).
				Msg("prediction")
		}
		return nil

	case "update":
		n, err := a.UpdateResults(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("reconciled", n).Msg("update complete")
		return nil

	case "backtest":
		result, err := a.Backtest(ctx, season)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil

	case "status":
		summary, err := a.PerformanceSummary()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func startMetricsServer(ctx context.Context, settings cfg.Settings) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", settings.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
