// Command dilepton runs the batch dilepton selection over local event files
// and writes histogram snapshots, CSV exports, and (optionally) yield rows
// to PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/checkpoint"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/pipeline"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/yield"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/config"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/logger"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/metrics"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/postgres"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dilepton: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	clearCheckpoints := flag.Bool("clear-checkpoints", false, "drop all file checkpoints before running")
	saveYields := flag.Bool("save-yields", false, "persist final yields to PostgreSQL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, fmt.Sprintf("job-%d", time.Now().Unix()))
	log := logger.FromContext(ctx).With("component", "dilepton")

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	var opts []pipeline.Option
	if cfg.Job.Checkpoints {
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, running without checkpoints", "error", err)
		} else {
			defer rdb.Close()
			store := checkpoint.NewStore(rdb, cfg.Redis.CheckpointTTL)
			if *clearCheckpoints {
				if err := store.Clear(ctx); err != nil {
					return err
				}
				log.Info("cleared file checkpoints")
			}
			opts = append(opts, pipeline.WithCheckpoints(store))
		}
	}
	if cfg.Job.PublishPairs {
		pub := pipeline.NewKafkaPairPublisher(cfg.Kafka)
		defer pub.Close()
		opts = append(opts, pipeline.WithPublisher(pub))
	}

	summary, err := pipeline.NewRunner(cfg.Job, log, m, opts...).Run(ctx)
	if err != nil {
		return err
	}

	if *saveYields {
		if err := persistYields(ctx, cfg, summary, log); err != nil {
			log.Warn("failed to persist yields", "error", err)
		}
	}
	return nil
}

func persistYields(ctx context.Context, cfg *config.Config, summary *pipeline.Summary, log *slog.Logger) error {
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := yield.NewStore(ctx, db, log)
	if err != nil {
		return err
	}
	return store.SaveSnapshot(ctx, summary.Stats)
}
