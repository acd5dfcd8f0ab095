// Command dilepton-stream consumes lepton events from Kafka, runs the
// dilepton selection on each, publishes selected pairs, and serves live
// yield counters over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/pipeline"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/selection"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/source"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/yield"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/config"
	pkgerrors "github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/errors"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/health"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/kafka"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/logger"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/metrics"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dilepton-stream: %v\n", err)
		os.Exit(1)
	}
}

type service struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	agg       *yield.Aggregator
	publisher pipeline.PairPublisher
	store     *yield.Store // nil when postgres is unavailable
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("dilepton-stream")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := &service{
		cfg:     cfg,
		logger:  log,
		metrics: metrics.New(),
		agg:     yield.NewAggregator(),
	}
	if cfg.Job.PublishPairs {
		pub := pipeline.NewKafkaPairPublisher(cfg.Kafka)
		defer pub.Close()
		svc.publisher = pub
	}

	checker := health.NewChecker()
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Warn("postgres unavailable, yields will not be persisted", "error", err)
	} else {
		defer db.Close()
		store, err := yield.NewStore(ctx, db, log)
		if err != nil {
			return err
		}
		store.StartPeriodicSave(ctx, svc.agg, cfg.Job.SnapshotInterval)
		svc.store = store
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.DB.PingContext(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Events, svc.handleMessage)
	server := svc.httpServer(checker)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	g.Go(func() error {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})
	return g.Wait()
}

// handleMessage runs the selection over one consumed event. Invalid records
// are counted and dropped; returning an error here would block the partition.
func (s *service) handleMessage(ctx context.Context, _ []byte, value []byte) error {
	s.metrics.EventsReadTotal.WithLabelValues("kafka").Inc()
	ev, err := source.DecodeEvent(value, s.cfg.Job.MaxLeptons)
	if err != nil {
		s.logger.Warn("dropping invalid event record", "error", err)
		s.metrics.EventsInvalidTotal.Inc()
		s.agg.RecordEvent(false)
		return nil
	}
	s.agg.RecordEvent(true)
	s.metrics.LeptonMultiplicity.WithLabelValues("electron").Observe(float64(len(ev.Electrons)))
	s.metrics.LeptonMultiplicity.WithLabelValues("muon").Observe(float64(len(ev.Muons)))

	start := time.Now()
	for _, ch := range selection.Channels {
		best := selection.NewResult()
		ch.Select(ev, best)
		if !best.Valid() {
			continue
		}
		s.agg.RecordSelection(ch, best.SumPt)
		s.metrics.PairsSelectedTotal.WithLabelValues(string(ch)).Inc()
		if s.publisher != nil {
			if err := s.publisher.PublishPair(ctx, pipeline.NewPairRecord(ev, ch, best)); err != nil {
				s.logger.Warn("failed to publish pair", "event", ev.Number, "channel", ch, "error", err)
				s.metrics.PairsPublished.WithLabelValues("error").Inc()
			} else {
				s.metrics.PairsPublished.WithLabelValues("ok").Inc()
			}
		}
	}
	s.metrics.SelectionDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (s *service) httpServer(checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/yields", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.agg.Stats())
	})
	mux.HandleFunc("GET /api/v1/yields/latest", s.handleLatestYields)
	mux.HandleFunc("GET /api/v1/yields/history", s.handleYieldHistory)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

func (s *service) handleLatestYields(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, pkgerrors.New(pkgerrors.ErrStoreUnavailable,
			http.StatusServiceUnavailable, "yield persistence is disabled"))
		return
	}
	snap, err := s.store.LatestSnapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if snap == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshots captured yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *service) handleYieldHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, pkgerrors.New(pkgerrors.ErrStoreUnavailable,
			http.StatusServiceUnavailable, "yield persistence is disabled"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	snaps, err := s.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
}

func (s *service) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *service) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, pkgerrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}
