// Command eventgen produces synthetic lepton-event records for exercising
// the selection pipeline without real detector data. Events go to an NDJSON
// file (optionally gzip-compressed) or to the Kafka events topic.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/config"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/kafka"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "eventgen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	out := flag.String("out", "events.ndjson", "output file (.gz for gzip); empty publishes to Kafka")
	count := flag.Int("events", 10000, "number of events to generate")
	runNumber := flag.Uint64("run", 160431, "run number stamped on every event")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("eventgen")

	gen := newGenerator(*runNumber, rand.New(rand.NewSource(*seed)))
	if *out == "" {
		return publishEvents(cfg, gen, *count)
	}

	if err := writeEvents(*out, gen, *count); err != nil {
		return err
	}
	log.Info("wrote synthetic events", "path", *out, "events", *count)
	return nil
}

func writeEvents(path string, gen *generator, count int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	var w *bufio.Writer
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(f)
		defer zw.Close()
		w = bufio.NewWriter(zw)
	} else {
		w = bufio.NewWriter(f)
	}
	defer w.Flush()

	enc := json.NewEncoder(w)
	for i := 0; i < count; i++ {
		if err := enc.Encode(gen.next()); err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
	}
	return nil
}

func publishEvents(cfg *config.Config, gen *generator, count int) error {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Events)
	defer producer.Close()

	ctx := context.Background()
	batch := make([]kafka.Message, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		msgs := make([]kafka.Message, len(batch))
		copy(msgs, batch)
		batch = batch[:0]
		return producer.PublishBatch(ctx, msgs)
	}

	for i := 0; i < count; i++ {
		ev := gen.next()
		batch = append(batch, kafka.Message{
			Key:   fmt.Sprintf("%d:%d", ev.Run, ev.Number),
			Value: ev,
		})
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

type generator struct {
	run     uint64
	counter uint64
	rng     *rand.Rand
}

func newGenerator(run uint64, rng *rand.Rand) *generator {
	return &generator{run: run, rng: rng}
}

// next produces one event. Multiplicities are low like real data, and a
// fraction of candidates intentionally fail isolation or track-quality cuts
// so the selection has something to reject.
func (g *generator) next() *event.Event {
	g.counter++
	ev := &event.Event{
		Run:       g.run,
		Lumi:      1 + g.counter/1000,
		Number:    g.counter,
		Electrons: []event.Electron{},
		Muons:     []event.Muon{},
	}
	for i := 0; i < g.multiplicity(); i++ {
		ev.Electrons = append(ev.Electrons, g.electron())
	}
	for i := 0; i < g.multiplicity(); i++ {
		ev.Muons = append(ev.Muons, g.muon())
	}
	return ev
}

func (g *generator) multiplicity() int {
	r := g.rng.Float64()
	switch {
	case r < 0.35:
		return 0
	case r < 0.75:
		return 1
	case r < 0.95:
		return 2
	default:
		return 3
	}
}

func (g *generator) signedPt() float64 {
	// Falling spectrum starting near threshold so cuts bite.
	pt := 15 + g.rng.ExpFloat64()*25
	if g.rng.Intn(2) == 0 {
		return -pt
	}
	return pt
}

func (g *generator) eta() float64 {
	return g.rng.Float64()*5.2 - 2.6
}

func (g *generator) phi() float64 {
	return g.rng.Float64()*2*math.Pi - math.Pi
}

func (g *generator) iso() float64 {
	return g.rng.ExpFloat64() * 0.12
}

func (g *generator) electron() event.Electron {
	el := event.Electron{
		Pt:    g.signedPt(),
		Eta:   g.eta(),
		Phi:   g.phi(),
		Iso03: g.iso(),
	}
	if g.rng.Float64() < 0.05 {
		el.MissingHits = 1 + g.rng.Intn(2)
	}
	return el
}

func (g *generator) muon() event.Muon {
	mu := event.Muon{
		Pt:            g.signedPt(),
		Eta:           g.eta(),
		Phi:           g.phi(),
		Iso03:         g.iso(),
		HitsValid:     10 + g.rng.Intn(10),
		HitsPixel:     1 + g.rng.Intn(4),
		DistPV0:       g.rng.ExpFloat64() * 0.01,
		DistPVz:       g.rng.ExpFloat64() * 0.2,
		TrackChi2NDOF: g.rng.ExpFloat64() * 4,
	}
	return mu
}
