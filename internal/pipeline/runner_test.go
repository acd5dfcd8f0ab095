package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/selection"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/config"
	pkgerrors "github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/errors"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/metrics"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metrics.New()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// One selectable e-mu event, one unparseable record, one same-sign event.
const testRecords = `{"run":1,"lumi":2,"event":100,"electrons":[{"pt":-30,"eta":0.5,"phi":0,"iso03":0.05,"missing_hits":0}],"muons":[{"pt":25,"eta":-0.5,"phi":3.141592653589793,"iso03":0.1,"hits_valid":14,"hits_pixel":3,"dist_pv0":0.01,"dist_pvz":0.1,"chi2_ndof":1.5}]}
{not json
{"run":1,"lumi":2,"event":101,"electrons":[{"pt":-30,"eta":0.5,"phi":0,"iso03":0.05,"missing_hits":0}],"muons":[{"pt":-25,"eta":-0.5,"phi":3.141592653589793,"iso03":0.1,"hits_valid":14,"hits_pixel":3,"dist_pv0":0.01,"dist_pvz":0.1,"chi2_ndof":1.5}]}
`

type capturePublisher struct {
	mu      sync.Mutex
	records []PairRecord
}

func (c *capturePublisher) PublishPair(_ context.Context, rec PairRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func writeEventFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunnerProcessesFiles(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeEventFile(t, inDir, "events.ndjson", testRecords)

	pub := &capturePublisher{}
	cfg := config.JobConfig{
		InputGlobs:   []string{filepath.Join(inDir, "*.ndjson")},
		OutputDir:    outDir,
		Workers:      2,
		PublishPairs: true,
	}
	runner := NewRunner(cfg, testLogger(), testMetrics, WithPublisher(pub))

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Files != 1 {
		t.Errorf("Files = %d, want 1", summary.Files)
	}
	if summary.Stats.EventsRead != 3 {
		t.Errorf("EventsRead = %d, want 3", summary.Stats.EventsRead)
	}
	if summary.Stats.EventsInvalid != 1 {
		t.Errorf("EventsInvalid = %d, want 1", summary.Stats.EventsInvalid)
	}
	emu := summary.Stats.Channels[selection.ChannelEMu]
	if emu.Selected != 1 {
		t.Errorf("emu Selected = %d, want 1", emu.Selected)
	}
	if math.Abs(emu.MeanSumPt-55) > 1e-9 {
		t.Errorf("emu MeanSumPt = %v, want 55", emu.MeanSumPt)
	}

	if summary.SnapshotFile == "" {
		t.Fatal("summary has no snapshot file")
	}
	if _, err := os.Stat(filepath.Join(outDir, summary.SnapshotFile)); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "csv", "emu_sum_pt.csv")); err != nil {
		t.Errorf("csv export missing: %v", err)
	}

	if len(pub.records) != 1 {
		t.Fatalf("published %d records, want 1", len(pub.records))
	}
	rec := pub.records[0]
	if rec.Channel != selection.ChannelEMu || rec.Event != 100 {
		t.Errorf("published record = %+v, want emu pair from event 100", rec)
	}
	if math.Abs(rec.SumPt-55) > 1e-9 {
		t.Errorf("published SumPt = %v, want 55", rec.SumPt)
	}
	if math.Abs(rec.LepMinus.Pt-30) > 1e-9 || math.Abs(rec.LepPlus.Pt-25) > 1e-9 {
		t.Errorf("published kinematics = %+v / %+v", rec.LepMinus, rec.LepPlus)
	}
}

func TestRunnerMergesAcrossFiles(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeEventFile(t, inDir, "a.ndjson", testRecords)
	writeEventFile(t, inDir, "b.ndjson", testRecords)

	cfg := config.JobConfig{
		InputGlobs: []string{filepath.Join(inDir, "*.ndjson")},
		OutputDir:  outDir,
		Workers:    2,
	}
	summary, err := NewRunner(cfg, testLogger(), testMetrics).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Files != 2 {
		t.Errorf("Files = %d, want 2", summary.Files)
	}
	if summary.Stats.EventsRead != 6 {
		t.Errorf("EventsRead = %d, want 6", summary.Stats.EventsRead)
	}
	if got := summary.Stats.Channels[selection.ChannelEMu].Selected; got != 2 {
		t.Errorf("emu Selected = %d, want 2", got)
	}
}

func TestRunnerNoInput(t *testing.T) {
	cfg := config.JobConfig{
		InputGlobs: []string{filepath.Join(t.TempDir(), "*.ndjson")},
		OutputDir:  t.TempDir(),
	}
	_, err := NewRunner(cfg, testLogger(), testMetrics).Run(context.Background())
	if !errors.Is(err, pkgerrors.ErrNoInput) {
		t.Errorf("Run = %v, want ErrNoInput", err)
	}
}

func TestExpandGlobsDeduplicates(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, "a.ndjson", "")
	files, err := expandGlobs([]string{
		filepath.Join(dir, "*.ndjson"),
		filepath.Join(dir, "a.ndjson"),
	})
	if err != nil {
		t.Fatalf("expandGlobs: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expandGlobs returned %d files, want 1: %v", len(files), files)
	}
}
