package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const sampleRecords = `{"run":1,"lumi":10,"event":100,"electrons":[{"pt":-30,"eta":0.5,"phi":1.0,"iso03":0.05,"missing_hits":0}],"muons":[]}

{"run":1,"lumi":10,"event":101,"electrons":[],"muons":[{"pt":25,"eta":-0.8,"phi":-2.0,"iso03":0.1,"hits_valid":14,"hits_pixel":3,"dist_pv0":0.01,"dist_pvz":0.1,"chi2_ndof":1.5}]}
`

func writePlain(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGzip(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.ndjson.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeZstd(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.ndjson.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func drain(t *testing.T, path string) int {
	t.Helper()
	src, err := OpenFile(path, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	count := 0
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return count
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.Run != 1 {
			t.Errorf("Run = %d, want 1", ev.Run)
		}
		count++
	}
}

func TestFileSourcePlain(t *testing.T) {
	path := writePlain(t, "events.ndjson", sampleRecords)
	if got := drain(t, path); got != 2 {
		t.Errorf("read %d events, want 2 (blank line skipped)", got)
	}
}

func TestFileSourceGzip(t *testing.T) {
	if got := drain(t, writeGzip(t, sampleRecords)); got != 2 {
		t.Errorf("read %d events, want 2", got)
	}
}

func TestFileSourceZstd(t *testing.T) {
	if got := drain(t, writeZstd(t, sampleRecords)); got != 2 {
		t.Errorf("read %d events, want 2", got)
	}
}

func TestFileSourceReportsLineOfBadRecord(t *testing.T) {
	path := writePlain(t, "bad.ndjson", `{"run":1}`+"\n"+`{not json`+"\n")
	src, err := OpenFile(path, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	if _, err := src.Next(ctx); err != nil {
		t.Fatalf("first record: %v", err)
	}
	_, err = src.Next(ctx)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q does not name the offending line", err)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "absent.ndjson"), 0); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestFileSourceHonorsContext(t *testing.T) {
	path := writePlain(t, "events.ndjson", sampleRecords)
	src, err := OpenFile(path, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next with cancelled context = %v, want context.Canceled", err)
	}
}
