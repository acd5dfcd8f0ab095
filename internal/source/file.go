package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
)

// maxLineBytes bounds a single NDJSON record. Even a pile-up event with the
// multiplicity cap maxed out stays far below this.
const maxLineBytes = 4 << 20

// FileSource streams events from an NDJSON file, decompressing .gz and .zst
// inputs transparently. It is not safe for concurrent use; the pipeline
// opens one FileSource per worker.
type FileSource struct {
	path       string
	file       *os.File
	decomp     io.Closer
	scanner    *bufio.Scanner
	maxLeptons int
	line       int
}

// OpenFile opens an event file for streaming. maxLeptons <= 0 selects
// DefaultMaxLeptons.
func OpenFile(path string, maxLeptons int) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event file: %w", err)
	}

	var r io.Reader = f
	var decomp io.Closer
	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		r, decomp = zr, zr
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening zstd stream %s: %w", path, err)
		}
		rc := zr.IOReadCloser()
		r, decomp = rc, rc
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &FileSource{
		path:       path,
		file:       f,
		decomp:     decomp,
		scanner:    scanner,
		maxLeptons: maxLeptons,
	}, nil
}

// Next returns the next event record, io.EOF at end of file, or an error
// for unreadable or invalid records. Blank lines are skipped.
func (s *FileSource) Next(ctx context.Context) (*event.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", s.path, err)
			}
			return nil, io.EOF
		}
		s.line++
		data := s.scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		ev, err := DecodeEvent(data, s.maxLeptons)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, s.line, err)
		}
		return ev, nil
	}
}

// Path returns the file path this source reads from.
func (s *FileSource) Path() string {
	return s.path
}

// Close releases the decompressor (if any) and the underlying file.
func (s *FileSource) Close() error {
	if s.decomp != nil {
		if err := s.decomp.Close(); err != nil {
			s.file.Close()
			return fmt.Errorf("closing decompressor for %s: %w", s.path, err)
		}
	}
	return s.file.Close()
}
