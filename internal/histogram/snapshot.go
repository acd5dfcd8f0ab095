package histogram

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/errors"
)

// MagicBytes identifies a valid .tth histogram snapshot file.
const (
	MagicBytes    uint32 = 0x54544448
	FormatVersion uint32 = 1
	HeaderSize    int    = 40
	FooterSize    int    = 8
)

// snapshotHeader is the fixed-size header at the start of every snapshot.
type snapshotHeader struct {
	Magic       uint32
	Version     uint32
	HistCount   uint32
	CreatedAt   int64
	IndexOffset int64
	IndexSize   int64
}

// indexEntry locates one histogram's JSON block inside the snapshot body.
type indexEntry struct {
	Name   string `json:"n"`
	Offset int64  `json:"o"`
	Len    int    `json:"l"`
}

// WriteSnapshot atomically writes all histograms of a book into a new
// snapshot file under dataDir and returns the file name. It writes to a
// .tmp file first and renames on success.
func WriteSnapshot(dataDir string, book *Book) (string, error) {
	hists := book.Histograms()
	if len(hists) == 0 {
		return "", fmt.Errorf("cannot write empty snapshot")
	}
	name := fmt.Sprintf("hist_%d.tth", time.Now().UnixNano())
	finalPath := filepath.Join(dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(hists)))
	binary.LittleEndian.PutUint64(header[12:20], uint64(time.Now().Unix()))
	if _, err := f.Write(header); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	bodyStart := int64(HeaderSize)
	offset := bodyStart
	index := make([]indexEntry, 0, len(hists))
	for _, h := range hists {
		block, err := json.Marshal(h)
		if err != nil {
			return "", fmt.Errorf("marshaling histogram %q: %w", h.Name, err)
		}
		if _, err := f.Write(block); err != nil {
			return "", fmt.Errorf("writing histogram %q: %w", h.Name, err)
		}
		index = append(index, indexEntry{Name: h.Name, Offset: offset - bodyStart, Len: len(block)})
		offset += int64(len(block))
	}

	indexData, err := json.Marshal(index)
	if err != nil {
		return "", fmt.Errorf("marshaling index: %w", err)
	}
	if _, err := f.Write(indexData); err != nil {
		return "", fmt.Errorf("writing index: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(indexData))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(hists)))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	binary.LittleEndian.PutUint64(header[20:28], uint64(offset))
	binary.LittleEndian.PutUint64(header[28:36], uint64(len(indexData)))
	if _, err := f.WriteAt(header, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming snapshot file: %w", err)
	}
	return name, nil
}

// Reader provides random access to the histograms stored in one snapshot.
type Reader struct {
	file     *os.File
	filePath string
	header   snapshotHeader
	index    []indexEntry
	bodyBase int64
}

// OpenReader opens a snapshot file, verifies the magic bytes, version, and
// index checksum, and loads the index into memory.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	header := snapshotHeader{
		Magic:       binary.LittleEndian.Uint32(headerBytes[0:4]),
		Version:     binary.LittleEndian.Uint32(headerBytes[4:8]),
		HistCount:   binary.LittleEndian.Uint32(headerBytes[8:12]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(headerBytes[12:20])),
		IndexOffset: int64(binary.LittleEndian.Uint64(headerBytes[20:28])),
		IndexSize:   int64(binary.LittleEndian.Uint64(headerBytes[28:36])),
	}
	if header.Magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("%w: bad magic bytes %x", pkgerrors.ErrSnapshotCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}
	indexBytes := make([]byte, header.IndexSize)
	if _, err := f.ReadAt(indexBytes, header.IndexOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading index: %w", err)
	}
	footerBytes := make([]byte, FooterSize)
	if _, err := f.ReadAt(footerBytes, header.IndexOffset+header.IndexSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if got := binary.LittleEndian.Uint32(footerBytes[0:4]); got != crc32.ChecksumIEEE(indexBytes) {
		f.Close()
		return nil, fmt.Errorf("%w: index checksum mismatch", pkgerrors.ErrSnapshotCorrupt)
	}
	var index []indexEntry
	if err := json.Unmarshal(indexBytes, &index); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: parsing index: %v", pkgerrors.ErrSnapshotCorrupt, err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		index:    index,
		bodyBase: int64(HeaderSize),
	}, nil
}

// Histogram loads the named histogram from the snapshot. Returns nil, nil
// when the name is not present.
func (r *Reader) Histogram(name string) (*H1D, error) {
	for _, entry := range r.index {
		if entry.Name != name {
			continue
		}
		block := make([]byte, entry.Len)
		if _, err := r.file.ReadAt(block, r.bodyBase+entry.Offset); err != nil {
			return nil, fmt.Errorf("reading histogram %q: %w", name, err)
		}
		var h H1D
		if err := json.Unmarshal(block, &h); err != nil {
			return nil, fmt.Errorf("parsing histogram %q: %w", name, err)
		}
		return &h, nil
	}
	return nil, nil
}

// Names returns the histogram names stored in the snapshot.
func (r *Reader) Names() []string {
	names := make([]string, len(r.index))
	for i, entry := range r.index {
		names[i] = entry.Name
	}
	return names
}

// CreatedAt returns the snapshot creation time.
func (r *Reader) CreatedAt() time.Time {
	return time.Unix(r.header.CreatedAt, 0)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
