package core

// streaming.go reads source files one row at a time.
//
// A source is wrapped so that:
//   - a UTF-8 BOM (common in Excel exports) is dropped
//   - invalid UTF-8 is replaced with U+FFFD instead of failing the parse
//   - bytes read are counted for progress reporting
//
// RowReader then yields RawRows in file order with their line numbers, so
// memory stays bounded by whatever buffer the caller chooses.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	bytesRead atomic.Int64
	Total     int64 // 0 if unknown
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *CountingReader) BytesRead() int64 {
	return r.bytesRead.Load()
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead() * 100 / r.Total)
}

// DecodeUTF8 strips a leading BOM and replaces invalid sequences.
func DecodeUTF8(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// RowReader iterates the data rows of a CSV source.
type RowReader struct {
	csv     *csv.Reader
	header  *Header
	counter *CountingReader
	line    int
}

// NewRowReader reads the header line of r and prepares row iteration.
// totalSize may be 0 when unknown.
func NewRowReader(r io.Reader, totalSize int64) (*RowReader, error) {
	counter := NewCountingReader(r, totalSize)
	cr := csv.NewReader(DecodeUTF8(counter))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	names, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("source is empty: no header line")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	return &RowReader{
		csv:     cr,
		header:  NewHeader(names),
		counter: counter,
		line:    1,
	}, nil
}

// Header returns the parsed header line.
func (r *RowReader) Header() *Header { return r.header }

// Next returns the next non-blank row. It returns io.EOF after the last row.
func (r *RowReader) Next() (RawRow, error) {
	for {
		cells, err := r.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return RawRow{}, io.EOF
			}
			return RawRow{}, fmt.Errorf("line %d: %w", r.line+1, err)
		}
		line, _ := r.csv.FieldPos(0)
		r.line = line

		row := r.header.Row(line, cells)
		if row.IsEmpty() {
			continue
		}
		return row, nil
	}
}

// BytesRead returns the bytes consumed from the underlying source.
func (r *RowReader) BytesRead() int64 { return r.counter.BytesRead() }

// SourceFile is an opened source with its row reader.
type SourceFile struct {
	*RowReader
	Path string
	Size int64
	file *os.File
}

// OpenSource opens a CSV file and reads its header.
func OpenSource(path string) (*SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	rr, err := NewRowReader(f, size)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &SourceFile{RowReader: rr, Path: path, Size: size, file: f}, nil
}

// Close releases the underlying file.
func (s *SourceFile) Close() error {
	return s.file.Close()
}
