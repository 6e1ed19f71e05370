package core

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "invalid byte replaced",
			input:    []byte{'a', 0xFF, 'b'},
			expected: "a�b",
		},
		{
			name:     "multibyte preserved",
			input:    []byte("Société Générale"),
			expected: "Société Générale",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(DecodeUTF8(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	data := strings.Repeat("x", 200)
	cr := NewCountingReader(strings.NewReader(data), 400)

	if _, err := io.ReadAll(cr); err != nil {
		t.Fatal(err)
	}
	if cr.BytesRead() != 200 {
		t.Errorf("BytesRead() = %d, want 200", cr.BytesRead())
	}
	if cr.Progress() != 50 {
		t.Errorf("Progress() = %d, want 50", cr.Progress())
	}
	if NewCountingReader(strings.NewReader(""), 0).Progress() != 0 {
		t.Error("Progress() with unknown total should be 0")
	}
}

func TestRowReader(t *testing.T) {
	input := "\xEF\xBB\xBFName,HQ Country\n" +
		"Acme,DE\n" +
		"\n" +
		",\n" +
		"\"Multi\nLine Co\",FR\n" +
		"Short\n" +
		"Beta,US,extra\n"

	rr, err := NewRowReader(strings.NewReader(input), int64(len(input)))
	if err != nil {
		t.Fatalf("NewRowReader: %v", err)
	}
	if got := rr.Header().Names(); got[0] != "Name" {
		t.Errorf("BOM not stripped from header: %q", got[0])
	}

	type want struct {
		line    int
		name    string
		country string
		hasCtry bool
	}
	wants := []want{
		{2, "Acme", "DE", true},
		{5, "Multi\nLine Co", "FR", true},
		{7, "Short", "", false},
		{8, "Beta", "US", true},
	}

	for i, w := range wants {
		row, err := rr.Next()
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if row.Line != w.line {
			t.Errorf("row %d line = %d, want %d", i, row.Line, w.line)
		}
		if row.Value("name") != w.name {
			t.Errorf("row %d name = %q, want %q", i, row.Value("name"), w.name)
		}
		c, ok := row.Lookup("hq_country")
		if ok != w.hasCtry || c != w.country {
			t.Errorf("row %d hq_country = %q, %v; want %q, %v", i, c, ok, w.country, w.hasCtry)
		}
	}

	if _, err := rr.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("after last row: err = %v, want io.EOF", err)
	}
	if rr.BytesRead() != int64(len(input)) {
		t.Errorf("BytesRead() = %d, want %d", rr.BytesRead(), len(input))
	}
}

func TestRowReader_EmptySource(t *testing.T) {
	if _, err := NewRowReader(strings.NewReader(""), 0); err == nil {
		t.Fatal("expected error for empty source")
	}
}

// failingReader returns its data once and then a read error.
type failingReader struct {
	data []byte
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("disk unplugged")
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestRowReader_ReadError(t *testing.T) {
	rr, err := NewRowReader(&failingReader{data: []byte("name,lei\nAcme,L1\n")}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rr.Next(); err != nil {
		t.Fatalf("first row: %v", err)
	}
	_, err = rr.Next()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companies.csv")
	content := "name,lei\nAcme,L1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	if src.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", src.Size, len(content))
	}
	if !src.Header().Has("lei") {
		t.Error("header should contain lei")
	}

	if _, err := OpenSource(filepath.Join(dir, "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}
}
