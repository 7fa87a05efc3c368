// ABOUTME: Newline-delimited JSON reader for providers that stream NDJSON
// ABOUTME: Each non-blank line is one JSON value; blank lines are skipped

package ndjson

import (
	"bufio"
	"bytes"
	"io"
)

const (
	initialBufSize = 64 * 1024
	maxLineSize    = 1024 * 1024 // 1MB max line size
)

// Reader yields raw JSON lines from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a new NDJSON reader from the given io.Reader.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, initialBufSize), maxLineSize)
	return &Reader{scanner: s}
}

// Next returns the next non-blank line. Returns nil, io.EOF when the
// stream ends. The returned slice is only valid until the next call.
func (r *Reader) Next() ([]byte, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
