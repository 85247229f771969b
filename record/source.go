package record

import (
	"bufio"
	"io"
	"strings"
)

// LineSource yields one Raw record per non-blank input line, assigning
// monotonically increasing sequence numbers in arrival order.
type LineSource struct {
	scanner *bufio.Scanner
	next    uint64
}

// NewLineSource wraps a reader of newline-delimited records.
func NewLineSource(r io.Reader) *LineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &LineSource{scanner: scanner}
}

// Next returns the next record or io.EOF when the stream is exhausted.
func (s *LineSource) Next() (Raw, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		raw := Raw{Seq: s.next, Data: []byte(line)}
		s.next++
		return raw, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Raw{}, err
	}
	return Raw{}, io.EOF
}
