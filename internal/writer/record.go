// internal/writer/record.go
package writer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/coffeye/xpod/internal/opc"
	"github.com/coffeye/xpod/internal/poller"
)

// RecordSink appends one delimited text record per reading.
type RecordSink struct {
	mu       sync.Mutex
	w        *bufio.Writer
	c        io.Closer
	withBins bool
}

// OpenRecordSink opens path for appending and writes the column header when
// the file is new or empty.
func OpenRecordSink(path string, withBins bool) (*RecordSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("writer: open record %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("writer: stat record %s: %w", path, err)
	}

	s := newRecordSink(f, f, withBins)
	if fi.Size() == 0 {
		if err := s.writeLine("timestamp,device_id," + opc.RecordHeader(withBins)); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

func newRecordSink(w io.Writer, c io.Closer, withBins bool) *RecordSink {
	return &RecordSink{w: bufio.NewWriter(w), c: c, withBins: withBins}
}

func (s *RecordSink) Name() string { return "record" }

// Write skips failed cycles.
func (s *RecordSink) Write(_ context.Context, res poller.PollResult) error {
	if res.Err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line := res.At.UTC().Format(time.RFC3339) + "," + res.UnitID + "," +
		opc.FormatRecord(res.Reading, s.withBins)
	return s.writeLine(line)
}

func (s *RecordSink) writeLine(line string) error {
	if _, err := s.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return s.w.Flush()
}

// Close flushes and closes the file.
func (s *RecordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Flush(); err != nil {
		_ = s.c.Close()
		return err
	}
	return s.c.Close()
}
