package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/warp/workforce-engine/workforce"
)

// JSONLWriter appends events as JSON lines to zstd-compressed files, one
// file per simulation day: <dir>/<prefix>-day-<N>.jsonl.zst.
//
// Files are keyed by simulated time, not wall time, so a replay writes the
// same file names.
type JSONLWriter struct {
	baseDir   string
	prefix    string
	tickHours float64

	mu     sync.Mutex
	curDay int
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewJSONLWriter(baseDir, prefix string, tickHours float64) *JSONLWriter {
	return &JSONLWriter{
		baseDir:   baseDir,
		prefix:    prefix,
		tickHours: tickHours,
		curDay:    -1,
	}
}

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Publish writes every event and flushes once.
func (w *JSONLWriter) Publish(_ context.Context, events []workforce.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ev := range events {
		day := workforce.DayIndex(ev.Tick, w.tickHours)
		if day != w.curDay || w.w == nil {
			if err := w.rotateLocked(day); err != nil {
				return err
			}
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.Topic, err)
		}
		if _, err := w.w.Write(b); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if w.w == nil {
		return nil
	}
	return w.w.Flush()
}

func (w *JSONLWriter) rotateLocked(day int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.PathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curDay = day
	return nil
}

func (w *JSONLWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// PathForDay returns the file a given simulation day is written to.
func (w *JSONLWriter) PathForDay(day int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-day-%04d.jsonl.zst", w.prefix, day))
}

// Record is one decoded line of a telemetry log.
type Record struct {
	Topic   string          `json:"topic"`
	Tick    int64           `json:"tick"`
	Payload json.RawMessage `json:"payload"`
}

// ReadJSONL decodes a telemetry log file. Files written across several
// sessions hold several zstd frames; the decoder reads them back to back.
func ReadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Record
	jd := json.NewDecoder(dec)
	for {
		var r Record
		if err := jd.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, r)
	}
}

var _ Sink = (*JSONLWriter)(nil)
