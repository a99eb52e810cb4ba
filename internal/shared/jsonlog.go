package shared

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

type LogSnapshot struct {
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
	Windows    int       `json:"windows,omitempty" yaml:"windows,omitempty"`
	Rows       []LogRow  `json:"rows" yaml:"rows"`
}

// LogRow is a DisplayRow with the bitmap replaced by a presence flag.
type LogRow struct {
	DisplayRow `yaml:",inline"`
	HasIcon    bool `json:"has_icon" yaml:"has_icon"`
}

// NewLogSnapshot copies rows into their serializable form.
func NewLogSnapshot(capturedAt time.Time, rows []DisplayRow) LogSnapshot {
	snap := LogSnapshot{
		CapturedAt: capturedAt.UTC(),
		Rows:       make([]LogRow, 0, len(rows)),
	}
	for _, r := range rows {
		snap.Rows = append(snap.Rows, LogRow{DisplayRow: r, HasIcon: r.HasIcon()})
	}
	return snap
}

// JSONLogger journals refreshes as a JSON array, to a file or stdout ("-").
type JSONLogger struct {
	mu      sync.Mutex
	w       io.Writer
	closeFn func() error
	pretty  bool
	started bool
	first   bool
}

func NewJSONLogger(path string, pretty bool) (*JSONLogger, error) {
	if path == "" {
		return nil, nil
	}
	if path == "-" {
		return &JSONLogger{
			w:      os.Stdout,
			pretty: pretty,
			first:  true,
		}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	return &JSONLogger{
		w:       f,
		closeFn: f.Close,
		pretty:  pretty,
		first:   true,
	}, nil
}

// NewJSONLoggerWriter journals to w. The caller keeps ownership of w.
func NewJSONLoggerWriter(w io.Writer, pretty bool) *JSONLogger {
	return &JSONLogger{w: w, pretty: pretty, first: true}
}

// WriteRows appends one refresh to the journal. The first write opens the
// JSON array; Close terminates it.
func (l *JSONLogger) WriteRows(capturedAt time.Time, rows []DisplayRow) error {
	if l == nil || l.w == nil {
		return nil
	}

	entry := NewLogSnapshot(capturedAt, rows)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		if _, err := io.WriteString(l.w, "[\n"); err != nil {
			return err
		}
		l.started = true
	}

	if !l.first {
		if _, err := io.WriteString(l.w, ",\n"); err != nil {
			return err
		}
	}
	l.first = false

	var (
		out []byte
		err error
	)
	if l.pretty {
		out, err = json.MarshalIndent(entry, "  ", "  ")
	} else {
		out, err = json.Marshal(entry)
	}
	if err != nil {
		return err
	}

	if _, err := l.w.Write(out); err != nil {
		return err
	}
	if _, err := io.WriteString(l.w, "\n"); err != nil {
		return err
	}

	return nil
}

func (l *JSONLogger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		if _, err := io.WriteString(l.w, "]\n"); err != nil {
			return err
		}
		l.started = false
	}

	if l.closeFn != nil {
		return l.closeFn()
	}
	return nil
}
