package shared

import (
	"bytes"
	"encoding/json"
	"image"
	"testing"
	"time"
)

func TestDedupeWindowsKeepsFirstOccurrence(t *testing.T) {
	in := []WindowRecord{
		{Handle: 1, PID: 100, Title: "first"},
		{Handle: 2, PID: 200, Title: "other"},
		{Handle: 1, PID: 100, Title: "again"},
		{Handle: 3, PID: 100, Title: "second window"},
	}
	out := DedupeWindows(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(out))
	}
	if out[0].Title != "first" || out[1].Handle != 2 || out[2].Handle != 3 {
		t.Fatalf("unexpected order or winner: %+v", out)
	}
}

func TestPIDSet(t *testing.T) {
	set := PIDSet([]WindowRecord{{Handle: 1, PID: 100}, {Handle: 2, PID: 100}, {Handle: 3, PID: 7}})
	if len(set) != 2 {
		t.Fatalf("expected 2 pids, got %d", len(set))
	}
	if _, ok := set[7]; !ok {
		t.Fatalf("pid 7 missing from %v", set)
	}
}

func TestTrimName(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"notepad.exe", 20, "notepad.exe"},
		{"notepad.exe", 8, "notep..."},
		{"notepad.exe", 3, "not"},
	}
	for _, tc := range cases {
		if got := TrimName(tc.in, tc.max); got != tc.want {
			t.Fatalf("TrimName(%q, %d): expected %q, got %q", tc.in, tc.max, tc.want, got)
		}
	}
}

func TestFormatters(t *testing.T) {
	if got := FormatCPU(12.345); got != "12.3 %" {
		t.Fatalf("expected 12.3 %%, got %q", got)
	}
	if got := FormatMemory(1.06); got != "1.1 MB" {
		t.Fatalf("expected 1.1 MB, got %q", got)
	}
}

func TestJSONLoggerWritesArray(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLoggerWriter(&buf, false)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := []DisplayRow{
		{PID: 100, Window: 1, Name: "notepad.exe", CPUPercent: 1.5, MemoryMB: 20, Title: "Untitled", Icon: image.NewRGBA(image.Rect(0, 0, 1, 1))},
		{PID: 200, Window: 2, Name: "calc.exe"},
	}
	if err := l.WriteRows(at, rows); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := l.WriteRows(at.Add(time.Second), rows[:1]); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var decoded []struct {
		CapturedAt time.Time `json:"captured_at"`
		Rows       []struct {
			PID     int    `json:"pid"`
			Name    string `json:"name"`
			HasIcon bool   `json:"has_icon"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("journal is not a JSON array: %v\n%s", err, buf.String())
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(decoded))
	}
	if len(decoded[0].Rows) != 2 || !decoded[0].Rows[0].HasIcon || decoded[0].Rows[1].HasIcon {
		t.Fatalf("unexpected first snapshot: %+v", decoded[0])
	}
	if !decoded[0].CapturedAt.Equal(at) {
		t.Fatalf("expected captured_at %v, got %v", at, decoded[0].CapturedAt)
	}
}

func TestJSONLoggerNilIsNoop(t *testing.T) {
	var l *JSONLogger
	if err := l.WriteRows(time.Now(), nil); err != nil {
		t.Fatalf("nil logger write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil logger close: %v", err)
	}
	got, err := NewJSONLogger("", false)
	if err != nil || got != nil {
		t.Fatalf("expected nil logger for empty path, got %v err=%v", got, err)
	}
}
