package telemetry

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"appwatch/internal/shared"
)

// runWmctrl is swapped in tests.
var runWmctrl = func(args ...string) ([]byte, error) {
	out, err := exec.Command("wmctrl", args...).Output()
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("wmctrl: %w", ErrUnsupported)
	}
	return out, err
}

// parseWmctrlList reads `wmctrl -lp` output:
//
//	0x03a00003  0 1234   host Title with spaces
//
// Windows without a pid or a title are dropped.
func parseWmctrlList(out []byte) []shared.WindowRecord {
	var records []shared.WindowRecord

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		fields, rest := splitFields(line, 4)
		if len(fields) < 4 {
			continue
		}

		id, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
		if err != nil || id == 0 {
			continue
		}
		pid, err := strconv.Atoi(fields[2])
		if err != nil || pid <= 0 {
			continue
		}
		title := strings.TrimSpace(rest)
		if title == "" {
			continue
		}

		records = append(records, shared.WindowRecord{
			Handle: shared.WindowHandle(id),
			PID:    pid,
			Title:  title,
		})
	}
	return records
}

// splitFields returns the first n whitespace-separated fields of line and
// whatever follows them.
func splitFields(line string, n int) ([]string, string) {
	fields := make([]string, 0, n)
	rest := line
	for len(fields) < n {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}
		fields = append(fields, rest[:end])
		rest = rest[end:]
	}
	return fields, rest
}

func listWmctrlWindows() ([]shared.WindowRecord, error) {
	out, err := runWmctrl("-lp")
	if err != nil {
		return nil, fmt.Errorf("wmctrl -lp: %w", err)
	}
	return parseWmctrlList(out), nil
}

func closeWmctrlWindow(h shared.WindowHandle) error {
	if _, err := runWmctrl("-ic", h.String()); err != nil {
		return fmt.Errorf("wmctrl -ic %s: %w", h, err)
	}
	return nil
}

func wmctrlWindowExists(h shared.WindowHandle) bool {
	windows, err := listWmctrlWindows()
	if err != nil {
		return false
	}
	for _, w := range windows {
		if w.Handle == h {
			return true
		}
	}
	return false
}
