package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"appwatch/internal/shared"

	"gopkg.in/yaml.v3"
)

func writeSnapshot(w io.Writer, format string, snap shared.LogSnapshot) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeTable(w, snap)
	}
}

func writeTable(w io.Writer, snap shared.LogSnapshot) error {
	if len(snap.Rows) == 0 {
		_, err := fmt.Fprintln(w, "no windows matching filter")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCPU\tRAM\tPID\tWINDOW\tTITLE")
	for _, r := range snap.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Name,
			shared.FormatCPU(r.CPUPercent),
			shared.FormatMemory(r.MemoryMB),
			r.PID,
			r.Window,
			r.Title,
		)
	}
	return tw.Flush()
}
