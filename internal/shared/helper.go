package shared

import "fmt"

func TrimName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	if max <= 3 {
		return name[:max]
	}
	return name[:max-3] + "..."
}

// FormatCPU and FormatMemory render metrics the way the inventory table
// shows them.
func FormatCPU(pct float64) string {
	return fmt.Sprintf("%.1f %%", pct)
}

func FormatMemory(mb float64) string {
	return fmt.Sprintf("%.1f MB", mb)
}
