// Package telemetry implements the OS capabilities the inventory and the
// termination controller depend on: window enumeration and control, process
// metrics handles, icon extraction and forced termination.
package telemetry

import (
	"io"
	"log"

	"appwatch/internal/iconcache"
	"appwatch/internal/registry"
)

// Desktop is the live OS session. The zero value is not usable; call
// NewDesktop.
type Desktop struct {
	logger *log.Logger
}

func NewDesktop(logger *log.Logger) *Desktop {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Desktop{logger: logger}
}

var (
	_ registry.Opener    = (*Desktop)(nil)
	_ iconcache.Resolver = (*Desktop)(nil)
)

const bytesPerMB = 1024 * 1024
