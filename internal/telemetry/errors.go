package telemetry

import "errors"

var (
	// ErrProcessGone means the process exited between two calls.
	ErrProcessGone = errors.New("process no longer running")
	// ErrAccessDenied means the OS refused to open or query the process.
	ErrAccessDenied = errors.New("access denied")
	// ErrStaleHandle means a window or process handle is no longer valid.
	ErrStaleHandle = errors.New("stale handle")
	// ErrUnsupported means the platform lacks the capability.
	ErrUnsupported = errors.New("not supported on this platform")
)
