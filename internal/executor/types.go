// Package executor launches prepared scripts as child processes with
// bounded output capture, resource sampling, timeout enforcement, and
// cooperative cancellation.
package executor

import "time"

// ErrorKind classifies a non-success result. Empty means clean exit.
type ErrorKind string

const (
	ErrNone        ErrorKind = ""
	ErrNonZeroExit ErrorKind = "nonZeroExit"
	ErrTimedOut    ErrorKind = "timedOut"
	ErrCancelled   ErrorKind = "cancelled"
	ErrSpawnFailed ErrorKind = "spawnFailed"
)

// Prepared is a fully-resolved execution request.
type Prepared struct {
	Platform        string
	Script          string
	InterpreterArgs []string
	WorkingDir      string
	Env             map[string]string
	TimeoutSeconds  int

	ResourceSampleInterval time.Duration
	GracePeriod            time.Duration
	MaxCapturedBytes       int

	// Cancel requests cooperative termination when closed.
	Cancel <-chan struct{}
}

// Metrics carries execution telemetry. Pointer fields are nil when the
// OS does not expose the counter, never zero.
type Metrics struct {
	WallTimeMs      int64    `json:"wallTimeMs"`
	PeakMemoryBytes *int64   `json:"peakMemoryBytes,omitempty"`
	CPUPercentPeak  *float64 `json:"cpuPercentPeak,omitempty"`
	IOBytesRead     *int64   `json:"ioBytesRead,omitempty"`
	IOBytesWritten  *int64   `json:"ioBytesWritten,omitempty"`
}

// Result is the outcome of a run. Script-level failures (non-zero exit,
// timeout, cancel) are results, not errors; only infrastructure
// failures surface as Go errors from Run.
type Result struct {
	ExitCode        int       `json:"exitCode"`
	Stdout          string    `json:"stdout"`
	Stderr          string    `json:"stderr"`
	ErrorKind       ErrorKind `json:"errorKind,omitempty"`
	StdoutTruncated int64     `json:"stdoutTruncatedBytes,omitempty"`
	StderrTruncated int64     `json:"stderrTruncatedBytes,omitempty"`
	Metrics         Metrics   `json:"metrics"`
}

// defaults applied by Run when Prepared leaves fields zero.
const (
	defaultTimeoutSeconds   = 30
	defaultGracePeriod      = 5 * time.Second
	defaultSampleInterval   = 250 * time.Millisecond
	defaultMaxCapturedBytes = 1 << 20 // 1 MiB per stream
)
