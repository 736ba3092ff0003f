// Package probe runs a TCP reachability check on a remote source host and
// classifies what came back.
//
// The adapter never returns a Go error to the caller: every failure mode is a
// tagged RawOutcome, so the scheduler can always obtain a terminal result for
// bookkeeping. Classify is the total mapping from RawOutcome to the three-way
// result taxonomy.
package probe

import (
	"context"

	"github.com/smohades/reachcheck/internal/domain"
)

// RawTag labels the unclassified result of one probe attempt.
type RawTag string

const (
	// TagCompleted: the probe command ran to completion; ExitCode and Output
	// are meaningful.
	TagCompleted RawTag = "completed"
	// TagSessionError: the SSH session could not be established, or the
	// transport failed mid-command.
	TagSessionError RawTag = "session_error"
	// TagNoPrompt: the session opened but no usable shell surfaced within the
	// prompt budget.
	TagNoPrompt RawTag = "no_prompt"
	// TagTimeout: the probe command itself did not finish in time.
	TagTimeout RawTag = "timeout"
)

// RawOutcome is the unclassified result returned by the remote session layer.
type RawOutcome struct {
	Tag      RawTag
	ExitCode int
	Output   string
	Err      string
}

// Prober executes one work item's reachability check from its source host.
type Prober interface {
	Probe(ctx context.Context, item domain.WorkItem) RawOutcome
}
