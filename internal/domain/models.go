package domain

import (
	"fmt"
	"time"
)

// WorkerUnassigned is recorded when an outcome cannot be attributed to a
// specific worker slot.
const WorkerUnassigned = -1

// Destination is one TCP endpoint to test reachability against.
type Destination struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

func (d Destination) String() string {
	return fmt.Sprintf("%s:%d", d.IP, d.Port)
}

// WorkItem is the unit of scheduling: test reachability from Source to
// DestIP:DestPort. Immutable once enumerated; each item is probed at most
// once per run.
type WorkItem struct {
	Source   string
	DestIP   string
	DestPort int
}

// Key returns a stable identifier for logging.
func (w WorkItem) Key() string {
	return fmt.Sprintf("%s->%s:%d", w.Source, w.DestIP, w.DestPort)
}

// ResultKind is the three-way probe classification.
type ResultKind int

const (
	// Success: the TCP connect from the source to the destination succeeded.
	Success ResultKind = iota
	// Failure: the connect attempt completed but was refused or timed out at
	// the network level.
	Failure
	// Error: the check itself could not be performed.
	Error
)

// String returns the lowercase literal recorded in the result output.
func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "error"
	}
}

// Outcome is the classified result of one WorkItem. It is handed to the
// result sink and not retained by the core.
type Outcome struct {
	Worker   int
	Source   string
	DestIP   string
	DestPort int
	Kind     ResultKind
	Detail   string
	Tested   time.Time
}
