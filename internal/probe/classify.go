package probe

import (
	"fmt"
	"strings"
	"time"

	"github.com/smohades/reachcheck/internal/domain"
)

const maxDetailLen = 200

// Classify maps a RawOutcome to the final three-way taxonomy. It is a total
// function: whatever the adapter produced, the caller gets a terminal
// Outcome and can finish its bookkeeping.
func Classify(item domain.WorkItem, raw RawOutcome, worker int, now time.Time) domain.Outcome {
	out := domain.Outcome{
		Worker:   worker,
		Source:   item.Source,
		DestIP:   item.DestIP,
		DestPort: item.DestPort,
		Tested:   now,
	}

	switch raw.Tag {
	case TagCompleted:
		if raw.ExitCode == 0 {
			out.Kind = domain.Success
			return out
		}
		out.Kind = domain.Failure
		out.Detail = summarize(raw.Output)
		if out.Detail == "" {
			out.Detail = fmt.Sprintf("probe exited %d", raw.ExitCode)
		}
	case TagNoPrompt:
		out.Kind = domain.Error
		out.Detail = raw.Err
	case TagSessionError:
		out.Kind = domain.Error
		out.Detail = raw.Err
	case TagTimeout:
		out.Kind = domain.Error
		out.Detail = "command timed out"
	default:
		// Adapter bug surfaced as data, never as a crash.
		out.Kind = domain.Error
		out.Detail = fmt.Sprintf("unexpected probe state %q", raw.Tag)
	}
	return out
}

// summarize reduces captured command output to a single trimmed line.
func summarize(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > maxDetailLen {
			line = line[:maxDetailLen]
		}
		return line
	}
	return ""
}
