package probe

import (
	"strings"
	"testing"
	"time"

	"github.com/smohades/reachcheck/internal/domain"
)

var testItem = domain.WorkItem{Source: "10.1.0.5", DestIP: "10.0.0.1", DestPort: 80}

func TestClassify_AllTags(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		raw        RawOutcome
		wantKind   domain.ResultKind
		wantDetail string
	}{
		{"success", RawOutcome{Tag: TagCompleted, ExitCode: 0, Output: ""}, domain.Success, ""},
		{"refused", RawOutcome{Tag: TagCompleted, ExitCode: 1, Output: "nc: connect to 10.0.0.1 port 80 (tcp) failed: Connection refused\n"}, domain.Failure, "nc: connect to 10.0.0.1 port 80 (tcp) failed: Connection refused"},
		{"failure_no_output", RawOutcome{Tag: TagCompleted, ExitCode: 1}, domain.Failure, "probe exited 1"},
		{"no_prompt", RawOutcome{Tag: TagNoPrompt, Err: "no shell prompt within 7s"}, domain.Error, "no shell prompt within 7s"},
		{"session_error", RawOutcome{Tag: TagSessionError, Err: "dial tcp: connection refused"}, domain.Error, "dial tcp: connection refused"},
		{"timeout", RawOutcome{Tag: TagTimeout}, domain.Error, "command timed out"},
		{"unknown_tag", RawOutcome{Tag: RawTag("exploded")}, domain.Error, `unexpected probe state "exploded"`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := Classify(testItem, c.raw, 3, now)
			if out.Kind != c.wantKind {
				t.Fatalf("kind=%v want %v", out.Kind, c.wantKind)
			}
			if out.Detail != c.wantDetail {
				t.Fatalf("detail=%q want %q", out.Detail, c.wantDetail)
			}
			if out.Source != testItem.Source || out.DestIP != testItem.DestIP || out.DestPort != testItem.DestPort {
				t.Fatalf("item fields lost: %+v", out)
			}
			if out.Worker != 3 || !out.Tested.Equal(now) {
				t.Fatalf("worker/timestamp wrong: %+v", out)
			}
		})
	}
}

func TestSummarize_PicksFirstNonEmptyLineAndTruncates(t *testing.T) {
	if got := summarize("\n  \nfirst real line\nsecond line\n"); got != "first real line" {
		t.Fatalf("summarize picked %q", got)
	}
	long := strings.Repeat("x", 500)
	if got := summarize(long); len(got) != maxDetailLen {
		t.Fatalf("want %d chars, got %d", maxDetailLen, len(got))
	}
	if got := summarize("   \n\t\n"); got != "" {
		t.Fatalf("want empty summary, got %q", got)
	}
}
