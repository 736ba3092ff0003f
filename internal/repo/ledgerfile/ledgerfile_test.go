package ledgerfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLedger_LoadMissingFileIsEmpty(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "tested.txt"))
	defer l.Close()

	set, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("want empty set, got %v", set)
	}
}

func TestLedger_MarkPersistsAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tested.txt")
	l := Open(path)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx := context.Background()
	if err := l.MarkComplete(ctx, "10.1.0.5"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if err := l.MarkComplete(ctx, "10.1.0.5"); err != nil {
		t.Fatalf("MarkComplete repeat: %v", err)
	}
	if err := l.MarkComplete(ctx, "10.1.0.6"); err != nil {
		t.Fatalf("MarkComplete second: %v", err)
	}
	if !l.IsComplete("10.1.0.5") || !l.IsComplete("10.1.0.6") {
		t.Fatalf("sources not marked in memory")
	}
	if l.IsComplete("10.1.0.7") {
		t.Fatalf("unmarked source reported complete")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 || lines[0] != "10.1.0.5" || lines[1] != "10.1.0.6" {
		t.Fatalf("unexpected ledger contents: %q", string(b))
	}
}

func TestLedger_ReloadSeesPriorRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tested.txt")

	first := Open(path)
	if _, err := first.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := first.MarkComplete(context.Background(), "hostA"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := Open(path)
	defer second.Close()
	set, err := second.Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := set["hostA"]; !ok {
		t.Fatalf("prior entry missing after reload: %v", set)
	}
	if !second.IsComplete("hostA") {
		t.Fatalf("IsComplete false after reload")
	}

	// marking again must not duplicate the line
	if err := second.MarkComplete(context.Background(), "hostA"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	b, _ := os.ReadFile(path)
	if got := strings.Count(string(b), "hostA"); got != 1 {
		t.Fatalf("hostA appears %d times", got)
	}
}

func TestLedger_MarkBeforeLoadFails(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "tested.txt"))
	if err := l.MarkComplete(context.Background(), "hostA"); err == nil {
		t.Fatalf("expected error when marking before Load")
	}
}
