package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smohades/reachcheck/internal/domain"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '\t'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	return rows
}

func TestTSV_EmitWritesSevenColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	out, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	err = out.Emit(domain.Outcome{
		Worker: 2, Source: "10.1.0.5", DestIP: "10.0.0.1", DestPort: 443,
		Kind: domain.Failure, Detail: "Connection refused", Tested: ts,
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	want := []string{"2", "10.1.0.5", "10.0.0.1", "443", "failure", "Connection refused", "2026-03-01T12:30:00Z"}
	for i, col := range want {
		if rows[0][i] != col {
			t.Fatalf("column %d = %q want %q (row %v)", i, rows[0][i], col, rows[0])
		}
	}
}

func TestTSV_FlattensNewlinesInDetail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	out, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = out.Emit(domain.Outcome{
		Worker: domain.WorkerUnassigned, Source: "a", DestIP: "b", DestPort: 1,
		Kind: domain.Error, Detail: "line one\r\nline two", Tested: time.Now(),
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readRows(t, path)
	if rows[0][0] != "-1" {
		t.Fatalf("sentinel worker id lost: %q", rows[0][0])
	}
	if rows[0][5] != `line one\nline two` {
		t.Fatalf("detail not flattened: %q", rows[0][5])
	}
}

func TestTSV_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	o := domain.Outcome{Worker: 1, Source: "a", DestIP: "b", DestPort: 1, Kind: domain.Success, Tested: time.Now()}

	for i := 0; i < 2; i++ {
		out, err := Open(path)
		if err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
		if err := out.Emit(o); err != nil {
			t.Fatalf("Emit %d: %v", i, err)
		}
		if err := out.Close(); err != nil {
			t.Fatalf("Close %d: %v", i, err)
		}
	}

	if rows := readRows(t, path); len(rows) != 2 {
		t.Fatalf("want 2 rows after reopen, got %d", len(rows))
	}
}
