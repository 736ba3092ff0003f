// Package sink appends probe outcomes to a tab-separated result file.
//
// Columns, in order: worker id, source, destination IP, destination port,
// result (success|failure|error), detail, RFC3339 UTC test timestamp.
// The file is append-only; rows from prior runs are never rewritten.
package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/smohades/reachcheck/internal/domain"
)

type TSV struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func Open(path string) (*TSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	return &TSV{f: f, w: w}, nil
}

// Emit appends one row and flushes it, so a crash loses at most the row being
// written. Serialized: concurrent emitters cannot interleave fields.
func (t *TSV) Emit(o domain.Outcome) error {
	row := []string{
		strconv.Itoa(o.Worker),
		o.Source,
		o.DestIP,
		strconv.Itoa(o.DestPort),
		o.Kind.String(),
		flatten(o.Detail),
		o.Tested.UTC().Format(time.RFC3339),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Write(row); err != nil {
		return fmt.Errorf("write result row: %w", err)
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("flush result row: %w", err)
	}
	return nil
}

func (t *TSV) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.Flush()
	return multierr.Append(t.w.Error(), t.f.Close())
}

// flatten keeps multi-line diagnostics on one row.
func flatten(detail string) string {
	detail = strings.ReplaceAll(detail, "\r", "")
	return strings.ReplaceAll(detail, "\n", `\n`)
}
