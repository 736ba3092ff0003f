// Package ledgerfile persists the completion ledger as a plain text file,
// one source per line, append-on-write.
package ledgerfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/smohades/reachcheck/internal/repo"
)

type Ledger struct {
	path string

	mu   sync.RWMutex
	done map[string]struct{}
	f    *os.File
}

var _ repo.Ledger = (*Ledger)(nil)

func Open(path string) *Ledger {
	return &Ledger{path: path, done: make(map[string]struct{})}
}

// Load reads the full file into memory and opens the append handle. A missing
// file is an empty ledger, not an error.
func (l *Ledger) Load(ctx context.Context) (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in, err := os.Open(l.path); err == nil {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			source := strings.TrimSpace(sc.Text())
			if source != "" {
				l.done[source] = struct{}{}
			}
		}
		scanErr := sc.Err()
		if cerr := in.Close(); cerr != nil && scanErr == nil {
			scanErr = cerr
		}
		if scanErr != nil {
			return nil, fmt.Errorf("read ledger %s: %w", l.path, scanErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open ledger %s: %w", l.path, err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s for append: %w", l.path, err)
	}
	l.f = f

	snapshot := make(map[string]struct{}, len(l.done))
	for s := range l.done {
		snapshot[s] = struct{}{}
	}
	return snapshot, nil
}

func (l *Ledger) IsComplete(source string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.done[source]
	return ok
}

// MarkComplete appends the source and syncs before returning, so a crash
// after this call cannot lose the entry.
func (l *Ledger) MarkComplete(ctx context.Context, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.done[source]; ok {
		return nil
	}
	if l.f == nil {
		return fmt.Errorf("ledger %s not loaded", l.path)
	}
	if _, err := l.f.WriteString(source + "\n"); err != nil {
		return fmt.Errorf("append ledger %s: %w", l.path, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync ledger %s: %w", l.path, err)
	}
	l.done[source] = struct{}{}
	return nil
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := multierr.Append(l.f.Sync(), l.f.Close())
	l.f = nil
	return err
}
