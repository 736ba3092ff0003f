// Package postgres is the optional database-backed ledger, selected when
// DATABASE_URL is set. It also mirrors emitted outcomes into a results table
// so sweeps across many operator machines can share one history.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smohades/reachcheck/internal/domain"
	"github.com/smohades/reachcheck/internal/repo"
)

type Store struct {
	pool *pgxpool.Pool

	mu   sync.RWMutex
	done map[string]struct{}
}

var _ repo.Ledger = (*Store)(nil)

func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return &Store{pool: p, done: make(map[string]struct{})}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Load creates the tables when absent and reads the completed-source set.
func (s *Store) Load(ctx context.Context) (map[string]struct{}, error) {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS ledger (
			source    text PRIMARY KEY,
			marked_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id        bigserial PRIMARY KEY,
			worker    int NOT NULL,
			source    text NOT NULL,
			dest_ip   text NOT NULL,
			dest_port int NOT NULL,
			result    text NOT NULL,
			detail    text NOT NULL DEFAULT '',
			tested_at timestamptz NOT NULL
		)`,
	} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, `SELECT source FROM ledger`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, err
		}
		s.done[source] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snapshot := make(map[string]struct{}, len(s.done))
	for src := range s.done {
		snapshot[src] = struct{}{}
	}
	return snapshot, nil
}

func (s *Store) IsComplete(source string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.done[source]
	return ok
}

func (s *Store) MarkComplete(ctx context.Context, source string) error {
	s.mu.Lock()
	if _, ok := s.done[source]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger (source) VALUES ($1) ON CONFLICT (source) DO NOTHING`,
		source)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.done[source] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Mirror appends one outcome to the results table. Best-effort companion to
// the TSV sink, never a replacement for it.
func (s *Store) Mirror(ctx context.Context, o domain.Outcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results (worker, source, dest_ip, dest_port, result, detail, tested_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		o.Worker, o.Source, o.DestIP, o.DestPort, o.Kind.String(), o.Detail, o.Tested)
	return err
}
