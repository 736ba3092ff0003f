// Package scheduler drives one sweep: the pending (source × destination)
// work set fanned out over a bounded worker pool, outcomes streamed to the
// result sink, completed sources recorded in the ledger as their last
// destination lands.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smohades/reachcheck/internal/domain"
	"github.com/smohades/reachcheck/internal/probe"
	"github.com/smohades/reachcheck/internal/repo"
)

// Sink receives each classified outcome exactly once. Implementations must
// tolerate concurrent callers.
type Sink interface {
	Emit(o domain.Outcome) error
}

type SweepConfig struct {
	Concurrency int     // worker pool size; also the ceiling on open sessions
	DispatchRPS float64 // admission pacing, 0 = unlimited
	CountErrors bool    // whether Error outcomes count toward source completion
}

type Stats struct {
	Items            int // work items dispatched this run
	Skipped          int // sources excluded by the loaded ledger
	Success          int
	Failure          int
	Errors           int
	CompletedSources int
	Elapsed          time.Duration
}

type Sweeper struct {
	logger   *zap.Logger
	prober   probe.Prober
	ledger   repo.Ledger
	sink     Sink
	cfg      SweepConfig
	limiter  *rate.Limiter
	progress *Progress
}

func NewSweeper(logger *zap.Logger, prober probe.Prober, ledger repo.Ledger, sink Sink, cfg SweepConfig) *Sweeper {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	var limiter *rate.Limiter
	if cfg.DispatchRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DispatchRPS), 1)
	}
	return &Sweeper{
		logger:   logger,
		prober:   prober,
		ledger:   ledger,
		sink:     sink,
		cfg:      cfg,
		limiter:  limiter,
		progress: NewProgress(),
	}
}

// Progress exposes the live counters for the status API.
func (s *Sweeper) Progress() *Progress {
	return s.progress
}

// Run executes the sweep and blocks until every dispatched item has a
// terminal outcome. Cancelling ctx stops admission of new items; in-flight
// probes run to their own timeouts and their outcomes are still emitted and
// ledgered. Not restartable within one invocation.
func (s *Sweeper) Run(ctx context.Context, sources []string, dests []domain.Destination) (Stats, error) {
	start := time.Now()

	done, err := s.ledger.Load(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load ledger: %w", err)
	}

	var pending []string
	skipped := 0
	for _, src := range sources {
		if _, ok := done[src]; ok {
			skipped++
			s.logger.Info("source_skipped", zap.String("source", src))
			continue
		}
		pending = append(pending, src)
	}

	items := make([]domain.WorkItem, 0, len(pending)*len(dests))
	for _, src := range pending {
		for _, d := range dests {
			items = append(items, domain.WorkItem{Source: src, DestIP: d.IP, DestPort: d.Port})
		}
	}

	s.progress.start(len(items))
	s.logger.Info("sweep_start",
		zap.Int("sources", len(pending)),
		zap.Int("sources_skipped", skipped),
		zap.Int("destinations", len(dests)),
		zap.Int("work_items", len(items)),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	st := newRunState(pending, len(dests))

	// Outcomes for admitted items must land even after a stop request, so
	// probes and ledger writes get a context that survives cancellation.
	probeCtx := context.WithoutCancel(ctx)

	tasks := make(chan domain.WorkItem, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for id := 1; id <= s.cfg.Concurrency; id++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for item := range tasks {
				s.runOne(probeCtx, worker, item, st)
			}
		}(id)
	}

	dispatched := 0
feed:
	for _, item := range items {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				break feed
			}
		}
		// A send to the buffered channel can be ready at the same time as
		// Done; check cancellation first so a stop never admits more work.
		if ctx.Err() != nil {
			break feed
		}
		select {
		case tasks <- item:
			dispatched++
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	stats := st.stats()
	stats.Items = dispatched
	stats.Skipped = skipped
	stats.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		s.logger.Warn("sweep_stopped",
			zap.Int("dispatched", dispatched),
			zap.Int("undispatched", len(items)-dispatched),
		)
		return stats, err
	}

	s.logger.Info("sweep_done",
		zap.Int("items", stats.Items),
		zap.Int("success", stats.Success),
		zap.Int("failure", stats.Failure),
		zap.Int("errors", stats.Errors),
		zap.Int("sources_completed", stats.CompletedSources),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

func (s *Sweeper) runOne(ctx context.Context, worker int, item domain.WorkItem, st *runState) {
	raw := s.prober.Probe(ctx, item)
	out := probe.Classify(item, raw, worker, time.Now().UTC())

	if err := s.sink.Emit(out); err != nil {
		s.logger.Warn("emit_error", zap.String("item", item.Key()), zap.Error(err))
	}
	s.logger.Debug("probe_done",
		zap.Int("worker", worker),
		zap.String("item", item.Key()),
		zap.Stringer("result", out.Kind),
	)

	srcDone, canMark := st.finish(item.Source, out.Kind, s.cfg.CountErrors)
	s.progress.record(out.Kind)
	if !srcDone {
		return
	}
	if !canMark {
		s.logger.Info("source_left_pending", zap.String("source", item.Source))
		return
	}
	if err := s.ledger.MarkComplete(ctx, item.Source); err != nil {
		s.logger.Warn("ledger_mark_error", zap.String("source", item.Source), zap.Error(err))
		return
	}
	st.sourceCompleted()
	s.progress.sourceComplete()
	s.logger.Info("source_complete", zap.String("source", item.Source))
}

// runState is the per-run bookkeeping shared by the workers: one mutex, one
// writer section per completing probe, so counts cannot be lost.
type runState struct {
	mu        sync.Mutex
	remaining map[string]int
	errored   map[string]bool
	success   int
	failure   int
	errors    int
	completed int
}

func newRunState(sources []string, destCount int) *runState {
	st := &runState{
		remaining: make(map[string]int, len(sources)),
		errored:   make(map[string]bool),
	}
	for _, src := range sources {
		st.remaining[src] = destCount
	}
	return st
}

func (st *runState) finish(source string, kind domain.ResultKind, countErrors bool) (srcDone, canMark bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch kind {
	case domain.Success:
		st.success++
	case domain.Failure:
		st.failure++
	default:
		st.errors++
		st.errored[source] = true
	}

	st.remaining[source]--
	if st.remaining[source] > 0 {
		return false, false
	}
	return true, countErrors || !st.errored[source]
}

func (st *runState) sourceCompleted() {
	st.mu.Lock()
	st.completed++
	st.mu.Unlock()
}

func (st *runState) stats() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return Stats{
		Success:          st.success,
		Failure:          st.failure,
		Errors:           st.errors,
		CompletedSources: st.completed,
	}
}
