// Command reachcheck runs one reachability sweep: every pending source host
// from -sources probes every destination from -dests over SSH, outcomes are
// appended to -output, and fully tested sources are recorded in the ledger so
// a rerun picks up where the last run stopped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smohades/reachcheck/internal/config"
	"github.com/smohades/reachcheck/internal/domain"
	"github.com/smohades/reachcheck/internal/httpapi"
	"github.com/smohades/reachcheck/internal/input"
	"github.com/smohades/reachcheck/internal/logging"
	"github.com/smohades/reachcheck/internal/notify"
	"github.com/smohades/reachcheck/internal/probe"
	"github.com/smohades/reachcheck/internal/repo"
	"github.com/smohades/reachcheck/internal/repo/ledgerfile"
	"github.com/smohades/reachcheck/internal/repo/postgres"
	"github.com/smohades/reachcheck/internal/scheduler"
	"github.com/smohades/reachcheck/internal/sink"
)

// teeSink mirrors each outcome into postgres before the authoritative TSV
// write. Mirror failures are logged, never fatal.
type teeSink struct {
	tsv    *sink.TSV
	store  *postgres.Store
	logger *zap.Logger
}

func (t *teeSink) Emit(o domain.Outcome) error {
	if err := t.store.Mirror(context.Background(), o); err != nil {
		t.logger.Warn("mirror_error", zap.String("source", o.Source), zap.Error(err))
	}
	return t.tsv.Emit(o)
}

func main() {
	sourcesPath := flag.String("sources", "", "file with one source host per line")
	destsPath := flag.String("dests", "", "file with one destination per line (ip:port or ip,port)")
	outputPath := flag.String("output", "results.tsv", "append-only tab-separated result file")
	ledgerPath := flag.String("ledger", "tested-sources.txt", "completed-source ledger file")
	flag.Parse()

	if *sourcesPath == "" || *destsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: reachcheck -sources FILE -dests FILE [-output FILE] [-ledger FILE]")
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// Both input files must parse in full before any session is opened.
	sources, err := input.Sources(*sourcesPath)
	if err != nil {
		logger.Fatal("load_sources", zap.String("path", *sourcesPath), zap.Error(err))
	}
	dests, err := input.Destinations(*destsPath)
	if err != nil {
		logger.Fatal("load_destinations", zap.String("path", *destsPath), zap.Error(err))
	}
	if len(sources) == 0 || len(dests) == 0 {
		logger.Fatal("empty_input",
			zap.Int("sources", len(sources)),
			zap.Int("destinations", len(dests)),
		)
	}

	prober, err := probe.NewSSHProber(cfg, logger)
	if err != nil {
		logger.Fatal("prober_config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ledger repo.Ledger
	var store *postgres.Store
	var fileLedger *ledgerfile.Ledger
	if cfg.DatabaseURL != "" {
		store, err = postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres_connect", zap.Error(err))
		}
		ledger = store
		logger.Info("ledger_backend", zap.String("kind", "postgres"))
	} else {
		fileLedger = ledgerfile.Open(*ledgerPath)
		ledger = fileLedger
		logger.Info("ledger_backend", zap.String("kind", "file"), zap.String("path", *ledgerPath))
	}

	tsv, err := sink.Open(*outputPath)
	if err != nil {
		logger.Fatal("open_output", zap.String("path", *outputPath), zap.Error(err))
	}

	var out scheduler.Sink = tsv
	if store != nil {
		out = &teeSink{tsv: tsv, store: store, logger: logger}
	}

	sw := scheduler.NewSweeper(logger, prober, ledger, out, scheduler.SweepConfig{
		Concurrency: cfg.Concurrency,
		DispatchRPS: cfg.DispatchRPS,
		CountErrors: cfg.LedgerCountErrors,
	})

	var statusSrv *http.Server
	if cfg.StatusAddr != "" {
		statusSrv = &http.Server{
			Addr:    cfg.StatusAddr,
			Handler: httpapi.NewServer(logger, sw.Progress()).Router(),
		}
	}

	var stats scheduler.Stats
	g, gctx := errgroup.WithContext(ctx)
	if statusSrv != nil {
		g.Go(func() error {
			logger.Info("status_listen", zap.String("addr", cfg.StatusAddr))
			if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		var runErr error
		stats, runErr = sw.Run(gctx, sources, dests)
		if statusSrv != nil {
			shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = statusSrv.Shutdown(shutCtx)
		}
		return runErr
	})
	runErr := g.Wait()

	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := slack.SweepDone(notifyCtx, stats); err != nil {
			logger.Warn("slack_notify", zap.Error(err))
		}
		cancel()
	}

	if err := tsv.Close(); err != nil {
		logger.Warn("close_output", zap.Error(err))
	}
	if fileLedger != nil {
		if err := fileLedger.Close(); err != nil {
			logger.Warn("close_ledger", zap.Error(err))
		}
	}
	if store != nil {
		store.Close()
	}

	switch {
	case errors.Is(runErr, context.Canceled):
		logger.Warn("sweep_interrupted",
			zap.Int("items_done", stats.Success+stats.Failure+stats.Errors),
		)
		logger.Sync()
		os.Exit(1)
	case runErr != nil:
		logger.Error("sweep_failed", zap.Error(runErr))
		logger.Sync()
		os.Exit(1)
	}
}
