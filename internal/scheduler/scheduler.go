// Package scheduler implements the Scheduler / Watcher Loop (spec §4.8):
// round-robin across tickers, cursor-based scan of jobs, per-ticker error
// backoff, interval pacing, and graceful stop. Per the redesign note in
// spec §9, each ticker gets its own goroutine running a strictly
// sequential tick loop — this gives the same single-writer-per-Job outcome
// as literal single-threading while letting independent tickers make
// progress concurrently, following the one-goroutine-per-interval shape
// used throughout this codebase's scheduler.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/zano-fusd/deposit-watcher/internal/domainerr"
	"github.com/zano-fusd/deposit-watcher/internal/jobstore"
	"github.com/zano-fusd/deposit-watcher/internal/logger"
	"github.com/zano-fusd/deposit-watcher/internal/statemachine"
	"github.com/zano-fusd/deposit-watcher/internal/walletrpc"
)

// WalletInfoSource is the subset of walletrpc.Client the Scheduler needs to
// convert block heights into confirmation counts once per tick.
type WalletInfoSource interface {
	GetWalletInfo(ctx context.Context) (*walletrpc.WalletInfo, error)
}

// TickerSpec bundles everything the Scheduler needs to run one ticker's
// loop: its policy and a reference to the shared components.
type TickerSpec struct {
	Ticker string
	Policy statemachine.TickerPolicy
}

// Config controls interval pacing and scan batching (spec §4.8 defaults).
type Config struct {
	IntervalMs     int
	ScanCount      int
	ErrorBackoffMs int
}

// DefaultConfig returns the spec §4.8 defaults.
func DefaultConfig() Config {
	return Config{IntervalMs: 15000, ScanCount: 100, ErrorBackoffMs: 30000}
}

// Scheduler runs one goroutine per enabled ticker, each independently
// scanning and processing its Jobs on a fixed interval.
type Scheduler struct {
	repo       *jobstore.Repository
	machine    *statemachine.Machine
	walletInfo WalletInfoSource
	smCfg      statemachine.Config
	cfg        Config
	log        *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New builds a Scheduler.
func New(repo *jobstore.Repository, machine *statemachine.Machine, walletInfo WalletInfoSource, smCfg statemachine.Config, cfg Config, log *logger.Logger) *Scheduler {
	return &Scheduler{
		repo:       repo,
		machine:    machine,
		walletInfo: walletInfo,
		smCfg:      smCfg,
		cfg:        cfg,
		log:        log,
		stopCh:     make(chan struct{}),
	}
}

// Start spawns one goroutine per ticker spec and returns immediately.
func (s *Scheduler) Start(ctx context.Context, tickers []TickerSpec) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("starting scheduler", "tickerCount", len(tickers))

	for _, spec := range tickers {
		s.wg.Add(1)
		go s.runTicker(ctx, spec)
	}
}

// Stop signals every ticker goroutine to finish its in-flight tick and
// return, then waits for all of them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("stopping scheduler")
	close(s.stopCh)
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runTicker(ctx context.Context, spec TickerSpec) {
	defer s.wg.Done()

	log := s.log.With("ticker", spec.Ticker)
	interval := time.Duration(s.cfg.IntervalMs) * time.Millisecond
	errorBackoff := time.Duration(s.cfg.ErrorBackoffMs) * time.Millisecond

	var backoffUntil time.Time

	for {
		start := time.Now()

		if start.Before(backoffUntil) {
			// Skip this tick entirely; still pace by the normal interval.
		} else if err := s.runOnePass(ctx, spec, log); err != nil {
			if domainerr.IsRpcError(err) {
				backoffUntil = time.Now().Add(errorBackoff)
				log.Warn("rpc error, backing off ticker", "err", err, "until", backoffUntil)
			} else {
				log.Error("ticker pass failed", "err", err)
			}
		}

		elapsed := time.Since(start)
		sleep := interval - elapsed
		if sleep < time.Second {
			sleep = time.Second
		}

		select {
		case <-time.After(sleep):
		case <-s.stopCh:
			log.Info("ticker goroutine stopping")
			return
		case <-ctx.Done():
			log.Info("ticker goroutine cancelled")
			return
		}
	}
}

// runOnePass scans every Job for the ticker and hands each to the State
// Machine, propagating an RpcError out to trigger ticker-level backoff.
func (s *Scheduler) runOnePass(ctx context.Context, spec TickerSpec, log *logger.Logger) error {
	smCfg := s.smCfg
	smCfg.ScanCount = s.cfg.ScanCount

	if s.walletInfo != nil {
		info, err := s.walletInfo.GetWalletInfo(ctx)
		if err != nil {
			return err
		}
		smCfg.CurrentHeight = info.CurrentHeight
	}

	cursor := "0"
	for {
		next, keys, err := s.repo.ScanJobs(ctx, spec.Ticker, cursor, int64(s.cfg.ScanCount))
		if err != nil {
			return err
		}

		for _, key := range keys {
			paymentID, ok := jobstore.ParsePaymentIDFromJobKey(s.repo.Prefix(), spec.Ticker, key)
			if !ok {
				// key carries a prefix we didn't strip for; fall back to the
				// full key, Process will treat a missing Job as a no-op.
				paymentID = key
			}
			if err := s.machine.Process(ctx, spec.Ticker, paymentID, spec.Policy, smCfg, time.Now()); err != nil {
				if domainerr.IsRpcError(err) {
					return err
				}
				log.Error("job processing failed", "paymentId", paymentID, "err", err)
			}
		}

		cursor = next
		if cursor == "0" {
			return nil
		}
	}
}
