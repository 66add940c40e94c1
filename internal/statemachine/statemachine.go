// Package statemachine implements the Job State Machine (spec §4.7): the
// single writer to a Job record. One invocation per Job per scheduling
// pass, orchestrating the Matcher, the Confirmation Policy, consolidation,
// and the Webhook Dispatcher while honoring the Seen/webhookSent
// idempotency invariants.
package statemachine

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/zano-fusd/deposit-watcher/internal/amount"
	"github.com/zano-fusd/deposit-watcher/internal/confpolicy"
	"github.com/zano-fusd/deposit-watcher/internal/domainerr"
	"github.com/zano-fusd/deposit-watcher/internal/jobstore"
	"github.com/zano-fusd/deposit-watcher/internal/logger"
	"github.com/zano-fusd/deposit-watcher/internal/matcher"
	"github.com/zano-fusd/deposit-watcher/internal/walletrpc"
	"github.com/zano-fusd/deposit-watcher/internal/webhook"
)

// TickerPolicy bundles the per-ticker settings the Machine needs, mirroring
// config.TickerConfig so this package does not depend on internal/config.
type TickerPolicy struct {
	Decimals           int
	AssetID            string
	WebhookURL         string
	ConsolidationEnabled          bool
	ConsolidationAddress         string
	ConsolidationFeeAtomic       string
	ConsolidationMinConfirmations int
	ConsolidationMixin           int
	ConsolidationPriority        int
}

// Dispatcher is the subset of webhook.Dispatcher the Machine depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload webhook.Payload, url, secret string, timeout time.Duration) webhook.Result
}

// Transferrer is the subset of walletrpc.Client needed to run consolidation.
type Transferrer interface {
	Transfer(ctx context.Context, params walletrpc.TransferParams) (*walletrpc.TransferResult, error)
}

// Config carries the watcher-wide settings the Machine needs beyond the
// per-ticker policy (spec §4.6's backoff and retry-budget defaults).
type Config struct {
	WebhookSecret    string
	WebhookTimeout   time.Duration
	Backoff          webhook.BackoffConfig
	MaxAttempts      int           // 0 = unlimited
	MaxRetryWindow   time.Duration // default 2h
	DepositLedgerOn  bool
	CurrentHeight    int64
	ScanCount        int
}

// Machine is the Job State Machine.
type Machine struct {
	repo       *jobstore.Repository
	rpcClient  matcher.Client
	transferer Transferrer
	dispatcher Dispatcher
	log        *logger.Logger
}

// New builds a Machine.
func New(repo *jobstore.Repository, rpcClient matcher.Client, transferer Transferrer, dispatcher Dispatcher, log *logger.Logger) *Machine {
	return &Machine{repo: repo, rpcClient: rpcClient, transferer: transferer, dispatcher: dispatcher, log: log}
}

// Process runs one pass of the transition contract from spec §4.7 against
// the Job identified by (ticker, paymentID). now is injected for testability.
func (m *Machine) Process(ctx context.Context, ticker, paymentID string, policy TickerPolicy, cfg Config, now time.Time) error {
	log := m.log.With("ticker", ticker, "paymentId", paymentID)

	// Step 1: load Job; malformed => delete and return.
	job, err := m.repo.GetJob(ctx, ticker, paymentID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	if job.Address == "" {
		log.Warn("deleting malformed job", "hasAddress", false)
		return m.repo.DeleteJob(ctx, ticker, paymentID)
	}

	// Steps 2-3: paymentId backfill from Status, or skip RPC if still absent.
	if job.PaymentID == "" {
		if status, ok, _ := m.repo.GetStatus(ctx, ticker, paymentID); ok && status.PaymentID != "" {
			job.PaymentID = status.PaymentID
			if err := m.repo.UpdateJobFields(ctx, ticker, paymentID, map[string]string{"paymentId": job.PaymentID}); err != nil {
				return err
			}
		}
		if job.PaymentID == "" {
			return nil
		}
	}

	// Step 4: call Matcher; upsert Ledger for the best observation.
	observations, err := matcher.Match(ctx, m.rpcClient, matcher.Input{
		Address:         job.Address,
		Ticker:          ticker,
		PaymentID:       job.PaymentID,
		ExpectedAssetID: policy.AssetID,
		CurrentHeight:   cfg.CurrentHeight,
		ScanCount:       cfg.ScanCount,
	})
	if err != nil {
		if domainerr.IsRpcError(err) {
			return err
		}
		log.Error("matcher failed", "err", err)
		return nil
	}

	best := matcher.Best(observations)
	if best != nil && cfg.DepositLedgerOn {
		if err := m.repo.UpsertLedger(ctx, ticker, best.Hash, best.AmountAtomic.String(), best.Confirmations, now); err != nil {
			log.Warn("ledger upsert failed", "err", err)
		}
	}

	// Step 5: no observation => unchanged, still PENDING.
	if best == nil {
		return nil
	}

	// Step 6: apply Confirmation Policy once.
	if !job.DynamicMinConfApplied && !job.WebhookSent {
		newMinConf := confpolicy.DynamicMinConf(best.AmountAtomic, policy.Decimals)
		if newMinConf != job.MinConf {
			job.MinConf = newMinConf
		}
		job.DynamicMinConfApplied = true
		if err := m.repo.UpdateJobFields(ctx, ticker, paymentID, map[string]string{
			"minConf":               itoa(job.MinConf),
			"dynamicMinConfApplied": "1",
		}); err != nil {
			return err
		}
	}

	// Step 7: confirmed = best observation with confirmations >= minConf.
	if best.Confirmations < job.MinConf {
		m.refreshConfirming(ctx, job, policy, best, now)
		return nil
	}

	// Step 8: Seen guard precedes payload construction.
	seen, err := m.repo.IsSeen(ctx, best.Hash)
	if err != nil {
		return err
	}
	if seen {
		return m.repo.DeleteJob(ctx, ticker, paymentID)
	}

	// Step 9: consolidation, single-shot.
	paidAmountStr, _ := amount.FormatAtomic(best.AmountAtomic, policy.Decimals)
	effectiveAtomic := new(big.Int).Set(best.AmountAtomic)
	feeAtomic := ""
	if policy.ConsolidationEnabled && !job.ConsolidationAttempted {
		if best.Confirmations >= policy.ConsolidationMinConfirmations {
			job.ConsolidationAttempted = true
			txID, fee, cerr := m.attemptConsolidation(ctx, policy, best)
			fields := map[string]string{"consolidationAttempted": "1"}
			if cerr != nil {
				job.ConsolidationError = cerr.Error()
				fields["consolidationError"] = job.ConsolidationError
			} else {
				job.ConsolidationTxID = txID
				fields["consolidationTxId"] = txID
				if fee != nil {
					feeAtomic = fee.String()
					effectiveAtomic = new(big.Int).Sub(effectiveAtomic, fee)
					if effectiveAtomic.Sign() < 0 {
						effectiveAtomic = big.NewInt(0)
					}
				}
			}
			if err := m.repo.UpdateJobFields(ctx, ticker, paymentID, fields); err != nil {
				return err
			}
		} else {
			// below consolidationMinConfirmations => defer, handled next pass.
			m.refreshConfirming(ctx, job, policy, best, now)
			return nil
		}
	}
	effectiveAmountStr, _ := amount.FormatAtomic(effectiveAtomic, policy.Decimals)

	// Step 10: webhook already sent previously => cleanup only.
	if job.WebhookSent {
		if err := m.repo.MarkSeen(ctx, best.Hash); err != nil {
			return err
		}
		return m.repo.DeleteJob(ctx, ticker, paymentID)
	}

	// Step 11: retry budgets.
	if !job.WebhookFirstAttemptAt.IsZero() && cfg.MaxRetryWindow > 0 && now.Sub(job.WebhookFirstAttemptAt) > cfg.MaxRetryWindow {
		return m.fail(ctx, job, policy, best, now, "webhook retry window exceeded")
	}
	if cfg.MaxAttempts > 0 && job.WebhookAttempts >= cfg.MaxAttempts {
		log.Warn("webhook max attempts reached, holding job for manual inspection", "attempts", job.WebhookAttempts)
		return nil
	}

	// Step 12: backoff window.
	if !job.WebhookNextAttemptAt.IsZero() && job.WebhookNextAttemptAt.After(now) {
		return nil
	}

	// Step 13: refresh CONFIRMING status before the attempt.
	m.refreshConfirming(ctx, job, policy, best, now)

	// Step 14/15: dispatch.
	payload := webhook.Payload{
		PaymentID:             job.PaymentID,
		Address:               job.Address,
		Amount:                paidAmountStr,
		AmountAtomic:          best.AmountAtomic.String(),
		PaidAmount:            paidAmountStr,
		PaidAmountAtomic:      best.AmountAtomic.String(),
		EffectiveAmount:       effectiveAmountStr,
		EffectiveAmountAtomic: effectiveAtomic.String(),
		FeeAtomic:             feeAtomic,
		Confirmations:         best.Confirmations,
		Hash:                  best.Hash,
		Ticker:                ticker,
		ClientReference:       job.ClientReference,
		CreatedAt:             job.CreatedAt.UnixMilli(),
	}

	res := m.dispatcher.Dispatch(ctx, payload, policy.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout)
	if res.OK {
		if err := m.repo.PutStatus(ctx, &jobstore.Status{
			Status:                jobstore.StatusCompleted,
			Ticker:                ticker,
			Address:               job.Address,
			PaymentID:             job.PaymentID,
			ClientReference:       job.ClientReference,
			Confirmations:         best.Confirmations,
			RequiredConfirmations: job.MinConf,
			Hash:                  best.Hash,
			PaidAmount:            paidAmountStr,
			PaidAmountAtomic:      best.AmountAtomic.String(),
			EffectiveAmount:       effectiveAmountStr,
			EffectiveAmountAtomic: effectiveAtomic.String(),
			FeeAtomic:             feeAtomic,
			CreatedAt:             job.CreatedAt.UnixMilli(),
			UpdatedAt:             now.UnixMilli(),
		}); err != nil {
			return err
		}
		if err := m.repo.UpdateJobFields(ctx, ticker, paymentID, map[string]string{
			"webhookSent":           "1",
			"webhookAttempts":       "0",
			"webhookFirstAttemptAt": "",
			"webhookLastAttemptAt":  "",
			"webhookNextAttemptAt":  "",
			"webhookLastError":      "",
		}); err != nil {
			return err
		}
		if err := m.repo.MarkSeen(ctx, best.Hash); err != nil {
			return err
		}
		return m.repo.DeleteJob(ctx, ticker, paymentID)
	}

	// Step 15: dispatch failed.
	attempts := job.WebhookAttempts + 1
	firstAttempt := job.WebhookFirstAttemptAt
	if firstAttempt.IsZero() {
		firstAttempt = now
	}
	delay := cfg.Backoff.Delay(attempts)
	errMsg := ""
	if res.Error != nil {
		errMsg = truncate(res.Error.Error(), 500)
	}
	if err := m.repo.UpdateJobFields(ctx, ticker, paymentID, map[string]string{
		"webhookAttempts":       itoa(attempts),
		"webhookFirstAttemptAt": msString(firstAttempt),
		"webhookLastAttemptAt":  msString(now),
		"webhookNextAttemptAt":  msString(now.Add(delay)),
		"webhookLastError":      errMsg,
	}); err != nil {
		return err
	}
	m.refreshConfirming(ctx, job, policy, best, now)
	return nil
}

func (m *Machine) attemptConsolidation(ctx context.Context, policy TickerPolicy, best *matcher.DepositObservation) (txID string, feeAtomic *big.Int, err error) {
	var fee *big.Int
	if policy.ConsolidationFeeAtomic != "" {
		if f, ok := new(big.Int).SetString(policy.ConsolidationFeeAtomic, 10); ok {
			fee = f
		}
	}
	amountToSend := new(big.Int).Set(best.AmountAtomic)
	if fee != nil {
		amountToSend = new(big.Int).Sub(amountToSend, fee)
		if amountToSend.Sign() < 0 {
			amountToSend = big.NewInt(0)
		}
	}
	amountStr, ferr := amount.FormatAtomic(amountToSend, policy.Decimals)
	if ferr != nil {
		return "", nil, ferr
	}
	res, terr := m.transferer.Transfer(ctx, walletrpc.TransferParams{
		Destinations: []walletrpc.TransferDestination{{Address: policy.ConsolidationAddress, Amount: amountStr}},
		Fee:          policy.ConsolidationFeeAtomic,
		Mixin:        policy.ConsolidationMixin,
		Priority:     policy.ConsolidationPriority,
	})
	if terr != nil {
		return "", nil, terr
	}
	return res.TxHash, fee, nil
}

func (m *Machine) fail(ctx context.Context, job *jobstore.Job, policy TickerPolicy, best *matcher.DepositObservation, now time.Time, reason string) error {
	paidAmountStr, _ := amount.FormatAtomic(best.AmountAtomic, policy.Decimals)
	if err := m.repo.PutStatus(ctx, &jobstore.Status{
		Status:                jobstore.StatusFailed,
		Ticker:                job.Ticker,
		Address:               job.Address,
		PaymentID:             job.PaymentID,
		ClientReference:       job.ClientReference,
		Confirmations:         best.Confirmations,
		RequiredConfirmations: job.MinConf,
		Hash:                  best.Hash,
		PaidAmount:            paidAmountStr,
		PaidAmountAtomic:      best.AmountAtomic.String(),
		CreatedAt:             job.CreatedAt.UnixMilli(),
		UpdatedAt:             now.UnixMilli(),
		WebhookError:          reason,
	}); err != nil {
		return err
	}
	if err := m.repo.MarkSeen(ctx, best.Hash); err != nil {
		return err
	}
	return m.repo.DeleteJob(ctx, job.Ticker, job.PaymentID)
}

func (m *Machine) refreshConfirming(ctx context.Context, job *jobstore.Job, policy TickerPolicy, best *matcher.DepositObservation, now time.Time) {
	paidAmountStr, _ := amount.FormatAtomic(best.AmountAtomic, policy.Decimals)
	_ = m.repo.PutStatus(ctx, &jobstore.Status{
		Status:                jobstore.StatusConfirming,
		Ticker:                job.Ticker,
		Address:               job.Address,
		PaymentID:             job.PaymentID,
		ClientReference:       job.ClientReference,
		Confirmations:         best.Confirmations,
		RequiredConfirmations: job.MinConf,
		Hash:                  best.Hash,
		PaidAmount:            paidAmountStr,
		PaidAmountAtomic:      best.AmountAtomic.String(),
		CreatedAt:             job.CreatedAt.UnixMilli(),
		UpdatedAt:             now.UnixMilli(),
	})
}

func itoa(n int) string { return strconv.Itoa(n) }

func msString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
