package jobstore

import (
	"context"
	"time"

	"github.com/zano-fusd/deposit-watcher/internal/kv"
)

// Repository is the single entry point the Scheduler, Intake, and State
// Machine use to read/write Job, Status, Seen, and Ledger records.
type Repository struct {
	store  kv.Store
	prefix string

	jobTTL    time.Duration
	statusTTL time.Duration
	seenTTL   time.Duration
	ledgerTTL time.Duration
}

// NewRepository builds a Repository over the given kv.Store using the
// configured key prefix and entity TTLs (spec §3, §6).
func NewRepository(store kv.Store, prefix string, jobTTL, statusTTL, seenTTL, ledgerTTL time.Duration) *Repository {
	return &Repository{
		store:     store,
		prefix:    prefix,
		jobTTL:    jobTTL,
		statusTTL: statusTTL,
		seenTTL:   seenTTL,
		ledgerTTL: ledgerTTL,
	}
}

// Prefix returns the key prefix this Repository was constructed with, for
// callers (the Scheduler) that need to parse keys returned by ScanJobs.
func (r *Repository) Prefix() string { return r.prefix }

// GetJob loads a Job. Returns (nil, nil) if absent.
func (r *Repository) GetJob(ctx context.Context, ticker, paymentID string) (*Job, error) {
	m, err := r.store.HGetAll(ctx, JobKey(r.prefix, ticker, paymentID))
	if err != nil {
		return nil, err
	}
	return fieldsToJob(m), nil
}

// CreateJob writes a brand-new Job record and applies the Job TTL.
func (r *Repository) CreateJob(ctx context.Context, j *Job) error {
	key := JobKey(r.prefix, j.Ticker, j.PaymentID)
	if err := r.store.HSet(ctx, key, jobToFields(j)); err != nil {
		return err
	}
	if r.jobTTL > 0 {
		return r.store.Expire(ctx, key, r.jobTTL)
	}
	return nil
}

// UpdateJobFields writes only the named changed fields (spec §4.1: "limits
// blast radius when another code path writes a disjoint field concurrently").
func (r *Repository) UpdateJobFields(ctx context.Context, ticker, paymentID string, fields map[string]string) error {
	return r.store.HSet(ctx, JobKey(r.prefix, ticker, paymentID), fields)
}

// DeleteJob removes the Job record (terminal success or hard failure).
func (r *Repository) DeleteJob(ctx context.Context, ticker, paymentID string) error {
	return r.store.Del(ctx, JobKey(r.prefix, ticker, paymentID))
}

// ScanJobs pages through every Job key for a ticker using cursored scan.
func (r *Repository) ScanJobs(ctx context.Context, ticker string, cursor string, batchSize int64) (string, []string, error) {
	return r.store.Scan(ctx, cursor, JobScanPattern(r.prefix, ticker), batchSize)
}

// GetStatus loads the Status JSON blob. Malformed JSON is treated as absent.
func (r *Repository) GetStatus(ctx context.Context, ticker, paymentID string) (*Status, bool, error) {
	var s Status
	ok, err := kv.GetJSON(ctx, r.store, StatusKey(r.prefix, ticker, paymentID), &s)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &s, true, nil
}

// PutStatus writes the Status JSON blob with the configured Status TTL.
func (r *Repository) PutStatus(ctx context.Context, s *Status) error {
	return kv.SetJSON(ctx, r.store, StatusKey(r.prefix, s.Ticker, s.PaymentID), s, r.statusTTL)
}

// IsSeen reports whether a webhook for txHash has already been accepted.
func (r *Repository) IsSeen(ctx context.Context, txHash string) (bool, error) {
	return r.store.Exists(ctx, SeenKey(r.prefix, txHash))
}

// MarkSeen writes the dedup guard for txHash with the configured Seen TTL.
func (r *Repository) MarkSeen(ctx context.Context, txHash string) error {
	return r.store.Set(ctx, SeenKey(r.prefix, txHash), "1", r.seenTTL)
}

// GetLedger loads the ledger entry for a (ticker, txHash) pair, if any.
func (r *Repository) GetLedger(ctx context.Context, ticker, txHash string) (*LedgerEntry, error) {
	m, err := r.store.HGetAll(ctx, LedgerKey(r.prefix, ticker, txHash))
	if err != nil {
		return nil, err
	}
	return fieldsToLedger(m), nil
}

// UpsertLedger records first-seen/last-seen confirmations for an observed
// deposit. Optional audit trail (spec §3); callers should no-op this when
// depositLedgerMode == "off".
func (r *Repository) UpsertLedger(ctx context.Context, ticker, txHash, amountAtomic string, confirmations int, now time.Time) error {
	key := LedgerKey(r.prefix, ticker, txHash)
	existing, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return err
	}

	entry := fieldsToLedger(existing)
	if entry == nil {
		entry = &LedgerEntry{
			Ticker:             ticker,
			TxHash:             txHash,
			AmountAtomic:       amountAtomic,
			FirstSeenAt:        now,
			FirstConfirmations: confirmations,
		}
	}
	entry.LastSeenAt = now
	entry.LastConfirmations = confirmations
	if entry.AmountAtomic == "" {
		entry.AmountAtomic = amountAtomic
	}

	if err := r.store.HSet(ctx, key, ledgerToFields(entry)); err != nil {
		return err
	}
	if r.ledgerTTL > 0 {
		return r.store.Expire(ctx, key, r.ledgerTTL)
	}
	return nil
}
