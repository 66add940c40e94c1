package jobstore

import (
	"strconv"
	"time"
)

// Status values for the Job State Machine (spec §4.7).
const (
	StatusPending    = "PENDING"
	StatusConfirming = "CONFIRMING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Job is the canonical record described in spec §3. It is the single
// mutable per-deposit record; the State Machine is its only writer.
type Job struct {
	Ticker          string
	Address         string
	PaymentID       string
	ExpectedAmount  string
	MinConf         int
	ClientReference string
	CreatedAt       time.Time

	DynamicMinConfApplied bool
	WebhookSent           bool
	WebhookAttempts       int
	WebhookFirstAttemptAt time.Time
	WebhookLastAttemptAt  time.Time
	WebhookNextAttemptAt  time.Time
	WebhookLastError      string

	ConsolidationAttempted bool
	ConsolidationTxID      string
	ConsolidationError     string
}

// Status is the read-facing JSON record served by the Status endpoint.
type Status struct {
	Status                string `json:"status"`
	Ticker                string `json:"ticker"`
	Address               string `json:"address"`
	PaymentID             string `json:"paymentId"`
	ClientReference       string `json:"clientReference,omitempty"`
	Confirmations         int    `json:"confirmations"`
	RequiredConfirmations int    `json:"requiredConfirmations"`
	Hash                  string `json:"hash,omitempty"`
	PaidAmount            string `json:"paidAmount,omitempty"`
	PaidAmountAtomic      string `json:"paidAmountAtomic,omitempty"`
	EffectiveAmount       string `json:"effectiveAmount,omitempty"`
	EffectiveAmountAtomic string `json:"effectiveAmountAtomic,omitempty"`
	FeeAtomic             string `json:"feeAtomic,omitempty"`
	CreatedAt             int64  `json:"createdAt"`
	UpdatedAt             int64  `json:"updatedAt"`
	WebhookError          string `json:"webhookError,omitempty"`
}

// LedgerEntry is the optional audit-trail record for an observed deposit,
// tracking first-seen/last-seen confirmations per (ticker, txHash).
type LedgerEntry struct {
	Ticker          string
	TxHash          string
	AmountAtomic    string
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	FirstConfirmations int
	LastConfirmations  int
}

func toUnixMs(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func fromUnixMs(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n)
}

func toIntStr(n int) string { return strconv.Itoa(n) }

func fromIntStr(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func toBoolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func fromBoolStr(s string) bool { return s == "1" || s == "true" }

// jobFields is the ordered set of hash-field names backing the Job record.
const (
	fTicker                = "ticker"
	fAddress               = "address"
	fPaymentID             = "paymentId"
	fExpectedAmount        = "expectedAmount"
	fMinConf               = "minConf"
	fClientReference       = "clientReference"
	fCreatedAt             = "createdAt"
	fDynamicMinConfApplied = "dynamicMinConfApplied"
	fWebhookSent           = "webhookSent"
	fWebhookAttempts       = "webhookAttempts"
	fWebhookFirstAttemptAt = "webhookFirstAttemptAt"
	fWebhookLastAttemptAt  = "webhookLastAttemptAt"
	fWebhookNextAttemptAt  = "webhookNextAttemptAt"
	fWebhookLastError      = "webhookLastError"
	fConsolidationAttempted = "consolidationAttempted"
	fConsolidationTxID     = "consolidationTxId"
	fConsolidationError    = "consolidationError"
)

func jobToFields(j *Job) map[string]string {
	return map[string]string{
		fTicker:                 j.Ticker,
		fAddress:                j.Address,
		fPaymentID:              j.PaymentID,
		fExpectedAmount:         j.ExpectedAmount,
		fMinConf:                toIntStr(j.MinConf),
		fClientReference:        j.ClientReference,
		fCreatedAt:              toUnixMs(j.CreatedAt),
		fDynamicMinConfApplied:  toBoolStr(j.DynamicMinConfApplied),
		fWebhookSent:            toBoolStr(j.WebhookSent),
		fWebhookAttempts:        toIntStr(j.WebhookAttempts),
		fWebhookFirstAttemptAt:  toUnixMs(j.WebhookFirstAttemptAt),
		fWebhookLastAttemptAt:   toUnixMs(j.WebhookLastAttemptAt),
		fWebhookNextAttemptAt:   toUnixMs(j.WebhookNextAttemptAt),
		fWebhookLastError:       j.WebhookLastError,
		fConsolidationAttempted: toBoolStr(j.ConsolidationAttempted),
		fConsolidationTxID:      j.ConsolidationTxID,
		fConsolidationError:     j.ConsolidationError,
	}
}

func fieldsToJob(m map[string]string) *Job {
	if len(m) == 0 {
		return nil
	}
	return &Job{
		Ticker:                 m[fTicker],
		Address:                m[fAddress],
		PaymentID:              m[fPaymentID],
		ExpectedAmount:         m[fExpectedAmount],
		MinConf:                fromIntStr(m[fMinConf]),
		ClientReference:        m[fClientReference],
		CreatedAt:              fromUnixMs(m[fCreatedAt]),
		DynamicMinConfApplied:  fromBoolStr(m[fDynamicMinConfApplied]),
		WebhookSent:            fromBoolStr(m[fWebhookSent]),
		WebhookAttempts:        fromIntStr(m[fWebhookAttempts]),
		WebhookFirstAttemptAt:  fromUnixMs(m[fWebhookFirstAttemptAt]),
		WebhookLastAttemptAt:   fromUnixMs(m[fWebhookLastAttemptAt]),
		WebhookNextAttemptAt:   fromUnixMs(m[fWebhookNextAttemptAt]),
		WebhookLastError:       m[fWebhookLastError],
		ConsolidationAttempted: fromBoolStr(m[fConsolidationAttempted]),
		ConsolidationTxID:      m[fConsolidationTxID],
		ConsolidationError:     m[fConsolidationError],
	}
}

func ledgerToFields(l *LedgerEntry) map[string]string {
	return map[string]string{
		"ticker":             l.Ticker,
		"txHash":             l.TxHash,
		"amountAtomic":       l.AmountAtomic,
		"firstSeenAt":        toUnixMs(l.FirstSeenAt),
		"lastSeenAt":         toUnixMs(l.LastSeenAt),
		"firstConfirmations": toIntStr(l.FirstConfirmations),
		"lastConfirmations":  toIntStr(l.LastConfirmations),
	}
}

func fieldsToLedger(m map[string]string) *LedgerEntry {
	if len(m) == 0 {
		return nil
	}
	return &LedgerEntry{
		Ticker:             m["ticker"],
		TxHash:             m["txHash"],
		AmountAtomic:       m["amountAtomic"],
		FirstSeenAt:        fromUnixMs(m["firstSeenAt"]),
		LastSeenAt:         fromUnixMs(m["lastSeenAt"]),
		FirstConfirmations: fromIntStr(m["firstConfirmations"]),
		LastConfirmations:  fromIntStr(m["lastConfirmations"]),
	}
}
