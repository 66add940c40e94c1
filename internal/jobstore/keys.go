// Package jobstore provides typed helpers over kv.Store that build the
// deterministic key names from spec §3 and encode/decode Job, Status, Seen,
// and Ledger records.
package jobstore

import "fmt"

// JobKey returns the Job hash key: {prefix}:deposit:{ticker}:{paymentId}.
func JobKey(prefix, ticker, paymentID string) string {
	return fmt.Sprintf("%s:deposit:%s:%s", prefix, ticker, paymentID)
}

// JobScanPattern returns the glob pattern used by the Scheduler to page
// through every Job for a ticker.
func JobScanPattern(prefix, ticker string) string {
	return fmt.Sprintf("%s:deposit:%s:*", prefix, ticker)
}

// StatusKey returns the Status JSON-blob key.
func StatusKey(prefix, ticker, paymentID string) string {
	return fmt.Sprintf("%s:transaction:status:%s:%s", prefix, ticker, paymentID)
}

// SeenKey returns the dedup-guard key for a transaction hash.
func SeenKey(prefix, txHash string) string {
	return fmt.Sprintf("%s:seen:%s", prefix, txHash)
}

// LedgerKey returns the append-only ledger hash key for a ticker/txHash.
func LedgerKey(prefix, ticker, txHash string) string {
	return fmt.Sprintf("%s:deposit:ledger:%s:%s", prefix, ticker, txHash)
}

// ParsePaymentIDFromJobKey extracts the trailing paymentId segment from a
// Job key as returned by Scan, e.g. "zano:deposit:zano:pid1" -> "pid1".
func ParsePaymentIDFromJobKey(prefix, ticker, key string) (string, bool) {
	prefixStr := fmt.Sprintf("%s:deposit:%s:", prefix, ticker)
	if len(key) <= len(prefixStr) || key[:len(prefixStr)] != prefixStr {
		return "", false
	}
	return key[len(prefixStr):], true
}
