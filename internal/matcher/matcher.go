// Package matcher implements the Deposit Matcher (spec §4.4): given a
// paymentId, the expected assetId, and the chain tip height, returns the
// best DepositObservation per transaction hash.
package matcher

import (
	"context"
	"math/big"

	"github.com/zano-fusd/deposit-watcher/internal/walletrpc"
)

// DepositObservation is the canonical, deduplicated result of matching.
type DepositObservation struct {
	Hash          string
	AmountAtomic  *big.Int
	Confirmations int
	Address       string
	Ticker        string
}

// Client is the subset of walletrpc.Client the Matcher depends on.
type Client interface {
	GetPayments(ctx context.Context, paymentID string) ([]walletrpc.RawObservation, error)
	GetRecentTxsAndInfo2(ctx context.Context, params walletrpc.GetRecentTxsAndInfo2Params) ([]walletrpc.RawObservation, error)
}

// Input bundles the parameters the Matcher needs per spec §4.4.
type Input struct {
	Address         string
	Ticker          string
	PaymentID       string
	ExpectedAssetID string // empty => base-coin mode
	CurrentHeight   int64
	ScanCount       int
}

// Match runs the four-step algorithm from spec §4.4 and returns at most one
// observation per hash, keeping the highest-confirmations entry.
func Match(ctx context.Context, client Client, in Input) ([]DepositObservation, error) {
	var raw []walletrpc.RawObservation

	if in.ExpectedAssetID == "" {
		payments, err := client.GetPayments(ctx, in.PaymentID)
		if err != nil {
			return nil, err
		}
		raw = payments
	}
	// Step 2: get_payments is skipped entirely when ExpectedAssetID is set
	// — the spec documents it as unsafe for assets.

	if len(raw) == 0 {
		count := in.ScanCount
		if count <= 0 {
			count = 100
		}
		txs, err := client.GetRecentTxsAndInfo2(ctx, walletrpc.GetRecentTxsAndInfo2Params{
			Offset:             0,
			Count:              count,
			ExcludeMining:      true,
			ExcludeUnconfirmed: false,
			Order:              "NEW_FIRST",
		})
		if err != nil {
			return nil, err
		}
		raw = append(raw, filterSubtransfers(txs, in.PaymentID, in.ExpectedAssetID)...)
	}

	return dedupeByHash(raw, in.Address, in.Ticker, in.CurrentHeight), nil
}

// filterSubtransfers keeps entries with an exact, non-empty payment_id
// match, is_income, and either asset_id == expectedAssetId (asset mode) or
// empty asset_id (base-coin fallback), per spec §4.3/§4.4. Unlike asset_id,
// payment_id has no documented empty-value fallback: a subtransfer with no
// payment_id at all is not a match for any Job and must never pass through,
// or it would cross-attribute to every open Job on the ticker.
func filterSubtransfers(txs []walletrpc.RawObservation, paymentID, expectedAssetID string) []walletrpc.RawObservation {
	var out []walletrpc.RawObservation
	for _, t := range txs {
		if t.PaymentID == "" || t.PaymentID != paymentID {
			continue
		}
		if t.HasIsIncome && !t.IsIncome {
			continue
		}
		if expectedAssetID != "" {
			if t.AssetID != expectedAssetID {
				continue
			}
		} else if t.AssetID != "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func dedupeByHash(raw []walletrpc.RawObservation, address, ticker string, currentHeight int64) []DepositObservation {
	best := make(map[string]DepositObservation)
	for _, r := range raw {
		if r.Hash == "" {
			continue
		}
		confirmations := r.Confirmations
		if r.HasBlockHeight && currentHeight > 0 {
			c := currentHeight - r.BlockHeight + 1
			if c < 0 {
				c = 0
			}
			confirmations = int(c)
		} else if !r.HasConfirmations {
			confirmations = 0
		}

		amt := r.AmountAtomic
		if amt == nil {
			amt = big.NewInt(0)
		}

		existing, ok := best[r.Hash]
		if !ok || confirmations > existing.Confirmations {
			best[r.Hash] = DepositObservation{
				Hash:          r.Hash,
				AmountAtomic:  amt,
				Confirmations: confirmations,
				Address:       address,
				Ticker:        ticker,
			}
		}
	}

	out := make([]DepositObservation, 0, len(best))
	for _, v := range best {
		out = append(out, v)
	}
	return out
}

// Best returns the observation with the highest confirmations, or nil if
// observations is empty.
func Best(observations []DepositObservation) *DepositObservation {
	if len(observations) == 0 {
		return nil
	}
	best := observations[0]
	for _, o := range observations[1:] {
		if o.Confirmations > best.Confirmations {
			best = o
		}
	}
	return &best
}
