package walletrpc

import (
	"context"
	"encoding/json"
)

// WalletInfo is the normalized result of get_wallet_info.
type WalletInfo struct {
	CurrentHeight  int64
	DaemonHeight   int64
	IsSynchronized bool
}

// GetWalletInfo calls get_wallet_info, used once per polling cycle to
// convert a block_height into a confirmation count (spec §4.3).
func (c *Client) GetWalletInfo(ctx context.Context) (*WalletInfo, error) {
	var raw struct {
		CurrentHeight  int64 `json:"current_height"`
		DaemonHeight   int64 `json:"daemon_height"`
		IsSynchronized bool  `json:"is_synchronized"`
	}
	if err := c.call(ctx, "get_wallet_info", nil, &raw); err != nil {
		return nil, err
	}
	return &WalletInfo{
		CurrentHeight:  raw.CurrentHeight,
		DaemonHeight:   raw.DaemonHeight,
		IsSynchronized: raw.IsSynchronized,
	}, nil
}

// GetPayments calls get_payments(paymentId), used only for base-coin
// tickers (no assetId configured) per spec §4.3. The result is passed
// through the same tolerant normalization as every other deposit-bearing
// method, since wallet-node implementations vary in how they nest and
// name these fields.
func (c *Client) GetPayments(ctx context.Context, paymentID string) ([]RawObservation, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "get_payments", map[string]interface{}{"payment_id": paymentID}, &raw); err != nil {
		return nil, err
	}
	return NormalizeDeposits(raw), nil
}

// GetRecentTxsAndInfo2Params mirrors the method's documented parameters.
type GetRecentTxsAndInfo2Params struct {
	Offset              int    `json:"offset"`
	Count               int    `json:"count"`
	ExcludeMining       bool   `json:"exclude_mining"`
	ExcludeUnconfirmed  bool   `json:"exclude_unconfirmed"`
	Order               string `json:"order"`
	UpdateProvisionInfo bool   `json:"update_provision_info"`
}

// txEntry is one transfer in get_recent_txs_and_info2's documented shape:
// payment_id, tx_hash, height, and a subtransfers array, each of which may
// or may not carry is_income/asset_id depending on wallet version — so each
// subtransfer is normalized the same way a top-level deposit entry is.
type txEntry struct {
	PaymentID    string          `json:"payment_id"`
	TxHash       string          `json:"tx_hash"`
	Height       int64           `json:"height"`
	Subtransfers json.RawMessage `json:"subtransfers"`
}

// GetRecentTxsAndInfo2 calls get_recent_txs_and_info2, used for non-base
// asset tickers per spec §4.3. Returns one RawObservation per matching
// subtransfer, with PaymentID/Hash/BlockHeight copied down from the parent
// transaction entry.
func (c *Client) GetRecentTxsAndInfo2(ctx context.Context, params GetRecentTxsAndInfo2Params) ([]RawObservation, error) {
	var raw struct {
		Transfers []txEntry `json:"transfers"`
	}
	if err := c.call(ctx, "get_recent_txs_and_info2", params, &raw); err != nil {
		return nil, err
	}

	var out []RawObservation
	for _, t := range raw.Transfers {
		subs := rawArrayOrEmpty(t.Subtransfers)
		// Subtransfers carry no hash of their own; give each the parent's so
		// normalizeEntries does not drop it as hashless.
		for _, s := range subs {
			if m, ok := s.(map[string]interface{}); ok {
				m["hash"] = t.TxHash
			}
		}
		for _, sub := range normalizeEntries(subs) {
			sub.Hash = t.TxHash
			sub.PaymentID = t.PaymentID
			sub.BlockHeight = t.Height
			sub.HasBlockHeight = true
			out = append(out, sub)
		}
	}
	return out, nil
}

func rawArrayOrEmpty(raw json.RawMessage) []interface{} {
	if len(raw) == 0 {
		return nil
	}
	var arr []interface{}
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil
	}
	return arr
}

// TransferDestination is one output of a transfer call.
type TransferDestination struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// TransferParams mirrors transfer's documented parameters, used only by
// consolidation.
type TransferParams struct {
	Destinations []TransferDestination `json:"destinations"`
	Fee          string                `json:"fee"`
	Mixin        int                   `json:"mixin"`
	UnlockTime   int64                 `json:"unlock_time"`
	DoNotRelay   bool                  `json:"do_not_relay"`
	Priority     int                   `json:"priority"`
}

// TransferResult is the normalized transfer response.
type TransferResult struct {
	TxHash string
}

// Transfer calls transfer, used only by consolidation (spec §4.3).
func (c *Client) Transfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	var raw struct {
		TxHash string `json:"tx_hash"`
	}
	if err := c.call(ctx, "transfer", params, &raw); err != nil {
		return nil, err
	}
	return &TransferResult{TxHash: raw.TxHash}, nil
}

// MakeIntegratedAddress calls make_integrated_address, used by the Intake
// Create handler when the caller omits an address for the base-coin ticker.
func (c *Client) MakeIntegratedAddress(ctx context.Context, paymentID string) (address string, resolvedPaymentID string, err error) {
	var raw struct {
		IntegratedAddress string `json:"integrated_address"`
		PaymentID         string `json:"payment_id"`
	}
	params := map[string]interface{}{}
	if paymentID != "" {
		params["payment_id"] = paymentID
	}
	if err := c.call(ctx, "make_integrated_address", params, &raw); err != nil {
		return "", "", err
	}
	resolved := raw.PaymentID
	if resolved == "" {
		resolved = paymentID
	}
	return raw.IntegratedAddress, resolved, nil
}
