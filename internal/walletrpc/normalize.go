package walletrpc

import (
	"encoding/json"
	"math/big"
)

// RawObservation is the typed, input-side result of normalizing one
// wallet-RPC entry, tolerant of the field-name and nesting variance
// described in spec §4.3 and called out as a REDESIGN FLAG in §9: rather
// than a dynamic untyped walk at every call site, candidate paths are
// tried once here in a fixed priority list and the result is a single
// concrete struct from then on.
type RawObservation struct {
	Hash          string
	AmountAtomic  *big.Int
	Confirmations int
	HasConfirmations bool
	BlockHeight   int64
	HasBlockHeight bool
	PaymentID     string
	AssetID       string
	IsIncome      bool
	HasIsIncome   bool
}

var deposDArrayKeys = []string{"deposits", "transactions", "items"}
var nestedResultArrayKeys = []string{"result.deposits", "result.transactions", "result.entries", "result.in", "result.transfers"}

var hashKeys = []string{"hash", "tx_hash", "txHash", "txid", "transactionHash"}
var amountKeys = []string{"amountAtomic", "amount_atomic", "amount", "value"}
var confirmationKeys = []string{"confirmations", "conf", "num_confirmations", "confirmations_count", "confirmed"}

// extractArray locates the deposits array within an arbitrary JSON payload,
// trying each candidate nesting path in order, falling back to the bare
// result itself if it is already an array.
func extractArray(payload map[string]interface{}) []interface{} {
	for _, k := range deposDArrayKeys {
		if v, ok := payload[k]; ok {
			if arr, ok := v.([]interface{}); ok {
				return arr
			}
		}
	}
	if result, ok := payload["result"]; ok {
		switch r := result.(type) {
		case []interface{}:
			return r
		case map[string]interface{}:
			for _, path := range []string{"deposits", "transactions", "entries", "in", "transfers"} {
				if v, ok := r[path]; ok {
					if arr, ok := v.([]interface{}); ok {
						return arr
					}
				}
			}
		}
	}
	return nil
}

func firstString(entry map[string]interface{}, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := entry[k]; ok {
			switch t := v.(type) {
			case string:
				return t, true
			case float64:
				return big.NewFloat(t).Text('f', 0), true
			}
		}
	}
	return "", false
}

func firstNumber(entry map[string]interface{}, keys []string) (*big.Int, bool) {
	for _, k := range keys {
		v, ok := entry[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			n := new(big.Int)
			if _, ok := n.SetString(t, 10); ok {
				return n, true
			}
		case float64:
			n, _ := big.NewFloat(t).Int(nil)
			return n, true
		}
	}
	return nil, false
}

func firstInt(entry map[string]interface{}, keys []string) (int, bool) {
	n, ok := firstNumber(entry, keys)
	if !ok {
		return 0, false
	}
	return int(n.Int64()), true
}

// NormalizeDeposits flattens an arbitrary wallet-RPC JSON payload into a
// slice of RawObservation, tolerating every nesting/field-name variant
// documented in spec §4.3. Unknown shapes (no array found) yield an empty
// slice: no error is returned and nothing is logged, so an unrecognized
// payload reads the same as one with no deposits. Entries without a hash
// or amount are skipped the same way. It never panics.
func NormalizeDeposits(raw json.RawMessage) []RawObservation {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		var arr []interface{}
		if err2 := json.Unmarshal(raw, &arr); err2 != nil {
			return nil
		}
		return normalizeEntries(arr)
	}
	return normalizeEntries(extractArray(payload))
}

func normalizeEntries(arr []interface{}) []RawObservation {
	out := make([]RawObservation, 0, len(arr))
	for _, e := range arr {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		obs := RawObservation{}
		if h, ok := firstString(entry, hashKeys); ok {
			obs.Hash = h
		} else {
			continue
		}
		if a, ok := firstNumber(entry, amountKeys); ok {
			obs.AmountAtomic = a
		} else {
			obs.AmountAtomic = big.NewInt(0)
		}
		if c, ok := firstInt(entry, confirmationKeys); ok {
			obs.Confirmations = c
			obs.HasConfirmations = true
		}
		if bh, ok := firstInt(entry, []string{"block_height", "blockHeight", "height"}); ok {
			obs.BlockHeight = int64(bh)
			obs.HasBlockHeight = true
		}
		if pid, ok := firstString(entry, []string{"payment_id", "paymentId"}); ok {
			obs.PaymentID = pid
		}
		if aid, ok := firstString(entry, []string{"asset_id", "assetId"}); ok {
			obs.AssetID = aid
		}
		if v, ok := entry["is_income"]; ok {
			if b, ok := v.(bool); ok {
				obs.IsIncome = b
				obs.HasIsIncome = true
			}
		}
		out = append(out, obs)
	}
	return out
}
