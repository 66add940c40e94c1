// Package walletrpc implements the Wallet RPC Client (spec §4.3): JSON-RPC
// 2.0 over HTTP POST to the wallet node, with response-shape normalization
// and a circuit breaker guarding against a wedged node.
package walletrpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/zano-fusd/deposit-watcher/internal/domainerr"
	"github.com/zano-fusd/deposit-watcher/internal/logger"
)

const (
	defaultTimeout = 8 * time.Second
	maxRetries     = 3
	baseBackoff    = 250 * time.Millisecond
	maxBackoff     = 4 * time.Second
	jitterRange    = 0.2
)

// Config configures the wallet JSON-RPC client.
type Config struct {
	URL           string
	BasicAuthUser string
	BasicAuthPass string
	Timeout       time.Duration
}

// Client is the wallet JSON-RPC client with a circuit breaker wrapping
// every method call, mirroring the reference Circle client's structure.
type Client struct {
	cfg            Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	log            *logger.Logger
}

// NewClient builds a Client, defaulting Timeout to 8s per spec §4.3.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	st := gobreaker.Settings{
		Name:        "WalletRPC",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("wallet rpc circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		cfg:            cfg,
		httpClient:     httpClient,
		circuitBreaker: gobreaker.NewCircuitBreaker(st),
		log:            log,
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call issues a single JSON-RPC method through the circuit breaker with
// exponential-backoff-with-jitter retry, decoding result into out.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestWithRetry(ctx, method, params, out)
	})
	return err
}

func (c *Client) doRequestWithRetry(ctx context.Context, method string, params, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt - 1)
			c.log.Debug("retrying wallet rpc call", "method", method, "attempt", attempt, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := c.doRequest(ctx, method, params, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var de *domainerr.DomainError
		if domainerr.IsRpcError(err) {
			de = err.(*domainerr.DomainError)
			if de.HTTPStatus != 0 && de.HTTPStatus < 500 && de.HTTPStatus != 429 {
				return err
			}
		}
	}
	return domainerr.RpcError(0, fmt.Sprintf("wallet rpc %q failed after %d attempts: %v", method, maxRetries+1, lastErr))
}

func (c *Client) doRequest(ctx context.Context, method string, params, out interface{}) error {
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return domainerr.Wrap(err, "marshal jsonrpc request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(reqBody))
	if err != nil {
		return domainerr.Wrap(err, "build jsonrpc request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.BasicAuthUser != "" {
		httpReq.SetBasicAuth(c.cfg.BasicAuthUser, c.cfg.BasicAuthPass)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domainerr.RpcError(0, "wallet rpc transport error: "+err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domainerr.RpcError(resp.StatusCode, "wallet rpc read body: "+err.Error())
	}

	if resp.StatusCode >= 400 {
		return domainerr.RpcError(resp.StatusCode, fmt.Sprintf("wallet rpc http %d: %s", resp.StatusCode, truncate(string(body), 300)))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return domainerr.RpcError(resp.StatusCode, "wallet rpc invalid json: "+err.Error())
	}
	if rpcResp.Error != nil {
		return domainerr.RpcError(resp.StatusCode, fmt.Sprintf("wallet rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return domainerr.RpcError(resp.StatusCode, "wallet rpc result decode: "+err.Error())
		}
	}
	return nil
}

func calculateBackoff(attempt int) time.Duration {
	exponent := math.Pow(2, float64(attempt))
	delay := time.Duration(exponent) * baseBackoff
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return addJitter(delay)
}

func addJitter(d time.Duration) time.Duration {
	jitter := float64(d) * jitterRange * (rand.Float64()*2 - 1)
	out := time.Duration(float64(d) + jitter)
	if out < 0 {
		out = 0
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
