// Package webhook implements the Webhook Dispatcher (spec §4.6):
// delivers the canonical deposit payload with a shared-secret header,
// computing exponential backoff with optional jitter, and reporting
// dispatch outcomes via OpenTelemetry metrics — mirroring the reference
// funding_webhook processor's instrumentation.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zano-fusd/deposit-watcher/internal/logger"
)

// SecretHeader is the fixed header name carrying the shared secret (spec §6).
const SecretHeader = "X-Zano-Secret"

// Payload is the canonical, stable envelope from spec §4.6.
type Payload struct {
	PaymentID             string `json:"paymentId"`
	Address               string `json:"address"`
	Amount                string `json:"amount"`
	AmountAtomic          string `json:"amountAtomic"`
	PaidAmount            string `json:"paidAmount"`
	PaidAmountAtomic      string `json:"paidAmountAtomic"`
	EffectiveAmount       string `json:"effectiveAmount"`
	EffectiveAmountAtomic string `json:"effectiveAmountAtomic"`
	FeeAtomic             string `json:"feeAtomic,omitempty"`
	Confirmations         int    `json:"confirmations"`
	Hash                  string `json:"hash"`
	Ticker                string `json:"ticker"`
	ClientReference       string `json:"clientReference,omitempty"`
	CreatedAt             int64  `json:"createdAt,omitempty"`
}

// Result is the outcome of one dispatch attempt.
type Result struct {
	OK         bool
	StatusCode int // 0 on network error
	Error      error
}

// BackoffConfig controls the retry delay shape from spec §4.6.
type BackoffConfig struct {
	BaseMs  int64
	Factor  float64
	MaxMs   int64
	Jitter  bool
}

// DefaultBackoffConfig matches spec §4.6's stated defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{BaseMs: 1000, Factor: 2, MaxMs: int64(20 * time.Minute / time.Millisecond), Jitter: true}
}

// Delay computes delay(attempts) = min(baseMs * factor^(attempts-1), maxMs)
// for the 1-indexed attempt number that just failed, optionally drawing
// uniformly from [0, delay] when Jitter is set.
func (b BackoffConfig) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := float64(b.BaseMs)
	for i := 1; i < attempts; i++ {
		d *= b.Factor
	}
	if d > float64(b.MaxMs) {
		d = float64(b.MaxMs)
	}
	if b.Jitter {
		d = rand.Float64() * d
	}
	return time.Duration(d) * time.Millisecond
}

// Dispatcher delivers webhook payloads and reports outcome metrics.
type Dispatcher struct {
	httpClient *http.Client
	log        *logger.Logger

	meter            metric.Meter
	dispatchCounter  metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// NewDispatcher builds a Dispatcher, registering the otel counters and
// histogram the same way the reference webhook processor does.
func NewDispatcher(log *logger.Logger) (*Dispatcher, error) {
	meter := otel.Meter("deposit-watcher-webhook")

	dispatchCounter, err := meter.Int64Counter(
		"webhook.dispatch.total",
		metric.WithDescription("Total number of webhook dispatch attempts, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook dispatch counter: %w", err)
	}

	durationHistogram, err := meter.Float64Histogram(
		"webhook.dispatch.duration.seconds",
		metric.WithDescription("Webhook dispatch attempt duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook duration histogram: %w", err)
	}

	return &Dispatcher{
		httpClient:        &http.Client{},
		log:               log,
		meter:             meter,
		dispatchCounter:   dispatchCounter,
		durationHistogram: durationHistogram,
	}, nil
}

// Dispatch POSTs payload to url with the shared-secret header, returning
// (ok, statusCode, error) per spec §4.6. ok is true iff status is in
// [200, 300). Network errors yield ok=false, statusCode=0.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload, url, secret string, timeout time.Duration) Result {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{OK: false, Error: fmt.Errorf("marshal webhook payload: %w", err)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{OK: false, Error: fmt.Errorf("build webhook request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, secret)

	resp, err := d.httpClient.Do(req)
	d.recordMetrics(ctx, payload.Ticker, err == nil && resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300, time.Since(start))

	if err != nil {
		return Result{OK: false, StatusCode: 0, Error: err}
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		return Result{OK: false, StatusCode: resp.StatusCode, Error: fmt.Errorf("webhook responded with status %d", resp.StatusCode)}
	}
	return Result{OK: true, StatusCode: resp.StatusCode}
}

func (d *Dispatcher) recordMetrics(ctx context.Context, ticker string, ok bool, elapsed time.Duration) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	d.dispatchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("ticker", ticker), attribute.String("outcome", outcome)))
	d.durationHistogram.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("ticker", ticker)))
}
