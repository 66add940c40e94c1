// Package intake implements the Intake Surface (spec §4.9): the create,
// status, callback, and health HTTP handlers that write the initial Job
// and Status and validate incoming webhook-style callbacks.
package intake

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zano-fusd/deposit-watcher/internal/domainerr"
	"github.com/zano-fusd/deposit-watcher/internal/jobstore"
	"github.com/zano-fusd/deposit-watcher/internal/logger"
)

// TickerLookup resolves a ticker name to its configured policy, reporting
// whether the ticker is enabled at all.
type TickerLookup interface {
	Lookup(ticker string) (decimals int, assetID, depositAddress string, minConfirmations int, enabled bool)
}

// AddressMaker is the subset of walletrpc.Client Create needs to synthesize
// a per-Job integrated address for base-coin tickers.
type AddressMaker interface {
	MakeIntegratedAddress(ctx context.Context, paymentID string) (address, resolvedPaymentID string, err error)
}

// Config controls auth and rate-limiting for the Intake surface.
type Config struct {
	APIKey                   string
	WebhookSecret            string
	DefaultJobTTL            time.Duration
	RateLimitPerSecond       int
	RateLimitBurst           int
	StatusCacheTTL           time.Duration
}

// Server bundles the Intake handlers and their dependencies.
type Server struct {
	repo    *jobstore.Repository
	tickers TickerLookup
	addr    AddressMaker
	cfg     Config
	log     *logger.Logger

	limiter     *ipRateLimiter
	statusCache *statusCache
	startedAt   time.Time
}

// NewServer builds an intake Server and its gin router.
func NewServer(repo *jobstore.Repository, tickers TickerLookup, addr AddressMaker, cfg Config, log *logger.Logger) *Server {
	return &Server{
		repo:        repo,
		tickers:     tickers,
		addr:        addr,
		cfg:         cfg,
		log:         log,
		limiter:     newIPRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		statusCache: newStatusCache(cfg.StatusCacheTTL),
		startedAt:   time.Now(),
	}
}

// RegisterRoutes wires the Intake endpoints from spec §6 onto r.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/transaction/create", s.apiKeyAuth(), s.handleCreate)
	r.GET("/api/transaction/status/:ticker/:paymentId", s.statusRateLimit(), s.handleStatus)
	r.POST("/api/transaction/callback/:ticker", s.secretAuth(), s.handleCallback)
	r.GET("/health", s.handleHealth)
}

func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.APIKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "intake not configured"})
			c.Abort()
			return
		}
		if c.GetHeader("X-API-Key") != s.cfg.APIKey {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid api key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) secretAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.WebhookSecret == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "callback not configured"})
			c.Abort()
			return
		}
		if c.GetHeader("X-Zano-Secret") != s.cfg.WebhookSecret {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid secret"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) statusRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

type createRequest struct {
	Ticker          string `json:"ticker" binding:"required"`
	ClientReference string `json:"client_reference" binding:"required"`
	PaymentID       string `json:"payment_id"`
	ExpectedAmount  string `json:"expectedAmount"`
	TTLSeconds      int64  `json:"ttlSeconds"`
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "client_reference and ticker are required"})
		return
	}

	decimals, assetID, depositAddress, minConf, enabled := s.tickers.Lookup(req.Ticker)
	if !enabled {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": fmt.Sprintf("ticker %q is not enabled", req.Ticker)})
		return
	}

	paymentID := req.PaymentID
	address := depositAddress

	if assetID == "" {
		// Base-coin ticker: synthesize a unique integrated address per Job.
		a, p, err := s.addr.MakeIntegratedAddress(c.Request.Context(), paymentID)
		if err != nil {
			s.log.Error("make_integrated_address failed", "ticker", req.Ticker, "err", err)
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "wallet rpc unavailable"})
			return
		}
		address = a
		paymentID = p
	}
	if paymentID == "" {
		paymentID = uuid.NewString()
	}
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": fmt.Sprintf("ticker %q has no deposit address configured", req.Ticker)})
		return
	}

	ttl := s.cfg.DefaultJobTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	now := time.Now()
	job := &jobstore.Job{
		Ticker:          req.Ticker,
		Address:         address,
		PaymentID:       paymentID,
		ExpectedAmount:  req.ExpectedAmount,
		MinConf:         minConf,
		ClientReference: req.ClientReference,
		CreatedAt:       now,
	}
	if err := s.repo.CreateJob(c.Request.Context(), job); err != nil {
		s.log.Error("create job failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to create job"})
		return
	}

	status := &jobstore.Status{
		Status:                jobstore.StatusPending,
		Ticker:                req.Ticker,
		Address:               address,
		PaymentID:             paymentID,
		ClientReference:       req.ClientReference,
		RequiredConfirmations: minConf,
		CreatedAt:             now.UnixMilli(),
		UpdatedAt:             now.UnixMilli(),
	}
	if err := s.repo.PutStatus(c.Request.Context(), status); err != nil {
		s.log.Error("create status failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to write status"})
		return
	}

	_ = decimals // reserved for future amount validation against the ticker scale

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"jobKey":     jobstore.JobKey(s.repo.Prefix(), req.Ticker, paymentID),
		"status":     jobstore.StatusPending,
		"address":    address,
		"paymentId":  paymentID,
		"expiresAt":  now.Add(ttl).UnixMilli(),
		"ttlSeconds": int64(ttl.Seconds()),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	ticker := c.Param("ticker")
	paymentID := c.Param("paymentId")
	key := ticker + ":" + paymentID

	if status, found, hit := s.statusCache.get(key); hit {
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, status)
		return
	}

	status, ok, err := s.repo.GetStatus(c.Request.Context(), ticker, paymentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}
	s.statusCache.put(key, status, ok)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

type callbackRequest struct {
	PaymentID       string `json:"paymentId" binding:"required"`
	Address         string `json:"address"`
	Amount          string `json:"amount"`
	AmountAtomic    string `json:"amountAtomic" binding:"required"`
	ExpectedAmount  string `json:"expectedAmount"`
	Confirmations   int    `json:"confirmations"`
	Hash            string `json:"hash" binding:"required"`
	ClientReference string `json:"clientReference"`
	CreatedAt       int64  `json:"createdAt"`
}

func (s *Server) handleCallback(c *gin.Context) {
	ticker := c.Param("ticker")

	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": domainerr.ValidationError("body", err.Error()).Error()})
		return
	}

	now := time.Now()
	createdAt := req.CreatedAt
	if createdAt == 0 {
		createdAt = now.UnixMilli()
	}

	status := &jobstore.Status{
		Status:                jobstore.StatusCompleted,
		Ticker:                ticker,
		Address:               req.Address,
		PaymentID:             req.PaymentID,
		ClientReference:       req.ClientReference,
		Confirmations:         req.Confirmations,
		RequiredConfirmations: req.Confirmations,
		Hash:                  req.Hash,
		PaidAmount:            req.Amount,
		PaidAmountAtomic:      req.AmountAtomic,
		EffectiveAmount:       req.Amount,
		EffectiveAmountAtomic: req.AmountAtomic,
		CreatedAt:             createdAt,
		UpdatedAt:             now.UnixMilli(),
	}
	if err := s.repo.PutStatus(c.Request.Context(), status); err != nil {
		s.log.Error("callback status write failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to write status"})
		return
	}
	if err := s.repo.MarkSeen(c.Request.Context(), req.Hash); err != nil {
		s.log.Warn("callback seen-mark failed", "err", err)
	}
	_ = s.repo.DeleteJob(c.Request.Context(), ticker, req.PaymentID)

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": jobstore.StatusCompleted})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).String(),
	})
}
