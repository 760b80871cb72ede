// Package httpapi is the merchant facing HTTP surface of the gateway. Writes
// and reads go through the go-command dispatcher, so the command and query
// packages must be registered before requests are served.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-payments/core"
)

const (
	HeaderAPIKey         = "X-Api-Key"
	HeaderAPISecret      = "X-Api-Secret"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	HeaderRequestID      = "X-Request-ID"
)

type Authenticator interface {
	AuthenticateMerchant(ctx context.Context, apiKey string, apiSecret string) (core.Merchant, error)
}

// HealthCheck returns nil when the named dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Authenticator Authenticator
	// Idempotency caches create responses. Nil disables replay.
	Idempotency *core.IdempotencyCache
	// TestMerchant backs GET /api/v1/test/merchant when set.
	TestMerchant func(ctx context.Context) (core.Merchant, error)
	HealthChecks map[string]HealthCheck
	Logger       core.Logger
	Now          func() time.Time
}

type Server struct {
	engine       *gin.Engine
	auth         Authenticator
	idempotency  *core.IdempotencyCache
	testMerchant func(ctx context.Context) (core.Merchant, error)
	checks       map[string]HealthCheck
	logger       core.Logger
	now          func() time.Time
}

func NewServer(opts Options) (*Server, error) {
	if opts.Authenticator == nil {
		return nil, fmt.Errorf("httpapi: authenticator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	s := &Server{
		engine:       gin.New(),
		auth:         opts.Authenticator,
		idempotency:  opts.Idempotency,
		testMerchant: opts.TestMerchant,
		checks:       opts.HealthChecks,
		logger:       logger,
		now:          now,
	}
	s.engine.Use(requestID(), accessLog(logger), recovery(logger))
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	v1 := s.engine.Group("/api/v1")
	v1.GET("/health", s.health)
	v1.GET("/test/merchant", s.getTestMerchant)
	v1.GET("/test/jobs/status", s.jobStatus)
	v1.GET("/test/jobs/reconcile", s.reconcile)
	v1.POST("/test/jobs/reconcile", s.reconcile)

	api := v1.Group("", authenticate(s.auth))
	api.POST("/orders", s.createOrder)
	api.GET("/orders", s.listOrders)
	api.GET("/orders/:id", s.getOrder)

	api.POST("/payments", s.createPayment)
	api.GET("/payments", s.listPayments)
	api.GET("/payments/:id", s.getPayment)
	api.POST("/payments/:id/capture", s.capturePayment)
	api.GET("/payments/:id/logs", s.listPaymentLogs)
	api.GET("/payments/:id/refunds", s.listRefunds)

	api.POST("/refunds", s.createRefund)
	api.GET("/refunds/:id", s.getRefund)

	api.POST("/webhooks", s.registerWebhook)
	api.GET("/webhooks", s.listWebhooks)
	api.POST("/webhooks/:id/activate", s.setWebhookActive(true))
	api.POST("/webhooks/:id/deactivate", s.setWebhookActive(false))

	api.GET("/webhook-logs", s.listWebhookLogs)
	api.GET("/webhook-logs/:id", s.getWebhookLog)
	api.POST("/webhook-logs/:id/retry", s.retryWebhookLog)
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return <-errCh
}
