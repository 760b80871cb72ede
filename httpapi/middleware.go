package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-payments/core"
)

const (
	ctxKeyMerchant  = "payments.merchant"
	ctxKeyRequestID = "payments.request_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rid == "" {
			rid = newRequestID()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

func newRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "req_fallback"
	}
	return hex.EncodeToString(b)
}

func accessLog(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"request_id", c.GetString(ctxKeyRequestID),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Error())
		}
		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("http request", args...)
		case status >= http.StatusBadRequest:
			log.Warn("http request", args...)
		default:
			log.Info("http request", args...)
		}
	}
}

func recovery(logger core.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("http handler panic", "path", c.FullPath(), "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Code:        core.ErrorCodeInternal,
			Description: "Something went wrong",
		}})
	})
}

// authenticate resolves the merchant from the API key pair. Missing headers
// and unknown pairs get the same 401.
func authenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		secret := strings.TrimSpace(c.GetHeader(HeaderAPISecret))
		if key == "" || secret == "" {
			writeError(c, core.AuthenticationError(""))
			return
		}
		merchant, err := auth.AuthenticateMerchant(c.Request.Context(), key, secret)
		if err != nil {
			if core.IsNotFound(err) || core.IsValidation(err) {
				err = core.AuthenticationError("")
			}
			writeError(c, err)
			return
		}
		c.Set(ctxKeyMerchant, merchant)
		c.Next()
	}
}

func merchantFrom(c *gin.Context) core.Merchant {
	value, _ := c.Get(ctxKeyMerchant)
	merchant, _ := value.(core.Merchant)
	return merchant
}
