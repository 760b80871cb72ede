package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-payments/adapters/gocommand"
	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
	paymentsquery "github.com/goliatone/go-payments/query"
)

const contentTypeJSON = "application/json; charset=utf-8"

type createOrderBody struct {
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency,omitempty"`
	Receipt  string         `json:"receipt,omitempty"`
	Notes    map[string]any `json:"notes,omitempty"`
}

type cardBody struct {
	Number      string     `json:"number"`
	ExpiryMonth flexString `json:"expiry_month"`
	ExpiryYear  flexString `json:"expiry_year"`
	CVV         string     `json:"cvv"`
	HolderName  string     `json:"holder_name,omitempty"`
}

type createPaymentBody struct {
	OrderID string    `json:"order_id"`
	Method  string    `json:"method"`
	VPA     string    `json:"vpa,omitempty"`
	Card    *cardBody `json:"card,omitempty"`
}

type createRefundBody struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason,omitempty"`
}

type registerWebhookBody struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

// flexString accepts a JSON string or number. Card expiry fields arrive in
// both forms.
type flexString string

func (f *flexString) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		*f = ""
		return nil
	}
	if raw[0] == '"' {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		*f = flexString(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return err
	}
	*f = flexString(number.String())
	return nil
}

func bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		badRequest(c, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) createOrder(c *gin.Context) {
	var body createOrderBody
	if !bindJSON(c, &body) {
		return
	}
	merchant := merchantFrom(c)
	order, err := gocommand.DispatchWithResult[paymentscommand.CreateOrderMessage, core.Order](c.Request.Context(),
		paymentscommand.CreateOrderMessage{Request: core.CreateOrderRequest{
			MerchantID: merchant.ID,
			Amount:     body.Amount,
			Currency:   body.Currency,
			Receipt:    body.Receipt,
			Notes:      body.Notes,
		}})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderView(order))
}

func (s *Server) listOrders(c *gin.Context) {
	orders, err := gocommand.Query[paymentsquery.ListOrdersMessage, []core.Order](c.Request.Context(),
		paymentsquery.ListOrdersMessage{MerchantID: merchantFrom(c).ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(orders, newOrderView))
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := gocommand.Query[paymentsquery.GetOrderMessage, core.Order](c.Request.Context(),
		paymentsquery.GetOrderMessage{MerchantID: merchantFrom(c).ID, OrderID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(order))
}

func (s *Server) createPayment(c *gin.Context) {
	var body createPaymentBody
	if !bindJSON(c, &body) {
		return
	}
	merchant := merchantFrom(c)
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	req := core.CreatePaymentRequest{
		MerchantID:     merchant.ID,
		OrderID:        body.OrderID,
		Method:         core.PaymentMethod(body.Method),
		VPA:            body.VPA,
		IdempotencyKey: key,
	}
	if body.Card != nil {
		req.Card = &core.CardDetails{
			Number:      body.Card.Number,
			ExpiryMonth: string(body.Card.ExpiryMonth),
			ExpiryYear:  string(body.Card.ExpiryYear),
			CVV:         body.Card.CVV,
			HolderName:  body.Card.HolderName,
		}
	}
	s.idempotent(c, merchant.ID, key, body, func(ctx context.Context) (int, any, error) {
		payment, err := gocommand.DispatchWithResult[paymentscommand.CreatePaymentMessage, core.Payment](ctx,
			paymentscommand.CreatePaymentMessage{Request: req})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, newPaymentView(payment), nil
	})
}

func (s *Server) listPayments(c *gin.Context) {
	payments, err := gocommand.Query[paymentsquery.ListPaymentsMessage, []core.Payment](c.Request.Context(),
		paymentsquery.ListPaymentsMessage{MerchantID: merchantFrom(c).ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(payments, newPaymentView))
}

func (s *Server) getPayment(c *gin.Context) {
	payment, err := gocommand.Query[paymentsquery.GetPaymentMessage, core.Payment](c.Request.Context(),
		paymentsquery.GetPaymentMessage{MerchantID: merchantFrom(c).ID, PaymentID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentView(payment))
}

func (s *Server) capturePayment(c *gin.Context) {
	payment, err := gocommand.DispatchWithResult[paymentscommand.CapturePaymentMessage, core.Payment](c.Request.Context(),
		paymentscommand.CapturePaymentMessage{MerchantID: merchantFrom(c).ID, PaymentID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentView(payment))
}

func (s *Server) listPaymentLogs(c *gin.Context) {
	logs, err := gocommand.Query[paymentsquery.ListPaymentLogsMessage, []core.PaymentLog](c.Request.Context(),
		paymentsquery.ListPaymentLogsMessage{MerchantID: merchantFrom(c).ID, PaymentID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(logs, func(log core.PaymentLog) paymentLogView {
		return paymentLogView{
			ID:        log.ID,
			PaymentID: log.PaymentID,
			OldStatus: string(log.OldStatus),
			NewStatus: string(log.NewStatus),
			WorkerID:  log.WorkerID,
			CreatedAt: log.CreatedAt,
		}
	}))
}

func (s *Server) listRefunds(c *gin.Context) {
	refunds, err := gocommand.Query[paymentsquery.ListRefundsMessage, []core.Refund](c.Request.Context(),
		paymentsquery.ListRefundsMessage{MerchantID: merchantFrom(c).ID, PaymentID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(refunds, newRefundView))
}

func (s *Server) createRefund(c *gin.Context) {
	var body createRefundBody
	if !bindJSON(c, &body) {
		return
	}
	merchant := merchantFrom(c)
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	s.idempotent(c, merchant.ID, key, body, func(ctx context.Context) (int, any, error) {
		refund, err := gocommand.DispatchWithResult[paymentscommand.CreateRefundMessage, core.Refund](ctx,
			paymentscommand.CreateRefundMessage{Request: core.CreateRefundRequest{
				MerchantID: merchant.ID,
				PaymentID:  body.PaymentID,
				Amount:     body.Amount,
				Reason:     body.Reason,
			}})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, newRefundView(refund), nil
	})
}

func (s *Server) getRefund(c *gin.Context) {
	refund, err := gocommand.Query[paymentsquery.GetRefundMessage, core.Refund](c.Request.Context(),
		paymentsquery.GetRefundMessage{MerchantID: merchantFrom(c).ID, RefundID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRefundView(refund))
}

// registerWebhook accepts the url as JSON or as a query parameter.
func (s *Server) registerWebhook(c *gin.Context) {
	var body registerWebhookBody
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &body) {
			return
		}
	}
	if strings.TrimSpace(body.URL) == "" {
		body.URL = c.Query("url")
	}
	webhook, err := gocommand.DispatchWithResult[paymentscommand.RegisterWebhookMessage, core.Webhook](c.Request.Context(),
		paymentscommand.RegisterWebhookMessage{Request: core.RegisterWebhookRequest{
			MerchantID: merchantFrom(c).ID,
			URL:        body.URL,
			Secret:     body.Secret,
		}})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWebhookView(webhook, true))
}

func (s *Server) listWebhooks(c *gin.Context) {
	webhooks, err := gocommand.Query[paymentsquery.ListWebhooksMessage, []core.Webhook](c.Request.Context(),
		paymentsquery.ListWebhooksMessage{MerchantID: merchantFrom(c).ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(webhooks, func(webhook core.Webhook) webhookView {
		return newWebhookView(webhook, false)
	}))
}

func (s *Server) setWebhookActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		webhook, err := gocommand.DispatchWithResult[paymentscommand.SetWebhookActiveMessage, core.Webhook](c.Request.Context(),
			paymentscommand.SetWebhookActiveMessage{MerchantID: merchantFrom(c).ID, WebhookID: c.Param("id"), Active: active})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, newWebhookView(webhook, false))
	}
}

func (s *Server) listWebhookLogs(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	logs, err := gocommand.Query[paymentsquery.ListWebhookLogsMessage, []core.WebhookLog](c.Request.Context(),
		paymentsquery.ListWebhookLogsMessage{MerchantID: merchantFrom(c).ID, Limit: limit})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(logs, newWebhookLogView))
}

func (s *Server) getWebhookLog(c *gin.Context) {
	log, err := gocommand.Query[paymentsquery.GetWebhookLogMessage, core.WebhookLog](c.Request.Context(),
		paymentsquery.GetWebhookLogMessage{MerchantID: merchantFrom(c).ID, LogID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWebhookLogView(log))
}

func (s *Server) retryWebhookLog(c *gin.Context) {
	log, err := gocommand.DispatchWithResult[paymentscommand.RetryWebhookMessage, core.WebhookLog](c.Request.Context(),
		paymentscommand.RetryWebhookMessage{MerchantID: merchantFrom(c).ID, LogID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Webhook retry scheduled",
		"log":     newWebhookLogView(log),
	})
}

func (s *Server) jobStatus(c *gin.Context) {
	report, err := gocommand.Query[paymentsquery.JobStatusMessage, core.JobStatusReport](c.Request.Context(),
		paymentsquery.JobStatusMessage{})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobStatusView(report))
}

func (s *Server) reconcile(c *gin.Context) {
	stats, err := gocommand.DispatchWithResult[paymentscommand.ReconcileMessage, core.ReconcileStats](c.Request.Context(),
		paymentscommand.ReconcileMessage{})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"scanned":    stats.Scanned,
		"reconciled": stats.Reconciled,
		"skipped":    stats.Skipped,
		"alerted":    stats.Alerted,
	})
}

func (s *Server) getTestMerchant(c *gin.Context) {
	if s.testMerchant == nil {
		writeError(c, core.NotFoundError("test merchant", ""))
		return
	}
	merchant, err := s.testMerchant(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         merchant.ID,
		"email":      merchant.Email,
		"api_key":    merchant.APIKey,
		"api_secret": merchant.APISecret,
		"seeded":     true,
	})
}

func (s *Server) health(c *gin.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	code := http.StatusOK
	body := gin.H{}
	for _, name := range names {
		if err := s.checks[name](c.Request.Context()); err != nil {
			body[name] = "disconnected"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		body[name] = "connected"
	}
	body["status"] = status
	body["timestamp"] = s.now().UTC()
	c.JSON(code, body)
}

// idempotent runs create once per Idempotency-Key and replays the exact
// bytes of the first response on repeats.
func (s *Server) idempotent(
	c *gin.Context,
	merchantID string,
	key string,
	payload any,
	create func(ctx context.Context) (int, any, error),
) {
	run := func(ctx context.Context) (int, []byte, error) {
		status, view, err := create(ctx)
		if err != nil {
			return 0, nil, err
		}
		body, err := json.Marshal(view)
		if err != nil {
			return 0, nil, err
		}
		return status, body, nil
	}

	ctx := c.Request.Context()
	if s.idempotency == nil || key == "" {
		status, body, err := run(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(status, contentTypeJSON, body)
		return
	}
	response, replayed, err := s.idempotency.Execute(ctx, merchantID, key, payload, run)
	if err != nil {
		writeError(c, err)
		return
	}
	if replayed {
		c.Header(HeaderReplayed, "true")
	}
	c.Data(response.StatusCode, contentTypeJSON, response.Body)
}
