// Package transport carries outbound webhook requests over HTTP.
package transport

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-payments/webhooks"
)

const defaultSendTimeout = 5 * time.Second

// RestySender posts webhook requests with go-resty. Redirects are not
// followed so a 3xx is recorded as the subscription's answer.
type RestySender struct {
	Client    *resty.Client
	Timeout   time.Duration
	UserAgent string
}

func NewRestySender(timeout time.Duration) *RestySender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.NoRedirectPolicy())
	return &RestySender{
		Client:    client,
		Timeout:   timeout,
		UserAgent: "go-payments-webhooks/1",
	}
}

// NewRestySenderWithClient wraps an existing http.Client, mainly for tests.
func NewRestySenderWithClient(client *http.Client, timeout time.Duration) *RestySender {
	sender := NewRestySender(timeout)
	if client != nil {
		sender.Client = resty.NewWithClient(client).
			SetTimeout(sender.Timeout).
			SetRedirectPolicy(resty.NoRedirectPolicy())
	}
	return sender
}

func (s *RestySender) Send(ctx context.Context, req webhooks.Request) (webhooks.Response, error) {
	if s == nil || s.Client == nil {
		return webhooks.Response{}, sendError(
			"transport: resty sender is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	target := strings.TrimSpace(req.URL)
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return webhooks.Response{}, wrapSendError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid webhook url",
			http.StatusBadRequest,
			map[string]any{"url": target},
		)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	request := s.Client.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetBody(req.Body)
	if s.UserAgent != "" {
		request.SetHeader("User-Agent", s.UserAgent)
	}
	resp, err := request.Post(target)
	if err != nil {
		return webhooks.Response{}, wrapSendError(
			err,
			goerrors.CategoryExternal,
			"transport: webhook request failed",
			http.StatusBadGateway,
			map[string]any{"url": target},
		)
	}
	return webhooks.Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.String(),
	}, nil
}

var _ webhooks.Sender = (*RestySender)(nil)
