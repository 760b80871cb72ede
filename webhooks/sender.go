package webhooks

import (
	"context"
	"time"
)

type Request struct {
	URL     string
	Body    []byte
	Headers map[string]string
	Timeout time.Duration
}

type Response struct {
	StatusCode int
	Body       string
}

// Sender posts one signed webhook request. A transport failure is returned
// as an error; any HTTP response, including non-2xx, is a Response.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

type SenderFunc func(ctx context.Context, req Request) (Response, error)

func (f SenderFunc) Send(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

func successful(code int) bool {
	return code >= 200 && code < 300
}
