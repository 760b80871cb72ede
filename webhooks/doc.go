// Package webhooks delivers gateway events to merchant subscriptions.
//
// Each event becomes a WebhookLog that moves through:
// pending -> success, or pending -> pending (retry scheduled) -> failed.
// Every attempt posts to all active subscriptions of the merchant. It first
// claims the log with a lease covering that fan-out, so the immediate
// delivery path and the retry scheduler never send the same attempt twice,
// then commits its outcome in a single conditional write.
package webhooks
