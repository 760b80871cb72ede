package command

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"

	"github.com/goliatone/go-payments/adapters/gocommand"
)

// Register subscribes every gateway command on the dispatcher and records it
// in the registry. Subscriptions already created are released on failure.
func Register(
	adapter *gocommand.RegistryAdapter,
	service MutatingService,
	retrier WebhookRetrier,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil {
		return nil, fmt.Errorf("command: registry adapter is required")
	}
	if service == nil {
		return nil, fmt.Errorf("command: mutating service is required")
	}

	subscriptions := []commanddispatcher.Subscription{}
	add := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subscriptions = append(subscriptions, sub)
		return nil
	}
	steps := []func() error{
		func() error { return add(gocommand.RegisterAndSubscribe[CreateMerchantMessage](adapter, NewCreateMerchantCommand(service))) },
		func() error { return add(gocommand.RegisterAndSubscribe[CreateOrderMessage](adapter, NewCreateOrderCommand(service))) },
		func() error { return add(gocommand.RegisterAndSubscribe[CreatePaymentMessage](adapter, NewCreatePaymentCommand(service))) },
		func() error { return add(gocommand.RegisterAndSubscribe[CapturePaymentMessage](adapter, NewCapturePaymentCommand(service))) },
		func() error { return add(gocommand.RegisterAndSubscribe[CreateRefundMessage](adapter, NewCreateRefundCommand(service))) },
		func() error { return add(gocommand.RegisterAndSubscribe[RegisterWebhookMessage](adapter, NewRegisterWebhookCommand(service))) },
		func() error { return add(gocommand.RegisterAndSubscribe[SetWebhookActiveMessage](adapter, NewSetWebhookActiveCommand(service))) },
		func() error { return add(gocommand.RegisterAndSubscribe[ReconcileMessage](adapter, NewReconcileCommand(service))) },
		func() error { return add(gocommand.RegisterAndSubscribe[PurgeIdempotencyMessage](adapter, NewPurgeIdempotencyCommand(service))) },
	}
	if retrier != nil {
		steps = append(steps, func() error {
			return add(gocommand.RegisterAndSubscribe[RetryWebhookMessage](adapter, NewRetryWebhookCommand(retrier)))
		})
	}
	for _, step := range steps {
		if err := step(); err != nil {
			for _, sub := range subscriptions {
				sub.Unsubscribe()
			}
			return nil, err
		}
	}
	return subscriptions, nil
}
