package query

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"

	"github.com/goliatone/go-payments/adapters/gocommand"
	"github.com/goliatone/go-payments/core"
)

// Register subscribes the read queries. Webhook log queries are only added
// when a log reader is supplied.
func Register(
	adapter *gocommand.RegistryAdapter,
	reader Reader,
	logs WebhookLogReader,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil {
		return nil, fmt.Errorf("query: registry adapter is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("query: reader is required")
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
		func() error { return add(gocommand.RegisterAndSubscribeQuery[GetOrderMessage, core.Order](adapter, NewGetOrderQuery(reader))) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery[ListOrdersMessage, []core.Order](adapter, NewListOrdersQuery(reader))) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery[GetPaymentMessage, core.Payment](adapter, NewGetPaymentQuery(reader))) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery[ListPaymentsMessage, []core.Payment](adapter, NewListPaymentsQuery(reader))) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery[ListPaymentLogsMessage, []core.PaymentLog](adapter, NewListPaymentLogsQuery(reader))) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery[GetRefundMessage, core.Refund](adapter, NewGetRefundQuery(reader))) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery[ListRefundsMessage, []core.Refund](adapter, NewListRefundsQuery(reader))) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery[ListWebhooksMessage, []core.Webhook](adapter, NewListWebhooksQuery(reader))) },
		func() error { return add(gocommand.RegisterAndSubscribeQuery[JobStatusMessage, core.JobStatusReport](adapter, NewJobStatusQuery(reader))) },
	}
	if logs != nil {
		steps = append(steps,
			func() error { return add(gocommand.RegisterAndSubscribeQuery[ListWebhookLogsMessage, []core.WebhookLog](adapter, NewListWebhookLogsQuery(logs))) },
			func() error { return add(gocommand.RegisterAndSubscribeQuery[GetWebhookLogMessage, core.WebhookLog](adapter, NewGetWebhookLogQuery(logs))) },
		)
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
