package sqlstore

import "github.com/goliatone/go-payments/core"

var (
	_ core.MerchantStore          = (*MerchantStore)(nil)
	_ core.OrderStore             = (*OrderStore)(nil)
	_ core.PaymentStore           = (*PaymentStore)(nil)
	_ core.RefundStore            = (*RefundStore)(nil)
	_ core.WebhookStore           = (*WebhookStore)(nil)
	_ core.WebhookLogStore        = (*WebhookLogStore)(nil)
	_ core.IdempotencyStore       = (*IdempotencyStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
