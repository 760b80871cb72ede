package core

import (
	"context"
	"strings"
	"time"
)

type CreateOrderRequest struct {
	MerchantID string
	Amount     int64
	Currency   string
	Receipt    string
	Notes      map[string]any
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (order Order, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"merchant_id": req.MerchantID, "amount": req.Amount}
	defer func() {
		if order.ID != "" {
			fields["order_id"] = order.ID
		}
		s.observeOperation(ctx, startedAt, "create_order", err, fields)
	}()

	if req.Amount < MinimumOrderAmount {
		err = ValidationError("amount", "amount must be at least 100")
		return Order{}, err
	}
	now := s.clock()
	order = Order{
		ID:         s.generateID(IDPrefixOrder),
		MerchantID: strings.TrimSpace(req.MerchantID),
		Amount:     req.Amount,
		Currency:   normalizeCurrency(req.Currency),
		Status:     OrderStatusCreated,
		Receipt:    strings.TrimSpace(req.Receipt),
		Notes:      cloneAnyMap(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if order.Receipt == "" {
		order.Receipt = s.generateID(IDPrefixReceipt)
	}
	order, err = s.orders.Create(ctx, order)
	if err != nil {
		err = MapError(err)
		return Order{}, err
	}
	return order, nil
}

// GetOrder returns the order only if merchantID owns it.
func (s *Service) GetOrder(ctx context.Context, merchantID string, orderID string) (Order, error) {
	order, err := s.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return Order{}, notFoundOr(err, "Order", orderID)
	}
	if order.MerchantID != strings.TrimSpace(merchantID) {
		return Order{}, NotFoundError("Order", orderID)
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, merchantID string) ([]Order, error) {
	orders, err := s.orders.ListByMerchant(ctx, strings.TrimSpace(merchantID))
	if err != nil {
		return nil, MapError(err)
	}
	return orders, nil
}
