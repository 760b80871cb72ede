package core

import (
	"context"
	"crypto/subtle"
	"net/url"
	"strings"
	"time"
)

type CreateMerchantRequest struct {
	Name      string
	Email     string
	APIKey    string
	APISecret string
}

func (s *Service) CreateMerchant(ctx context.Context, req CreateMerchantRequest) (merchant Merchant, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if merchant.ID != "" {
			fields["merchant_id"] = merchant.ID
		}
		s.observeOperation(ctx, startedAt, "create_merchant", err, fields)
	}()

	now := s.clock()
	merchant = Merchant{
		ID:        s.generateID(IDPrefixMerchant),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		APIKey:    strings.TrimSpace(req.APIKey),
		APISecret: strings.TrimSpace(req.APISecret),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if merchant.APIKey == "" {
		merchant.APIKey = GenerateSecret()
	}
	if merchant.APISecret == "" {
		merchant.APISecret = GenerateSecret() + GenerateSecret()
	}
	if merchant.Email == "" {
		merchant.Email = "merchant_" + GenerateSecret()[:8] + "@test.com"
	}
	merchant, err = s.merchants.Create(ctx, merchant)
	if err != nil {
		err = MapError(err)
		return Merchant{}, err
	}
	return merchant, nil
}

// Test merchant credentials seeded for local and test-mode deployments.
const (
	TestMerchantEmail     = "test@example.com"
	TestMerchantAPIKey    = "key_test_abc123"
	TestMerchantAPISecret = "secret_test_xyz789"
)

// SeedTestMerchant creates the well known test merchant unless a merchant with
// its api key already exists. created reports whether a row was inserted.
func (s *Service) SeedTestMerchant(ctx context.Context) (merchant Merchant, created bool, err error) {
	existing, err := s.merchants.GetByAPIKey(ctx, TestMerchantAPIKey)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return Merchant{}, false, MapError(err)
	}
	merchant, err = s.CreateMerchant(ctx, CreateMerchantRequest{
		Name:      "Test Merchant",
		Email:     TestMerchantEmail,
		APIKey:    TestMerchantAPIKey,
		APISecret: TestMerchantAPISecret,
	})
	if err != nil {
		return Merchant{}, false, err
	}
	return merchant, true, nil
}

// AuthenticateMerchant resolves the merchant owning apiKey and checks the
// secret in constant time.
func (s *Service) AuthenticateMerchant(ctx context.Context, apiKey string, apiSecret string) (Merchant, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return Merchant{}, AuthenticationError("")
	}
	merchant, err := s.merchants.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if IsNotFound(err) {
			return Merchant{}, AuthenticationError("")
		}
		return Merchant{}, MapError(err)
	}
	if subtle.ConstantTimeCompare([]byte(merchant.APISecret), []byte(apiSecret)) != 1 {
		return Merchant{}, AuthenticationError("")
	}
	return merchant, nil
}

func (s *Service) GetMerchant(ctx context.Context, merchantID string) (Merchant, error) {
	merchant, err := s.merchants.Get(ctx, strings.TrimSpace(merchantID))
	if err != nil {
		return Merchant{}, notFoundOr(err, "Merchant", merchantID)
	}
	return merchant, nil
}

type RegisterWebhookRequest struct {
	MerchantID string
	URL        string
	Secret     string
}

func (s *Service) RegisterWebhook(ctx context.Context, req RegisterWebhookRequest) (webhook Webhook, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"merchant_id": req.MerchantID}
	defer func() {
		s.observeOperation(ctx, startedAt, "register_webhook", err, fields)
	}()

	target := strings.TrimSpace(req.URL)
	parsed, parseErr := url.Parse(target)
	if target == "" || parseErr != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		err = ValidationError("url", "Invalid URL")
		return Webhook{}, err
	}
	now := s.clock()
	webhook = Webhook{
		ID:         s.generateID(IDPrefixWebhook),
		MerchantID: strings.TrimSpace(req.MerchantID),
		URL:        target,
		Secret:     strings.TrimSpace(req.Secret),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if webhook.Secret == "" {
		webhook.Secret = GenerateSecret()
	}
	webhook, err = s.webhooks.Create(ctx, webhook)
	if err != nil {
		err = MapError(err)
		return Webhook{}, err
	}
	return webhook, nil
}

func (s *Service) ListWebhooks(ctx context.Context, merchantID string) ([]Webhook, error) {
	webhooks, err := s.webhooks.ListByMerchant(ctx, strings.TrimSpace(merchantID))
	if err != nil {
		return nil, MapError(err)
	}
	return webhooks, nil
}

func (s *Service) SetWebhookActive(ctx context.Context, merchantID string, webhookID string, active bool) (webhook Webhook, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"merchant_id": merchantID, "webhook_id": webhookID, "active": active}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_webhook_active", err, fields)
	}()

	existing, err := s.webhooks.Get(ctx, strings.TrimSpace(webhookID))
	if err != nil {
		err = notFoundOr(err, "Webhook", webhookID)
		return Webhook{}, err
	}
	if existing.MerchantID != strings.TrimSpace(merchantID) {
		err = NotFoundError("Webhook", webhookID)
		return Webhook{}, err
	}
	webhook, err = s.webhooks.SetActive(ctx, existing.ID, active)
	if err != nil {
		err = MapError(err)
		return Webhook{}, err
	}
	return webhook, nil
}

func notFoundOr(err error, entity string, id string) error {
	if IsNotFound(err) {
		return NotFoundError(entity, id)
	}
	return MapError(err)
}
