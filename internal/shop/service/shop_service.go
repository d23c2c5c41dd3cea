package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-system/internal/domain"
	"storefront-system/internal/payment/mercadopago"
	"storefront-system/internal/shop/repository"
	tenantrepo "storefront-system/internal/tenant/repository"
)

// Publisher is the slice of the RabbitMQ client the service needs.
type Publisher interface {
	Publish(ctx context.Context, key string, body []byte) error
}

// Gateway is the payment collaborator. Implemented by mercadopago.Client.
type Gateway interface {
	CreatePreference(ctx context.Context, apiKey string, pref mercadopago.PreferenceRequest) (mercadopago.Preference, error)
	GetPayment(ctx context.Context, apiKey, paymentID string) (mercadopago.Payment, error)
}

type ShopServiceInterface interface {
	Catalog(ctx context.Context, tenantID int64) ([]domain.Category, []domain.Product, error)
	CreateCategory(ctx context.Context, tenantID int64, name string) (int64, error)
	CreateProduct(ctx context.Context, p domain.Product) (int64, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, tenantID, productID int64) error

	GuestCart(ctx context.Context, phone string) (domain.Cart, error)
	AddToCart(ctx context.Context, phone string, productID int64, qty int) (domain.Cart, error)
	SetQuantity(ctx context.Context, phone string, itemID int64, qty int) (domain.Cart, error)
	RemoveFromCart(ctx context.Context, phone string, itemID int64) (domain.Cart, error)

	Checkout(ctx context.Context, phone string) (string, error)
	ConfirmRedirect(ctx context.Context, query url.Values) (bool, error)
	ProcessWebhook(ctx context.Context, tenantID int64, body []byte, query url.Values) error

	PaidOrders(ctx context.Context, tenantID int64) ([]domain.Order, error)
	ActiveCarts(ctx context.Context, tenantID int64) ([]domain.Cart, error)
	DeleteCart(ctx context.Context, tenantID int64, cartID uuid.UUID) error
	CustomerOrders(ctx context.Context, phone string, tenantID int64) ([]domain.Order, error)
}

type ShopService struct {
	repo    repository.ShopRepositoryInterface
	tenants tenantrepo.TenantRepositoryInterface
	gateway Gateway
	pub     Publisher
	baseURL string
	lg      zerolog.Logger
}

func NewShopService(
	repo repository.ShopRepositoryInterface,
	tenants tenantrepo.TenantRepositoryInterface,
	gateway Gateway,
	pub Publisher,
	baseURL string,
	lg zerolog.Logger,
) ShopServiceInterface {
	return &ShopService{repo: repo, tenants: tenants, gateway: gateway, pub: pub, baseURL: baseURL, lg: lg}
}

// CartTotal sums price x quantity over the cart lines. Pure; exact decimal
// arithmetic, no fees.
func CartTotal(items []domain.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (s *ShopService) Catalog(ctx context.Context, tenantID int64) ([]domain.Category, []domain.Product, error) {
	categories, err := s.repo.ListCategories(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	products, err := s.repo.ListProducts(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return categories, products, nil
}

func (s *ShopService) CreateCategory(ctx context.Context, tenantID int64, name string) (int64, error) {
	return s.repo.CreateCategory(ctx, domain.Category{TenantID: tenantID, Name: name})
}

func (s *ShopService) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	return s.repo.CreateProduct(ctx, p)
}

func (s *ShopService) UpdateProduct(ctx context.Context, p domain.Product) error {
	return s.repo.UpdateProduct(ctx, p)
}

func (s *ShopService) DeleteProduct(ctx context.Context, tenantID, productID int64) error {
	return s.repo.DeleteProduct(ctx, tenantID, productID)
}

func (s *ShopService) GuestCart(ctx context.Context, phone string) (domain.Cart, error) {
	if phone == "" {
		return domain.Cart{}, errors.New("phone number is required")
	}
	return s.repo.GetOrCreateCart(ctx, phone)
}

func (s *ShopService) AddToCart(ctx context.Context, phone string, productID int64, qty int) (domain.Cart, error) {
	cart, err := s.repo.GetOrCreateCart(ctx, phone)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.repo.AddCartItem(ctx, cart.ID, productID, qty); err != nil {
		return domain.Cart{}, err
	}
	return s.repo.GetCart(ctx, cart.ID)
}

func (s *ShopService) SetQuantity(ctx context.Context, phone string, itemID int64, qty int) (domain.Cart, error) {
	cart, err := s.repo.GetCartByPhone(ctx, phone)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.repo.SetCartItemQuantity(ctx, cart.ID, itemID, qty); err != nil {
		return domain.Cart{}, err
	}
	return s.repo.GetCart(ctx, cart.ID)
}

func (s *ShopService) RemoveFromCart(ctx context.Context, phone string, itemID int64) (domain.Cart, error) {
	cart, err := s.repo.GetCartByPhone(ctx, phone)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.repo.RemoveCartItem(ctx, cart.ID, itemID); err != nil {
		return domain.Cart{}, err
	}
	return s.repo.GetCart(ctx, cart.ID)
}

// Checkout registers a gateway preference for the whole cart and returns the
// hosted checkout URL. The cart id travels as the external reference and
// comes back on both confirmation paths.
func (s *ShopService) Checkout(ctx context.Context, phone string) (string, error) {
	cart, err := s.repo.GetCartByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	if len(cart.Items) == 0 {
		return "", domain.ErrCartEmpty
	}

	tenantID, err := s.repo.CartTenantID(ctx, cart.ID)
	if err != nil {
		return "", err
	}
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tenant.MercadoPagoAPIKey) == "" {
		return "", domain.ErrGatewayNotConfigured
	}

	items := make([]mercadopago.PreferenceItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, mercadopago.PreferenceItem{
			Title:      it.ProductName,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.InexactFloat64(),
			CurrencyID: "BRL",
		})
	}

	pref := mercadopago.PreferenceRequest{
		Items:             items,
		ExternalReference: cart.ID.String(),
		NotificationURL:   fmt.Sprintf("%s/webhooks/mercadopago/%d", s.baseURL, tenant.ID),
		BackURLs: mercadopago.BackURLs{
			Success: s.baseURL + "/payments/success",
			Failure: s.baseURL + "/payments/failure",
			Pending: s.baseURL + "/payments/pending",
		},
		AutoReturn: "approved",
		BinaryMode: true,
	}

	created, err := s.gateway.CreatePreference(ctx, strings.TrimSpace(tenant.MercadoPagoAPIKey), pref)
	if err != nil {
		return "", err
	}
	return created.InitPoint, nil
}

// ConfirmRedirect handles the buyer's browser returning from the gateway.
// The redirect query is attacker controlled, so the payment it references is
// fetched from the gateway and only a verified approved status materializes
// the order. Returns true when this call created the order, false when the
// cart was already consumed (the webhook won the race).
func (s *ShopService) ConfirmRedirect(ctx context.Context, query url.Values) (bool, error) {
	ref := query.Get("external_reference")
	status := query.Get("collection_status")
	if status == "" {
		status = query.Get("status")
	}
	paymentID := query.Get("payment_id")
	if paymentID == "" {
		paymentID = query.Get("collection_id")
	}
	if ref == "" || paymentID == "" || status != mercadopago.StatusApproved {
		return false, domain.ErrPaymentNotConfirmed
	}

	cartID, err := uuid.Parse(ref)
	if err != nil {
		return false, fmt.Errorf("invalid external reference %q: %w", ref, err)
	}
	tenantID, err := s.repo.CartTenantID(ctx, cartID)
	if errors.Is(err, domain.ErrCartEmpty) || errors.Is(err, domain.ErrCartNotFound) {
		// The cart is gone; the webhook already converted it.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	apiKey := strings.TrimSpace(tenant.MercadoPagoAPIKey)
	if apiKey == "" {
		return false, domain.ErrGatewayNotConfigured
	}

	payment, err := s.gateway.GetPayment(ctx, apiKey, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}
	if payment.Status != mercadopago.StatusApproved || payment.ExternalReference != ref {
		return false, domain.ErrPaymentNotConfirmed
	}
	return s.materialize(ctx, ref)
}

// ProcessWebhook handles the gateway's asynchronous notification. Both the
// V2 shape {type, data.id} and the V1/IPN shape {topic, resource} are
// accepted; the resource may be a full URL or the id may only appear in the
// query string. Unknown payloads are ignored.
func (s *ShopService) ProcessWebhook(ctx context.Context, tenantID int64, body []byte, query url.Values) error {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(tenant.MercadoPagoAPIKey) == "" {
		return domain.ErrGatewayNotConfigured
	}

	paymentID := extractPaymentID(body, query)
	if paymentID == "" {
		s.lg.Debug().Int64("tenant_id", tenantID).Msg("webhook without payment id, ignored")
		return nil
	}

	payment, err := s.gateway.GetPayment(ctx, strings.TrimSpace(tenant.MercadoPagoAPIKey), paymentID)
	if err != nil {
		return fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}
	if payment.Status != mercadopago.StatusApproved || payment.ExternalReference == "" {
		s.lg.Debug().Str("payment_id", paymentID).Str("status", payment.Status).Msg("payment not approved, ignored")
		return nil
	}

	created, err := s.materialize(ctx, payment.ExternalReference)
	if err != nil {
		return err
	}
	if !created {
		s.lg.Info().Str("external_reference", payment.ExternalReference).Msg("cart already processed")
	}
	return nil
}

// extractPaymentID pulls the payment id out of the webhook payload variants.
func extractPaymentID(body []byte, query url.Values) string {
	var payload struct {
		Type string `json:"type"`
		Data struct {
			ID json.Number `json:"id"`
		} `json:"data"`
		Topic    string `json:"topic"`
		Resource string `json:"resource"`
	}
	_ = json.Unmarshal(body, &payload)

	var id string
	switch {
	case payload.Type == "payment":
		id = payload.Data.ID.String()
	case payload.Topic == "payment":
		id = payload.Resource
		if id == "" {
			id = query.Get("id")
		}
	case query.Get("topic") == "payment":
		id = query.Get("id")
	}

	// An IPN resource may be a full URL; only the last segment is the id.
	if strings.HasPrefix(id, "http") {
		parts := strings.Split(strings.TrimRight(id, "/"), "/")
		id = parts[len(parts)-1]
	}
	return id
}

// materialize runs the claim-and-convert step and publishes the order event.
// A missing cart means the other confirmation path already consumed it.
func (s *ShopService) materialize(ctx context.Context, externalRef string) (bool, error) {
	cartID, err := uuid.Parse(externalRef)
	if err != nil {
		return false, fmt.Errorf("invalid external reference %q: %w", externalRef, err)
	}

	order, err := s.repo.MaterializeCart(ctx, cartID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.publishOrderCreated(ctx, order)
	return true, nil
}

func (s *ShopService) publishOrderCreated(ctx context.Context, order domain.Order) {
	if s.pub == nil {
		return
	}
	tenantName := ""
	if t, err := s.tenants.GetByID(ctx, order.TenantID); err == nil {
		tenantName = t.Name
	}

	ev := domain.OrderCreatedEvent{
		Channel:       domain.ChannelShop,
		OrderID:       order.ID,
		TenantID:      order.TenantID,
		TenantName:    tenantName,
		CustomerPhone: order.CustomerPhone,
		Total:         order.TotalAmount.StringFixed(2),
		CreatedAt:     order.CreatedAt,
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, domain.OrderEventItem{
			Name: it.ProductName, Quantity: it.Quantity, Price: it.Price.StringFixed(2),
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		s.lg.Error().Err(err).Msg("failed to marshal order event")
		return
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.pub.Publish(pctx, ev.RoutingKey(), body); err != nil {
		// The order is committed; losing the event must not fail the payment flow.
		s.lg.Error().Err(err).Int64("order_id", order.ID).Msg("failed to publish order event")
	}
}

func (s *ShopService) PaidOrders(ctx context.Context, tenantID int64) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, tenantID, domain.OrderPaid)
}

func (s *ShopService) ActiveCarts(ctx context.Context, tenantID int64) ([]domain.Cart, error) {
	return s.repo.ListActiveCarts(ctx, tenantID)
}

// DeleteCart lets a merchant drop an abandoned cart, but only when the cart
// actually holds this tenant's products.
func (s *ShopService) DeleteCart(ctx context.Context, tenantID int64, cartID uuid.UUID) error {
	owner, err := s.repo.CartTenantID(ctx, cartID)
	if err != nil {
		if errors.Is(err, domain.ErrCartEmpty) {
			return s.repo.DeleteCart(ctx, cartID)
		}
		return err
	}
	if owner != tenantID {
		return domain.ErrForbidden
	}
	return s.repo.DeleteCart(ctx, cartID)
}

func (s *ShopService) CustomerOrders(ctx context.Context, phone string, tenantID int64) ([]domain.Order, error) {
	return s.repo.ListOrdersByPhone(ctx, phone, tenantID)
}
