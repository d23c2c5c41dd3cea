package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-system/internal/domain"
	"storefront-system/internal/payment/mercadopago"
	"storefront-system/internal/shop/repository"
	tenantrepo "storefront-system/internal/tenant/repository"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCartTotal(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.CartItem
		want  string
	}{
		{"empty cart", nil, "0.00"},
		{
			"mixed quantities",
			[]domain.CartItem{
				{UnitPrice: dec("10.00"), Quantity: 2},
				{UnitPrice: dec("5.50"), Quantity: 1},
			},
			"25.50",
		},
		{
			"cent precision survives",
			[]domain.CartItem{
				{UnitPrice: dec("0.10"), Quantity: 3},
			},
			"0.30",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CartTotal(tt.items).StringFixed(2); got != tt.want {
				t.Errorf("CartTotal = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtractPaymentID(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		query string
		want  string
	}{
		{"v2 payload", `{"type":"payment","data":{"id":12345}}`, "", "12345"},
		{"v2 string id", `{"type":"payment","data":{"id":"6789"}}`, "", "6789"},
		{"v1 resource id", `{"topic":"payment","resource":"555"}`, "", "555"},
		{"v1 resource url", `{"topic":"payment","resource":"https://api.example.com/v1/payments/987"}`, "", "987"},
		{"query fallback", `{}`, "topic=payment&id=42", "42"},
		{"merchant_order ignored", `{"type":"merchant_order","data":{"id":"1"}}`, "", ""},
		{"garbage body with query", `not json`, "topic=payment&id=7", "7"},
		{"nothing", `{}`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			if got := extractPaymentID([]byte(tt.body), q); got != tt.want {
				t.Errorf("extractPaymentID = %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeShopRepo struct {
	repository.ShopRepositoryInterface
	materialized map[uuid.UUID]bool
	order        domain.Order
}

func (f *fakeShopRepo) MaterializeCart(_ context.Context, cartID uuid.UUID) (domain.Order, error) {
	if f.materialized[cartID] {
		return domain.Order{}, domain.ErrCartNotFound
	}
	f.materialized[cartID] = true
	return f.order, nil
}

func (f *fakeShopRepo) CartTenantID(_ context.Context, cartID uuid.UUID) (int64, error) {
	if f.materialized[cartID] {
		return 0, domain.ErrCartEmpty
	}
	return 1, nil
}

type fakeTenants struct {
	tenantrepo.TenantRepositoryInterface
	tenant domain.Tenant
}

func (f *fakeTenants) GetByID(context.Context, int64) (domain.Tenant, error) {
	return f.tenant, nil
}

type fakeGateway struct {
	payment mercadopago.Payment
}

func (f *fakeGateway) CreatePreference(context.Context, string, mercadopago.PreferenceRequest) (mercadopago.Preference, error) {
	return mercadopago.Preference{ID: "pref", InitPoint: "https://pay.example/init"}, nil
}

func (f *fakeGateway) GetPayment(context.Context, string, string) (mercadopago.Payment, error) {
	return f.payment, nil
}

func newTestService(repo *fakeShopRepo, gw Gateway, key string) ShopServiceInterface {
	return NewShopService(
		repo,
		&fakeTenants{tenant: domain.Tenant{ID: 1, Name: "Loja", MercadoPagoAPIKey: key}},
		gw, nil, "https://shop.example.com", zerolog.Nop(),
	)
}

func TestProcessWebhookMaterializesOnce(t *testing.T) {
	cartID := uuid.New()
	repo := &fakeShopRepo{
		materialized: map[uuid.UUID]bool{},
		order:        domain.Order{ID: 7, TenantID: 1, TotalAmount: dec("25.50"), Status: domain.OrderPaid},
	}
	gw := &fakeGateway{payment: mercadopago.Payment{
		ID: 12345, Status: mercadopago.StatusApproved, ExternalReference: cartID.String(),
	}}
	svc := newTestService(repo, gw, "APP_USR-key")

	body := []byte(`{"type":"payment","data":{"id":12345}}`)

	// First notification converts the cart.
	if err := svc.ProcessWebhook(context.Background(), 1, body, url.Values{}); err != nil {
		t.Fatalf("first webhook failed: %v", err)
	}
	if !repo.materialized[cartID] {
		t.Fatal("cart was not materialized")
	}

	// A duplicate notification must be a silent no-op, not an error.
	if err := svc.ProcessWebhook(context.Background(), 1, body, url.Values{}); err != nil {
		t.Fatalf("duplicate webhook failed: %v", err)
	}
}

func TestProcessWebhookWithoutGatewayKey(t *testing.T) {
	repo := &fakeShopRepo{materialized: map[uuid.UUID]bool{}}
	svc := newTestService(repo, &fakeGateway{}, "")

	err := svc.ProcessWebhook(context.Background(), 1, []byte(`{"type":"payment","data":{"id":1}}`), url.Values{})
	if err != domain.ErrGatewayNotConfigured {
		t.Fatalf("err = %v, want ErrGatewayNotConfigured", err)
	}
}

func TestProcessWebhookIgnoresUnapproved(t *testing.T) {
	cartID := uuid.New()
	repo := &fakeShopRepo{materialized: map[uuid.UUID]bool{}}
	gw := &fakeGateway{payment: mercadopago.Payment{
		ID: 1, Status: "rejected", ExternalReference: cartID.String(),
	}}
	svc := newTestService(repo, gw, "key")

	if err := svc.ProcessWebhook(context.Background(), 1, []byte(`{"type":"payment","data":{"id":1}}`), url.Values{}); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if repo.materialized[cartID] {
		t.Fatal("unapproved payment must not materialize the cart")
	}
}

func TestConfirmRedirect(t *testing.T) {
	cartID := uuid.New()

	tests := []struct {
		name    string
		query   string
		created bool
		wantErr error
	}{
		{"approved", "collection_status=approved&payment_id=12345&external_reference=" + cartID.String(), true, nil},
		{"status param fallback", "status=approved&collection_id=12345&external_reference=" + cartID.String(), true, nil},
		{"rejected", "collection_status=rejected&payment_id=12345&external_reference=" + cartID.String(), false, domain.ErrPaymentNotConfirmed},
		{"missing reference", "collection_status=approved&payment_id=12345", false, domain.ErrPaymentNotConfirmed},
		{"missing payment id", "collection_status=approved&external_reference=" + cartID.String(), false, domain.ErrPaymentNotConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeShopRepo{
				materialized: map[uuid.UUID]bool{},
				order:        domain.Order{ID: 1, TenantID: 1},
			}
			gw := &fakeGateway{payment: mercadopago.Payment{
				ID: 12345, Status: mercadopago.StatusApproved, ExternalReference: cartID.String(),
			}}
			svc := newTestService(repo, gw, "key")

			q, _ := url.ParseQuery(tt.query)
			created, err := svc.ConfirmRedirect(context.Background(), q)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if created != tt.created {
				t.Errorf("created = %v, want %v", created, tt.created)
			}
		})
	}
}

type countingGateway struct {
	fakeGateway
	getPaymentCalls int
}

func (g *countingGateway) GetPayment(ctx context.Context, key, id string) (mercadopago.Payment, error) {
	g.getPaymentCalls++
	return g.fakeGateway.GetPayment(ctx, key, id)
}

// A forged redirect claiming approval must not create an order: the payment
// status comes from the gateway, not from the query string.
func TestConfirmRedirectVerifiesWithGateway(t *testing.T) {
	cartID := uuid.New()
	repo := &fakeShopRepo{
		materialized: map[uuid.UUID]bool{},
		order:        domain.Order{ID: 1, TenantID: 1},
	}
	gw := &countingGateway{fakeGateway: fakeGateway{payment: mercadopago.Payment{
		ID: 999, Status: "rejected", ExternalReference: cartID.String(),
	}}}
	svc := newTestService(repo, gw, "key")

	q, _ := url.ParseQuery("collection_status=approved&payment_id=999&external_reference=" + cartID.String())
	created, err := svc.ConfirmRedirect(context.Background(), q)
	if err != domain.ErrPaymentNotConfirmed {
		t.Fatalf("err = %v, want ErrPaymentNotConfirmed", err)
	}
	if created || repo.materialized[cartID] {
		t.Fatal("unverified redirect must not materialize the cart")
	}
	if gw.getPaymentCalls != 1 {
		t.Errorf("gateway GetPayment calls = %d, want 1", gw.getPaymentCalls)
	}
}

// The gateway's record is also checked against the cart the redirect names,
// so an approved payment for one cart cannot unlock another.
func TestConfirmRedirectRejectsMismatchedReference(t *testing.T) {
	cartID := uuid.New()
	repo := &fakeShopRepo{
		materialized: map[uuid.UUID]bool{},
		order:        domain.Order{ID: 1, TenantID: 1},
	}
	gw := &fakeGateway{payment: mercadopago.Payment{
		ID: 999, Status: mercadopago.StatusApproved, ExternalReference: uuid.NewString(),
	}}
	svc := newTestService(repo, gw, "key")

	q, _ := url.ParseQuery("collection_status=approved&payment_id=999&external_reference=" + cartID.String())
	if _, err := svc.ConfirmRedirect(context.Background(), q); err != domain.ErrPaymentNotConfirmed {
		t.Fatalf("err = %v, want ErrPaymentNotConfirmed", err)
	}
	if repo.materialized[cartID] {
		t.Fatal("mismatched reference must not materialize the cart")
	}
}

func TestConfirmRedirectAfterWebhook(t *testing.T) {
	cartID := uuid.New()
	repo := &fakeShopRepo{
		materialized: map[uuid.UUID]bool{cartID: true},
		order:        domain.Order{ID: 1, TenantID: 1},
	}
	svc := newTestService(repo, &fakeGateway{}, "key")

	q, _ := url.ParseQuery("collection_status=approved&payment_id=12345&external_reference=" + cartID.String())
	created, err := svc.ConfirmRedirect(context.Background(), q)
	if err != nil {
		t.Fatalf("redirect after webhook failed: %v", err)
	}
	if created {
		t.Error("redirect must report already-processed when the webhook won")
	}
}
