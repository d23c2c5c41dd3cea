package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-system/internal/domain"
	"storefront-system/internal/httpx"
	"storefront-system/internal/shop/service"
	"storefront-system/internal/tenant"
)

type ShopHandler struct {
	service service.ShopServiceInterface
	logger  zerolog.Logger
}

func NewShopHandler(s service.ShopServiceInterface, logger zerolog.Logger) *ShopHandler {
	return &ShopHandler{service: s, logger: logger}
}

type cartView struct {
	ID    uuid.UUID      `json:"id"`
	Phone string         `json:"phone"`
	Items []cartItemView `json:"items"`
	Total string         `json:"total"`
}

type cartItemView struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

func viewCart(c domain.Cart) cartView {
	v := cartView{ID: c.ID, Phone: c.PhoneNumber, Items: []cartItemView{}}
	for _, it := range c.Items {
		v.Items = append(v.Items, cartItemView{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.ProductName,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal().StringFixed(2),
		})
	}
	v.Total = service.CartTotal(c.Items).StringFixed(2)
	return v
}

func (sh *ShopHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	categories, products, err := sh.service.Catalog(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"store":      map[string]any{"name": t.Name, "open": t.IsOpen},
		"categories": categories,
		"products":   products,
	})
}

func (sh *ShopHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := sh.service.GuestCart(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewCart(cart))
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1"`
}

func (sh *ShopHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	cart, err := sh.service.AddToCart(r.Context(), chi.URLParam(r, "phone"), req.ProductID, req.Quantity)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewCart(cart))
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (sh *ShopHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req setQuantityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	cart, err := sh.service.SetQuantity(r.Context(), chi.URLParam(r, "phone"), itemID, req.Quantity)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewCart(cart))
}

func (sh *ShopHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	cart, err := sh.service.RemoveFromCart(r.Context(), chi.URLParam(r, "phone"), itemID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewCart(cart))
}

// Checkout creates the gateway preference and hands back the hosted checkout
// URL for the client to redirect to.
func (sh *ShopHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	initPoint, err := sh.service.Checkout(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"checkout_url": initPoint})
}

// PaymentReturn serves the success, failure and pending return URLs. Only the
// success path tries to confirm; the others just report the status back.
func (sh *ShopHandler) PaymentReturn(outcome string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if outcome != "success" {
			httpx.JSON(w, http.StatusOK, map[string]string{"status": outcome})
			return
		}
		created, err := sh.service.ConfirmRedirect(r.Context(), r.URL.Query())
		if err != nil {
			httpx.DomainError(w, err)
			return
		}
		status := "confirmed"
		if !created {
			status = "already_processed"
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

// Webhook receives gateway notifications. Processing failures still return
// 200 so the gateway does not retry storms against a broken downstream; the
// only 4xx is a tenant with no configured gateway key.
func (sh *ShopHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid tenant id")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := sh.service.ProcessWebhook(r.Context(), tenantID, body, r.URL.Query()); err != nil {
		if errors.Is(err, domain.ErrGatewayNotConfigured) || errors.Is(err, domain.ErrTenantNotFound) {
			httpx.DomainError(w, err)
			return
		}
		sh.logger.Error().Err(err).Int64("tenant_id", tenantID).Msg("webhook processing failed")
	}
	w.WriteHeader(http.StatusOK)
}

func (sh *ShopHandler) Orders(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	orders, err := sh.service.PaidOrders(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (sh *ShopHandler) ActiveCarts(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	carts, err := sh.service.ActiveCarts(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	views := make([]cartView, 0, len(carts))
	for _, c := range carts {
		views = append(views, viewCart(c))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (sh *ShopHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "cartID"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid cart id")
		return
	}
	t := tenant.From(r.Context())
	if err := sh.service.DeleteCart(r.Context(), t.ID, cartID); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (sh *ShopHandler) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	orders, err := sh.service.CustomerOrders(r.Context(), chi.URLParam(r, "phone"), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (sh *ShopHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	id, err := sh.service.CreateCategory(r.Context(), t.ID, req.Name)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type productRequest struct {
	CategoryID  int64  `json:"category_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"required"`
	Stock       int    `json:"stock" validate:"gte=0"`
}

func (req productRequest) toDomain(tenantID, id int64) (domain.Product, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		ID:          id,
		TenantID:    tenantID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
	}, nil
}

func (sh *ShopHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	p, err := req.toDomain(t.ID, 0)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid price")
		return
	}
	id, err := sh.service.CreateProduct(r.Context(), p)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (sh *ShopHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req productRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	p, err := req.toDomain(t.ID, productID)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid price")
		return
	}
	if err := sh.service.UpdateProduct(r.Context(), p); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (sh *ShopHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	t := tenant.From(r.Context())
	if err := sh.service.DeleteProduct(r.Context(), t.ID, productID); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
