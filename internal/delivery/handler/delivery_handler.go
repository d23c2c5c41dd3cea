package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-system/internal/delivery/service"
	"storefront-system/internal/domain"
	"storefront-system/internal/httpx"
	"storefront-system/internal/tenant"
)

// guestTokenHeader identifies the anonymous shopper across requests. The
// client generates the UUID once and sends it on every cart call.
const guestTokenHeader = "X-Guest-Token"

type DeliveryHandler struct {
	service service.DeliveryServiceInterface
	logger  zerolog.Logger
}

func NewDeliveryHandler(s service.DeliveryServiceInterface, logger zerolog.Logger) *DeliveryHandler {
	return &DeliveryHandler{service: s, logger: logger}
}

func guestToken(r *http.Request) (uuid.UUID, bool) {
	token, err := uuid.Parse(r.Header.Get(guestTokenHeader))
	return token, err == nil
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (dh *DeliveryHandler) Menu(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	menu, err := dh.service.Menu(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"store":      map[string]any{"name": t.Name, "open": t.IsOpen},
		"categories": menu.Categories,
		"items":      menu.Items,
		"combos":     menu.Combos,
		"optionals":  menu.Optionals,
		"zones":      menu.Zones,
	})
}

type lineView struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

func (dh *DeliveryHandler) cartResponse(w http.ResponseWriter, lines []service.PricedLine, total decimal.Decimal) {
	views := make([]lineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, lineView{
			Key:       l.Key.String(),
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views, "total": total.StringFixed(2)})
}

func (dh *DeliveryHandler) Cart(w http.ResponseWriter, r *http.Request) {
	token, ok := guestToken(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "missing or invalid guest token")
		return
	}
	t := tenant.From(r.Context())
	lines, total, err := dh.service.Cart(r.Context(), t.ID, token)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	dh.cartResponse(w, lines, total)
}

type addEntryRequest struct {
	Key      string `json:"key" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

func (dh *DeliveryHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	token, ok := guestToken(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "missing or invalid guest token")
		return
	}
	var req addEntryRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.AddToCart(r.Context(), t.ID, token, req.Key, req.Quantity); err != nil {
		if _, parseErr := domain.ParseCartKey(req.Key); parseErr != nil {
			httpx.Error(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		httpx.DomainError(w, err)
		return
	}
	lines, total, err := dh.service.Cart(r.Context(), t.ID, token)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	dh.cartResponse(w, lines, total)
}

func (dh *DeliveryHandler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	token, ok := guestToken(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "missing or invalid guest token")
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.RemoveFromCart(r.Context(), t.ID, token, chi.URLParam(r, "key")); err != nil {
		httpx.DomainError(w, err)
		return
	}
	lines, total, err := dh.service.Cart(r.Context(), t.ID, token)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	dh.cartResponse(w, lines, total)
}

type checkoutRequest struct {
	CustomerName     string `json:"customer_name" validate:"required,max=100"`
	CustomerWhatsApp string `json:"customer_whatsapp" validate:"required,max=20"`
	DeliveryAddress  string `json:"delivery_address" validate:"required,max=255"`
	ZoneID           *int64 `json:"zone_id"`
	PaymentMethod    string `json:"payment_method" validate:"required,oneof=dinheiro cartao pix"`
	ChangeFor        string `json:"change_for"`
	Observations     string `json:"observations" validate:"max=500"`
}

func (dh *DeliveryHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	token, ok := guestToken(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "missing or invalid guest token")
		return
	}
	var req checkoutRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}

	in := service.CheckoutInput{
		CustomerName:     req.CustomerName,
		CustomerWhatsApp: req.CustomerWhatsApp,
		DeliveryAddress:  req.DeliveryAddress,
		ZoneID:           req.ZoneID,
		PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
		Observations:     req.Observations,
	}
	if req.ChangeFor != "" {
		change, err := decimal.NewFromString(req.ChangeFor)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid change_for amount")
			return
		}
		in.ChangeFor = &change
	}

	t := tenant.From(r.Context())
	order, err := dh.service.Checkout(r.Context(), t.ID, token, in)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"order":            orderView(order),
		"whatsapp_number":  t.WhatsAppNumber,
		"whatsapp_message": url.QueryEscape(whatsappText(order)),
	})
}

// whatsappText is the order summary a customer forwards to the store's
// WhatsApp after checking out.
func whatsappText(o domain.DeliveryOrder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Pedido #%d*\n%s\n%s\n\n", o.ID, o.CustomerName, o.DeliveryAddress)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "%dx %s - R$ %s\n", it.Quantity, it.ItemName, it.Price.StringFixed(2))
	}
	if o.DeliveryFee.IsPositive() {
		fmt.Fprintf(&b, "Entrega: R$ %s\n", o.DeliveryFee.StringFixed(2))
	}
	fmt.Fprintf(&b, "\n*Total: R$ %s*\nPagamento: %s", o.FinalTotal.StringFixed(2), o.PaymentMethod)
	if o.ChangeFor != nil {
		fmt.Fprintf(&b, " (troco para R$ %s)", o.ChangeFor.StringFixed(2))
	}
	return b.String()
}

func (dh *DeliveryHandler) Order(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	t := tenant.From(r.Context())
	order, err := dh.service.Order(r.Context(), t.ID, orderID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderView(order))
}

// RepeatOrder rebuilds the guest cart from a past order's cart keys.
func (dh *DeliveryHandler) RepeatOrder(w http.ResponseWriter, r *http.Request) {
	token, ok := guestToken(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "missing or invalid guest token")
		return
	}
	orderID, ok := pathID(r, "orderID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.RepeatOrder(r.Context(), t.ID, token, orderID); err != nil {
		httpx.DomainError(w, err)
		return
	}
	lines, total, err := dh.service.Cart(r.Context(), t.ID, token)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	dh.cartResponse(w, lines, total)
}

type orderItemView struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	CartKey  string `json:"cart_key,omitempty"`
}

type orderViewBody struct {
	ID               int64           `json:"id"`
	CustomerName     string          `json:"customer_name"`
	CustomerWhatsApp string          `json:"customer_whatsapp"`
	DeliveryAddress  string          `json:"delivery_address"`
	ZoneName         string          `json:"zone_name,omitempty"`
	PaymentMethod    string          `json:"payment_method"`
	ChangeFor        string          `json:"change_for,omitempty"`
	Observations     string          `json:"observations,omitempty"`
	Items            []orderItemView `json:"items"`
	ItemsTotal       string          `json:"items_total"`
	DeliveryFee      string          `json:"delivery_fee"`
	FinalTotal       string          `json:"final_total"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

func orderView(o domain.DeliveryOrder) orderViewBody {
	v := orderViewBody{
		ID:               o.ID,
		CustomerName:     o.CustomerName,
		CustomerWhatsApp: o.CustomerWhatsApp,
		DeliveryAddress:  o.DeliveryAddress,
		ZoneName:         o.ZoneName,
		PaymentMethod:    string(o.PaymentMethod),
		Observations:     o.Observations,
		Items:            []orderItemView{},
		ItemsTotal:       o.ItemsTotal.StringFixed(2),
		DeliveryFee:      o.DeliveryFee.StringFixed(2),
		FinalTotal:       o.FinalTotal.StringFixed(2),
		Status:           string(o.Status),
		CreatedAt:        o.CreatedAt,
	}
	if o.ChangeFor != nil {
		v.ChangeFor = o.ChangeFor.StringFixed(2)
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			Name:     it.ItemName,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
			CartKey:  it.OriginalCartKey,
		})
	}
	return v
}

func (dh *DeliveryHandler) Orders(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		day = parsed
	}
	t := tenant.From(r.Context())
	orders, err := dh.service.Orders(r.Context(), t.ID, day)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	views := make([]orderViewBody, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	httpx.JSON(w, http.StatusOK, views)
}

// LatestOrderID lets the merchant panel poll cheaply for new orders.
func (dh *DeliveryHandler) LatestOrderID(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	id, err := dh.service.LatestOrderID(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"latest_order_id": id})
}

func (dh *DeliveryHandler) CustomerHistory(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		httpx.Error(w, http.StatusBadRequest, "missing phone")
		return
	}
	t := tenant.From(r.Context())
	orders, err := dh.service.OrdersByPhone(r.Context(), t.ID, phone)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	views := make([]orderViewBody, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	httpx.JSON(w, http.StatusOK, views)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed on_the_way delivered cancelled"`
}

func (dh *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.UpdateStatus(r.Context(), t.ID, orderID, domain.DeliveryStatus(req.Status)); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (dh *DeliveryHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.DeleteOrder(r.Context(), t.ID, orderID); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type posItemRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

type posOrderRequest struct {
	CustomerName     string           `json:"customer_name" validate:"required,max=100"`
	CustomerWhatsApp string           `json:"customer_whatsapp" validate:"max=20"`
	DeliveryAddress  string           `json:"delivery_address" validate:"max=255"`
	ZoneID           *int64           `json:"zone_id"`
	PaymentMethod    string           `json:"payment_method" validate:"required,oneof=dinheiro cartao pix"`
	Observations     string           `json:"observations" validate:"max=500"`
	Items            []posItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreatePOSOrder records a phone or walk-in order typed by the operator.
func (dh *DeliveryHandler) CreatePOSOrder(w http.ResponseWriter, r *http.Request) {
	var req posOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}

	in := service.POSInput{
		CustomerName:     req.CustomerName,
		CustomerWhatsApp: req.CustomerWhatsApp,
		DeliveryAddress:  req.DeliveryAddress,
		ZoneID:           req.ZoneID,
		PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
		Observations:     req.Observations,
	}
	for _, it := range req.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid unit price for "+it.Name)
			return
		}
		in.Items = append(in.Items, service.POSItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: price})
	}

	t := tenant.From(r.Context())
	order, err := dh.service.CreatePOSOrder(r.Context(), t.ID, in)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, orderView(order))
}

func reportRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 1)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (dh *DeliveryHandler) Report(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportRange(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid date range, want YYYY-MM-DD")
		return
	}
	t := tenant.From(r.Context())
	rep, err := dh.service.Report(r.Context(), t.ID, from, to)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}

	daily := make([]map[string]any, 0, len(rep.Daily))
	for _, d := range rep.Daily {
		daily = append(daily, map[string]any{"day": d.Day.Format("2006-01-02"), "total": d.Total.StringFixed(2)})
	}
	top := make([]map[string]any, 0, len(rep.Top))
	for _, c := range rep.Top {
		top = append(top, map[string]any{
			"whatsapp":    c.WhatsApp,
			"name":        c.Name,
			"order_count": c.OrderCount,
			"total_spent": c.TotalSpent.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"daily":         daily,
		"total_sales":   rep.TotalSales.StringFixed(2),
		"total_orders":  rep.TotalOrders,
		"top_customers": top,
	})
}
