package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-system/internal/bar/service"
	"storefront-system/internal/domain"
	"storefront-system/internal/httpx"
	"storefront-system/internal/tenant"
)

type BarHandler struct {
	service service.BarServiceInterface
	logger  zerolog.Logger
}

func NewBarHandler(s service.BarServiceInterface, logger zerolog.Logger) *BarHandler {
	return &BarHandler{service: s, logger: logger}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

type comandaItemView struct {
	ID       int64  `json:"id"`
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Subtotal string `json:"subtotal"`
	Note     string `json:"note,omitempty"`
}

type comandaView struct {
	ID         int64             `json:"id"`
	Table      int               `json:"table"`
	Status     string            `json:"status"`
	ServiceFee bool              `json:"service_fee"`
	Items      []comandaItemView `json:"items"`
	Base       string            `json:"base_total"`
	Total      string            `json:"total"`
	OpenedAt   time.Time         `json:"opened_at"`
	ClosedAt   *time.Time        `json:"closed_at,omitempty"`
}

func viewComanda(c domain.Comanda) comandaView {
	totals := service.ComandaTotals(c)
	v := comandaView{
		ID:         c.ID,
		Table:      c.TableNumber,
		Status:     string(c.Status),
		ServiceFee: c.ServiceFee,
		Items:      []comandaItemView{},
		Base:       totals.Base.StringFixed(2),
		Total:      totals.Final.StringFixed(2),
		OpenedAt:   c.OpenedAt,
		ClosedAt:   c.ClosedAt,
	}
	if c.Status != domain.ComandaOpen {
		// The frozen total is authoritative once the comanda is closed.
		v.Total = c.Total.StringFixed(2)
		v.Base = service.ReprintBase(c).StringFixed(2)
	}
	for _, it := range c.Items {
		v.Items = append(v.Items, comandaItemView{
			ID:       it.ID,
			ItemID:   it.ItemID,
			Name:     it.ItemName,
			Quantity: it.Quantity,
			Price:    it.UnitPrice.StringFixed(2),
			Subtotal: it.Subtotal().StringFixed(2),
			Note:     it.Note,
		})
	}
	return v
}

// Tables renders the floor overview: every table up to the configured count
// with its open comanda, if any.
func (bh *BarHandler) Tables(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	views, err := bh.service.Tables(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(views))
	for _, tv := range views {
		entry := map[string]any{"table": tv.Table, "occupied": tv.Comanda != nil}
		if tv.Comanda != nil {
			entry["comanda"] = viewComanda(*tv.Comanda)
		}
		out = append(out, entry)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (bh *BarHandler) OpenComanda(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil || table < 1 {
		httpx.Error(w, http.StatusBadRequest, "invalid table number")
		return
	}
	t := tenant.From(r.Context())
	c, err := bh.service.OpenComanda(r.Context(), t.ID, table)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewComanda(c))
}

func (bh *BarHandler) Comanda(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comandaID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid comanda id")
		return
	}
	t := tenant.From(r.Context())
	c, _, err := bh.service.Comanda(r.Context(), t.ID, id)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewComanda(c))
}

type addComandaItemRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"gte=1"`
	Note     string `json:"note" validate:"max=255"`
}

func (bh *BarHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comandaID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid comanda id")
		return
	}
	var req addComandaItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	c, err := bh.service.AddItem(r.Context(), t.ID, id, req.ItemID, req.Quantity, req.Note)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewComanda(c))
}

type itemQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (bh *BarHandler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comandaID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid comanda id")
		return
	}
	itemRowID, ok := pathID(r, "itemID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req itemQuantityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	c, err := bh.service.SetItemQuantity(r.Context(), t.ID, id, itemRowID, req.Quantity)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewComanda(c))
}

func (bh *BarHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comandaID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid comanda id")
		return
	}
	itemRowID, ok := pathID(r, "itemID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	t := tenant.From(r.Context())
	c, err := bh.service.RemoveItem(r.Context(), t.ID, id, itemRowID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewComanda(c))
}

type serviceFeeRequest struct {
	Enabled bool `json:"enabled"`
}

func (bh *BarHandler) SetServiceFee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comandaID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid comanda id")
		return
	}
	var req serviceFeeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	if err := bh.service.ToggleServiceFee(r.Context(), t.ID, id, req.Enabled); err != nil {
		httpx.DomainError(w, err)
		return
	}
	c, _, err := bh.service.Comanda(r.Context(), t.ID, id)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewComanda(c))
}

type closeComandaRequest struct {
	ServiceFee *bool `json:"service_fee"`
}

func (bh *BarHandler) CloseComanda(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comandaID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid comanda id")
		return
	}
	// The body is optional; an empty body closes with the current fee flag.
	var req closeComandaRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	t := tenant.From(r.Context())
	c, _, err := bh.service.CloseComanda(r.Context(), t.ID, id, req.ServiceFee)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewComanda(c))
}

func (bh *BarHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comandaID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid comanda id")
		return
	}
	t := tenant.From(r.Context())
	if err := bh.service.MarkPaid(r.Context(), t.ID, id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deleteComandaRequest struct {
	Password string `json:"password" validate:"required"`
}

func (bh *BarHandler) DeleteComanda(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comandaID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid comanda id")
		return
	}
	var req deleteComandaRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	if err := bh.service.DeleteComanda(r.Context(), t.ID, id, req.Password); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (bh *BarHandler) Report(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 1)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	t := tenant.From(r.Context())
	rep, err := bh.service.Report(r.Context(), t.ID, from, to)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}

	daily := make([]map[string]any, 0, len(rep.Daily))
	for _, d := range rep.Daily {
		daily = append(daily, map[string]any{
			"day":           d.Day.Format("2006-01-02"),
			"total":         d.Total.StringFixed(2),
			"paid_comandas": d.Paid,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"daily":         daily,
		"total_take":    rep.TotalTake.StringFixed(2),
		"paid_comandas": rep.PaidComandas,
	})
}

func (bh *BarHandler) Categories(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	categories, err := bh.service.Categories(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

type nameRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (bh *BarHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	id, err := bh.service.CreateCategory(r.Context(), t.ID, req.Name)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (bh *BarHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "categoryID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid category id")
		return
	}
	t := tenant.From(r.Context())
	if err := bh.service.DeleteCategory(r.Context(), t.ID, id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (bh *BarHandler) MenuItems(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	items, err := bh.service.MenuItems(r.Context(), t.ID, false)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

type barItemRequest struct {
	CategoryID int64  `json:"category_id" validate:"required,gt=0"`
	Name       string `json:"name" validate:"required,max=100"`
	Price      string `json:"price" validate:"required"`
}

func (bh *BarHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req barItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid price")
		return
	}
	t := tenant.From(r.Context())
	id, err := bh.service.CreateMenuItem(r.Context(), domain.BarMenuItem{
		TenantID:    t.ID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Price:       price,
		IsAvailable: true,
	})
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (bh *BarHandler) SetMenuItemAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req availabilityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	if err := bh.service.SetMenuItemAvailability(r.Context(), t.ID, id, req.Available); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (bh *BarHandler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	t := tenant.From(r.Context())
	if err := bh.service.DeleteMenuItem(r.Context(), t.ID, id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsRequest struct {
	TableCount      int  `json:"table_count" validate:"required,gte=1,lte=200"`
	AllowServiceFee bool `json:"allow_service_fee"`
}

func (bh *BarHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	if err := bh.service.UpdateSettings(r.Context(), t.ID, req.TableCount, req.AllowServiceFee); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
