package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"storefront-system/internal/domain"
	"storefront-system/internal/httpx"
	"storefront-system/internal/tenant"
)

// Catalog management for the merchant panel. Each entity follows the same
// create, toggle, delete shape the panel screens expect.

type nameRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (dh *DeliveryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	id, err := dh.service.CreateCategory(r.Context(), t.ID, req.Name)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (dh *DeliveryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "categoryID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid category id")
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.DeleteCategory(r.Context(), t.ID, id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (dh *DeliveryHandler) MenuItems(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	items, err := dh.service.AllMenuItems(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

type menuItemRequest struct {
	CategoryID  int64  `json:"category_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Price       string `json:"price" validate:"required"`
}

func (dh *DeliveryHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
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
	id, err := dh.service.CreateMenuItem(r.Context(), domain.MenuItem{
		TenantID:    t.ID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
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

func (dh *DeliveryHandler) SetMenuItemAvailability(w http.ResponseWriter, r *http.Request) {
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
	if err := dh.service.SetMenuItemAvailability(r.Context(), t.ID, id, req.Available); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (dh *DeliveryHandler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.DeleteMenuItem(r.Context(), t.ID, id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type zoneRequest struct {
	Neighborhood string `json:"neighborhood" validate:"required,max=100"`
	DeliveryFee  string `json:"delivery_fee" validate:"required"`
}

func (dh *DeliveryHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	fee, err := decimal.NewFromString(req.DeliveryFee)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid delivery fee")
		return
	}
	t := tenant.From(r.Context())
	id, err := dh.service.CreateZone(r.Context(), domain.DeliveryZone{
		TenantID:     t.ID,
		Neighborhood: req.Neighborhood,
		DeliveryFee:  fee,
	})
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (dh *DeliveryHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "zoneID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid zone id")
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.DeleteZone(r.Context(), t.ID, id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type optionalRequest struct {
	CategoryID int64  `json:"category_id" validate:"required,gt=0"`
	Name       string `json:"name" validate:"required,max=100"`
	Price      string `json:"price" validate:"required"`
}

func (dh *DeliveryHandler) CreateOptional(w http.ResponseWriter, r *http.Request) {
	var req optionalRequest
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
	id, err := dh.service.CreateOptional(r.Context(), domain.DeliveryOptional{
		TenantID:   t.ID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Price:      price,
	})
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (dh *DeliveryHandler) DeleteOptional(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "optionalID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid optional id")
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.DeleteOptional(r.Context(), t.ID, id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (dh *DeliveryHandler) Combos(w http.ResponseWriter, r *http.Request) {
	t := tenant.From(r.Context())
	combos, err := dh.service.AllCombos(r.Context(), t.ID)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, combos)
}

type comboRequest struct {
	Name           string  `json:"name" validate:"required,max=100"`
	Description    string  `json:"description" validate:"max=500"`
	Price          string  `json:"price" validate:"required"`
	SlotCategories []int64 `json:"slot_categories" validate:"required,min=1,dive,gt=0"`
}

func (dh *DeliveryHandler) CreateCombo(w http.ResponseWriter, r *http.Request) {
	var req comboRequest
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
	combo := domain.Combo{
		TenantID:    t.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		IsAvailable: true,
	}
	for _, catID := range req.SlotCategories {
		combo.Slots = append(combo.Slots, domain.ComboSlot{AllowedCategoryID: catID})
	}
	id, err := dh.service.CreateCombo(r.Context(), combo)
	if err != nil {
		httpx.DomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (dh *DeliveryHandler) SetComboAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comboID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid combo id")
		return
	}
	var req availabilityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.SetComboAvailability(r.Context(), t.ID, id, req.Available); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (dh *DeliveryHandler) DeleteCombo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "comboID")
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid combo id")
		return
	}
	t := tenant.From(r.Context())
	if err := dh.service.DeleteCombo(r.Context(), t.ID, id); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
