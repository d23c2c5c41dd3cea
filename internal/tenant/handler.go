package tenant

import (
	"net/http"

	"storefront-system/internal/httpx"
	"storefront-system/internal/tenant/repository"
)

type Handler struct {
	repo repository.TenantRepositoryInterface
}

func NewHandler(repo repository.TenantRepositoryInterface) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	t := From(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":            t.ID,
		"name":          t.Name,
		"slug":          t.Slug,
		"business_type": string(t.BusinessType),
		"open":          t.IsOpen,
	})
}

type openRequest struct {
	Open bool `json:"open"`
}

// SetOpen flips the storefront between accepting and refusing checkouts.
func (h *Handler) SetOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.DomainError(w, err)
		return
	}
	t := From(r.Context())
	if err := h.repo.SetOpen(r.Context(), t.ID, req.Open); err != nil {
		httpx.DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
