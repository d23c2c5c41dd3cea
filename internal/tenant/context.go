// Package tenant resolves which merchant a request belongs to and carries it
// through the request context.
package tenant

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront-system/internal/domain"
	"storefront-system/internal/httpx"
	"storefront-system/internal/tenant/repository"
)

type ctxKey struct{}

func With(ctx context.Context, t domain.Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// From returns the tenant placed by one of the resolver middlewares. It
// panics when called outside a resolved route, which is a routing bug.
func From(ctx context.Context) domain.Tenant {
	return ctx.Value(ctxKey{}).(domain.Tenant)
}

// FromSlug resolves the {slug} URL parameter on public storefront routes.
func FromSlug(repo repository.TenantRepositoryInterface) func(http.Handler) http.Handler {
	return resolver(repo, func(r *http.Request) string {
		return chi.URLParam(r, "slug")
	})
}

// FromHeader resolves the X-Tenant header on merchant panel routes.
func FromHeader(repo repository.TenantRepositoryInterface) func(http.Handler) http.Handler {
	return resolver(repo, func(r *http.Request) string {
		return r.Header.Get("X-Tenant")
	})
}

func resolver(repo repository.TenantRepositoryInterface, slugOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := slugOf(r)
			if slug == "" {
				httpx.Error(w, http.StatusBadRequest, "missing tenant")
				return
			}
			t, err := repo.GetBySlug(r.Context(), slug)
			if err != nil {
				httpx.DomainError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(With(r.Context(), t)))
		})
	}
}
