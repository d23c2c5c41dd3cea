// Package server wires the repositories, services and handlers into one chi
// router and runs the HTTP listener.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	barhandler "storefront-system/internal/bar/handler"
	barrepo "storefront-system/internal/bar/repository"
	barservice "storefront-system/internal/bar/service"
	"storefront-system/internal/config"
	"storefront-system/internal/connections/rabbitmq"
	deliveryhandler "storefront-system/internal/delivery/handler"
	deliveryrepo "storefront-system/internal/delivery/repository"
	deliveryservice "storefront-system/internal/delivery/service"
	"storefront-system/internal/httpx"
	"storefront-system/internal/payment/mercadopago"
	shophandler "storefront-system/internal/shop/handler"
	shoprepo "storefront-system/internal/shop/repository"
	shopservice "storefront-system/internal/shop/service"
	"storefront-system/internal/tenant"
	tenantrepo "storefront-system/internal/tenant/repository"
)

type Server struct {
	cfg    config.Config
	logger zerolog.Logger
	http   *http.Server
}

func New(cfg config.Config, db *pgxpool.Pool, rmq *rabbitmq.Client, logger zerolog.Logger) *Server {
	tenants := tenantrepo.NewTenantRepository(db)
	gateway := mercadopago.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout)

	shopSvc := shopservice.NewShopService(
		shoprepo.NewShopRepository(db), tenants, gateway, rmq, cfg.HTTP.BaseURL, logger)
	deliverySvc := deliveryservice.NewDeliveryService(
		deliveryrepo.NewDeliveryRepository(db), tenants, rmq, logger)
	barSvc := barservice.NewBarService(
		barrepo.NewBarRepository(db), tenants, rmq, logger)

	shop := shophandler.NewShopHandler(shopSvc, logger)
	delivery := deliveryhandler.NewDeliveryHandler(deliverySvc, logger)
	bar := barhandler.NewBarHandler(barSvc, logger)
	tenantH := tenant.NewHandler(tenants)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := rmq.Ping(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		httpx.JSON(w, code, map[string]string{"status": status})
	})

	// Public storefront, tenant resolved from the URL slug.
	r.Route("/t/{slug}", func(r chi.Router) {
		r.Use(tenant.FromSlug(tenants))
		r.Get("/", tenantH.Info)
		r.Get("/shop/catalog", shop.Catalog)

		r.Route("/delivery", func(r chi.Router) {
			r.Get("/menu", delivery.Menu)
			r.Get("/cart", delivery.Cart)
			r.Post("/cart/entries", delivery.AddEntry)
			r.Delete("/cart/entries/{key}", delivery.RemoveEntry)
			r.Post("/checkout", delivery.Checkout)
			r.Get("/orders", delivery.CustomerHistory)
			r.Get("/orders/{orderID}", delivery.Order)
			r.Post("/orders/{orderID}/repeat", delivery.RepeatOrder)
		})
	})

	// Shop carts are keyed by the guest's phone number, not by tenant.
	r.Route("/shop/cart/{phone}", func(r chi.Router) {
		r.Get("/", shop.GetCart)
		r.Post("/items", shop.AddItem)
		r.Patch("/items/{itemID}", shop.SetQuantity)
		r.Delete("/items/{itemID}", shop.RemoveItem)
		r.Post("/checkout", shop.Checkout)
	})

	// Payment gateway callbacks.
	r.Get("/payments/success", shop.PaymentReturn("success"))
	r.Get("/payments/failure", shop.PaymentReturn("failure"))
	r.Get("/payments/pending", shop.PaymentReturn("pending"))
	r.Post("/webhooks/mercadopago/{tenantID}", shop.Webhook)

	// Merchant panel, tenant resolved from the X-Tenant header.
	r.Route("/admin", func(r chi.Router) {
		r.Use(tenant.FromHeader(tenants))
		r.Put("/store/open", tenantH.SetOpen)

		r.Route("/shop", func(r chi.Router) {
			r.Get("/orders", shop.Orders)
			r.Get("/carts", shop.ActiveCarts)
			r.Delete("/carts/{cartID}", shop.DeleteCart)
			r.Get("/customers/{phone}/orders", shop.CustomerOrders)
			r.Post("/categories", shop.CreateCategory)
			r.Post("/products", shop.CreateProduct)
			r.Put("/products/{productID}", shop.UpdateProduct)
			r.Delete("/products/{productID}", shop.DeleteProduct)
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Get("/orders", delivery.Orders)
			r.Get("/orders/latest", delivery.LatestOrderID)
			r.Post("/orders", delivery.CreatePOSOrder)
			r.Put("/orders/{orderID}/status", delivery.UpdateStatus)
			r.Delete("/orders/{orderID}", delivery.DeleteOrder)
			r.Get("/customers", delivery.CustomerHistory)
			r.Get("/report", delivery.Report)

			r.Post("/categories", delivery.CreateCategory)
			r.Delete("/categories/{categoryID}", delivery.DeleteCategory)
			r.Get("/items", delivery.MenuItems)
			r.Post("/items", delivery.CreateMenuItem)
			r.Put("/items/{itemID}/availability", delivery.SetMenuItemAvailability)
			r.Delete("/items/{itemID}", delivery.DeleteMenuItem)
			r.Post("/zones", delivery.CreateZone)
			r.Delete("/zones/{zoneID}", delivery.DeleteZone)
			r.Post("/optionals", delivery.CreateOptional)
			r.Delete("/optionals/{optionalID}", delivery.DeleteOptional)
			r.Get("/combos", delivery.Combos)
			r.Post("/combos", delivery.CreateCombo)
			r.Put("/combos/{comboID}/availability", delivery.SetComboAvailability)
			r.Delete("/combos/{comboID}", delivery.DeleteCombo)
		})

		r.Route("/bar", func(r chi.Router) {
			r.Get("/tables", bar.Tables)
			r.Post("/tables/{table}/comanda", bar.OpenComanda)
			r.Get("/comandas/{comandaID}", bar.Comanda)
			r.Post("/comandas/{comandaID}/items", bar.AddItem)
			r.Patch("/comandas/{comandaID}/items/{itemID}", bar.SetItemQuantity)
			r.Delete("/comandas/{comandaID}/items/{itemID}", bar.RemoveItem)
			r.Put("/comandas/{comandaID}/service-fee", bar.SetServiceFee)
			r.Post("/comandas/{comandaID}/close", bar.CloseComanda)
			r.Post("/comandas/{comandaID}/pay", bar.MarkPaid)
			r.Delete("/comandas/{comandaID}", bar.DeleteComanda)
			r.Get("/report", bar.Report)
			r.Put("/settings", bar.UpdateSettings)

			r.Get("/categories", bar.Categories)
			r.Post("/categories", bar.CreateCategory)
			r.Delete("/categories/{categoryID}", bar.DeleteCategory)
			r.Get("/items", bar.MenuItems)
			r.Post("/items", bar.CreateMenuItem)
			r.Put("/items/{itemID}/availability", bar.SetMenuItemAvailability)
			r.Delete("/items/{itemID}", bar.DeleteMenuItem)
		})
	})

	return &Server{
		cfg:    cfg,
		logger: logger,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
