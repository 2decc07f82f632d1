package api

import (
	"Courier/internal/auth"
	"Courier/internal/breaker"
	"Courier/internal/config"
	"Courier/internal/constants"
	"Courier/internal/lifecycle"
	"Courier/internal/loyalty"
	"Courier/internal/registry"
	"Courier/internal/tenant"

	"github.com/go-chi/chi/v5"
)

// ApiDependencies содержит зависимости для обработчиков API.
type ApiDependencies struct {
	Config   *config.Config
	Engine   *lifecycle.Engine
	Registry *registry.Registry
	Ledger   *loyalty.Ledger
	Resolver *tenant.Resolver
	Verifier *auth.Verifier
	Breaker  *breaker.Breaker
}

// SetupRoutes настраивает все маршруты для API.
func SetupRoutes(r chi.Router, deps ApiDependencies) {
	h := &handler{deps: deps}

	r.Get("/healthz", h.Healthz)

	r.Group(func(r chi.Router) {
		r.Use(deps.Resolver.Middleware)
		r.Use(StoreAvailableMiddleware(deps.Breaker))

		// --- Публичные маршруты ---
		r.Get("/api/track/{id}", h.TrackDelivery)
		r.Get("/api/deliveries/{id}/qr", h.DeliveryQRCode)
		r.With(OptionalAuthMiddleware(deps.Verifier)).Post("/api/deliveries", h.CreateDelivery)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(deps.Verifier))

			// --- Маршруты для клиентов ---
			r.Get("/api/customer/deliveries", h.CustomerDeliveries)
			r.Get("/api/customer/loyalty", h.CustomerLoyalty)

			// --- Маршруты для водителя ---
			r.Route("/api/driver", func(r chi.Router) {
				r.Use(RoleMiddleware(deps.Registry, deps.Breaker, constants.ROLE_DRIVER))
				r.Get("/available", h.AvailableDeliveries)
				r.Get("/deliveries", h.DriverDeliveries)
				r.Post("/deliveries/{id}/claim", h.ClaimDelivery)
				r.Post("/deliveries/{id}/advance", h.AdvanceDelivery)
				r.Put("/duty", h.SetOwnDuty)
			})

			// --- Маршруты для диспетчеров/админов ---
			r.Route("/api/admin", func(r chi.Router) {
				r.Use(RoleMiddleware(deps.Registry, deps.Breaker, constants.ROLE_DISPATCHER))
				r.Get("/deliveries", h.AdminDeliveries)
				r.Get("/staff", h.ListStaff)
				r.Put("/staff/{id}/duty", h.SetStaffDuty)
				r.Get("/loyalty/{customerID}", h.CustomerLoyaltyStatus)
				r.Get("/reports/deliveries.xlsx", h.DeliveriesReport)

				r.Group(func(r chi.Router) {
					r.Use(RoleMiddleware(deps.Registry, deps.Breaker, constants.ROLE_ADMIN))
					r.Post("/staff", h.AddStaff)
					r.Put("/staff/{id}/role", h.UpdateStaffRole)
				})
			})
		})
	})
}
