package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wrrk/support/internal/api/http/handlers"
	"github.com/wrrk/support/internal/auth"
	"github.com/wrrk/support/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Customers      *handlers.CustomersHandler
	Intake         *handlers.IntakeHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Users.Signup)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/invitations/accept", cfg.Users.AcceptInvitation)

	// Customer-facing entry points carry no staff session; the
	// organization is named in the payload.
	app.Post("/inbound/email", cfg.Intake.InboundEmail)
	app.Post("/widget/messages", cfg.Intake.WidgetMessage)
	app.Post("/widget/tickets/:id/messages", cfg.Intake.WidgetFollowUp)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireRole())

	api.Get("/users", cfg.Users.ListUsers)
	api.Get("/users/me", cfg.Users.Me)
	api.Post("/users/invitations", auth.RequireRole(domain.RoleOwner, domain.RoleManager), cfg.Users.Invite)
	api.Patch("/users/:id/role", auth.RequireRole(domain.RoleOwner), cfg.Users.ChangeRole)
	api.Patch("/users/:id", cfg.Users.UpdateProfile)

	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	api.Post("/tickets/:id/assign", auth.RequireRole(domain.RoleOwner, domain.RoleManager), cfg.Tickets.AssignTicket)
	api.Post("/tickets/:id/escalate", auth.RequireRole(domain.RoleAgent), cfg.Tickets.EscalateTicket)
	api.Post("/tickets/:id/messages", cfg.Tickets.AddMessage)
	api.Get("/tickets/:id/messages", cfg.Tickets.ListMessages)
	api.Get("/tickets/:id/audit", cfg.Tickets.ListAuditTrail)

	api.Post("/customers", cfg.Customers.CreateCustomer)
	api.Get("/customers", cfg.Customers.ListCustomers)
	api.Get("/customers/:id", cfg.Customers.GetCustomer)
}
