package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/navalha/internal/handlers"
	"github.com/example/navalha/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Appointments *handlers.AppointmentHandler
	Payments     *handlers.PaymentHandler
	Health       *handlers.HealthHandler
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, h Handlers, jwtSecret, pixWebhookSecret string) {
	requireStaff := middleware.AuthMiddleware(jwtSecret)

	app.Get("/health", h.Health.Health)
	app.Get("/metrics", middleware.PrometheusHandler())

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/register", requireStaff, middleware.RequireRole(handlers.RoleAdmin), h.Auth.Register)

	// Appointments
	appointments := api.Group("/appointments", requireStaff)
	appointments.Get("/", h.Appointments.ListAppointments)
	appointments.Post("/", h.Appointments.CreateAppointment)
	appointments.Get("/:id", h.Appointments.GetAppointment)

	// Payments
	payments := api.Group("/payments")
	payments.Post("/", h.Payments.CreatePayment)
	payments.Post("/pix/webhook", middleware.PixWebhookAuth(pixWebhookSecret), h.Payments.PixWebhook)
	payments.Get("/:id/status", h.Payments.GetPaymentStatus)

	payments.Get("/", requireStaff, h.Payments.ListPayments)
	payments.Get("/:id", requireStaff, h.Payments.GetPayment)
	payments.Post("/:id/confirm", requireStaff, h.Payments.ConfirmPayment)
	payments.Post("/:id/reject", requireStaff, h.Payments.RejectPayment)
}
