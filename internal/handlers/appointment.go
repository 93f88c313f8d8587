package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/navalha/internal/models"
	"github.com/example/navalha/internal/services"
	"github.com/example/navalha/internal/utils"
)

// AppointmentHandler serves the booking records payments settle against.
type AppointmentHandler struct {
	appointments services.AppointmentStore
}

// NewAppointmentHandler constructs AppointmentHandler.
func NewAppointmentHandler(appointments services.AppointmentStore) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

type createAppointmentRequest struct {
	ClientName       string          `json:"client_name"`
	ClientPhone      string          `json:"client_phone"`
	ServiceName      string          `json:"service_name"`
	ProfessionalName string          `json:"professional_name"`
	Price            decimal.Decimal `json:"price"`
	ScheduledAt      time.Time       `json:"scheduled_at"`
	Notes            string          `json:"notes"`
}

// CreateAppointment books a new, unpaid appointment.
func (h *AppointmentHandler) CreateAppointment(c *fiber.Ctx) error {
	var req createAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ServiceName = strings.TrimSpace(req.ServiceName)
	if req.ClientName == "" || req.ServiceName == "" || req.ScheduledAt.IsZero() {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if !req.Price.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "price must be greater than zero")
	}

	appointment := models.Appointment{
		ClientName:       req.ClientName,
		ClientPhone:      strings.TrimSpace(req.ClientPhone),
		ServiceName:      req.ServiceName,
		ProfessionalName: strings.TrimSpace(req.ProfessionalName),
		Price:            req.Price.Round(2),
		ScheduledAt:      req.ScheduledAt,
		Status:           models.AppointmentStatusPending,
		PaymentStatus:    models.AppointmentUnpaid,
		PaidAmount:       decimal.Zero,
		Notes:            req.Notes,
	}

	if err := h.appointments.Create(c.UserContext(), &appointment); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": appointment})
}

// GetAppointment returns one appointment by ID.
func (h *AppointmentHandler) GetAppointment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid appointment id")
	}

	appointment, err := h.appointments.FindByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "appointment not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": appointment})
}

// ListAppointments returns appointments, latest schedule first.
func (h *AppointmentHandler) ListAppointments(c *fiber.Ctx) error {
	page := utils.PageFromQuery(c)

	appointments, total, err := h.appointments.List(c.UserContext(), page.Size, page.Offset())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       appointments,
		"pagination": page.Meta(total),
	})
}
