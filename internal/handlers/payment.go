package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/middleware"
	"github.com/example/navalha/internal/models"
	"github.com/example/navalha/internal/services"
	"github.com/example/navalha/internal/utils"
)

// PaymentCore is the part of services.PaymentService the HTTP layer uses.
type PaymentCore interface {
	CreatePayment(ctx context.Context, req services.CreatePaymentRequest, method models.PaymentMethod) (*services.PaymentResponse, error)
	CheckPaymentStatus(ctx context.Context, id uuid.UUID) (models.PaymentStatus, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, filter services.PaymentFilter) ([]models.Payment, int64, error)
	ApplyExternalStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (models.PaymentStatus, error)
}

// PaymentHandler exposes payment creation, status and settlement endpoints.
type PaymentHandler struct {
	payments PaymentCore
	logger   *zap.Logger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments PaymentCore, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

type createPaymentRequest struct {
	AppointmentID string          `json:"appointment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Description   string          `json:"description"`
}

// CreatePayment starts a PIX or Bitcoin payment for an appointment.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return writePaymentError(c, services.NewPaymentError(services.ErrorInvalidPaymentRequest, "invalid request body", nil))
	}

	appointmentID, err := uuid.Parse(strings.TrimSpace(req.AppointmentID))
	if err != nil {
		return writePaymentError(c, services.NewPaymentError(services.ErrorInvalidPaymentRequest, "invalid appointment_id", nil))
	}

	method := models.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Method)))
	resp, err := h.payments.CreatePayment(c.UserContext(), services.CreatePaymentRequest{
		AppointmentID: appointmentID,
		Amount:        req.Amount,
		Description:   req.Description,
	}, method)
	if err != nil {
		return writePaymentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": resp})
}

// GetPaymentStatus reports the current status, re-checking the ledger for
// pending Bitcoin payments.
func (h *PaymentHandler) GetPaymentStatus(c *fiber.Ctx) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return writePaymentError(c, err)
	}

	status, err := h.payments.CheckPaymentStatus(c.UserContext(), id)
	if err != nil {
		return writePaymentError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "payment_id": id, "status": status})
}

// GetPayment returns the stored payment.
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return writePaymentError(c, err)
	}

	payment, err := h.payments.GetPayment(c.UserContext(), id)
	if err != nil {
		return writePaymentError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": payment})
}

// ListPayments returns payments for staff, newest first.
func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	page := utils.PageFromQuery(c)
	filter := services.PaymentFilter{
		Method: models.PaymentMethod(strings.TrimSpace(c.Query("method"))),
		Status: models.PaymentStatus(strings.TrimSpace(c.Query("status"))),
		Limit:  page.Size,
		Offset: page.Offset(),
	}
	if raw := strings.TrimSpace(c.Query("appointment_id")); raw != "" {
		appointmentID, err := uuid.Parse(raw)
		if err != nil {
			return writePaymentError(c, services.NewPaymentError(services.ErrorInvalidPaymentRequest, "invalid appointment_id", nil))
		}
		filter.AppointmentID = appointmentID
	}

	payments, total, err := h.payments.ListPayments(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       payments,
		"pagination": page.Meta(total),
	})
}

// ConfirmPayment lets staff approve a PIX payment they saw arrive.
func (h *PaymentHandler) ConfirmPayment(c *fiber.Ctx) error {
	return h.applyStaffStatus(c, models.PaymentStatusApproved)
}

// RejectPayment lets staff reject a pending payment.
func (h *PaymentHandler) RejectPayment(c *fiber.Ctx) error {
	return h.applyStaffStatus(c, models.PaymentStatusRejected)
}

func (h *PaymentHandler) applyStaffStatus(c *fiber.Ctx, status models.PaymentStatus) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return writePaymentError(c, err)
	}

	current, err := h.payments.ApplyExternalStatus(c.UserContext(), id, status)
	if err != nil {
		return writePaymentError(c, err)
	}

	staffID, _ := middleware.GetCurrentUserID(c)
	h.logger.Info("payment status set by staff",
		zap.String("payment_id", id.String()),
		zap.String("status", string(current)),
		zap.String("staff_id", staffID.String()),
	)

	return c.JSON(fiber.Map{"success": true, "payment_id": id, "status": current})
}

type pixWebhookRequest struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// PixWebhook receives settlement notices from the PIX provider.
func (h *PaymentHandler) PixWebhook(c *fiber.Ctx) error {
	var req pixWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return writePaymentError(c, services.NewPaymentError(services.ErrorInvalidPaymentRequest, "invalid request body", nil))
	}

	id, err := uuid.Parse(strings.TrimSpace(req.PaymentID))
	if err != nil {
		return writePaymentError(c, services.NewPaymentError(services.ErrorInvalidPaymentRequest, "invalid payment_id", nil))
	}

	status := models.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	current, err := h.payments.ApplyExternalStatus(c.UserContext(), id, status)
	if err != nil {
		h.logger.Warn("pix webhook not applied",
			zap.String("payment_id", id.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return writePaymentError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "payment_id": id, "status": current})
}

func parsePaymentID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, services.NewPaymentError(services.ErrorInvalidPaymentRequest, "invalid payment id", nil)
	}
	return id, nil
}

func writePaymentError(c *fiber.Ctx, err error) error {
	var payErr *services.PaymentError
	if !errors.As(err, &payErr) {
		return err
	}

	info := payErr.Info
	return c.Status(info.HTTPStatus).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code": info.Code,
			"name": info.Name,
			"message": fiber.Map{
				"pt": info.Message["pt"],
				"en": info.Message["en"],
			},
			"detail": payErr.Detail,
		},
	})
}
