package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/navalha/internal/models"
)

// AppointmentSynchronizer mirrors terminal payment outcomes onto the linked appointment.
type AppointmentSynchronizer struct {
	store  AppointmentStore
	logger *zap.Logger
}

func NewAppointmentSynchronizer(store AppointmentStore, logger *zap.Logger) *AppointmentSynchronizer {
	return &AppointmentSynchronizer{store: store, logger: logger}
}

// Apply writes the appointment fields for a terminal payment. It returns false
// when the appointment already reflects the outcome, so repeated events are no-ops.
func (s *AppointmentSynchronizer) Apply(ctx context.Context, payment *models.Payment) (bool, error) {
	var update AppointmentPaymentUpdate

	switch payment.Status {
	case models.PaymentStatusApproved:
		amount := payment.Amount
		id := payment.ID
		update = AppointmentPaymentUpdate{
			Status:        models.AppointmentStatusConfirmed,
			PaymentStatus: models.AppointmentPaid,
			PaidAmount:    &amount,
			PaymentID:     &id,
			AllowedFrom:   []models.AppointmentPaymentStatus{models.AppointmentUnpaid, models.AppointmentExpired},
		}
	case models.PaymentStatusExpired, models.PaymentStatusRejected:
		update = AppointmentPaymentUpdate{
			Status:        models.AppointmentStatusCancelled,
			PaymentStatus: models.AppointmentExpired,
			AllowedFrom:   []models.AppointmentPaymentStatus{models.AppointmentUnpaid},
		}
	default:
		return false, fmt.Errorf("payment %s is not terminal (status %s)", payment.ID, payment.Status)
	}

	applied, err := s.store.ApplyPaymentOutcome(ctx, payment.AppointmentID, update)
	if err != nil {
		return false, fmt.Errorf("apply payment outcome to appointment %s: %w", payment.AppointmentID, err)
	}

	if applied {
		s.logger.Info("appointment updated from payment",
			zap.String("appointment_id", payment.AppointmentID.String()),
			zap.String("payment_id", payment.ID.String()),
			zap.String("payment_status", string(payment.Status)),
			zap.String("appointment_status", string(update.Status)),
		)
	} else {
		s.logger.Debug("appointment already reflects payment outcome",
			zap.String("appointment_id", payment.AppointmentID.String()),
			zap.String("payment_id", payment.ID.String()),
		)
	}

	return applied, nil
}
