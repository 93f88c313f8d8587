package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/navalha/internal/models"
)

// PaymentStore persists payments. TransitionStatus must only succeed while
// the stored status is still pending; it reports whether this call won.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to models.PaymentStatus, at time.Time) (bool, error)
	ListPending(ctx context.Context, method models.PaymentMethod) ([]models.Payment, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error)
}

// PaymentFilter narrows payment listings. Zero values are ignored.
type PaymentFilter struct {
	Method        models.PaymentMethod
	Status        models.PaymentStatus
	AppointmentID uuid.UUID
	Limit         int
	Offset        int
}

// AppointmentStore is the booking subsystem's record store.
type AppointmentStore interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, limit, offset int) ([]models.Appointment, int64, error)
	ApplyPaymentOutcome(ctx context.Context, id uuid.UUID, update AppointmentPaymentUpdate) (bool, error)
}

// AppointmentPaymentUpdate is a conditional write: it applies only while the
// appointment's payment_status is one of AllowedFrom.
type AppointmentPaymentUpdate struct {
	Status        models.AppointmentStatus
	PaymentStatus models.AppointmentPaymentStatus
	PaidAmount    *decimal.Decimal
	PaymentID     *uuid.UUID
	AllowedFrom   []models.AppointmentPaymentStatus
}

// PriceOracle supplies the fiat-per-BTC exchange rate.
type PriceOracle interface {
	BTCRate(ctx context.Context) (decimal.Decimal, error)
}

// Ledger reports cumulative funds received at a Bitcoin address, in BTC.
type Ledger interface {
	ReceivedAt(ctx context.Context, address string) (decimal.Decimal, error)
}

// AddressProvider hands out the address a Bitcoin payment should be sent to.
type AddressProvider interface {
	Address(ctx context.Context) (string, error)
}

// QRRenderer turns a text payload into an image reference. It returns an
// empty string when no image can be produced.
type QRRenderer interface {
	Render(ctx context.Context, payload string) string
}

// Notifier is told about payments that reached a terminal state.
type Notifier interface {
	NotifyPaymentSettled(ctx context.Context, event PaymentSettledEvent) error
}

// Alerter receives operator alerts for failures that need a human.
type Alerter interface {
	SendToAdmin(text string) error
}

// PaymentSettledEvent summarizes a terminal transition for notifiers.
type PaymentSettledEvent struct {
	PaymentID        uuid.UUID            `json:"payment_id"`
	AppointmentID    uuid.UUID            `json:"appointment_id"`
	Method           models.PaymentMethod `json:"method"`
	Status           models.PaymentStatus `json:"status"`
	Amount           decimal.Decimal      `json:"amount"`
	ClientName       string               `json:"client_name,omitempty"`
	ClientPhone      string               `json:"client_phone,omitempty"`
	ServiceName      string               `json:"service_name,omitempty"`
	ProfessionalName string               `json:"professional_name,omitempty"`
	ScheduledAt      *time.Time           `json:"scheduled_at,omitempty"`
	SettledAt        time.Time            `json:"settled_at"`
}
