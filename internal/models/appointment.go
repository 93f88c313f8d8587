package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

type AppointmentPaymentStatus string

const (
	AppointmentUnpaid  AppointmentPaymentStatus = "unpaid"
	AppointmentPaid    AppointmentPaymentStatus = "paid"
	AppointmentExpired AppointmentPaymentStatus = "expired"
)

// Appointment is a booked service. Status and payment fields change only
// when a payment linked to it reaches a terminal state.
type Appointment struct {
	Entity
	ClientName       string                   `json:"client_name"`
	ClientPhone      string                   `gorm:"index" json:"client_phone"`
	ServiceName      string                   `json:"service_name"`
	ProfessionalName string                   `json:"professional_name"`
	Price            decimal.Decimal          `gorm:"type:numeric(12,2)" json:"price"`
	ScheduledAt      time.Time                `gorm:"index" json:"scheduled_at"`
	Status           AppointmentStatus        `gorm:"type:varchar(20);default:pending" json:"status"`
	PaymentStatus    AppointmentPaymentStatus `gorm:"type:varchar(20);default:unpaid" json:"payment_status"`
	PaidAmount       decimal.Decimal          `gorm:"type:numeric(12,2);default:0" json:"paid_amount"`
	PaymentID        *uuid.UUID               `gorm:"type:uuid" json:"payment_id"`
	Notes            string                   `json:"notes"`
}
