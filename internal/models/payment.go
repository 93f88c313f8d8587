package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodBitcoin    PaymentMethod = "bitcoin"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
	PaymentStatusExpired  PaymentStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusApproved, PaymentStatusRejected, PaymentStatusExpired:
		return true
	}
	return false
}

// Rate sources recorded with a Bitcoin quote.
const (
	RateSourceOracle   = "oracle"
	RateSourceFallback = "fallback"
)

// PaymentMethodData holds the method-specific payload of a payment.
type PaymentMethodData struct {
	PixKey       string           `json:"pix_key,omitempty"`
	BRCode       string           `json:"br_code,omitempty"`
	TxID         string           `json:"txid,omitempty"`
	Address      string           `json:"address,omitempty"`
	BTCAmount    *decimal.Decimal `json:"btc_amount,omitempty"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	RateSource   string           `json:"rate_source,omitempty"`
	URI          string           `json:"uri,omitempty"`
	// Funds already received at Address when the payment was created.
	ReceivedBaseline *decimal.Decimal `json:"received_baseline,omitempty"`
}

// Payment is one settlement attempt for an appointment.
type Payment struct {
	Entity
	AppointmentID uuid.UUID                             `gorm:"type:uuid;index" json:"appointment_id"`
	Method        PaymentMethod                         `gorm:"type:varchar(20);index" json:"method"`
	Amount        decimal.Decimal                       `gorm:"type:numeric(12,2)" json:"amount"`
	MethodData    datatypes.JSONType[PaymentMethodData] `gorm:"type:jsonb" json:"method_data"`
	Status        PaymentStatus                         `gorm:"type:varchar(20);index;default:pending" json:"status"`
	QRCodeURL     string                                `json:"qr_code_url"`
	ExpiresAt     time.Time                             `gorm:"index" json:"expires_at"`
	SettledAt     *time.Time                            `json:"settled_at"`
}

// Data returns the decoded method payload.
func (p *Payment) Data() PaymentMethodData {
	return p.MethodData.Data()
}
