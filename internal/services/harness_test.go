package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"

	"github.com/example/navalha/internal/models"
)

var testStart = time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)

type harness struct {
	payments     *memoryPaymentStore
	appointments *memoryAppointmentStore
	ledger       *scriptedLedger
	notifier     *recordingNotifier
	alerts       *recordingAlerter
	clock        *fixedClock
	settler      *Settler
	monitor      *SettlementMonitor
	service      *PaymentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	h := &harness{
		payments:     newMemoryPaymentStore(),
		appointments: newMemoryAppointmentStore(),
		ledger:       &scriptedLedger{},
		notifier:     &recordingNotifier{},
		alerts:       &recordingAlerter{},
		clock:        &fixedClock{now: testStart},
	}

	h.settler = NewSettler(h.payments, NewAppointmentSynchronizer(h.appointments, logger), h.notifier, h.alerts, logger).
		WithRetryPolicy(RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	h.settler.now = h.clock.Now

	h.monitor = NewSettlementMonitor(h.payments, h.ledger, h.settler, 30*time.Second, logger)
	h.monitor.now = h.clock.Now
	t.Cleanup(h.monitor.Stop)

	bitcoin := NewBitcoinService(stubOracle{rate: decimal.NewFromInt(300000)}, NewStaticAddressProvider("bc1qnavalhatestaddress0000000000000000000"), decimal.NewFromInt(350000), logger)

	h.service = NewPaymentService(PaymentConfig{
		PixKey:       "barbearia@example.com",
		MerchantName: "Barbearia Navalha",
		MerchantCity: "Sao Paulo",
	}, PaymentServiceDeps{
		Payments:     h.payments,
		Appointments: h.appointments,
		Bitcoin:      bitcoin,
		Ledger:       h.ledger,
		QR:           NewURLQRRenderer("https://qr.example.com/?data="),
		Monitor:      h.monitor,
		Settler:      h.settler,
		Logger:       logger,
	})
	h.service.now = h.clock.Now

	return h
}

func (h *harness) seedAppointment(t *testing.T) *models.Appointment {
	t.Helper()
	return h.seedAppointmentPriced(t, "65.00")
}

func (h *harness) seedAppointmentPriced(t *testing.T, price string) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		ClientName:       "Carlos Souza",
		ClientPhone:      "+5511988887777",
		ServiceName:      "Corte e barba",
		ProfessionalName: "João",
		Price:            decimal.RequireFromString(price),
		ScheduledAt:      testStart.Add(24 * time.Hour),
	}
	require.NoError(t, h.appointments.Create(context.Background(), appt))
	return appt
}

// seedBitcoinPayment stores a pending Bitcoin payment owing btc and expiring after ttl.
func (h *harness) seedBitcoinPayment(t *testing.T, btc string, ttl time.Duration) *models.Payment {
	t.Helper()
	appt := h.seedAppointment(t)
	amount := decimal.RequireFromString(btc)
	rate := decimal.NewFromInt(300000)
	p := &models.Payment{
		AppointmentID: appt.ID,
		Method:        models.PaymentMethodBitcoin,
		Amount:        decimal.RequireFromString("65.00"),
		Status:        models.PaymentStatusPending,
		ExpiresAt:     h.clock.Now().Add(ttl),
		MethodData: datatypes.NewJSONType(models.PaymentMethodData{
			Address:      "bc1qnavalhatestaddress0000000000000000000",
			BTCAmount:    &amount,
			ExchangeRate: &rate,
			RateSource:   models.RateSourceOracle,
		}),
	}
	p.ID = uuid.New()
	require.NoError(t, h.payments.Create(context.Background(), p))
	return p
}

func (h *harness) seedPixPayment(t *testing.T, ttl time.Duration) *models.Payment {
	t.Helper()
	appt := h.seedAppointment(t)
	p := &models.Payment{
		AppointmentID: appt.ID,
		Method:        models.PaymentMethodPix,
		Amount:        decimal.RequireFromString("65.00"),
		Status:        models.PaymentStatusPending,
		ExpiresAt:     h.clock.Now().Add(ttl),
	}
	p.ID = uuid.New()
	require.NoError(t, h.payments.Create(context.Background(), p))
	return p
}
