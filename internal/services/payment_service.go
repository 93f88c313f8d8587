package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/example/navalha/internal/metrics"
	"github.com/example/navalha/internal/models"
	"github.com/example/navalha/internal/pix"
)

const (
	DefaultPixExpiry     = 30 * time.Minute
	DefaultBitcoinExpiry = 60 * time.Minute
)

// PaymentConfig carries the merchant settings the orchestrator needs.
type PaymentConfig struct {
	PixKey        string
	MerchantName  string
	MerchantCity  string
	PixExpiry     time.Duration
	BitcoinExpiry time.Duration
}

// PaymentService is the entry point of the payment core: it creates
// payments, answers status queries and applies external outcomes.
type PaymentService struct {
	cfg          PaymentConfig
	payments     PaymentStore
	appointments AppointmentStore
	bitcoin      *BitcoinService
	ledger       Ledger
	qr           QRRenderer
	monitor      *SettlementMonitor
	settler      *Settler
	now          func() time.Time
	logger       *zap.Logger

	// bitcoinMu serialises the address check and insert of Bitcoin payments.
	bitcoinMu sync.Mutex
}

// PaymentServiceDeps groups the collaborators of PaymentService.
type PaymentServiceDeps struct {
	Payments     PaymentStore
	Appointments AppointmentStore
	Bitcoin      *BitcoinService
	Ledger       Ledger
	QR           QRRenderer
	Monitor      *SettlementMonitor
	Settler      *Settler
	Logger       *zap.Logger
}

func NewPaymentService(cfg PaymentConfig, deps PaymentServiceDeps) *PaymentService {
	if cfg.PixExpiry <= 0 {
		cfg.PixExpiry = DefaultPixExpiry
	}
	if cfg.BitcoinExpiry <= 0 {
		cfg.BitcoinExpiry = DefaultBitcoinExpiry
	}
	return &PaymentService{
		cfg:          cfg,
		payments:     deps.Payments,
		appointments: deps.Appointments,
		bitcoin:      deps.Bitcoin,
		ledger:       deps.Ledger,
		qr:           deps.QR,
		monitor:      deps.Monitor,
		settler:      deps.Settler,
		now:          time.Now,
		logger:       deps.Logger,
	}
}

type CreatePaymentRequest struct {
	AppointmentID uuid.UUID       `json:"appointment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// PaymentResponse is what a client needs to complete a payment.
type PaymentResponse struct {
	PaymentID    uuid.UUID            `json:"payment_id"`
	Method       models.PaymentMethod `json:"method"`
	Status       models.PaymentStatus `json:"status"`
	Amount       decimal.Decimal      `json:"amount"`
	QRCodeURL    string               `json:"qr_code_url"`
	Code         string               `json:"code"`
	Address      string               `json:"address,omitempty"`
	BTCAmount    *decimal.Decimal     `json:"btc_amount,omitempty"`
	ExchangeRate *decimal.Decimal     `json:"exchange_rate,omitempty"`
	RateSource   string               `json:"rate_source,omitempty"`
	ExpiresAt    time.Time            `json:"expires_at"`
}

// CreatePayment builds the method payload, persists a pending payment and,
// for Bitcoin, starts its settlement monitor.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest, method models.PaymentMethod) (*PaymentResponse, error) {
	if method != models.PaymentMethodPix && method != models.PaymentMethodBitcoin {
		return nil, NewPaymentError(ErrorUnsupportedMethod, fmt.Sprintf("method %q", method), nil)
	}

	amount := pix.RoundAmount(req.Amount)
	if !amount.IsPositive() {
		return nil, NewPaymentError(ErrorInvalidPaymentRequest, "amount must be greater than zero", nil)
	}
	if req.AppointmentID == uuid.Nil {
		return nil, NewPaymentError(ErrorInvalidPaymentRequest, "appointment_id is required", nil)
	}

	appt, err := s.appointments.FindByID(ctx, req.AppointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewPaymentError(ErrorInvalidPaymentRequest, "appointment not found", nil)
		}
		return nil, NewPaymentError(ErrorPersistenceFailure, "load appointment", err)
	}
	if appt.PaymentStatus == models.AppointmentPaid {
		return nil, NewPaymentError(ErrorInvalidPaymentRequest, "appointment already paid", nil)
	}
	if appt.Status == models.AppointmentStatusCancelled || appt.Status == models.AppointmentStatusCompleted {
		return nil, NewPaymentError(ErrorInvalidPaymentRequest, fmt.Sprintf("appointment is %s", appt.Status), nil)
	}
	if price := pix.RoundAmount(appt.Price); !amount.Equal(price) {
		return nil, NewPaymentError(ErrorInvalidPaymentRequest,
			fmt.Sprintf("amount %s does not match appointment price %s", amount.StringFixed(2), price.StringFixed(2)), nil)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = appt.ServiceName
	}

	now := s.now()
	payment := &models.Payment{
		AppointmentID: appt.ID,
		Method:        method,
		Amount:        amount,
		Status:        models.PaymentStatusPending,
	}
	// The ID is fixed before insert because the PIX transaction id derives from it.
	payment.EnsureID()

	var (
		data models.PaymentMethodData
		code string
	)
	switch method {
	case models.PaymentMethodPix:
		data, err = s.buildPix(payment.ID, amount)
		code = data.BRCode
		payment.ExpiresAt = now.Add(s.cfg.PixExpiry)
	case models.PaymentMethodBitcoin:
		s.bitcoinMu.Lock()
		defer s.bitcoinMu.Unlock()
		data, err = s.buildBitcoin(ctx, amount, description)
		code = data.URI
		payment.ExpiresAt = now.Add(s.cfg.BitcoinExpiry)
	}
	if err != nil {
		return nil, err
	}

	payment.MethodData = datatypes.NewJSONType(data)
	if s.qr != nil {
		payment.QRCodeURL = s.qr.Render(ctx, code)
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.Error("payment not persisted",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("method", string(method)),
			zap.Error(err),
		)
		return nil, NewPaymentError(ErrorPersistenceFailure, "create payment", err)
	}

	metrics.RecordPaymentCreated(string(method))
	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("appointment_id", appt.ID.String()),
		zap.String("method", string(method)),
		zap.String("amount", amount.StringFixed(2)),
		zap.Time("expires_at", payment.ExpiresAt),
	)

	if method == models.PaymentMethodBitcoin && s.monitor != nil {
		s.monitor.Watch(payment)
	}

	return &PaymentResponse{
		PaymentID:    payment.ID,
		Method:       method,
		Status:       payment.Status,
		Amount:       amount,
		QRCodeURL:    payment.QRCodeURL,
		Code:         code,
		Address:      data.Address,
		BTCAmount:    data.BTCAmount,
		ExchangeRate: data.ExchangeRate,
		RateSource:   data.RateSource,
		ExpiresAt:    payment.ExpiresAt,
	}, nil
}

func (s *PaymentService) buildPix(id uuid.UUID, amount decimal.Decimal) (models.PaymentMethodData, error) {
	txid := pix.SanitizeTransactionID(strings.ReplaceAll(id.String(), "-", ""))
	code, err := pix.BuildPayload(pix.Payload{
		Key:           s.cfg.PixKey,
		Amount:        amount,
		MerchantName:  s.cfg.MerchantName,
		MerchantCity:  s.cfg.MerchantCity,
		TransactionID: txid,
	})
	if err != nil {
		return models.PaymentMethodData{}, NewPaymentError(ErrorInvalidPaymentRequest, "build pix payload", err)
	}
	return models.PaymentMethodData{
		PixKey: s.cfg.PixKey,
		BRCode: code,
		TxID:   txid,
	}, nil
}

func (s *PaymentService) buildBitcoin(ctx context.Context, amount decimal.Decimal, description string) (models.PaymentMethodData, error) {
	if s.bitcoin == nil {
		return models.PaymentMethodData{}, NewPaymentError(ErrorAddressUnavailable, "bitcoin not configured", nil)
	}
	quote, err := s.bitcoin.BuildPayment(ctx, amount, description)
	if err != nil {
		return models.PaymentMethodData{}, err
	}

	btc := quote.BTCAmount
	rate := quote.Rate
	data := models.PaymentMethodData{
		Address:      quote.Address,
		BTCAmount:    &btc,
		ExchangeRate: &rate,
		RateSource:   quote.RateSource,
		URI:          quote.URI,
	}

	busy, err := s.addressInUse(ctx, quote.Address)
	if err != nil {
		return models.PaymentMethodData{}, NewPaymentError(ErrorPersistenceFailure, "list pending bitcoin payments", err)
	}
	if busy {
		return models.PaymentMethodData{}, NewPaymentError(ErrorAddressUnavailable, "receiving address is awaiting another payment", nil)
	}

	// Funds the address already holds must not count toward this payment.
	if s.ledger == nil {
		return models.PaymentMethodData{}, NewPaymentError(ErrorAddressUnavailable, "ledger not configured", nil)
	}
	baseline, err := s.ledger.ReceivedAt(ctx, quote.Address)
	if err != nil {
		s.logger.Warn("ledger baseline unavailable",
			zap.String("address", quote.Address),
			zap.Error(NewPaymentError(ErrorLedgerReadFailure, "", err)),
		)
		return models.PaymentMethodData{}, NewPaymentError(ErrorAddressUnavailable, "receiving address balance unknown", err)
	}
	data.ReceivedBaseline = &baseline
	return data, nil
}

// addressInUse reports whether a pending Bitcoin payment already waits on address.
func (s *PaymentService) addressInUse(ctx context.Context, address string) (bool, error) {
	pending, err := s.payments.ListPending(ctx, models.PaymentMethodBitcoin)
	if err != nil {
		return false, err
	}
	for i := range pending {
		if pending[i].Data().Address == address {
			return true, nil
		}
	}
	return false, nil
}

// CheckPaymentStatus returns the current status. PIX payments report what is
// stored; pending Bitcoin payments are re-checked against the ledger first.
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, id uuid.UUID) (models.PaymentStatus, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if payment.Method != models.PaymentMethodBitcoin || payment.Status.IsTerminal() || s.monitor == nil {
		return payment.Status, nil
	}
	return s.monitor.Poll(ctx, id)
}

// GetPayment loads a payment by id.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.payments.FindByID(ctx, id)
}

// ListPayments returns a filtered page of payments and the total count.
func (s *PaymentService) ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	return s.payments.List(ctx, filter)
}

// ApplyExternalStatus records an outcome reported outside the monitor: a
// bank webhook or a staff member. Only PIX payments can be approved this
// way; any pending payment can be rejected.
func (s *PaymentService) ApplyExternalStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (models.PaymentStatus, error) {
	if status != models.PaymentStatusApproved && status != models.PaymentStatusRejected {
		return "", NewPaymentError(ErrorInvalidPaymentRequest, fmt.Sprintf("status %q cannot be applied", status), nil)
	}

	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if status == models.PaymentStatusApproved && payment.Method != models.PaymentMethodPix {
		return payment.Status, NewPaymentError(ErrorInvalidPaymentRequest, "only pix payments can be approved externally", nil)
	}
	if payment.Status.IsTerminal() {
		if payment.Status == status {
			return payment.Status, nil
		}
		return payment.Status, NewPaymentError(ErrorInvalidTransition, fmt.Sprintf("payment is %s", payment.Status), nil)
	}

	current, won, err := s.settler.Transition(ctx, id, status)
	if err != nil {
		return current, err
	}
	if !won && current != status {
		return current, NewPaymentError(ErrorInvalidTransition, fmt.Sprintf("payment is %s", current), nil)
	}
	return current, nil
}

// ExpireOverdue settles every pending payment whose deadline has passed.
// Bitcoin payments get a final ledger read first. It returns how many of
// the overdue payments ended up terminal.
func (s *PaymentService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.payments.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	var errs []error
	for _, p := range overdue {
		var (
			status models.PaymentStatus
			err    error
		)
		if p.Method == models.PaymentMethodBitcoin && s.monitor != nil {
			status, err = s.monitor.Poll(ctx, p.ID)
		} else {
			status, _, err = s.settler.Transition(ctx, p.ID, models.PaymentStatusExpired)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("payment %s: %w", p.ID, err))
			continue
		}
		if status.IsTerminal() {
			settled++
		}
	}
	return settled, errors.Join(errs...)
}
