package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/metrics"
	"github.com/example/navalha/internal/models"
)

// RetryPolicy bounds the retries of a terminal write before it is dead-lettered.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 4, Backoff: 250 * time.Millisecond}

// Settler owns the terminal transition of a payment. Every path that ends a
// payment (monitor tick, status re-check, sweeper, external confirmation)
// goes through Transition, which applies the write at most once.
type Settler struct {
	payments PaymentStore
	sync     *AppointmentSynchronizer
	notifier Notifier
	alerts   Alerter
	logger   *zap.Logger
	retry    RetryPolicy
	now      func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*paymentLock
}

type paymentLock struct {
	mu   sync.Mutex
	refs int
}

func NewSettler(payments PaymentStore, syncer *AppointmentSynchronizer, notifier Notifier, alerts Alerter, logger *zap.Logger) *Settler {
	return &Settler{
		payments: payments,
		sync:     syncer,
		notifier: notifier,
		alerts:   alerts,
		logger:   logger,
		retry:    DefaultRetryPolicy,
		now:      time.Now,
		locks:    make(map[uuid.UUID]*paymentLock),
	}
}

// WithRetryPolicy overrides the retry policy.
func (s *Settler) WithRetryPolicy(p RetryPolicy) *Settler {
	s.retry = p
	return s
}

// Transition moves a pending payment to the terminal status to. It returns
// the status now stored and whether this call performed the transition.
// Follow-ups run after the per-payment lock is released.
func (s *Settler) Transition(ctx context.Context, paymentID uuid.UUID, to models.PaymentStatus) (models.PaymentStatus, bool, error) {
	if !to.IsTerminal() {
		return "", false, fmt.Errorf("transition target %q is not terminal", to)
	}

	payment, status, won, err := s.commit(ctx, paymentID, to)
	if err != nil || !won {
		return status, false, err
	}

	metrics.RecordPaymentSettled(string(payment.Method), string(to))
	s.logger.Info("payment reached terminal status",
		zap.String("payment_id", paymentID.String()),
		zap.String("method", string(payment.Method)),
		zap.String("status", string(to)),
	)

	s.finish(ctx, payment)
	return to, true, nil
}

// commit applies the conditional status write under the payment's lock.
func (s *Settler) commit(ctx context.Context, paymentID uuid.UUID, to models.PaymentStatus) (*models.Payment, models.PaymentStatus, bool, error) {
	unlock := s.lock(paymentID)
	defer unlock()

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, "", false, err
	}
	if payment.Status.IsTerminal() {
		return payment, payment.Status, false, nil
	}

	at := s.now()
	var won bool
	err = s.withRetry(ctx, func() error {
		var werr error
		won, werr = s.payments.TransitionStatus(ctx, paymentID, to, at)
		return werr
	})
	if err != nil {
		s.deadLetter(ctx, "payment", payment, to, err)
		return payment, payment.Status, false, NewPaymentError(ErrorPersistenceFailure, "terminal transition not stored", err)
	}

	if !won {
		// Another writer got there first; report what it stored.
		current, err := s.payments.FindByID(ctx, paymentID)
		if err != nil {
			return nil, "", false, err
		}
		return current, current.Status, false, nil
	}

	payment.Status = to
	payment.SettledAt = &at
	return payment, to, true, nil
}

// finish runs the follow-ups of a won transition. Their failures never undo it.
func (s *Settler) finish(ctx context.Context, payment *models.Payment) {
	var applied bool
	err := s.withRetry(ctx, func() error {
		var aerr error
		applied, aerr = s.sync.Apply(ctx, payment)
		return aerr
	})
	if err != nil {
		s.deadLetter(ctx, "appointment", payment, payment.Status, err)
		return
	}
	if !applied || s.notifier == nil {
		return
	}

	event := PaymentSettledEvent{
		PaymentID:     payment.ID,
		AppointmentID: payment.AppointmentID,
		Method:        payment.Method,
		Status:        payment.Status,
		Amount:        payment.Amount,
		SettledAt:     *payment.SettledAt,
	}
	if appt, err := s.sync.store.FindByID(ctx, payment.AppointmentID); err == nil {
		event.ClientName = appt.ClientName
		event.ClientPhone = appt.ClientPhone
		event.ServiceName = appt.ServiceName
		event.ProfessionalName = appt.ProfessionalName
		scheduled := appt.ScheduledAt
		event.ScheduledAt = &scheduled
	}

	if err := s.notifier.NotifyPaymentSettled(ctx, event); err != nil {
		s.logger.Warn("payment notification failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Settler) withRetry(ctx context.Context, fn func() error) error {
	attempts := s.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := s.retry.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || attempt == attempts {
			break
		}
		s.logger.Warn("terminal write failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// deadLetter is the alert path for writes that exhausted their retries.
// The payment stays pending in the store and is picked up again by the
// expiry sweeper or the next status check.
func (s *Settler) deadLetter(ctx context.Context, stage string, payment *models.Payment, to models.PaymentStatus, err error) {
	metrics.RecordTransitionFailure(stage)
	s.logger.Error("terminal write dead-lettered",
		zap.String("stage", stage),
		zap.String("payment_id", payment.ID.String()),
		zap.String("appointment_id", payment.AppointmentID.String()),
		zap.String("target_status", string(to)),
		zap.Error(err),
	)

	if s.alerts == nil {
		return
	}
	text := fmt.Sprintf("<b>⚠️ Falha ao gravar status de pagamento</b>\nPagamento: %s\nAgendamento: %s\nEtapa: %s\nStatus: %s\nErro: %v",
		payment.ID, payment.AppointmentID, stage, to, err)
	if aerr := s.alerts.SendToAdmin(text); aerr != nil {
		s.logger.Error("dead-letter alert failed", zap.Error(aerr))
	}
}

func (s *Settler) lock(id uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &paymentLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
