package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/metrics"
	"github.com/example/navalha/internal/models"
)

const DefaultPollInterval = 30 * time.Second

// SettlementMonitor polls the ledger for each in-flight Bitcoin payment until
// it is funded or its deadline passes. One cancellable task runs per payment;
// the deadline always comes from the stored expires_at, so tasks can be
// re-armed after a restart with Resume.
type SettlementMonitor struct {
	payments PaymentStore
	ledger   Ledger
	settler  *Settler
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	base   context.Context
	tasks  map[uuid.UUID]context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func NewSettlementMonitor(payments PaymentStore, ledger Ledger, settler *Settler, interval time.Duration, logger *zap.Logger) *SettlementMonitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &SettlementMonitor{
		payments: payments,
		ledger:   ledger,
		settler:  settler,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		base:     context.Background(),
		tasks:    make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start sets the parent context of every task. Cancelling it stops all monitors.
func (m *SettlementMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.base = ctx
	m.mu.Unlock()
}

// Resume re-arms a task for every pending Bitcoin payment in the store.
func (m *SettlementMonitor) Resume(ctx context.Context) (int, error) {
	pending, err := m.payments.ListPending(ctx, models.PaymentMethodBitcoin)
	if err != nil {
		return 0, err
	}
	started := 0
	for i := range pending {
		if m.Watch(&pending[i]) {
			started++
		}
	}
	m.logger.Info("settlement monitors resumed", zap.Int("count", started))
	return started, nil
}

// Watch starts monitoring p. It is a no-op for non-Bitcoin or terminal
// payments and for payments already being watched.
func (m *SettlementMonitor) Watch(p *models.Payment) bool {
	if p.Method != models.PaymentMethodBitcoin || p.Status.IsTerminal() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	if _, ok := m.tasks[p.ID]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(m.base)
	m.tasks[p.ID] = cancel
	m.wg.Add(1)
	metrics.MonitorStarted()

	go m.run(ctx, p.ID, p.ExpiresAt)
	return true
}

// Active returns the number of running tasks.
func (m *SettlementMonitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Stop cancels every task and waits for them to return.
func (m *SettlementMonitor) Stop() {
	m.mu.Lock()
	m.closed = true
	for _, cancel := range m.tasks {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *SettlementMonitor) run(ctx context.Context, id uuid.UUID, expiresAt time.Time) {
	defer func() {
		m.mu.Lock()
		if cancel, ok := m.tasks[id]; ok {
			cancel()
			delete(m.tasks, id)
		}
		m.mu.Unlock()
		metrics.MonitorStopped()
		m.wg.Done()
	}()

	log := m.logger.With(zap.String("payment_id", id.String()))
	log.Debug("settlement monitor started", zap.Time("expires_at", expiresAt))

	wait := m.nextWait(expiresAt)
	if !m.now().Before(expiresAt) {
		wait = 0
	}

	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug("settlement monitor cancelled")
			return
		case <-timer.C:
		}

		status, err := m.Poll(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Warn("monitored payment disappeared")
				return
			}
			log.Error("settlement tick failed", zap.Error(err))
		}
		if status.IsTerminal() {
			log.Info("settlement monitor finished", zap.String("status", string(status)))
			return
		}
		wait = m.nextWait(expiresAt)
	}
}

// nextWait sleeps one interval, shortened so a tick lands on the deadline.
func (m *SettlementMonitor) nextWait(expiresAt time.Time) time.Duration {
	remaining := expiresAt.Sub(m.now())
	if remaining > 0 && remaining < m.interval {
		return remaining
	}
	return m.interval
}

// Poll runs one settlement check and returns the resulting status. Stored
// terminal statuses are returned untouched. Ledger errors before the
// deadline leave the payment pending.
func (m *SettlementMonitor) Poll(ctx context.Context, id uuid.UUID) (models.PaymentStatus, error) {
	payment, err := m.payments.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if payment.Status.IsTerminal() || payment.Method != models.PaymentMethodBitcoin {
		return payment.Status, nil
	}

	data := payment.Data()
	received, err := m.ledger.ReceivedAt(ctx, data.Address)
	overdue := !m.now().Before(payment.ExpiresAt)

	switch {
	case err != nil:
		m.logger.Warn("ledger read failed",
			zap.String("payment_id", id.String()),
			zap.String("address", data.Address),
			zap.Bool("overdue", overdue),
			zap.Error(NewPaymentError(ErrorLedgerReadFailure, "", err)),
		)
		if !overdue {
			return payment.Status, nil
		}
		return m.transition(ctx, id, models.PaymentStatusExpired)
	case funded(data, received):
		return m.transition(ctx, id, models.PaymentStatusApproved)
	case overdue:
		return m.transition(ctx, id, models.PaymentStatusExpired)
	}
	return payment.Status, nil
}

func (m *SettlementMonitor) transition(ctx context.Context, id uuid.UUID, to models.PaymentStatus) (models.PaymentStatus, error) {
	status, _, err := m.settler.Transition(ctx, id, to)
	if err != nil {
		return models.PaymentStatusPending, err
	}
	return status, nil
}

func funded(data models.PaymentMethodData, received decimal.Decimal) bool {
	if data.BTCAmount == nil {
		return false
	}
	if data.ReceivedBaseline != nil {
		received = received.Sub(*data.ReceivedBaseline)
	}
	return received.GreaterThanOrEqual(*data.BTCAmount)
}
