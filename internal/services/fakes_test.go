package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/navalha/internal/models"
)

type memoryPaymentStore struct {
	mu          sync.Mutex
	payments    map[uuid.UUID]models.Payment
	transitions int
	failures    int // TransitionStatus calls left to fail
	createErr   error
}

func newMemoryPaymentStore() *memoryPaymentStore {
	return &memoryPaymentStore{payments: make(map[uuid.UUID]models.Payment)}
}

func (s *memoryPaymentStore) Create(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *memoryPaymentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *memoryPaymentStore) TransitionStatus(ctx context.Context, id uuid.UUID, to models.PaymentStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return false, errors.New("connection reset")
	}
	p, ok := s.payments[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = to
	p.SettledAt = &at
	s.payments[id] = p
	s.transitions++
	return true, nil
}

func (s *memoryPaymentStore) ListPending(ctx context.Context, method models.PaymentMethod) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusPending && p.Method == method {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memoryPaymentStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusPending && !p.ExpiresAt.After(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryPaymentStore) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if filter.Method != "" && p.Method != filter.Method {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (s *memoryPaymentStore) status(id uuid.UUID) models.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id].Status
}

func (s *memoryPaymentStore) transitionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitions
}

type memoryAppointmentStore struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]models.Appointment
	updates      int
}

func newMemoryAppointmentStore() *memoryAppointmentStore {
	return &memoryAppointmentStore{appointments: make(map[uuid.UUID]models.Appointment)}
}

func (s *memoryAppointmentStore) Create(ctx context.Context, a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = models.AppointmentStatusPending
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = models.AppointmentUnpaid
	}
	s.appointments[a.ID] = *a
	return nil
}

func (s *memoryAppointmentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *memoryAppointmentStore) List(ctx context.Context, limit, offset int) ([]models.Appointment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (s *memoryAppointmentStore) ApplyPaymentOutcome(ctx context.Context, id uuid.UUID, u AppointmentPaymentUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return false, ErrNotFound
	}
	allowed := false
	for _, from := range u.AllowedFrom {
		if a.PaymentStatus == from {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	a.Status = u.Status
	a.PaymentStatus = u.PaymentStatus
	if u.PaidAmount != nil {
		a.PaidAmount = *u.PaidAmount
	}
	if u.PaymentID != nil {
		a.PaymentID = u.PaymentID
	}
	s.appointments[id] = a
	s.updates++
	return true, nil
}

func (s *memoryAppointmentStore) get(id uuid.UUID) models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appointments[id]
}

func (s *memoryAppointmentStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// scriptedLedger answers each read from a fixed sequence, repeating the last entry.
type scriptedLedger struct {
	mu    sync.Mutex
	steps []ledgerStep
	calls int
}

type ledgerStep struct {
	received decimal.Decimal
	err      error
}

func (l *scriptedLedger) ReceivedAt(ctx context.Context, address string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.steps) == 0 {
		return decimal.Zero, nil
	}
	i := l.calls
	if i >= len(l.steps) {
		i = len(l.steps) - 1
	}
	l.calls++
	return l.steps[i].received, l.steps[i].err
}

func (l *scriptedLedger) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type stubOracle struct {
	rate decimal.Decimal
	err  error
}

func (o stubOracle) BTCRate(ctx context.Context) (decimal.Decimal, error) {
	return o.rate, o.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []PaymentSettledEvent
	err    error
}

func (n *recordingNotifier) NotifyPaymentSettled(ctx context.Context, e PaymentSettledEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) SendToAdmin(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, text)
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.messages)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
