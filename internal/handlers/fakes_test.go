package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/example/navalha/internal/models"
	"github.com/example/navalha/internal/services"
)

type stubPaymentCore struct {
	mu sync.Mutex

	createReq    services.CreatePaymentRequest
	createMethod models.PaymentMethod
	createResp   *services.PaymentResponse
	createErr    error

	status    models.PaymentStatus
	statusErr error

	payment *models.Payment

	filter   services.PaymentFilter
	listed   []models.Payment
	total    int64
	applied  []models.PaymentStatus
	applyErr error
}

func (s *stubPaymentCore) CreatePayment(ctx context.Context, req services.CreatePaymentRequest, method models.PaymentMethod) (*services.PaymentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createReq = req
	s.createMethod = method
	return s.createResp, s.createErr
}

func (s *stubPaymentCore) CheckPaymentStatus(ctx context.Context, id uuid.UUID) (models.PaymentStatus, error) {
	return s.status, s.statusErr
}

func (s *stubPaymentCore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if s.payment == nil {
		return nil, services.ErrNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentCore) ListPayments(ctx context.Context, filter services.PaymentFilter) ([]models.Payment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	return s.listed, s.total, nil
}

func (s *stubPaymentCore) ApplyExternalStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (models.PaymentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, status)
	if s.applyErr != nil {
		return "", s.applyErr
	}
	return status, nil
}

type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]*models.User)}
}

func (s *memoryUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	s.users[user.Phone] = &cp
	return nil
}

func (s *memoryUserStore) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[phone]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

type memoryAppointmentStore struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]models.Appointment
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
	s.appointments[a.ID] = *a
	return nil
}

func (s *memoryAppointmentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &a, nil
}

func (s *memoryAppointmentStore) List(ctx context.Context, limit, offset int) ([]models.Appointment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (s *memoryAppointmentStore) ApplyPaymentOutcome(ctx context.Context, id uuid.UUID, update services.AppointmentPaymentUpdate) (bool, error) {
	return false, nil
}
