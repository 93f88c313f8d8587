package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/navalha/internal/models"
	"github.com/example/navalha/internal/services"
)

// PaymentRepository is the gorm-backed services.PaymentStore.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// TransitionStatus writes a terminal status only while the row is still
// pending. The affected row count tells the caller whether it won.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, to models.PaymentStatus, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":     to,
			"settled_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, services.ErrNotFound
	}
	return false, nil
}

func (r *PaymentRepository) ListPending(ctx context.Context, method models.PaymentMethod) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND method = ?", models.PaymentStatusPending, method).
		Order("expires_at ASC").
		Find(&payments).Error
	return payments, err
}

// ListOverdue returns pending payments whose deadline is at or before now.
func (r *PaymentRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.PaymentStatusPending, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) List(ctx context.Context, filter services.PaymentFilter) ([]models.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AppointmentID != uuid.Nil {
		query = query.Where("appointment_id = ?", filter.AppointmentID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := query.Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
