package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/navalha/internal/models"
	"github.com/example/navalha/internal/services"
)

// AppointmentRepository is the gorm-backed services.AppointmentStore.
type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).Create(appointment).Error
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&appointment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *AppointmentRepository) List(ctx context.Context, limit, offset int) ([]models.Appointment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Appointment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var appointments []models.Appointment
	query := r.db.WithContext(ctx).Order("scheduled_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&appointments).Error; err != nil {
		return nil, 0, err
	}
	return appointments, total, nil
}

// ApplyPaymentOutcome updates the appointment only while its payment_status
// is one of update.AllowedFrom, so replays of the same outcome change nothing.
func (r *AppointmentRepository) ApplyPaymentOutcome(ctx context.Context, id uuid.UUID, update services.AppointmentPaymentUpdate) (bool, error) {
	if len(update.AllowedFrom) == 0 {
		return false, nil
	}

	values := map[string]interface{}{
		"status":         update.Status,
		"payment_status": update.PaymentStatus,
	}
	if update.PaidAmount != nil {
		values["paid_amount"] = *update.PaidAmount
	}
	if update.PaymentID != nil {
		values["payment_id"] = *update.PaymentID
	}

	result := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND payment_status IN ?", id, update.AllowedFrom).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Appointment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, services.ErrNotFound
	}
	return false, nil
}
