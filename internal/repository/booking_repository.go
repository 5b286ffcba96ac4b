package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serviceloop/service-booking/internal/domain"
	bookingDomain "github.com/serviceloop/service-booking/internal/domain/booking"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingNumber     string     `gorm:"uniqueIndex;not null;size:20"`
	ConsumerID        uuid.UUID  `gorm:"type:uuid;index;not null"`
	ProviderID        uuid.UUID  `gorm:"type:uuid;index;not null"`
	PackageID         uuid.UUID  `gorm:"type:uuid;not null"`
	PackageName       string     `gorm:"not null;size:200"`
	ScheduledDate     time.Time  `gorm:"not null"`
	TimeSlot          string     `gorm:"not null;size:20"`
	Urgency           string     `gorm:"not null;size:20"`
	Address           string     `gorm:"not null;size:500"`
	ContactPhone      string     `gorm:"not null;size:30"`
	Description       string     `gorm:"size:2000"`
	Status            string     `gorm:"not null;size:30;index"`
	MinimumCostCents  int64      `gorm:"not null"`
	PackagePriceCents int64      `gorm:"not null"`
	Currency          string     `gorm:"not null;size:3;default:'USD'"`
	CancelNote        string     `gorm:"size:500"`
	ConfirmedAt       *time.Time `gorm:""`
	CompletedAt       *time.Time `gorm:""`
	CancelledAt       *time.Time `gorm:""`
	Version           int64      `gorm:"not null;default:1"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// ModificationProposalModel is the GORM model for the modification_proposals
// table. A partial unique index on (booking_id) WHERE status='pending'
// enforces the one-pending-proposal rule even under racing inserts.
type ModificationProposalModel struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingID          uuid.UUID  `gorm:"type:uuid;index;not null"`
	ProposedBy         uuid.UUID  `gorm:"type:uuid;not null"`
	OriginalPriceCents int64      `gorm:"not null"`
	NewPriceCents      int64      `gorm:"not null"`
	AdditionalWork     string     `gorm:"size:2000"`
	Reason             string     `gorm:"not null;size:2000"`
	EstimatedExtraTime string     `gorm:"size:100"`
	Status             string     `gorm:"not null;size:20;index"`
	ResolvedAt         *time.Time `gorm:""`
	CreatedAt          time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ModificationProposalModel) TableName() string {
	return "modification_proposals"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByConsumerID retrieves bookings for a consumer with pagination.
func (r *GormBookingRepository) FindByConsumerID(ctx context.Context, consumerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "consumer_id = ?", consumerID, page, limit)
}

// FindByProviderID retrieves bookings for a provider with pagination.
func (r *GormBookingRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "provider_id = ?", providerID, page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "", nil, page, limit)
}

func (r *GormBookingRepository) findPage(ctx context.Context, cond string, arg interface{}, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})
	if cond != "" {
		query = query.Where(cond, arg)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	if err := r.db.WithContext(ctx).Create(toBookingModel(bk)).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
// Exactly one of two racing updates can match the expected version.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	return updateBookingLocked(r.db.WithContext(ctx), bk)
}

func updateBookingLocked(tx *gorm.DB, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// IncrementVersion was called before persisting, so the row must still
	// hold the previous version.
	expectedVersion := bk.Version() - 1
	result := tx.
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":              model.Status,
			"minimum_cost_cents":  model.MinimumCostCents,
			"package_price_cents": model.PackagePriceCents,
			"cancel_note":         model.CancelNote,
			"confirmed_at":        model.ConfirmedAt,
			"completed_at":        model.CompletedAt,
			"cancelled_at":        model.CancelledAt,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// FindProposalByID retrieves a modification proposal by its identifier.
func (r *GormBookingRepository) FindProposalByID(ctx context.Context, id uuid.UUID) (*bookingDomain.ModificationProposal, error) {
	var model ModificationProposalModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("modification proposal", id.String())
		}
		return nil, fmt.Errorf("failed to find proposal by ID: %w", err)
	}
	return toDomainProposal(&model)
}

// FindPendingProposal retrieves the booking's pending proposal, if any.
func (r *GormBookingRepository) FindPendingProposal(ctx context.Context, bookingID uuid.UUID) (*bookingDomain.ModificationProposal, error) {
	var model ModificationProposalModel
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, string(bookingDomain.ProposalStatusPending)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("pending modification proposal", bookingID.String())
		}
		return nil, fmt.Errorf("failed to find pending proposal: %w", err)
	}
	return toDomainProposal(&model)
}

// ListProposals retrieves all proposals for a booking, newest first.
func (r *GormBookingRepository) ListProposals(ctx context.Context, bookingID uuid.UUID) ([]*bookingDomain.ModificationProposal, error) {
	var models []ModificationProposalModel
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	proposals := make([]*bookingDomain.ModificationProposal, len(models))
	for i, m := range models {
		p, err := toDomainProposal(&m)
		if err != nil {
			return nil, err
		}
		proposals[i] = p
	}
	return proposals, nil
}

// SaveProposal persists a new proposal. The partial unique index translates
// a racing duplicate insert into a conflict.
func (r *GormBookingRepository) SaveProposal(ctx context.Context, p *bookingDomain.ModificationProposal) error {
	if err := r.db.WithContext(ctx).Create(toProposalModel(p)).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError("booking already has a pending modification proposal")
		}
		return fmt.Errorf("failed to save proposal: %w", err)
	}
	return nil
}

// UpdateProposal persists changes to a proposal without touching its booking.
func (r *GormBookingRepository) UpdateProposal(ctx context.Context, p *bookingDomain.ModificationProposal) error {
	return updateProposalRow(r.db.WithContext(ctx), p)
}

func updateProposalRow(tx *gorm.DB, p *bookingDomain.ModificationProposal) error {
	model := toProposalModel(p)
	result := tx.
		Model(&ModificationProposalModel{}).
		Where("id = ? AND status = ?", model.ID, string(bookingDomain.ProposalStatusPending)).
		Updates(map[string]interface{}{
			"status":      model.Status,
			"resolved_at": model.ResolvedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update proposal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("proposal was resolved by another transaction")
	}
	return nil
}

// ResolveProposal persists a resolved proposal together with its amended
// booking in one transaction, with optimistic locking on the booking.
func (r *GormBookingRepository) ResolveProposal(ctx context.Context, bk *bookingDomain.Booking, p *bookingDomain.ModificationProposal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateBookingLocked(tx, bk); err != nil {
			return err
		}
		return updateProposalRow(tx, p)
	})
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// --- Conversion helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
		ID:                bk.ID(),
		BookingNumber:     bk.BookingNumber(),
		ConsumerID:        bk.ConsumerID(),
		ProviderID:        bk.ProviderID(),
		PackageID:         bk.PackageID(),
		PackageName:       bk.PackageName(),
		ScheduledDate:     bk.ScheduledDate(),
		TimeSlot:          bk.TimeSlot(),
		Urgency:           string(bk.Urgency()),
		Address:           bk.Address(),
		ContactPhone:      bk.ContactPhone(),
		Description:       bk.Description(),
		Status:            string(bk.Status()),
		MinimumCostCents:  bk.MinimumCostCents(),
		PackagePriceCents: bk.PackagePriceCents(),
		Currency:          bk.Currency(),
		CancelNote:        bk.CancelNote(),
		ConfirmedAt:       bk.ConfirmedAt(),
		CompletedAt:       bk.CompletedAt(),
		CancelledAt:       bk.CancelledAt(),
		Version:           bk.Version(),
		CreatedAt:         bk.CreatedAt(),
		UpdatedAt:         bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.BookingNumber,
		m.ConsumerID,
		m.ProviderID,
		m.PackageID,
		m.PackageName,
		m.ScheduledDate,
		m.TimeSlot,
		bookingDomain.Urgency(m.Urgency),
		m.Address,
		m.ContactPhone,
		m.Description,
		status,
		m.MinimumCostCents,
		m.PackagePriceCents,
		m.Currency,
		m.CancelNote,
		m.ConfirmedAt,
		m.CompletedAt,
		m.CancelledAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toProposalModel(p *bookingDomain.ModificationProposal) *ModificationProposalModel {
	return &ModificationProposalModel{
		ID:                 p.ID(),
		BookingID:          p.BookingID(),
		ProposedBy:         p.ProposedBy(),
		OriginalPriceCents: p.OriginalPriceCents(),
		NewPriceCents:      p.NewPriceCents(),
		AdditionalWork:     p.AdditionalWork(),
		Reason:             p.Reason(),
		EstimatedExtraTime: p.EstimatedExtraTime(),
		Status:             string(p.Status()),
		ResolvedAt:         p.ResolvedAt(),
		CreatedAt:          p.CreatedAt(),
	}
}

func toDomainProposal(m *ModificationProposalModel) (*bookingDomain.ModificationProposal, error) {
	switch bookingDomain.ProposalStatus(m.Status) {
	case bookingDomain.ProposalStatusPending, bookingDomain.ProposalStatusAccepted, bookingDomain.ProposalStatusRejected:
	default:
		return nil, fmt.Errorf("invalid proposal status: %s", m.Status)
	}

	return bookingDomain.ReconstructModificationProposal(
		m.ID,
		m.BookingID,
		m.ProposedBy,
		m.OriginalPriceCents,
		m.NewPriceCents,
		m.AdditionalWork,
		m.Reason,
		m.EstimatedExtraTime,
		bookingDomain.ProposalStatus(m.Status),
		m.ResolvedAt,
		m.CreatedAt,
	), nil
}
