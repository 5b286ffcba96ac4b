package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/serviceloop/service-booking/internal/domain"
	bookingDomain "github.com/serviceloop/service-booking/internal/domain/booking"
	"github.com/serviceloop/service-booking/internal/domain/catalog"
	"github.com/serviceloop/service-booking/internal/events"
)

const scheduledDateLayout = "2006-01-02"

// CatalogGateway is the read-only seam to the provider catalog. Provider fee
// and package price are read exactly once, at booking creation.
type CatalogGateway interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*catalog.Provider, error)
	GetPackage(ctx context.Context, id uuid.UUID) (*catalog.ServicePackage, error)
}

// EventPublisher is the seam to the notification collaborator. The core
// hands over intents; delivery and retry are not its concern.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error
}

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	ProviderID    uuid.UUID `json:"provider_id" binding:"required"`
	PackageID     uuid.UUID `json:"package_id" binding:"required"`
	ScheduledDate string    `json:"scheduled_date" binding:"required"`
	TimeSlot      string    `json:"time_slot"`
	Urgency       string    `json:"urgency"`
	Address       string    `json:"address"`
	ContactPhone  string    `json:"contact_phone"`
	Description   string    `json:"description"`
}

// ProposeModificationRequest holds a provider's proposed amendment.
type ProposeModificationRequest struct {
	NewPriceCents      int64  `json:"new_price_cents" binding:"required"`
	AdditionalWork     string `json:"additional_work"`
	Reason             string `json:"reason"`
	EstimatedExtraTime string `json:"estimated_extra_time"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                uuid.UUID  `json:"id"`
	BookingNumber     string     `json:"booking_number"`
	ConsumerID        uuid.UUID  `json:"consumer_id"`
	ProviderID        uuid.UUID  `json:"provider_id"`
	PackageID         uuid.UUID  `json:"package_id"`
	PackageName       string     `json:"package_name"`
	ScheduledDate     string     `json:"scheduled_date"`
	TimeSlot          string     `json:"time_slot"`
	Urgency           string     `json:"urgency"`
	Address           string     `json:"address"`
	ContactPhone      string     `json:"contact_phone"`
	Description       string     `json:"description,omitempty"`
	Status            string     `json:"status"`
	MinimumCostCents  int64      `json:"minimum_cost_cents"`
	PackagePriceCents int64      `json:"package_price_cents"`
	TotalCostCents    int64      `json:"total_cost_cents"`
	Currency          string     `json:"currency"`
	CancelNote        string     `json:"cancel_note,omitempty"`
	FeeRefundable     bool       `json:"fee_refundable,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ProposalDTO is the response representation of a modification proposal.
type ProposalDTO struct {
	ID                 uuid.UUID  `json:"id"`
	BookingID          uuid.UUID  `json:"booking_id"`
	ProposedBy         uuid.UUID  `json:"proposed_by"`
	OriginalPriceCents int64      `json:"original_price_cents"`
	NewPriceCents      int64      `json:"new_price_cents"`
	AdditionalWork     string     `json:"additional_work,omitempty"`
	Reason             string     `json:"reason"`
	EstimatedExtraTime string     `json:"estimated_extra_time,omitempty"`
	Status             string     `json:"status"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	catalogGW CatalogGateway
	pricing   bookingDomain.PricingStrategy
	publisher EventPublisher
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	catalogGW CatalogGateway,
	pricing bookingDomain.PricingStrategy,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		catalogGW: catalogGW,
		pricing:   pricing,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateBooking creates a new booking request for the given consumer. The
// provider's minimum fee and the package price are captured here, once.
func (s *BookingService) CreateBooking(ctx context.Context, consumerID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	provider, err := s.catalogGW.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}

	pkg, err := s.catalogGW.GetPackage(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}

	scheduledDate, err := time.Parse(scheduledDateLayout, req.ScheduledDate)
	if err != nil {
		return nil, domain.NewValidationError("scheduled_date", "scheduled date must be an ISO date (YYYY-MM-DD)")
	}

	// The strategy quotes the total before the aggregate captures the
	// components; the quote is what gets announced downstream.
	quotedTotal, err := s.pricing.Calculate(bookingDomain.PricingParams{
		MinimumCostCents:  provider.MinimumCostCents,
		PackagePriceCents: pkg.PriceCents(),
	})
	if err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(
		consumerID,
		provider,
		pkg,
		scheduledDate,
		req.TimeSlot,
		bookingDomain.Urgency(req.Urgency),
		req.Address,
		req.ContactPhone,
		req.Description,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.publish(ctx, events.BookingRequested, bk.ID().String(), events.BookingRequestedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		ConsumerID:    bk.ConsumerID(),
		ProviderID:    bk.ProviderID(),
		PackageID:     bk.PackageID(),
		TotalCents:    quotedTotal,
		Currency:      bk.Currency(),
		Urgency:       string(bk.Urgency()),
		ScheduledDate: bk.ScheduledDate().Format(scheduledDateLayout),
		OccurredAt:    time.Now().UTC(),
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// Transition applies a lifecycle event to the booking on behalf of an
// actor. Exactly one of two racing transitions can win: the loser observes a
// conflict from the version check and the booking is left unchanged.
func (s *BookingService) Transition(ctx context.Context, bookingID uuid.UUID, event bookingDomain.TransitionEvent, actor bookingDomain.Actor, note string) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	intent, err := bk.Apply(event, actor, note)
	if err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeForTransition(event), bk.ID().String(), events.BookingTransitionedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		Event:         string(intent.Event),
		Status:        string(bk.Status()),
		ActorID:       intent.ActorID,
		RecipientID:   intent.RecipientID,
		FeeRefundable: bk.MinimumFeeRefundable(),
		TotalCents:    bk.TotalCostCents(),
		Currency:      bk.Currency(),
		OccurredAt:    time.Now().UTC(),
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// GetBooking retrieves a single booking, visible only to its parties and admins.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(bk, actor); err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingByNumber retrieves a booking by its human-readable number,
// visible only to its parties and admins.
func (s *BookingService) GetBookingByNumber(ctx context.Context, number string, actor bookingDomain.Actor) (*BookingDTO, error) {
	bk, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(bk, actor); err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetConsumerBookings retrieves paginated bookings created by a consumer.
func (s *BookingService) GetConsumerBookings(ctx context.Context, consumerID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByConsumerID(ctx, consumerID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// GetProviderBookings retrieves paginated bookings assigned to a provider.
func (s *BookingService) GetProviderBookings(ctx context.Context, providerID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByProviderID(ctx, providerID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// ProposeModification opens a modification proposal against a confirmed or
// active booking. A booking can carry at most one pending proposal.
func (s *BookingService) ProposeModification(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, req ProposeModificationRequest) (*ProposalDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindPendingProposal(ctx, bookingID); err == nil {
		return nil, domain.NewConflictError("booking already has a pending modification proposal")
	} else {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	proposal, err := bookingDomain.NewModificationProposal(bk, actor, req.NewPriceCents, req.AdditionalWork, req.Reason, req.EstimatedExtraTime)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveProposal(ctx, proposal); err != nil {
		return nil, err
	}

	s.publish(ctx, events.ModificationProposed, bk.ID().String(), events.ModificationProposedEvent{
		ProposalID:         proposal.ID(),
		BookingID:          bk.ID(),
		ProposedBy:         proposal.ProposedBy(),
		ConsumerID:         bk.ConsumerID(),
		OriginalPriceCents: proposal.OriginalPriceCents(),
		NewPriceCents:      proposal.NewPriceCents(),
		OccurredAt:         time.Now().UTC(),
	})

	result := toProposalDTO(proposal)
	return &result, nil
}

// ResolveModification applies the consumer's decision to a pending proposal.
// Accepting replaces the booking total with the proposed price atomically;
// rejecting leaves the booking untouched.
func (s *BookingService) ResolveModification(ctx context.Context, bookingID, proposalID uuid.UUID, actor bookingDomain.Actor, decision bookingDomain.ProposalDecision) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	proposal, err := s.repo.FindProposalByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	if err := proposal.Resolve(decision, actor, bk); err != nil {
		return nil, err
	}

	if decision == bookingDomain.DecisionAccept {
		bk.IncrementVersion()
		if err := s.repo.ResolveProposal(ctx, bk, proposal); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.UpdateProposal(ctx, proposal); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, events.ModificationResolved, bk.ID().String(), events.ModificationResolvedEvent{
		ProposalID:    proposal.ID(),
		BookingID:     bk.ID(),
		Decision:      string(decision),
		NewTotalCents: bk.TotalCostCents(),
		OccurredAt:    time.Now().UTC(),
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// ListProposals retrieves all proposals for a booking, visible only to its
// parties and admins.
func (s *BookingService) ListProposals(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor) ([]ProposalDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(bk, actor); err != nil {
		return nil, err
	}

	proposals, err := s.repo.ListProposals(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	dtos := make([]ProposalDTO, len(proposals))
	for i, p := range proposals {
		dtos[i] = toProposalDTO(p)
	}
	return dtos, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// --- Helpers ---

func authorizeView(bk *bookingDomain.Booking, actor bookingDomain.Actor) error {
	if actor.Role == bookingDomain.RoleAdmin {
		return nil
	}
	if actor.ID != bk.ConsumerID() && actor.ID != bk.ProviderID() {
		return domain.NewForbiddenError("booking is not visible to this user")
	}
	return nil
}

func (s *BookingService) publish(ctx context.Context, eventType, key string, payload interface{}) {
	if err := s.publisher.Publish(ctx, events.TopicBookingEvents, eventType, key, payload); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                bk.ID(),
		BookingNumber:     bk.BookingNumber(),
		ConsumerID:        bk.ConsumerID(),
		ProviderID:        bk.ProviderID(),
		PackageID:         bk.PackageID(),
		PackageName:       bk.PackageName(),
		ScheduledDate:     bk.ScheduledDate().Format(scheduledDateLayout),
		TimeSlot:          bk.TimeSlot(),
		Urgency:           string(bk.Urgency()),
		Address:           bk.Address(),
		ContactPhone:      bk.ContactPhone(),
		Description:       bk.Description(),
		Status:            string(bk.Status()),
		MinimumCostCents:  bk.MinimumCostCents(),
		PackagePriceCents: bk.PackagePriceCents(),
		TotalCostCents:    bk.TotalCostCents(),
		Currency:          bk.Currency(),
		CancelNote:        bk.CancelNote(),
		FeeRefundable:     bk.MinimumFeeRefundable(),
		ConfirmedAt:       bk.ConfirmedAt(),
		CompletedAt:       bk.CompletedAt(),
		CancelledAt:       bk.CancelledAt(),
		Version:           bk.Version(),
		CreatedAt:         bk.CreatedAt(),
		UpdatedAt:         bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func toProposalDTO(p *bookingDomain.ModificationProposal) ProposalDTO {
	return ProposalDTO{
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
