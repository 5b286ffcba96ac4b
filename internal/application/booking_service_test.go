package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/serviceloop/service-booking/internal/domain"
	bookingDomain "github.com/serviceloop/service-booking/internal/domain/booking"
	"github.com/serviceloop/service-booking/internal/domain/catalog"
	"github.com/serviceloop/service-booking/internal/events"
)

// fakeBookingRepo is an in-memory BookingRepository with the same optimistic
// locking behavior as the database-backed implementation.
type fakeBookingRepo struct {
	mu        sync.Mutex
	bookings  map[uuid.UUID]*bookingDomain.Booking
	proposals map[uuid.UUID]*bookingDomain.ModificationProposal
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings:  make(map[uuid.UUID]*bookingDomain.Booking),
		proposals: make(map[uuid.UUID]*bookingDomain.ModificationProposal),
	}
}

func cloneBooking(bk *bookingDomain.Booking) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(
		bk.ID(), bk.BookingNumber(), bk.ConsumerID(), bk.ProviderID(), bk.PackageID(),
		bk.PackageName(), bk.ScheduledDate(), bk.TimeSlot(), bk.Urgency(),
		bk.Address(), bk.ContactPhone(), bk.Description(), bk.Status(),
		bk.MinimumCostCents(), bk.PackagePriceCents(), bk.Currency(), bk.CancelNote(),
		bk.ConfirmedAt(), bk.CompletedAt(), bk.CancelledAt(),
		bk.Version(), bk.CreatedAt(), bk.UpdatedAt(),
	)
}

func cloneProposal(p *bookingDomain.ModificationProposal) *bookingDomain.ModificationProposal {
	return bookingDomain.ReconstructModificationProposal(
		p.ID(), p.BookingID(), p.ProposedBy(),
		p.OriginalPriceCents(), p.NewPriceCents(),
		p.AdditionalWork(), p.Reason(), p.EstimatedExtraTime(),
		p.Status(), p.ResolvedAt(), p.CreatedAt(),
	)
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return cloneBooking(bk), nil
}

func (r *fakeBookingRepo) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bk := range r.bookings {
		if bk.BookingNumber() == number {
			return cloneBooking(bk), nil
		}
	}
	return nil, domain.NewNotFoundError("booking", number)
}

func (r *fakeBookingRepo) FindByConsumerID(_ context.Context, consumerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.ConsumerID() == consumerID {
			out = append(out, cloneBooking(bk))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindByProviderID(_ context.Context, providerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.ProviderID() == providerID {
			out = append(out, cloneBooking(bk))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) ListAll(_ context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		out = append(out, cloneBooking(bk))
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, bk := range r.bookings {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[bk.ID()] = cloneBooking(bk)
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(bk)
}

func (r *fakeBookingRepo) updateLocked(bk *bookingDomain.Booking) error {
	current, ok := r.bookings[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("booking", bk.ID().String())
	}
	if current.Version() != bk.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.bookings[bk.ID()] = cloneBooking(bk)
	return nil
}

func (r *fakeBookingRepo) FindProposalByID(_ context.Context, id uuid.UUID) (*bookingDomain.ModificationProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return nil, domain.NewNotFoundError("modification proposal", id.String())
	}
	return cloneProposal(p), nil
}

func (r *fakeBookingRepo) FindPendingProposal(_ context.Context, bookingID uuid.UUID) (*bookingDomain.ModificationProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proposals {
		if p.BookingID() == bookingID && p.IsPending() {
			return cloneProposal(p), nil
		}
	}
	return nil, domain.NewNotFoundError("pending modification proposal", bookingID.String())
}

func (r *fakeBookingRepo) ListProposals(_ context.Context, bookingID uuid.UUID) ([]*bookingDomain.ModificationProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.ModificationProposal
	for _, p := range r.proposals {
		if p.BookingID() == bookingID {
			out = append(out, cloneProposal(p))
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) SaveProposal(_ context.Context, p *bookingDomain.ModificationProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.proposals {
		if existing.BookingID() == p.BookingID() && existing.IsPending() {
			return domain.NewConflictError("booking already has a pending modification proposal")
		}
	}
	r.proposals[p.ID()] = cloneProposal(p)
	return nil
}

func (r *fakeBookingRepo) UpdateProposal(_ context.Context, p *bookingDomain.ModificationProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.proposals[p.ID()]
	if !ok {
		return domain.NewNotFoundError("modification proposal", p.ID().String())
	}
	if !current.IsPending() {
		return domain.NewConflictError("proposal was resolved by another transaction")
	}
	r.proposals[p.ID()] = cloneProposal(p)
	return nil
}

func (r *fakeBookingRepo) ResolveProposal(_ context.Context, bk *bookingDomain.Booking, p *bookingDomain.ModificationProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.proposals[p.ID()]
	if !ok {
		return domain.NewNotFoundError("modification proposal", p.ID().String())
	}
	if !current.IsPending() {
		return domain.NewConflictError("proposal was resolved by another transaction")
	}
	if err := r.updateLocked(bk); err != nil {
		return err
	}
	r.proposals[p.ID()] = cloneProposal(p)
	return nil
}

// fakeCatalogGateway serves fixed provider and package records.
type fakeCatalogGateway struct {
	providers map[uuid.UUID]*catalog.Provider
	packages  map[uuid.UUID]*catalog.ServicePackage
}

func (g *fakeCatalogGateway) GetProvider(_ context.Context, id uuid.UUID) (*catalog.Provider, error) {
	p, ok := g.providers[id]
	if !ok {
		return nil, domain.NewNotFoundError("provider", id.String())
	}
	return p, nil
}

func (g *fakeCatalogGateway) GetPackage(_ context.Context, id uuid.UUID) (*catalog.ServicePackage, error) {
	pkg, ok := g.packages[id]
	if !ok {
		return nil, domain.NewNotFoundError("service package", id.String())
	}
	return pkg, nil
}

// capturingPublisher records published events.
type capturingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	topic     string
	eventType string
	key       string
	payload   interface{}
}

func (p *capturingPublisher) Publish(_ context.Context, topic, eventType, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, eventType: eventType, key: key, payload: payload})
	return nil
}

func (p *capturingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.eventType
	}
	return out
}

type serviceFixture struct {
	service    *BookingService
	repo       *fakeBookingRepo
	publisher  *capturingPublisher
	consumerID uuid.UUID
	providerID uuid.UUID
	packageID  uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	return newServiceFixtureWithPricing(t, bookingDomain.NewFlatRatePricingStrategy())
}

func newServiceFixtureWithPricing(t *testing.T, pricing bookingDomain.PricingStrategy) *serviceFixture {
	t.Helper()

	providerID := uuid.New()
	pkg, err := catalog.NewServicePackage("electrician", "standard", "Standard Installation", "", 10000)
	require.NoError(t, err)

	gateway := &fakeCatalogGateway{
		providers: map[uuid.UUID]*catalog.Provider{
			providerID: {
				ID:               providerID,
				Name:             "Alex the Electrician",
				Category:         "electrician",
				MinimumCostCents: 5000,
			},
		},
		packages: map[uuid.UUID]*catalog.ServicePackage{pkg.ID(): pkg},
	}

	repo := newFakeBookingRepo()
	publisher := &capturingPublisher{}
	service := NewBookingService(repo, gateway, pricing, publisher, zap.NewNop())

	return &serviceFixture{
		service:    service,
		repo:       repo,
		publisher:  publisher,
		consumerID: uuid.New(),
		providerID: providerID,
		packageID:  pkg.ID(),
	}
}

func (f *serviceFixture) createBooking(t *testing.T) *BookingDTO {
	t.Helper()
	dto, err := f.service.CreateBooking(context.Background(), f.consumerID, CreateBookingRequest{
		ProviderID:    f.providerID,
		PackageID:     f.packageID,
		ScheduledDate: time.Now().UTC().Add(72 * time.Hour).Format("2006-01-02"),
		TimeSlot:      "morning",
		Urgency:       "normal",
		Address:       "12 Main Street",
		ContactPhone:  "+15550100",
	})
	require.NoError(t, err)
	return dto
}

func (f *serviceFixture) providerActor() bookingDomain.Actor {
	return bookingDomain.Actor{ID: f.providerID, Role: bookingDomain.RoleProvider}
}

func (f *serviceFixture) consumerActor() bookingDomain.Actor {
	return bookingDomain.Actor{ID: f.consumerID, Role: bookingDomain.RoleConsumer}
}

func TestCreateBooking(t *testing.T) {
	f := newServiceFixture(t)

	dto := f.createBooking(t)

	assert.Equal(t, "requested", dto.Status)
	assert.Equal(t, int64(5000), dto.MinimumCostCents)
	assert.Equal(t, int64(10000), dto.PackagePriceCents)
	assert.Equal(t, int64(15000), dto.TotalCostCents)
	assert.Equal(t, []string{"booking.requested"}, f.publisher.types())
}

// recordingPricingStrategy records every quote request and answers with a
// fixed total or error.
type recordingPricingStrategy struct {
	params []bookingDomain.PricingParams
	quote  int64
	err    error
}

func (s *recordingPricingStrategy) Calculate(params bookingDomain.PricingParams) (int64, error) {
	s.params = append(s.params, params)
	if s.err != nil {
		return 0, s.err
	}
	return s.quote, nil
}

func TestCreateBookingPublishesStrategyQuote(t *testing.T) {
	strategy := &recordingPricingStrategy{quote: 14500}
	f := newServiceFixtureWithPricing(t, strategy)

	f.createBooking(t)

	require.Len(t, strategy.params, 1)
	assert.Equal(t, int64(5000), strategy.params[0].MinimumCostCents)
	assert.Equal(t, int64(10000), strategy.params[0].PackagePriceCents)

	require.Len(t, f.publisher.events, 1)
	payload, ok := f.publisher.events[0].payload.(events.BookingRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(14500), payload.TotalCents)
}

func TestCreateBookingPricingFailureAborts(t *testing.T) {
	strategy := &recordingPricingStrategy{err: domain.NewValidationError("pricing", "costs must not be negative")}
	f := newServiceFixtureWithPricing(t, strategy)

	_, err := f.service.CreateBooking(context.Background(), f.consumerID, CreateBookingRequest{
		ProviderID:    f.providerID,
		PackageID:     f.packageID,
		ScheduledDate: time.Now().UTC().Add(72 * time.Hour).Format("2006-01-02"),
		TimeSlot:      "morning",
		Urgency:       "normal",
		Address:       "12 Main Street",
		ContactPhone:  "+15550100",
	})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, f.publisher.events)
	assert.Empty(t, f.repo.bookings)
}

func TestCreateBookingUnknownProvider(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.CreateBooking(context.Background(), f.consumerID, CreateBookingRequest{
		ProviderID:    uuid.New(),
		PackageID:     f.packageID,
		ScheduledDate: time.Now().UTC().Add(72 * time.Hour).Format("2006-01-02"),
		TimeSlot:      "morning",
		Urgency:       "normal",
		Address:       "12 Main Street",
		ContactPhone:  "+15550100",
	})

	var notFoundErr *domain.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestCreateBookingBadDate(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.CreateBooking(context.Background(), f.consumerID, CreateBookingRequest{
		ProviderID:    f.providerID,
		PackageID:     f.packageID,
		ScheduledDate: "next tuesday",
		TimeSlot:      "morning",
		Urgency:       "normal",
		Address:       "12 Main Street",
		ContactPhone:  "+15550100",
	})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "scheduled_date", validationErr.Field)
}

func TestTransitionFullLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)
	provider := f.providerActor()

	dto2, err := f.service.Transition(context.Background(), dto.ID, bookingDomain.EventAccept, provider, "")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", dto2.Status)
	assert.Equal(t, int64(2), dto2.Version)

	dto3, err := f.service.Transition(context.Background(), dto.ID, bookingDomain.EventStart, provider, "")
	require.NoError(t, err)
	assert.Equal(t, "active", dto3.Status)

	dto4, err := f.service.Transition(context.Background(), dto.ID, bookingDomain.EventComplete, provider, "")
	require.NoError(t, err)
	assert.Equal(t, "completed", dto4.Status)

	assert.Equal(t, []string{
		"booking.requested", "booking.accepted", "booking.started", "booking.completed",
	}, f.publisher.types())
}

func TestTransitionForbiddenLeavesBookingUnchanged(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)

	_, err := f.service.Transition(context.Background(), dto.ID, bookingDomain.EventAccept, f.consumerActor(), "")
	var forbiddenErr *domain.ForbiddenError
	require.ErrorAs(t, err, &forbiddenErr)

	stored, err := f.service.GetBooking(context.Background(), dto.ID, f.consumerActor())
	require.NoError(t, err)
	assert.Equal(t, "requested", stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestConcurrentTransitionsExactlyOneWinner(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)
	provider := f.providerActor()
	consumer := f.consumerActor()

	const racers = 8
	results := make(chan error, racers)
	var start sync.WaitGroup
	start.Add(1)

	// Accept and reject race from requested; whichever lands first leaves a
	// state from which neither event is valid anymore.
	for i := 0; i < racers; i++ {
		event := bookingDomain.EventAccept
		if i%2 == 1 {
			event = bookingDomain.EventReject
		}
		go func() {
			start.Wait()
			_, err := f.service.Transition(context.Background(), dto.ID, event, provider, "")
			results <- err
		}()
	}
	start.Done()

	var wins, losses int
	for i := 0; i < racers; i++ {
		err := <-results
		if err == nil {
			wins++
			continue
		}
		var conflictErr *domain.ConflictError
		var transitionErr *domain.InvalidTransitionError
		require.True(t,
			errors.As(err, &conflictErr) || errors.As(err, &transitionErr),
			"unexpected error: %v", err)
		losses++
	}

	assert.Equal(t, 1, wins, "exactly one racing transition must win")
	assert.Equal(t, racers-1, losses)

	stored, err := f.service.GetBooking(context.Background(), dto.ID, consumer)
	require.NoError(t, err)
	assert.Contains(t, []string{"confirmed", "rejected"}, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestProposeAndAcceptModification(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)
	provider := f.providerActor()
	consumer := f.consumerActor()

	_, err := f.service.Transition(context.Background(), dto.ID, bookingDomain.EventAccept, provider, "")
	require.NoError(t, err)

	proposal, err := f.service.ProposeModification(context.Background(), dto.ID, provider, ProposeModificationRequest{
		NewPriceCents:      18000,
		AdditionalWork:     "replace the wall panel",
		Reason:             "hidden water damage",
		EstimatedExtraTime: "2 hours",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), proposal.OriginalPriceCents)
	assert.Equal(t, "pending", proposal.Status)

	resolved, err := f.service.ResolveModification(context.Background(), dto.ID, proposal.ID, consumer, bookingDomain.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, int64(18000), resolved.TotalCostCents)
	assert.Equal(t, int64(5000), resolved.MinimumCostCents)
	assert.Equal(t, int64(13000), resolved.PackagePriceCents)

	proposals, err := f.service.ListProposals(context.Background(), dto.ID, consumer)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "accepted", proposals[0].Status)

	assert.Contains(t, f.publisher.types(), "booking.modification.proposed")
	assert.Contains(t, f.publisher.types(), "booking.modification.resolved")
}

func TestProposeModificationRejectedProposalLeavesBooking(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)
	provider := f.providerActor()
	consumer := f.consumerActor()

	_, err := f.service.Transition(context.Background(), dto.ID, bookingDomain.EventAccept, provider, "")
	require.NoError(t, err)

	proposal, err := f.service.ProposeModification(context.Background(), dto.ID, provider, ProposeModificationRequest{
		NewPriceCents: 18000,
		Reason:        "more work",
	})
	require.NoError(t, err)

	resolved, err := f.service.ResolveModification(context.Background(), dto.ID, proposal.ID, consumer, bookingDomain.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), resolved.TotalCostCents)

	// A rejected proposal frees the booking for a new one.
	_, err = f.service.ProposeModification(context.Background(), dto.ID, provider, ProposeModificationRequest{
		NewPriceCents: 16000,
		Reason:        "smaller change",
	})
	assert.NoError(t, err)
}

func TestProposeModificationSecondPendingConflicts(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)
	provider := f.providerActor()

	_, err := f.service.Transition(context.Background(), dto.ID, bookingDomain.EventAccept, provider, "")
	require.NoError(t, err)

	_, err = f.service.ProposeModification(context.Background(), dto.ID, provider, ProposeModificationRequest{
		NewPriceCents: 18000,
		Reason:        "more work",
	})
	require.NoError(t, err)

	_, err = f.service.ProposeModification(context.Background(), dto.ID, provider, ProposeModificationRequest{
		NewPriceCents: 20000,
		Reason:        "even more work",
	})
	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestProposeModificationRequiresConfirmedOrActive(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)

	_, err := f.service.ProposeModification(context.Background(), dto.ID, f.providerActor(), ProposeModificationRequest{
		NewPriceCents: 18000,
		Reason:        "more work",
	})
	var stateErr *domain.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestGetBookingVisibility(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)

	_, err := f.service.GetBooking(context.Background(), dto.ID, f.consumerActor())
	assert.NoError(t, err)

	_, err = f.service.GetBooking(context.Background(), dto.ID, f.providerActor())
	assert.NoError(t, err)

	_, err = f.service.GetBooking(context.Background(), dto.ID,
		bookingDomain.Actor{ID: uuid.New(), Role: bookingDomain.RoleConsumer})
	var forbiddenErr *domain.ForbiddenError
	require.ErrorAs(t, err, &forbiddenErr)

	_, err = f.service.GetBooking(context.Background(), dto.ID,
		bookingDomain.Actor{ID: uuid.New(), Role: bookingDomain.RoleAdmin})
	assert.NoError(t, err)
}

func TestGetConsumerAndProviderBookings(t *testing.T) {
	f := newServiceFixture(t)
	f.createBooking(t)
	f.createBooking(t)

	consumerPage, err := f.service.GetConsumerBookings(context.Background(), f.consumerID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), consumerPage.Total)
	assert.Len(t, consumerPage.Items, 2)

	providerPage, err := f.service.GetProviderBookings(context.Background(), f.providerID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), providerPage.Total)
}

func TestGetBookingStats(t *testing.T) {
	f := newServiceFixture(t)
	dto := f.createBooking(t)
	f.createBooking(t)

	_, err := f.service.Transition(context.Background(), dto.ID, bookingDomain.EventAccept, f.providerActor(), "")
	require.NoError(t, err)

	stats, err := f.service.GetBookingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalBookings)
	assert.Equal(t, int64(1), stats.ByStatus["requested"])
	assert.Equal(t, int64(1), stats.ByStatus["confirmed"])
}
