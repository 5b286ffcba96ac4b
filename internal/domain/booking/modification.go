package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/serviceloop/service-booking/internal/domain"
)

// ProposalStatus represents the resolution state of a modification proposal.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// ProposalDecision is the consumer's resolution of a pending proposal.
type ProposalDecision string

const (
	DecisionAccept ProposalDecision = "accept"
	DecisionReject ProposalDecision = "reject"
)

// ParseProposalDecision converts a string to a ProposalDecision.
func ParseProposalDecision(s string) (ProposalDecision, error) {
	switch decision := ProposalDecision(s); decision {
	case DecisionAccept, DecisionReject:
		return decision, nil
	default:
		return "", domain.NewValidationError("decision", "decision must be accept or reject")
	}
}

// ModificationProposal is a provider-initiated amendment to a confirmed or
// active booking's scope and price. A booking carries at most one pending
// proposal at a time; resolved proposals are retained for audit.
type ModificationProposal struct {
	id                 uuid.UUID
	bookingID          uuid.UUID
	proposedBy         uuid.UUID
	originalPriceCents int64
	newPriceCents      int64
	additionalWork     string
	reason             string
	estimatedExtraTime string
	status             ProposalStatus
	resolvedAt         *time.Time
	createdAt          time.Time
}

// NewModificationProposal opens a proposal against the given booking on
// behalf of its provider. The original price is captured from the booking's
// current total so the consumer sees exactly what would change.
func NewModificationProposal(
	b *Booking,
	actor Actor,
	newPriceCents int64,
	additionalWork, reason, estimatedExtraTime string,
) (*ModificationProposal, error) {
	if actor.Role != RoleProvider || actor.ID != b.ProviderID() {
		return nil, domain.NewForbiddenError("only the assigned provider may propose a modification")
	}
	if !b.Status().AllowsModification() {
		return nil, domain.NewInvalidStateError("booking", string(b.Status()))
	}
	if newPriceCents < b.MinimumCostCents() {
		return nil, domain.NewValidationError("new_price", "proposed total is below the minimum booking fee")
	}
	if reason == "" {
		return nil, domain.NewValidationError("reason", "reason is required")
	}

	return &ModificationProposal{
		id:                 uuid.New(),
		bookingID:          b.ID(),
		proposedBy:         actor.ID,
		originalPriceCents: b.TotalCostCents(),
		newPriceCents:      newPriceCents,
		additionalWork:     additionalWork,
		reason:             reason,
		estimatedExtraTime: estimatedExtraTime,
		status:             ProposalStatusPending,
		createdAt:          time.Now().UTC(),
	}, nil
}

// ReconstructModificationProposal rebuilds a proposal from persistence data.
func ReconstructModificationProposal(
	id, bookingID, proposedBy uuid.UUID,
	originalPriceCents, newPriceCents int64,
	additionalWork, reason, estimatedExtraTime string,
	status ProposalStatus,
	resolvedAt *time.Time,
	createdAt time.Time,
) *ModificationProposal {
	return &ModificationProposal{
		id:                 id,
		bookingID:          bookingID,
		proposedBy:         proposedBy,
		originalPriceCents: originalPriceCents,
		newPriceCents:      newPriceCents,
		additionalWork:     additionalWork,
		reason:             reason,
		estimatedExtraTime: estimatedExtraTime,
		status:             status,
		resolvedAt:         resolvedAt,
		createdAt:          createdAt,
	}
}

// --- Getters ---

func (p *ModificationProposal) ID() uuid.UUID              { return p.id }
func (p *ModificationProposal) BookingID() uuid.UUID       { return p.bookingID }
func (p *ModificationProposal) ProposedBy() uuid.UUID      { return p.proposedBy }
func (p *ModificationProposal) OriginalPriceCents() int64  { return p.originalPriceCents }
func (p *ModificationProposal) NewPriceCents() int64       { return p.newPriceCents }
func (p *ModificationProposal) AdditionalWork() string     { return p.additionalWork }
func (p *ModificationProposal) Reason() string             { return p.reason }
func (p *ModificationProposal) EstimatedExtraTime() string { return p.estimatedExtraTime }
func (p *ModificationProposal) Status() ProposalStatus     { return p.status }
func (p *ModificationProposal) ResolvedAt() *time.Time     { return p.resolvedAt }
func (p *ModificationProposal) CreatedAt() time.Time       { return p.createdAt }

// IsPending returns true if the proposal is awaiting resolution.
func (p *ModificationProposal) IsPending() bool {
	return p.status == ProposalStatusPending
}

// Resolve applies the consumer's decision to the proposal and, on accept, to
// the owning booking: the booking total becomes the proposed price. A reject
// leaves the booking untouched. Either outcome is final.
func (p *ModificationProposal) Resolve(decision ProposalDecision, actor Actor, b *Booking) error {
	if b.ID() != p.bookingID {
		return domain.NewValidationError("proposal_id", "proposal does not belong to this booking")
	}
	if actor.ID != b.ConsumerID() {
		return domain.NewForbiddenError("only the booking's consumer may resolve a modification proposal")
	}
	if p.status != ProposalStatusPending {
		return domain.NewInvalidStateError("modification proposal", string(p.status))
	}

	if decision == DecisionAccept {
		if err := b.applyProposalPrice(p.newPriceCents); err != nil {
			return err
		}
		p.status = ProposalStatusAccepted
	} else {
		p.status = ProposalStatusRejected
	}

	now := time.Now().UTC()
	p.resolvedAt = &now
	return nil
}
