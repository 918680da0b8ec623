package service

import (
	"context"
	"fmt"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContactServiceImpl implements ports.ContactService.
type ContactServiceImpl struct {
	accounts      ports.AccountRepository
	contacts      ports.ContactRepository
	clock         clock.Clock
	countryPrefix string
	log           zerolog.Logger
}

// NewContactService creates a new ContactServiceImpl.
func NewContactService(
	accounts ports.AccountRepository,
	contacts ports.ContactRepository,
	clk clock.Clock,
	countryPrefix string,
	log zerolog.Logger,
) *ContactServiceImpl {
	return &ContactServiceImpl{
		accounts:      accounts,
		contacts:      contacts,
		clock:         clk,
		countryPrefix: countryPrefix,
		log:           log,
	}
}

// List returns the owner's contacts, favorites first.
func (s *ContactServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error) {
	contacts, err := s.contacts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list contacts: %w", err))
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	return contacts, nil
}

// Add stores a favorite relation to the account registered under phone.
// Adding an existing contact only sets the favorite flag.
func (s *ContactServiceImpl) Add(ctx context.Context, ownerID uuid.UUID, phone string) (*domain.Contact, error) {
	peer, err := s.accounts.GetByPhone(ctx, domain.NormalizePhone(phone, s.countryPrefix))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve contact: %w", err))
	}
	if peer == nil {
		return nil, apperror.ErrUnknownRecipient()
	}
	if peer.ID == ownerID {
		return nil, apperror.ErrSelfTransfer()
	}

	rel, err := s.contacts.Get(ctx, ownerID, peer.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get contact: %w", err))
	}
	now := s.clock.Now()
	if rel == nil {
		rel = &domain.ContactRelation{OwnerID: ownerID, PeerID: peer.ID, CreatedAt: now}
	}
	rel.Favorite = true
	rel.UpdatedAt = now

	if err := s.contacts.Upsert(ctx, rel); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save contact: %w", err))
	}

	s.log.Info().Str("owner_id", ownerID.String()).Str("peer_id", peer.ID.String()).Msg("contact added")
	return &domain.Contact{
		Peer:              peer.Party(),
		Favorite:          true,
		LastTransactionAt: rel.LastTransactionAt,
	}, nil
}

// ToggleFavorite flips the favorite flag. A missing relation is created as
// a favorite.
func (s *ContactServiceImpl) ToggleFavorite(ctx context.Context, ownerID, peerID uuid.UUID) (*domain.ContactRelation, error) {
	if ownerID == peerID {
		return nil, apperror.ErrSelfTransfer()
	}
	peer, err := s.accounts.GetByID(ctx, peerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get peer: %w", err))
	}
	if peer == nil {
		return nil, apperror.ErrNotFound("Contact")
	}

	rel, err := s.contacts.ToggleFavorite(ctx, ownerID, peerID, s.clock.Now())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("toggle favorite: %w", err))
	}
	return rel, nil
}
