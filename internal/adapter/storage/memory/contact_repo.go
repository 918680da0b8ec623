package memory

import (
	"context"
	"sort"
	"time"

	"mobile-money-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ContactRepo implements ports.ContactRepository.
type ContactRepo struct {
	s *Store
}

// NewContactRepo creates a ContactRepo over s.
func NewContactRepo(s *Store) *ContactRepo {
	return &ContactRepo{s: s}
}

func (r *ContactRepo) Touch(_ context.Context, tx pgx.Tx, ownerID, peerID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := contactKey{ownerID, peerID}
	rel, ok := r.s.contacts[key]
	if !ok {
		r.s.contacts[key] = &domain.ContactRelation{
			OwnerID:           ownerID,
			PeerID:            peerID,
			LastTransactionAt: &at,
			CreatedAt:         at,
			UpdatedAt:         at,
		}
		record(tx, func() { delete(r.s.contacts, key) })
		return nil
	}

	prev := *rel
	rel.LastTransactionAt = &at
	rel.UpdatedAt = at
	record(tx, func() { *rel = prev })
	return nil
}

func (r *ContactRepo) Get(_ context.Context, ownerID, peerID uuid.UUID) (*domain.ContactRelation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rel, ok := r.s.contacts[contactKey{ownerID, peerID}]
	if !ok {
		return nil, nil
	}
	cp := *rel
	return &cp, nil
}

func (r *ContactRepo) Upsert(_ context.Context, rel *domain.ContactRelation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := contactKey{rel.OwnerID, rel.PeerID}
	if cur, ok := r.s.contacts[key]; ok {
		cur.Favorite = rel.Favorite
		cur.UpdatedAt = rel.UpdatedAt
		return nil
	}
	cp := *rel
	r.s.contacts[key] = &cp
	return nil
}

func (r *ContactRepo) ToggleFavorite(_ context.Context, ownerID, peerID uuid.UUID, at time.Time) (*domain.ContactRelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := contactKey{ownerID, peerID}
	rel, ok := r.s.contacts[key]
	if !ok {
		rel = &domain.ContactRelation{OwnerID: ownerID, PeerID: peerID, CreatedAt: at}
		r.s.contacts[key] = rel
	}
	rel.Favorite = !rel.Favorite
	rel.UpdatedAt = at
	cp := *rel
	return &cp, nil
}

func (r *ContactRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Contact
	for key, rel := range r.s.contacts {
		if key.owner != ownerID {
			continue
		}
		peer, ok := r.s.accounts[key.peer]
		if !ok {
			continue
		}
		out = append(out, domain.Contact{
			Peer:              peer.Party(),
			Favorite:          rel.Favorite,
			LastTransactionAt: rel.LastTransactionAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return contactLess(out[i], out[j]) })
	return out, nil
}

// contactLess orders favorites first, then most recent transaction, with
// never-transacted peers last.
func contactLess(a, b domain.Contact) bool {
	if a.Favorite != b.Favorite {
		return a.Favorite
	}
	switch {
	case a.LastTransactionAt == nil && b.LastTransactionAt == nil:
		return a.Peer.Phone < b.Peer.Phone
	case a.LastTransactionAt == nil:
		return false
	case b.LastTransactionAt == nil:
		return true
	case !a.LastTransactionAt.Equal(*b.LastTransactionAt):
		return a.LastTransactionAt.After(*b.LastTransactionAt)
	}
	return a.Peer.Phone < b.Peer.Phone
}
