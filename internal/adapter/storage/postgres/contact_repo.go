package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mobile-money-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ContactRepo implements ports.ContactRepository.
type ContactRepo struct {
	pool Pool
}

// NewContactRepo creates a new ContactRepo.
func NewContactRepo(pool Pool) *ContactRepo {
	return &ContactRepo{pool: pool}
}

// Touch records a transfer from owner to peer inside the transfer's transaction.
func (r *ContactRepo) Touch(ctx context.Context, tx pgx.Tx, ownerID, peerID uuid.UUID, at time.Time) error {
	query := `INSERT INTO contacts (owner_id, peer_id, favorite, last_transaction_at, created_at, updated_at)
		VALUES ($1, $2, FALSE, $3, $3, $3)
		ON CONFLICT (owner_id, peer_id)
		DO UPDATE SET last_transaction_at = EXCLUDED.last_transaction_at, updated_at = EXCLUDED.updated_at`

	if _, err := tx.Exec(ctx, query, ownerID, peerID, at); err != nil {
		return fmt.Errorf("touch contact: %w", err)
	}
	return nil
}

const contactColumns = `owner_id, peer_id, favorite, last_transaction_at, created_at, updated_at`

func scanContact(row pgx.Row) (*domain.ContactRelation, error) {
	rel := &domain.ContactRelation{}
	err := row.Scan(&rel.OwnerID, &rel.PeerID, &rel.Favorite, &rel.LastTransactionAt, &rel.CreatedAt, &rel.UpdatedAt)
	return rel, err
}

// Get fetches one relation.
func (r *ContactRepo) Get(ctx context.Context, ownerID, peerID uuid.UUID) (*domain.ContactRelation, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id = $1 AND peer_id = $2`

	rel, err := scanContact(r.pool.QueryRow(ctx, query, ownerID, peerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return rel, nil
}

// Upsert writes the favorite flag, creating the relation when missing.
func (r *ContactRepo) Upsert(ctx context.Context, rel *domain.ContactRelation) error {
	query := `INSERT INTO contacts (owner_id, peer_id, favorite, last_transaction_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, peer_id)
		DO UPDATE SET favorite = EXCLUDED.favorite, updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		rel.OwnerID, rel.PeerID, rel.Favorite, rel.LastTransactionAt, rel.CreatedAt, rel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// ToggleFavorite flips the favorite flag in a single statement so that
// concurrent toggles serialize on the row.
func (r *ContactRepo) ToggleFavorite(ctx context.Context, ownerID, peerID uuid.UUID, at time.Time) (*domain.ContactRelation, error) {
	query := `INSERT INTO contacts (owner_id, peer_id, favorite, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $3)
		ON CONFLICT (owner_id, peer_id)
		DO UPDATE SET favorite = NOT contacts.favorite, updated_at = EXCLUDED.updated_at
		RETURNING ` + contactColumns

	rel, err := scanContact(r.pool.QueryRow(ctx, query, ownerID, peerID, at))
	if err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	return rel, nil
}

// ListByOwner returns favorites first, then most recent transaction first.
func (r *ContactRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error) {
	query := `SELECT a.id, a.phone, a.first_name, a.last_name, c.favorite, c.last_transaction_at
		FROM contacts c
		JOIN accounts a ON a.id = c.peer_id
		WHERE c.owner_id = $1
		ORDER BY c.favorite DESC, c.last_transaction_at DESC NULLS LAST, a.last_name, a.first_name`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(
			&c.Peer.ID, &c.Peer.Phone, &c.Peer.FirstName, &c.Peer.LastName, &c.Favorite, &c.LastTransactionAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact row: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact rows: %w", err)
	}
	return contacts, nil
}
