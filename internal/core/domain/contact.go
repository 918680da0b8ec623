package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContactRelation links an owner to a peer they have transacted with or added.
// At most one relation exists per ordered (owner, peer) pair.
type ContactRelation struct {
	OwnerID           uuid.UUID  `json:"owner_id"`
	PeerID            uuid.UUID  `json:"peer_id"`
	Favorite          bool       `json:"favorite"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Contact is a relation joined with the peer's display data.
type Contact struct {
	Peer              Party      `json:"peer"`
	Favorite          bool       `json:"favorite"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
}
