package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxIdempotencyKeyLen bounds the client-supplied Idempotency-Key header.
const MaxIdempotencyKeyLen = 128

// IdempotencyLog is the recorded result of the first request for a key.
type IdempotencyLog struct {
	Key           string // "<account>:<operation>:<client key>"
	TransactionID uuid.UUID
	ResponseJSON  []byte
	CreatedAt     time.Time
}

// BuildIdempotencyKey scopes a client key to the calling account and operation,
// so two accounts can reuse the same header value.
func BuildIdempotencyKey(accountID uuid.UUID, op TransactionType, clientKey string) string {
	return accountID.String() + ":" + string(op) + ":" + clientKey
}

// ValidIdempotencyKey accepts 1 to MaxIdempotencyKeyLen visible ASCII characters.
func ValidIdempotencyKey(key string) bool {
	if key == "" || len(key) > MaxIdempotencyKeyLen {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '!' || key[i] > '~' {
			return false
		}
	}
	return true
}
