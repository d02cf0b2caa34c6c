package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the result of an append under the client key that
// produced it, so a repeated request replays the result instead of appending.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "append:[actor:]client_key"
	RecordID     uuid.UUID `json:"record_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}
