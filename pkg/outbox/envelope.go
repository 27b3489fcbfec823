package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PayloadVersion is the envelope schema version this codebase writes and
// understands. Consumers ack-and-drop anything newer instead of guessing.
const PayloadVersion = 1

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable wrapper stored in outbox_events and carried
// on the wire. Data holds the event-specific payload; everything else is
// routing and audit metadata shared by all events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
