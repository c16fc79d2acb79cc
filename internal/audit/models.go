package audit

import "time"

// Event is an immutable, append-only audit log record of an admin action.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// ActorUserID is the authenticated user causing the event, 0 for operator tooling.
	ActorUserID int64  `json:"actorUserId,omitempty"`
	ActorRole   string `json:"actorRole,omitempty"`

	// IPAddress is the resolved client IP (gin's ClientIP), when available.
	IPAddress string `json:"ipAddress,omitempty"`

	// TargetType/TargetID name the affected entity, e.g. "dialer_pool"/"7".
	TargetType string `json:"targetType,omitempty"`
	TargetID   string `json:"targetId,omitempty"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type EventType string

const (
	EventTypeAdminAction EventType = "admin_action"
	EventTypeCLI         EventType = "cli_action"
)

// Target types.
const (
	TargetPool = "dialer_pool"
	TargetUser = "user"
)
