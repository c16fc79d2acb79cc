package audit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Hons90/CRM/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Audit is internal-only and never exposed through the API.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIPFromContext(ctx)
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an admin action against a target entity.
// Failures are logged and swallowed: audit never fails the request.
func (s *Service) LogAdminAction(ctx context.Context, actorUserID int64, actorRole, targetType string, targetID int64, message, metadata string) {
	err := s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		TargetType:  targetType,
		TargetID:    strconv.FormatInt(targetID, 10),
		Message:     message,
		Metadata:    metadata,
	})
	if err != nil {
		logger.From(ctx).Warn("audit append failed", "message", message, "err", err)
	}
}
