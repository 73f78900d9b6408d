package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event is one immutable compliance record. Details hold the
// transition-specific payload and are stored as JSON.
type Event struct {
	ActorID    uuid.UUID
	Action     string
	Subject    string
	Details    map[string]any
	OccurredAt time.Time
}

//go:generate mockgen -source=audit.go -destination=sink_mock.go -package=audit
type Sink interface {
	InsertEvent(ctx context.Context, e Event) error
}

// Service emits audit events. Emission never fails the operation that
// triggered it: when the sink is unavailable the event is written to the
// local log instead, so the record is not silently dropped.
type Service struct {
	sink Sink
}

func NewService(sink Sink) *Service {
	return &Service{sink: sink}
}

func (s *Service) Record(ctx context.Context, actorID uuid.UUID, action string, subject string, details map[string]any) {
	e := Event{
		ActorID:    actorID,
		Action:     action,
		Subject:    subject,
		Details:    details,
		OccurredAt: time.Now().UTC(),
	}

	if err := s.sink.InsertEvent(ctx, e); err != nil {
		slog.Warn("audit sink unavailable, event logged locally",
			"error", err,
			"actor_id", e.ActorID,
			"action", e.Action,
			"subject", e.Subject,
			"details", e.Details,
		)
	}
}
