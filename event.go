package digestbus

import (
	"context"
	"encoding/json"
	"time"
)

// EventDigestSchedule carries ScheduledRun payloads through the bus
const EventDigestSchedule = "digest.schedule"

// Handler is invoked once per delivered event with a fresh context;
// deliveries share no state except through external stores.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Predicate matches a pending event's payload for out-of-band cancellation
type Predicate func(payload json.RawMessage) bool

// EventBus is the durable scheduler contract. Emit with a zero fireAt
// delivers as soon as possible; otherwise no earlier than fireAt. Emitting
// with the same (name, key) supersedes any still-pending event, so at most
// one run per user is ever pending. Cancel removes pending events whose
// payload satisfies the predicate; once dispatch has begun, delivery wins
// and the handler is responsible for its own activity re-check.
type EventBus interface {
	Emit(ctx context.Context, name, key string, payload interface{}, fireAt time.Time) error
	Cancel(name string, match Predicate) error
	OnEvent(name string, h Handler)
}

// ScheduledRun is the payload of one future digest delivery. It is a
// snapshot taken at schedule time; only UserID may be trusted at run time.
type ScheduledRun struct {
	UserID     string   `json:"user_id"`
	Categories []string `json:"categories"`
	Frequency  string   `json:"frequency"`
	Email      string   `json:"email"`
}

// CancellationSignal suppresses a pending ScheduledRun for the same user
type CancellationSignal struct {
	UserID string `json:"user_id"`
}

// MatchUserID returns a predicate matching any run payload for userID
func MatchUserID(userID string) Predicate {
	return func(payload json.RawMessage) bool {
		var run ScheduledRun
		if err := json.Unmarshal(payload, &run); err != nil {
			return false
		}
		return run.UserID == userID
	}
}
