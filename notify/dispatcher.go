// Package notify publishes committed engagement transitions to downstream
// consumers over Redis pub/sub. Dispatch is fire-and-forget: a failed publish
// is logged and dropped, never surfaced to the transition that produced it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"warehousematch/engagement"
)

const channelPrefix = "engagement.events"

// Dispatcher implements engagement.Notifier over a Redis client.
type Dispatcher struct {
	client  *redis.Client
	log     *zap.Logger
	timeout time.Duration
}

// NewDispatcher wires a Redis-backed notifier.
func NewDispatcher(client *redis.Client, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		client:  client,
		log:     log,
		timeout: 2 * time.Second,
	}
}

type message struct {
	EngagementID string         `json:"engagement_id"`
	Seq          int64          `json:"seq"`
	EventType    string         `json:"event_type"`
	ActorRole    string         `json:"actor_role"`
	FromStatus   string         `json:"from_status"`
	ToStatus     string         `json:"to_status"`
	Timestamp    time.Time      `json:"ts"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// EngagementEvent publishes one committed log entry. Errors are swallowed
// after logging so notification can never block or fail a transition.
func (d *Dispatcher) EngagementEvent(ctx context.Context, entry engagement.EventLogEntry) {
	payload, err := json.Marshal(message{
		EngagementID: entry.EngagementID,
		Seq:          entry.Seq,
		EventType:    string(entry.EventType),
		ActorRole:    string(entry.ActorRole),
		FromStatus:   string(entry.FromStatus),
		ToStatus:     string(entry.ToStatus),
		Timestamp:    entry.Timestamp,
		Metadata:     entry.Metadata,
	})
	if err != nil {
		d.log.Error("encode notification", zap.Error(err))
		return
	}

	// Detach from the caller's context so a cancelled request cannot strand
	// an already-committed transition's notification.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	channel := fmt.Sprintf("%s.%s", channelPrefix, entry.EngagementID)
	if err := d.client.Publish(pubCtx, channel, payload).Err(); err != nil {
		d.log.Warn("notification publish failed",
			zap.String("engagement_id", entry.EngagementID),
			zap.String("event", string(entry.EventType)),
			zap.Error(err),
		)
	}
}
