package webhook

import (
	"context"
	"time"
)

type LifecycleEvent struct {
	Kind            string    `json:"kind"`
	SessionID       string    `json:"session_id"`
	SignupMessageID string    `json:"signup_message_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type Sender interface {
	SendLifecycleEvent(ctx context.Context, event LifecycleEvent) error
}
