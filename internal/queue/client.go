package queue

import (
	"context"
	"time"
)

// Client sends messages to a queue backend. A positive delay defers delivery.
type Client interface {
	Send(ctx context.Context, msg Message, delay time.Duration) error
}
