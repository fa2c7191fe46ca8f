package pubsub

import "context"

// Broadcaster fans emitted rating results out to subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Health(ctx context.Context) error
}
