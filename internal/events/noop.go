package events

import "context"

// NoopPublisher drops every event. Tables use it when no NATS URL is set.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
