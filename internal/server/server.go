// Package server is a local sandbox of the tabular REST service. It speaks the
// same wire protocol as the hosted API so tables and the CLI can be pointed at
// it instead of real credentials.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/airpuck/internal/events"
	"github.com/alfredjeanlab/airpuck/internal/idgen"
	"github.com/alfredjeanlab/airpuck/internal/store"
)

// Server serves tables held in a store.Store.
type Server struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger

	now   func() time.Time
	newID func() (string, error)
}

// New returns a Server backed by s. A nil publisher drops events and a nil
// logger falls back to slog.Default.
func New(s store.Store, p events.Publisher, logger *slog.Logger) *Server {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     s,
		publisher: p,
		logger:    logger,
		now:       time.Now,
		newID:     idgen.RecordID,
	}
}

// publish emits an event. Failures are logged and never reach the client.
func (s *Server) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}
