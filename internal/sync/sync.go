// Package sync exports table snapshots as JSONL to files, S3 buckets and git
// repositories, once or on a schedule.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Destination is the interface for an export target (file, S3, git).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Source is a table that can refresh itself before a snapshot is taken.
type Source interface {
	Snapshot
	Pull(ctx context.Context) error
}

// Scheduler pulls a source and exports it to one or more destinations.
type Scheduler struct {
	source       Source
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports source to the given
// destinations every interval. An interval <= 0 exports once.
func NewScheduler(source Source, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       source,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.exportLogged(ctx)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exportLogged(ctx)
		}
	}
}

func (s *Scheduler) exportLogged(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("export failed", "err", err)
	}
}

// RunOnce pulls the source, exports it, and writes the result to every
// destination. A destination failure does not stop the others; all failures
// are returned together.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := s.source.Pull(ctx); err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.source, &buf); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	var errs []error
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("export destination write failed", "destination", destinationName(i, dest), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", destinationName(i, dest), err))
		}
	}

	s.logger.Info("export completed", "destinations", len(s.destinations), "failed", len(errs), "bytes", len(data))
	return errors.Join(errs...)
}

func destinationName(i int, d Destination) string {
	if s, ok := d.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%d", i)
}
