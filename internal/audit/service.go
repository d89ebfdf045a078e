// Package audit journals controller transitions asynchronously.
package audit

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Action constants for audit logging
const (
	ActionRequested     = "requested"
	ActionGranted       = "granted"
	ActionDenied        = "denied"
	ActionCommitted     = "committed"
	ActionRolledBack    = "rolled_back"
	ActionAdvisory      = "advisory"
	ActionHealthWarning = "health_warning"
	ActionFailed        = "failed"
)

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator interface for testable ID generation
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator implements IDGenerator using UUID v4
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string { return uuid.NewString() }

// Redactor removes sensitive values from event details.
type Redactor interface {
	Redact(data map[string]any) map[string]any
}

// DefaultRedactor masks well-known secret keys.
type DefaultRedactor struct {
	sensitiveKeys []string
}

func NewDefaultRedactor() *DefaultRedactor {
	return &DefaultRedactor{
		sensitiveKeys: []string{"secret", "token", "api_key", "authorization", "signature"},
	}
}

func (r *DefaultRedactor) Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	redacted := make(map[string]any, len(data))
	for k, v := range data {
		if slices.Contains(r.sensitiveKeys, strings.ToLower(k)) {
			redacted[k] = "[REDACTED]"
		} else if nested, ok := v.(map[string]any); ok {
			redacted[k] = r.Redact(nested)
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

// Event is one journaled transition.
type Event struct {
	OccurredAt time.Time      `json:"occurred_at"`
	RequestID  string         `json:"request_id"`
	GrantID    string         `json:"grant_id,omitempty"`
	Feature    string         `json:"feature"`
	Action     string         `json:"action"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Sink persists events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Service queues events and writes them to a sink from one background worker.
type Service struct {
	sink     Sink
	clock    Clock
	idgen    IDGenerator
	redactor Redactor
	log      zerolog.Logger
	queue    chan Event
	stopCh   chan struct{}
	done     chan struct{}
	closed   int32 // atomic flag to prevent double-close
	dropped  atomic.Int64
}

// NewService creates a new audit service
func NewService(sink Sink, log zerolog.Logger, clock Clock, idgen IDGenerator, redactor Redactor, queueSize int) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	if redactor == nil {
		redactor = NewDefaultRedactor()
	}

	s := &Service{
		sink:     sink,
		clock:    clock,
		idgen:    idgen,
		redactor: redactor,
		log:      log.With().Str("component", "audit").Logger(),
		queue:    make(chan Event, queueSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.worker()

	return s
}

func (s *Service) worker() {
	defer close(s.done)
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.stopCh:
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.log.Error().Err(err).Str("feature", event.Feature).Str("action", event.Action).Msg("failed to write event")
	}
}

// Close stops the worker after draining queued events. Safe to call more
// than once.
func (s *Service) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	close(s.stopCh)
	<-s.done
	return nil
}

// Log queues an event. It never blocks; when the queue is full the event is
// dropped.
func (s *Service) Log(event Event) {
	if atomic.LoadInt32(&s.closed) == 1 {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if event.RequestID == "" {
		event.RequestID = s.idgen.Generate()
	}
	event.Detail = s.redactor.Redact(event.Detail)

	select {
	case s.queue <- event:
	default:
		s.dropped.Add(1)
		s.log.Warn().Str("feature", event.Feature).Str("action", event.Action).Msg("queue full, dropping event")
	}
}

// Dropped returns the number of events lost to a full queue.
func (s *Service) Dropped() int64 { return s.dropped.Load() }
