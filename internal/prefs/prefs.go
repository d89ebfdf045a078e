// Package prefs is the preference store: a typed view over a persistence
// backend with a fixed schema of known keys and synchronous change
// notification.
//
// Writes are persisted before Set returns. Listeners are called in
// registration order, once per Set, after the write is visible through Get.
// A listener that calls Set does not re-enter notification; the nested change
// is queued and delivered after the current change has reached every listener.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/store"
	"github.com/TimurManjosov/silencegate/internal/telemetry"
	"github.com/TimurManjosov/silencegate/internal/threshold"
)

var (
	// ErrUnknownKey is returned for keys outside the schema. It indicates a programming error.
	ErrUnknownKey = errors.New("unknown preference key")
	// ErrKindMismatch is returned when a value does not match the key's declared kind.
	ErrKindMismatch = errors.New("preference kind mismatch")
)

// Listener receives the key of every committed change. Implementations are
// compared by identity and must be comparable, typically a pointer.
type Listener interface {
	OnPreferenceChanged(ctx context.Context, key Key)
}

type change struct {
	ctx context.Context
	key Key
}

// FlagStore owns all persisted preference values.
type FlagStore struct {
	backend store.Store
	log     zerolog.Logger

	mu          sync.Mutex
	listeners   []Listener
	queue       []change
	dispatching bool
}

// New wraps a persistence backend.
func New(backend store.Store, log zerolog.Logger) *FlagStore {
	return &FlagStore{
		backend: backend,
		log:     log.With().Str("component", "prefs").Logger(),
	}
}

// Get returns the current value of key, or its default if it was never written.
func (s *FlagStore) Get(ctx context.Context, key Key) (store.Value, error) {
	def, ok := defaults[key]
	if !ok {
		return store.Value{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	v, err := s.backend.Load(ctx, string(key))
	if errors.Is(err, store.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return store.Value{}, err
	}
	if v.Kind != def.Kind {
		return store.Value{}, fmt.Errorf("%w: %s stored as %s, declared %s", ErrKindMismatch, key, v.Kind, def.Kind)
	}
	return v, nil
}

// Set persists v under key and notifies listeners.
func (s *FlagStore) Set(ctx context.Context, key Key, v store.Value) error {
	def, ok := defaults[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if v.Kind != def.Kind {
		return fmt.Errorf("%w: %s is %s, got %s", ErrKindMismatch, key, def.Kind, v.Kind)
	}

	if err := s.backend.Save(ctx, string(key), v); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	telemetry.PreferenceWrites.WithLabelValues(string(key)).Inc()
	s.log.Debug().Str("key", string(key)).Stringer("value", v).Msg("preference committed")

	s.notify(ctx, key)
	return nil
}

// notify delivers key to a snapshot of the listeners. Re-entrant calls only
// enqueue; the outermost call drains the queue in FIFO order. If a listener
// panics the queue is dropped and the panic continues to the caller.
func (s *FlagStore) notify(ctx context.Context, key Key) {
	s.mu.Lock()
	s.queue = append(s.queue, change{ctx: ctx, key: key})
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	s.mu.Unlock()

	drained := false
	defer func() {
		if drained {
			return
		}
		// A listener panicked; drop what is queued so later sets dispatch again.
		s.mu.Lock()
		s.dispatching = false
		s.queue = nil
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatching = false
			drained = true
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		listeners := slices.Clone(s.listeners)
		s.mu.Unlock()

		for _, l := range listeners {
			if !s.registered(l) {
				continue // unregistered by an earlier listener of this change
			}
			l.OnPreferenceChanged(next.ctx, next.key)
		}
	}
}

func (s *FlagStore) registered(l Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.listeners, l)
}

// Register adds l to the end of the notification order. Registering the same
// listener twice is a no-op.
func (s *FlagStore) Register(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.listeners, l) {
		return
	}
	s.listeners = append(s.listeners, l)
}

// Unregister removes l. Changes made while a listener is unregistered are not
// replayed when it registers again.
func (s *FlagStore) Unregister(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = slices.DeleteFunc(s.listeners, func(x Listener) bool { return x == l })
}

// ListenerCount returns the number of registered listeners.
func (s *FlagStore) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Close closes the backend.
func (s *FlagStore) Close() error {
	return s.backend.Close()
}

// Bool reads a boolean preference.
func (s *FlagStore) Bool(ctx context.Context, key Key) (bool, error) {
	v, err := s.typed(ctx, key, store.KindBool)
	if err != nil {
		return false, err
	}
	return v.AsBool(), nil
}

// SetBool writes a boolean preference.
func (s *FlagStore) SetBool(ctx context.Context, key Key, b bool) error {
	return s.Set(ctx, key, store.Bool(b))
}

// Selection reads a flag-set selection.
func (s *FlagStore) Selection(ctx context.Context, key Key) (bitmask.Selection, error) {
	v, err := s.typed(ctx, key, store.KindInt)
	if err != nil {
		return 0, err
	}
	return bitmask.Selection(v.AsInt()), nil
}

// SetSelection writes a flag-set selection in a single Set.
func (s *FlagStore) SetSelection(ctx context.Context, key Key, sel bitmask.Selection) error {
	return s.Set(ctx, key, store.Int(int64(sel)))
}

// Threshold reads the repeated-call threshold.
func (s *FlagStore) Threshold(ctx context.Context) (threshold.Config, error) {
	v, err := s.typed(ctx, KeyRepeatedSettings, store.KindPair)
	if err != nil {
		return threshold.Config{}, err
	}
	count, minutes := v.AsPair()
	return threshold.Config{Count: int(count), Minutes: int(minutes)}, nil
}

// SetThreshold writes both threshold fields as one value. Invalid pairs are
// rejected so an inconsistent threshold is never persisted.
func (s *FlagStore) SetThreshold(ctx context.Context, cfg threshold.Config) error {
	if err := cfg.Err(); err != nil {
		return err
	}
	return s.Set(ctx, KeyRepeatedSettings, store.Pair(int64(cfg.Count), int64(cfg.Minutes)))
}

func (s *FlagStore) typed(ctx context.Context, key Key, kind store.Kind) (store.Value, error) {
	def, ok := defaults[key]
	if !ok {
		return store.Value{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if def.Kind != kind {
		return store.Value{}, fmt.Errorf("%w: %s is %s, read as %s", ErrKindMismatch, key, def.Kind, kind)
	}
	return s.Get(ctx, key)
}
