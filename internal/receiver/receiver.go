// Package receiver switches the background message receiver on and off.
package receiver

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/telemetry"
)

// Toggle is anything that can be told whether the receiver should run.
type Toggle interface {
	SetReceiverRunning(ctx context.Context, running bool)
}

// LocalToggle holds the receiver state in process.
type LocalToggle struct {
	log zerolog.Logger

	mu      sync.Mutex
	running bool
	changes int
}

func NewLocalToggle(log zerolog.Logger) *LocalToggle {
	return &LocalToggle{log: log.With().Str("component", "receiver").Logger()}
}

// SetReceiverRunning is idempotent.
func (t *LocalToggle) SetReceiverRunning(ctx context.Context, running bool) {
	t.mu.Lock()
	changed := t.running != running
	t.running = running
	if changed {
		t.changes++
	}
	t.mu.Unlock()

	telemetry.ReceiverRunning.Set(telemetry.BoolGauge(running))
	if changed {
		t.log.Info().Bool("running", running).Msg("receiver switched")
	}
}

// Running reports the current state.
func (t *LocalToggle) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Changes counts actual on/off switches.
func (t *LocalToggle) Changes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changes
}

// Fanout forwards every call to each toggle in order.
type Fanout []Toggle

func (f Fanout) SetReceiverRunning(ctx context.Context, running bool) {
	for _, t := range f {
		t.SetReceiverRunning(ctx, running)
	}
}
