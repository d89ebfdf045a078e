// Package view holds the visual state pushed by the controller and publishes
// it as immutable, ETag-tagged snapshots.
package view

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/prefs"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/threshold"
)

type FeatureView struct {
	Feature       syncctl.Feature `json:"feature"`
	Value         bool            `json:"value"`
	Stored        bool            `json:"stored"`
	Phase         string          `json:"phase"`
	Pending       *bool           `json:"pending,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	HealthWarning bool            `json:"health_warning"`
}

type DomainView struct {
	Name      string   `json:"name"`
	Selection uint32   `json:"selection"`
	Selected  []string `json:"selected"`
	Flags     []string `json:"flags"`
}

type Snapshot struct {
	ETag            string           `json:"etag"`
	Active          bool             `json:"active"`
	Features        []FeatureView    `json:"features"`
	Domains         []DomainView     `json:"domains"`
	Threshold       threshold.Config `json:"threshold"`
	ReceiverRunning bool             `json:"receiver_running"`
	Advisory        syncctl.Advisory `json:"advisory"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Settings are the stored values shown next to the controller state.
type Settings struct {
	Stored     map[syncctl.Feature]bool
	Selections map[string]bitmask.Selection
	Threshold  threshold.Config
}

// Collect reads Settings from the store.
func Collect(ctx context.Context, fs *prefs.FlagStore) (Settings, error) {
	s := Settings{
		Stored:     make(map[syncctl.Feature]bool),
		Selections: make(map[string]bitmask.Selection),
	}
	for _, f := range syncctl.Features() {
		v, err := fs.Bool(ctx, f.Key())
		if err != nil {
			return Settings{}, fmt.Errorf("read %s: %w", f, err)
		}
		s.Stored[f] = v
	}
	for _, name := range bitmask.Names() {
		key, _ := prefs.DomainKey(name)
		sel, err := fs.Selection(ctx, key)
		if err != nil {
			return Settings{}, fmt.Errorf("read %s: %w", name, err)
		}
		s.Selections[name] = sel
	}
	cfg, err := fs.Threshold(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("read threshold: %w", err)
	}
	s.Threshold = cfg
	return s, nil
}

// View implements syncctl.Presenter.
type View struct {
	mu       sync.Mutex
	values   map[syncctl.Feature]bool
	health   map[syncctl.Feature]bool
	advisory syncctl.Advisory

	current atomic.Pointer[Snapshot]

	subsMu sync.Mutex
	subs   map[chan string]struct{}
}

func New() *View {
	return &View{
		values: make(map[syncctl.Feature]bool),
		health: make(map[syncctl.Feature]bool),
		subs:   make(map[chan string]struct{}),
	}
}

func (v *View) ShowValue(f syncctl.Feature, value bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[f] = value
}

func (v *View) ShowHealth(f syncctl.Feature, warning bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.health[f] = warning
}

func (v *View) ShowAdvisory(a syncctl.Advisory) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advisory = a
}

// Value returns the visual value of f.
func (v *View) Value(f syncctl.Feature) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.values[f]
}

// Load returns the last published snapshot.
func (v *View) Load() *Snapshot {
	if s := v.current.Load(); s != nil {
		return s
	}
	return &Snapshot{UpdatedAt: time.Now().UTC()}
}

// Publish combines the visual state with the controller status and stored
// settings. Subscribers are notified only when the ETag changes.
func (v *View) Publish(st syncctl.Status, settings Settings) *Snapshot {
	v.mu.Lock()
	snap := &Snapshot{
		Active:          st.Active,
		Threshold:       settings.Threshold,
		ReceiverRunning: st.Derived.ReceiverShouldRun,
		Advisory:        v.advisory,
	}
	for _, fs := range st.Features {
		snap.Features = append(snap.Features, FeatureView{
			Feature:       fs.Feature,
			Value:         v.values[fs.Feature],
			Stored:        settings.Stored[fs.Feature],
			Phase:         fs.Phase,
			Pending:       fs.Pending,
			RequestID:     string(fs.Request),
			HealthWarning: v.health[fs.Feature],
		})
	}
	v.mu.Unlock()

	for _, name := range bitmask.Names() {
		d, _ := bitmask.Lookup(name)
		sel := settings.Selections[name]
		snap.Domains = append(snap.Domains, DomainView{
			Name:      name,
			Selection: uint32(sel),
			Selected:  bitmask.LabelsOf(d, sel),
			Flags:     d.Labels(),
		})
	}

	snap.ETag = computeETag(snap)
	snap.UpdatedAt = time.Now().UTC()

	prev := v.current.Swap(snap)
	if prev == nil || prev.ETag != snap.ETag {
		v.publishUpdate(snap.ETag)
	}
	return snap
}

// computeETag hashes everything but the ETag and timestamp.
func computeETag(s *Snapshot) string {
	body := *s
	body.ETag = ""
	body.UpdatedAt = time.Time{}
	blob, _ := json.Marshal(body)
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(blob))
}
