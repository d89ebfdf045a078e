// Package syncctl keeps stored toggles, the capabilities they need, the
// derived receiver state and the presentation consistent.
//
// A Controller is not safe for concurrent use. The host serializes every
// call, and every FlagStore write, on one logical thread (eventloop.Loop in
// the server).
package syncctl

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/audit"
	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/prefs"
	"github.com/TimurManjosov/silencegate/internal/telemetry"
	"github.com/TimurManjosov/silencegate/internal/threshold"
)

// Options wires a Controller to its collaborators. Journal may be nil.
type Options struct {
	Prefs     *prefs.FlagStore
	Gate      *capability.Gate
	Presenter Presenter
	Receiver  ReceiverToggle
	Journal   Journal
	Logger    zerolog.Logger
}

// Controller reconciles user requests, grant results and preference changes.
type Controller struct {
	prefs     *prefs.FlagStore
	gate      *capability.Gate
	presenter Presenter
	receiver  ReceiverToggle
	journal   Journal
	log       zerolog.Logger

	active   bool
	machines map[Feature]Machine
	requests map[capability.RequestID]Feature
	health   map[Feature]bool
	derived  Derived
	advisory Advisory
}

// New creates an inactive controller. Call OnActivate before user requests.
func New(opts Options) *Controller {
	journal := opts.Journal
	if journal == nil {
		journal = nopJournal{}
	}
	c := &Controller{
		prefs:     opts.Prefs,
		gate:      opts.Gate,
		presenter: opts.Presenter,
		receiver:  opts.Receiver,
		journal:   journal,
		log:       opts.Logger.With().Str("component", "syncctl").Logger(),
		machines:  make(map[Feature]Machine),
		requests:  make(map[capability.RequestID]Feature),
		health:    make(map[Feature]bool),
	}
	for _, f := range Features() {
		c.machines[f] = Idle(false)
	}
	return c
}

// OnActivate registers the preference listener, resets every machine to
// Idle on its stored value and re-pushes all visual, health, derived and
// advisory state. A grant result that arrives later for a request issued
// before activation is resolved but not applied.
func (c *Controller) OnActivate(ctx context.Context) error {
	for _, f := range Features() {
		v, err := c.prefs.Bool(ctx, f.Key())
		if err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
		c.machines[f] = Idle(v)
	}

	if !c.active {
		c.prefs.Register(c)
		c.active = true
	}
	c.log.Debug().Msg("activated")
	return c.update(ctx)
}

// OnDeactivate unregisters the preference listener. Pending grant requests
// are kept.
func (c *Controller) OnDeactivate(ctx context.Context) {
	if !c.active {
		return
	}
	c.prefs.Unregister(c)
	c.active = false
	c.log.Debug().Msg("deactivated")
}

// Active reports whether the listener is registered.
func (c *Controller) Active() bool { return c.active }

// OnUserRequest handles a toggle interaction. Turning a feature off, or on
// when its capabilities are held, commits before returning. Otherwise a grant
// request is issued and the stored value is left alone until OnGrantResult.
func (c *Controller) OnUserRequest(ctx context.Context, f Feature, desired bool) error {
	if !c.active {
		return ErrInactive
	}
	if _, err := ParseFeature(string(f)); err != nil {
		return err
	}

	m := c.machines[f]
	satisfied, err := c.satisfied(ctx, f)
	if err != nil {
		c.presenter.ShowValue(f, m.Current)
		return err
	}

	next, effect, err := m.Ask(desired, satisfied)
	if err != nil {
		c.presenter.ShowValue(f, m.Current)
		return fmt.Errorf("%s: %w", f, err)
	}
	c.log.Debug().Stringer("feature", f).Bool("desired", desired).Stringer("effect", effect).Msg("user request")

	switch effect {
	case EffectCommit:
		c.machines[f] = next
		if err := c.write(ctx, f, desired); err != nil {
			c.machines[f] = m
			c.presenter.ShowValue(f, m.Current)
			return err
		}
		c.journal.Log(audit.For(ctx, f.String()).
			WithAction(audit.ActionCommitted).
			Change(strconv.FormatBool(m.Current), strconv.FormatBool(desired)).
			Build())

	case EffectRequestGrant:
		id, err := c.request(ctx, f)
		if err != nil {
			c.presenter.ShowValue(f, m.Current)
			return fmt.Errorf("request grant for %s: %w", f, err)
		}
		next.Request = id
		c.machines[f] = next
		c.requests[id] = f
		// The toggle stays on its pre-request value until the result arrives.
		c.presenter.ShowValue(f, m.Current)

		telemetry.GrantRequests.WithLabelValues(f.String(), "requested").Inc()
		c.journal.Log(audit.For(ctx, f.String()).
			WithAction(audit.ActionRequested).
			Grant(string(id)).
			Change(strconv.FormatBool(m.Current), strconv.FormatBool(desired)).
			Build())
	}
	return nil
}

// OnGrantResult delivers the result of a grant prompt. A dismissed prompt is
// delivered as granted=false.
func (c *Controller) OnGrantResult(ctx context.Context, id capability.RequestID, granted bool) error {
	f, ok := c.requests[id]
	if !ok {
		return fmt.Errorf("%w: %s", capability.ErrUnknownRequest, id)
	}
	res, err := c.gate.Resolve(id, granted)
	if err != nil {
		return err
	}
	delete(c.requests, id)

	m := c.machines[f]
	if m.Request != id {
		c.log.Warn().Stringer("feature", f).Str("request_id", string(id)).Bool("granted", res.Granted).Msg("stale grant result ignored")
		if res.Granted && c.active {
			// The grant still changed what the platform holds.
			return c.update(ctx)
		}
		return nil
	}
	next, effect := m.Resolve(res.Granted)

	outcome, action := "denied", audit.ActionDenied
	if res.Granted {
		outcome, action = "granted", audit.ActionGranted
	}
	telemetry.GrantRequests.WithLabelValues(f.String(), outcome).Inc()
	c.journal.Log(audit.For(ctx, f.String()).WithAction(action).Grant(string(id)).Build())
	c.log.Info().Stringer("feature", f).Str("request_id", string(id)).Bool("granted", res.Granted).Msg("grant result")

	switch effect {
	case EffectCommit:
		c.machines[f] = next
		if err := c.write(ctx, f, next.Current); err != nil {
			c.machines[f] = Idle(m.Current)
			c.presenter.ShowValue(f, m.Current)
			return err
		}
		if !c.active {
			// No listener while inactive; keep derived state in step anyway.
			c.OnPreferenceChanged(ctx, f.Key())
		}
		c.journal.Log(audit.For(ctx, f.String()).
			WithAction(audit.ActionCommitted).
			Grant(string(id)).
			Change(strconv.FormatBool(m.Current), strconv.FormatBool(next.Current)).
			Build())

	case EffectRollback:
		c.machines[f] = next
		c.presenter.ShowValue(f, next.Current)
		c.journal.Log(audit.For(ctx, f.String()).
			WithAction(audit.ActionRolledBack).
			Grant(string(id)).
			Change(strconv.FormatBool(m.Pending), strconv.FormatBool(next.Current)).
			Build())
	}
	return nil
}

// OnMultiSelectConfirm commits a confirmed flag-set selection as one write.
func (c *Controller) OnMultiSelectConfirm(ctx context.Context, domain string, sel bitmask.Selection) error {
	if !c.active {
		return ErrInactive
	}
	desc, ok := bitmask.Lookup(domain)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	if err := desc.Validate(sel); err != nil {
		return err
	}
	key, _ := prefs.DomainKey(domain)

	old, err := c.prefs.Selection(ctx, key)
	if err != nil {
		return err
	}
	if err := c.prefs.SetSelection(ctx, key, sel); err != nil {
		c.log.Error().Err(err).Str("domain", domain).Msg("selection not persisted")
		return err
	}
	c.journal.Log(audit.For(ctx, domain).
		WithAction(audit.ActionCommitted).
		Change(fmt.Sprintf("%#x", uint32(old)), fmt.Sprintf("%#x", uint32(sel))).
		Build())
	return nil
}

// OnThresholdConfirm commits both threshold fields together. An invalid pair
// never reaches the store.
func (c *Controller) OnThresholdConfirm(ctx context.Context, count, minutes int) error {
	if !c.active {
		return ErrInactive
	}
	cfg := threshold.Config{Count: count, Minutes: minutes}
	if err := cfg.Err(); err != nil {
		return err
	}

	old, err := c.prefs.Threshold(ctx)
	if err != nil {
		return err
	}
	if err := c.prefs.SetThreshold(ctx, cfg); err != nil {
		c.log.Error().Err(err).Msg("threshold not persisted")
		return err
	}
	c.journal.Log(audit.For(ctx, string(prefs.KeyRepeatedSettings)).
		WithAction(audit.ActionCommitted).
		Change(old.String(), cfg.String()).
		Build())
	return nil
}

// OnPreferenceChanged implements prefs.Listener.
func (c *Controller) OnPreferenceChanged(ctx context.Context, key prefs.Key) {
	var err error
	if f, ok := featureForKey(key); ok {
		err = errors.Join(err, c.syncValue(ctx, f))
		if f.HealthChecked() {
			err = errors.Join(err, c.recheckHealth(ctx, f))
		}
		if f == FeatureService || f == FeatureMessages {
			err = errors.Join(err, c.refreshDerived(ctx))
		}
		if f == FeatureService {
			err = errors.Join(err, c.refreshAdvisory(ctx))
		}
	}
	if key == prefs.KeyContacted {
		// The contacted requirement follows the selection.
		err = errors.Join(err, c.recheckHealth(ctx, FeatureContacted))
	}
	if err != nil {
		c.log.Error().Err(err).Str("key", string(key)).Msg("resync after change failed")
	}
}

// Update recomputes and re-pushes everything.
func (c *Controller) Update(ctx context.Context) error {
	return c.update(ctx)
}

func (c *Controller) update(ctx context.Context) error {
	var err error
	for _, f := range Features() {
		m := c.machines[f]
		c.presenter.ShowValue(f, m.Current)
		if f.HealthChecked() {
			err = errors.Join(err, c.recheckHealth(ctx, f))
		}
	}
	err = errors.Join(err, c.refreshDerived(ctx), c.refreshAdvisory(ctx))
	return err
}

func (c *Controller) syncValue(ctx context.Context, f Feature) error {
	v, err := c.prefs.Bool(ctx, f.Key())
	if err != nil {
		return err
	}
	m := c.machines[f]
	m.Current = v
	c.machines[f] = m
	if m.Phase == PhaseIdle {
		c.presenter.ShowValue(f, v)
	}
	return nil
}

// recheckHealth marks f when it is checked but its requirement is not met.
// The stored value is never changed.
func (c *Controller) recheckHealth(ctx context.Context, f Feature) error {
	checked, err := c.prefs.Bool(ctx, f.Key())
	if err != nil {
		return err
	}
	ids, err := c.requirement(ctx, f)
	if err != nil {
		return err
	}

	warning := checked && !c.gate.HasCapabilities(ids)
	if warning && !c.health[f] {
		c.log.Info().Stringer("feature", f).Interface("missing", ids).Msg("checked feature lost its grant")
		c.journal.Log(audit.For(ctx, f.String()).WithAction(audit.ActionHealthWarning).With("requires", ids).Build())
	}
	c.health[f] = warning
	telemetry.HealthWarnings.WithLabelValues(f.String()).Set(telemetry.BoolGauge(warning))
	c.presenter.ShowHealth(f, warning)
	return nil
}

// refreshDerived pushes receiverShouldRun = service AND messages. It calls
// the receiver every time, even when the value did not change.
func (c *Controller) refreshDerived(ctx context.Context) error {
	service, err := c.prefs.Bool(ctx, prefs.KeyServiceEnabled)
	if err != nil {
		return err
	}
	messages, err := c.prefs.Bool(ctx, prefs.KeyMessagesChecked)
	if err != nil {
		return err
	}

	c.derived = Derived{ReceiverShouldRun: service && messages}
	c.receiver.SetReceiverRunning(ctx, c.derived.ReceiverShouldRun)
	return nil
}

// refreshAdvisory raises an advisory when the service is enabled without the
// call-screening role. The stored intent is left alone.
func (c *Controller) refreshAdvisory(ctx context.Context) error {
	enabled, err := c.prefs.Bool(ctx, prefs.KeyServiceEnabled)
	if err != nil {
		return err
	}

	var a Advisory
	if enabled && !c.gate.HasPrivilegedRole() {
		a = Advisory{
			Kind:    AdvisoryRoleMissing,
			Feature: FeatureService,
			Message: "call screening role is not held; calls are not being screened",
		}
	}
	if a.Active() && !c.advisory.Active() {
		c.journal.Log(audit.For(ctx, FeatureService.String()).WithAction(audit.ActionAdvisory).With("kind", a.Kind).Build())
	}
	c.advisory = a
	c.presenter.ShowAdvisory(a)
	return nil
}

func (c *Controller) write(ctx context.Context, f Feature, v bool) error {
	if err := c.prefs.SetBool(ctx, f.Key(), v); err != nil {
		c.log.Error().Err(err).Stringer("feature", f).Bool("value", v).Msg("commit failed")
		c.journal.Log(audit.For(ctx, f.String()).WithAction(audit.ActionFailed).With("error", err.Error()).Build())
		return fmt.Errorf("commit %s: %w", f, err)
	}
	return nil
}

// requirement returns the capabilities f needs. The service needs the role,
// which is checked separately.
func (c *Controller) requirement(ctx context.Context, f Feature) ([]capability.ID, error) {
	switch f {
	case FeatureContacted:
		sel, err := c.prefs.Selection(ctx, prefs.KeyContacted)
		if err != nil {
			return nil, err
		}
		return capability.ContactedRequirement(sel), nil
	case FeatureRepeated:
		return capability.RepeatedRequirement(), nil
	case FeatureMessages:
		return capability.MessagesRequirement(), nil
	default:
		return nil, nil
	}
}

func (c *Controller) satisfied(ctx context.Context, f Feature) (bool, error) {
	if !f.Gated() {
		return true, nil
	}
	if f == FeatureService {
		return c.gate.HasPrivilegedRole(), nil
	}
	ids, err := c.requirement(ctx, f)
	if err != nil {
		return false, err
	}
	return c.gate.HasCapabilities(ids), nil
}

func (c *Controller) request(ctx context.Context, f Feature) (capability.RequestID, error) {
	if f == FeatureService {
		return c.gate.RequestPrivilegedRole(f.String())
	}
	ids, err := c.requirement(ctx, f)
	if err != nil {
		return "", err
	}
	return c.gate.RequestCapabilities(f.String(), ids)
}
