package syncctl

import (
	"fmt"

	"github.com/TimurManjosov/silencegate/internal/prefs"
)

// Feature identifies one toggle.
type Feature string

const (
	FeatureService   Feature = "service"
	FeatureContacted Feature = "contacted"
	FeatureGroups    Feature = "groups"
	FeatureRepeated  Feature = "repeated"
	FeatureMessages  Feature = "messages"
	FeatureStir      Feature = "stir"
)

type featureSpec struct {
	key    prefs.Key
	gated  bool
	health bool
}

var featureSpecs = map[Feature]featureSpec{
	FeatureService:   {key: prefs.KeyServiceEnabled, gated: true},
	FeatureContacted: {key: prefs.KeyContactedChecked, gated: true, health: true},
	FeatureGroups:    {key: prefs.KeyGroupsChecked},
	FeatureRepeated:  {key: prefs.KeyRepeatedChecked, gated: true, health: true},
	FeatureMessages:  {key: prefs.KeyMessagesChecked, gated: true, health: true},
	FeatureStir:      {key: prefs.KeyStirChecked},
}

// Features returns every feature in presentation order.
func Features() []Feature {
	return []Feature{FeatureService, FeatureContacted, FeatureGroups, FeatureRepeated, FeatureMessages, FeatureStir}
}

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if _, ok := featureSpecs[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

// Key is the preference holding the feature's stored value.
func (f Feature) Key() prefs.Key { return featureSpecs[f].key }

// Gated reports whether turning the feature on may require a grant.
func (f Feature) Gated() bool { return featureSpecs[f].gated }

// HealthChecked reports whether the feature gets a capability health mark.
func (f Feature) HealthChecked() bool { return featureSpecs[f].health }

func (f Feature) String() string { return string(f) }

func featureForKey(key prefs.Key) (Feature, bool) {
	for f, s := range featureSpecs {
		if s.key == key {
			return f, true
		}
	}
	return "", false
}
