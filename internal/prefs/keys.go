package prefs

import (
	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/store"
	"github.com/TimurManjosov/silencegate/internal/threshold"
)

// Key names a persisted preference.
type Key string

const (
	KeyServiceEnabled   Key = "service_enabled"
	KeyContactedChecked Key = "contacted_checked"
	KeyGroupsChecked    Key = "groups_checked"
	KeyRepeatedChecked  Key = "repeated_checked"
	KeyMessagesChecked  Key = "messages_checked"
	KeyStirChecked      Key = "stir_checked"

	KeyContacted = Key(bitmask.DomainContacted)
	KeyGroups    = Key(bitmask.DomainGroups)
	KeyGeneral   = Key(bitmask.DomainGeneral)

	KeyRepeatedSettings Key = "repeated_settings"
)

// defaults is the schema: every known key and the value returned before the
// key is first written.
var defaults = map[Key]store.Value{
	KeyServiceEnabled:   store.Bool(false),
	KeyContactedChecked: store.Bool(false),
	KeyGroupsChecked:    store.Bool(false),
	KeyRepeatedChecked:  store.Bool(false),
	KeyMessagesChecked:  store.Bool(false),
	KeyStirChecked:      store.Bool(false),

	KeyContacted: store.Int(int64(bitmask.ContactedDomain.Union(bitmask.ContactedCall, bitmask.ContactedMessage))),
	KeyGroups:    store.Int(0),
	KeyGeneral:   store.Int(0),

	KeyRepeatedSettings: store.Pair(threshold.DefaultCount, threshold.DefaultMinutes),
}

// Keys returns every known key in a stable order.
func Keys() []Key {
	return []Key{
		KeyServiceEnabled, KeyContactedChecked, KeyGroupsChecked, KeyRepeatedChecked,
		KeyMessagesChecked, KeyStirChecked, KeyContacted, KeyGroups, KeyGeneral,
		KeyRepeatedSettings,
	}
}

// Default returns the default value of key.
func Default(key Key) (store.Value, bool) {
	v, ok := defaults[key]
	return v, ok
}

// DomainKey maps a flag-set domain to the key holding its selection.
func DomainKey(domain string) (Key, bool) {
	k := Key(domain)
	v, ok := defaults[k]
	if !ok || v.Kind != store.KindInt {
		return "", false
	}
	return k, true
}
