// Package capability answers "is this feature allowed to run" questions
// against the platform's permission and role system and correlates
// asynchronous grant prompts back to the feature that opened them.
package capability

import (
	"errors"
	"slices"
	"strings"

	"github.com/TimurManjosov/silencegate/internal/bitmask"
)

// ID names a platform permission or role.
type ID string

const (
	ReadCallLog       ID = "android.permission.READ_CALL_LOG"
	ReadSMS           ID = "android.permission.READ_SMS"
	ReceiveSMS        ID = "android.permission.RECEIVE_SMS"
	RoleCallScreening ID = "android.app.role.CALL_SCREENING"
)

var (
	// ErrUnknownRequest is returned when a result arrives for a request that is not in flight.
	ErrUnknownRequest = errors.New("unknown grant request")
	// ErrUnknownCapability is returned for ids the platform does not know.
	ErrUnknownCapability = errors.New("unknown capability")
)

// Known returns every capability id in a stable order.
func Known() []ID {
	return []ID{ReadCallLog, ReadSMS, ReceiveSMS, RoleCallScreening}
}

// Parse accepts a full id or its short form ("READ_SMS", "call_screening").
func Parse(s string) (ID, error) {
	for _, id := range Known() {
		full := string(id)
		short := full[strings.LastIndex(full, ".")+1:]
		if s == full || strings.EqualFold(s, short) {
			return id, nil
		}
	}
	return "", ErrUnknownCapability
}

// ContactedRequirement derives the contacted feature's requirement from its
// selection: call history needs READ_CALL_LOG, message history needs READ_SMS.
// An empty selection requires nothing.
func ContactedRequirement(sel bitmask.Selection) []ID {
	var ids []ID
	for _, f := range bitmask.ContactedDomain.Flags(sel) {
		switch f {
		case bitmask.ContactedCall:
			ids = append(ids, ReadCallLog)
		case bitmask.ContactedMessage:
			ids = append(ids, ReadSMS)
		}
	}
	return ids
}

// RepeatedRequirement is needed to count recent calls from a number.
func RepeatedRequirement() []ID { return []ID{ReadCallLog} }

// MessagesRequirement is needed to receive incoming messages.
func MessagesRequirement() []ID { return []ID{ReceiveSMS} }

func normalize(ids []ID) []ID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
