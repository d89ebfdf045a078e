package bitmask

// Contacted selects which kinds of prior contact make a caller trusted.
type Contacted uint32

const (
	ContactedCall Contacted = 1 << iota
	ContactedMessage
)

func (c Contacted) String() string {
	switch c {
	case ContactedCall:
		return "call"
	case ContactedMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Group selects recipient-number groups that are let through.
type Group uint32

const (
	GroupTollFree Group = 1 << iota
	GroupLocal
	GroupNotLocal
	GroupMobile
	GroupLocalMobile
)

func (g Group) String() string {
	switch g {
	case GroupTollFree:
		return "toll_free"
	case GroupLocal:
		return "local"
	case GroupNotLocal:
		return "not_local"
	case GroupMobile:
		return "mobile"
	case GroupLocalMobile:
		return "local_mobile"
	default:
		return "unknown"
	}
}

// General selects general screening behaviour.
type General uint32

const (
	GeneralNotifications General = 1 << iota
	GeneralSkipCallLog
	GeneralSkipNotification
)

func (g General) String() string {
	switch g {
	case GeneralNotifications:
		return "notifications"
	case GeneralSkipCallLog:
		return "skip_call_log"
	case GeneralSkipNotification:
		return "skip_notification"
	default:
		return "unknown"
	}
}

// Domain names, also used as persisted preference keys.
const (
	DomainContacted = "contacted"
	DomainGroups    = "groups"
	DomainGeneral   = "general_flag"
)

var (
	ContactedDomain = NewDomain(DomainContacted, ContactedCall, ContactedMessage)
	GroupDomain     = NewDomain(DomainGroups, GroupTollFree, GroupLocal, GroupNotLocal, GroupMobile, GroupLocalMobile)
	GeneralDomain   = NewDomain(DomainGeneral, GeneralNotifications, GeneralSkipCallLog, GeneralSkipNotification)
)

// Lookup returns the domain registered under name.
func Lookup(name string) (Descriptor, bool) {
	switch name {
	case DomainContacted:
		return ContactedDomain, true
	case DomainGroups:
		return GroupDomain, true
	case DomainGeneral:
		return GeneralDomain, true
	default:
		return nil, false
	}
}

// Names lists the registered domains.
func Names() []string {
	return []string{DomainContacted, DomainGroups, DomainGeneral}
}
