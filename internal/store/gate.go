package store

import "fmt"

// Support is the tri-state capability gate for an entity family.
//
// The gate starts Unknown and is decided exactly once per session, during
// the initial capability probe. A transport failure anywhere afterwards can
// still demote Supported to Unsupported, but nothing promotes Unsupported
// back - recovery is a fresh process (the page-reload equivalent).
type Support int

const (
	// SupportUnknown means the capability probe has not completed yet
	SupportUnknown Support = iota
	// Supported means the device answered the capability probe
	Supported
	// Unsupported means a transport failure proved the endpoint unusable
	Unsupported
)

// String returns a human-readable name for the support state
func (s Support) String() string {
	switch s {
	case SupportUnknown:
		return "unknown"
	case Supported:
		return "supported"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("Support(%d)", int(s))
	}
}
