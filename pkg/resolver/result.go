package resolver

import "fmt"

// Reason names the rule that decided a Result.
type Reason uint8

const (
	ReasonMaster Reason = iota
	ReasonGenesis
	ReasonHeight
	ReasonAccount
	ReasonGroup
	ReasonDefaultGroup
	ReasonFallback
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonMaster:
		return "master"
	case ReasonGenesis:
		return "genesis"
	case ReasonHeight:
		return "height"
	case ReasonAccount:
		return "account"
	case ReasonGroup:
		return "group"
	case ReasonDefaultGroup:
		return "default-group"
	case ReasonFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// Result is the outcome of a resolution.
type Result struct {
	Allowed bool
	Reason  Reason

	// Group is the deciding group for ReasonGroup and ReasonDefaultGroup.
	Group string
}

// String returns e.g. "deny (group g1)".
func (r Result) String() string {
	decision := "deny"
	if r.Allowed {
		decision = "allow"
	}
	if r.Group != "" {
		return fmt.Sprintf("%s (%s %s)", decision, r.Reason, r.Group)
	}
	return fmt.Sprintf("%s (%s)", decision, r.Reason)
}
