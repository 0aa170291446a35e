package access

import (
	"fmt"
	"strings"
)

// Op identifies the mutation intent the guard is asked about. The guard
// never decides from the op alone: whether access is actually lost comes
// from resolving the projected post-mutation state.
type Op string

const (
	// OpDenyOverride creates or changes an override to deny.
	OpDenyOverride Op = "deny_override"
	// OpRemoveGrantOverride deletes a grant override.
	OpRemoveGrantOverride Op = "remove_grant_override"
	// OpRemoveRole removes a role assignment.
	OpRemoveRole Op = "remove_role"
)

// Verdict classifies a guard decision.
type Verdict string

const (
	// VerdictAllow lets the mutation proceed without ceremony.
	VerdictAllow Verdict = "allow"
	// VerdictWarn lets the mutation proceed only with explicit confirmation.
	VerdictWarn Verdict = "warn"
	// VerdictBlock rejects the mutation outright.
	VerdictBlock Verdict = "block"
)

// Decision is the structured outcome of a guard evaluation.
type Decision struct {
	Verdict Verdict
	Reason  string
}

// Intent describes one proposed permission-affecting mutation.
type Intent struct {
	ActingUserID int64
	TargetUserID int64
	Permission   string
	Op           Op
}

// Guard prevents administrators from stripping critical access, most
// importantly their own. The critical set comes from configuration.
type Guard struct {
	critical map[string]struct{}
}

// NewGuard builds a Guard for the given critical permission names.
func NewGuard(critical []string) *Guard {
	set := make(map[string]struct{}, len(critical))
	for _, name := range critical {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return &Guard{critical: set}
}

// IsCritical reports whether the named permission is in the critical set.
func (g *Guard) IsCritical(name string) bool {
	_, ok := g.critical[strings.ToLower(name)]
	return ok
}

// Evaluate decides on one intent given the effective permission set as it
// would be AFTER the mutation.
//
// Denying a critical permission to yourself is hard blocked. Removing your
// own grant override (or role) that was your only source of a critical
// permission is only warned about; the asymmetry with the deny path is a
// deliberate product decision carried over from the management UI.
func (g *Guard) Evaluate(in Intent, projected EffectivePermissions) Decision {
	if !g.IsCritical(in.Permission) {
		return Decision{Verdict: VerdictAllow}
	}

	self := in.ActingUserID == in.TargetUserID
	lost := !projected.Has(in.Permission)

	if self && lost && in.Op == OpDenyOverride {
		return Decision{
			Verdict: VerdictBlock,
			Reason:  fmt.Sprintf("denying %s to yourself would lock you out of administration", in.Permission),
		}
	}
	if self && lost {
		return Decision{
			Verdict: VerdictWarn,
			Reason:  fmt.Sprintf("removing your only source of %s will lock you out of administration", in.Permission),
		}
	}
	if lost {
		return Decision{
			Verdict: VerdictWarn,
			Reason:  fmt.Sprintf("the user will lose the critical permission %s", in.Permission),
		}
	}
	return Decision{
		Verdict: VerdictWarn,
		Reason:  fmt.Sprintf("%s is a critical permission; confirm before changing it", in.Permission),
	}
}

// Worst returns the most severe of two decisions.
func Worst(a, b Decision) Decision {
	rank := func(v Verdict) int {
		switch v {
		case VerdictBlock:
			return 2
		case VerdictWarn:
			return 1
		default:
			return 0
		}
	}
	if rank(b.Verdict) > rank(a.Verdict) {
		return b
	}
	return a
}
