package domain

import (
	"fmt"
	"strings"
)

// CounterPolicy decides when the login counter moves.
type CounterPolicy string

const (
	// PolicyPerMembership counts room memberships: +1 on a new join, -1 on a real removal.
	PolicyPerMembership CounterPolicy = "per-membership"

	// PolicyPerSession counts sessions: +1 when a session joins its first room,
	// -1 when it leaves its last one.
	PolicyPerSession CounterPolicy = "per-session"

	// PolicyLegacy increments on a new join and decrements on every leave call,
	// member or not. The floor at zero keeps it from going negative.
	PolicyLegacy CounterPolicy = "legacy"
)

// ParseCounterPolicy accepts the policy names above; empty means per-membership.
func ParseCounterPolicy(s string) (CounterPolicy, error) {
	switch p := CounterPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyPerMembership, nil
	case PolicyPerMembership, PolicyPerSession, PolicyLegacy:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown counter policy %q", ErrInvalidArgument, s)
	}
}
