// Package eligibility holds the pure time-window predicates used by tag
// arbitration. Durations are always passed explicitly so room-level
// overrides and defaults are decided by the caller, never by a hidden
// global.
package eligibility

import "time"

// CanAttempt reports whether an attacker may attempt a tag at now.
// A zero lastAttempt means no prior attempt was recorded. Once true for a
// given lastAttempt, it stays true for any later now.
func CanAttempt(lastAttempt, now time.Time, cooldown time.Duration) bool {
	if lastAttempt.IsZero() {
		return true
	}
	return now.Sub(lastAttempt) >= cooldown
}

// HasImmunity reports whether a defender is still protected at now.
// A zero lastTagged means no prior tag, hence no immunity. The boundary is
// exclusive: elapsed == immunity means protection has lapsed.
func HasImmunity(lastTagged, now time.Time, immunity time.Duration) bool {
	if lastTagged.IsZero() {
		return false
	}
	return now.Sub(lastTagged) < immunity
}
