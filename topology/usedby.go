package topology

import "github.com/suse/storageengine/domain"

// UsedBy is the back-reference attached to volumes and whole containers
// describing a stacking relationship (spec.md "UsedBy"). It is set by
// discovery and by mutations that introduce stacking; it is consulted but
// not owned — removing the owner must explicitly clear it.
type UsedBy struct {
	Kind   domain.UsedByKind
	Name   string
	Device string
}

// IsSet reports whether this back-reference actually points anywhere.
func (u UsedBy) IsSet() bool { return u.Kind != domain.UB_NONE }

// Clear resets the back-reference to the NONE sentinel.
func (u *UsedBy) Clear() { *u = UsedBy{} }
