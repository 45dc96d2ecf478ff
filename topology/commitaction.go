package topology

import "github.com/suse/storageengine/domain"

// CommitAction is a tagged record produced by a container's GetToCommit and
// consumed by the commit executor: one per stage pass, discarded after the
// pass completes (spec.md "Commit action").
type CommitAction struct {
	Stage       domain.Stage
	TargetKind  domain.ContainerKind
	Container   *Container
	Volume      *Volume // nil for a container-level action
	Destructive bool
	Description string
}

// IsContainerAction reports whether this action targets the container itself
// rather than one of its volumes.
func (a CommitAction) IsContainerAction() bool { return a.Volume == nil }

// Ordinal returns the container-relative sort key for this action: a
// partition/md/loop/dm index when the target has one, else the container's
// own sort ordinal. Used by the volume sort rules (spec.md §4.E).
func (a CommitAction) Ordinal() int {
	if a.Volume != nil && a.Volume.HasIndex {
		return a.Volume.Index
	}
	return a.Container.Ordinal
}
