package topology

import "github.com/suse/storageengine/domain"

// SwapMount is the reserved mount-point sentinel meaning "this volume is
// swap space" (spec.md §3: "never prefixed with the root-filesystem
// prefix").
const SwapMount = "swap"

// Original holds the pre-edit snapshot of a volume's size, mount and fstab
// options, frozen at discovery or at the moment of the first mutation and
// consulted by the commit planner to decide growth vs. shrink direction and
// whether a mount changed (spec.md §3 "original").
type Original struct {
	SizeK        uint64
	Mount        string
	FstabOptions []string
	set          bool
}

// Volume is a block-addressable entity with an optional filesystem: a
// partition, logical volume, md array, loop device, dm target or nfs mount
// (spec.md §3 "Volume").
type Volume struct {
	container *Container

	HasIndex bool
	Index    int // partition number / md number / loop number / dm minor

	// PartType classifies a partition volume as primary, extended or logical
	// (spec.md §4.D partition slot policy); meaningless when HasIndex is false
	// or the owning container has no Disk. Zero value PRIMARY matches the
	// common case for a volume nobody has explicitly typed yet.
	PartType domain.PartitionType

	Device   string
	AltNames []string

	SizeK uint64

	Fs    domain.FsKind
	UUID  string
	Label string

	Mount       string
	MountBy     domain.MountBy
	IgnoreFstab bool

	FstabOptions  []string
	MkfsOptions   string
	TunefsOptions string
	DescText      string

	Encryption    domain.EncryptionKind
	CryptPassword string

	UsedBy UsedBy

	// Pending-state flags (spec.md §3).
	PendingCreate      bool
	PendingFormat      bool
	PendingResize      bool
	PendingDelete      bool
	PendingMountChange bool

	Original Original
}

// NewVolume constructs a volume owned by c. Callers (discovery, the mutation
// API) are expected to set the remaining fields directly — the model is
// single-writer (spec.md §4.B) so there is no need for per-field setters with
// internal locking the way the teacher's state/container.go requires (that
// code serializes concurrent FUSE handler goroutines; this engine's callers
// must already serialize themselves, spec.md §5).
func NewVolume(c *Container) *Volume {
	return &Volume{container: c, MountBy: domain.MOUNTBY_DEVICE}
}

// Container returns the owning container.
func (v *Volume) Container() *Container { return v.container }

// FreezeOriginal captures the current size/mount/fstab-options triple as the
// "original" snapshot, if not already captured. Called once, at discovery or
// at the first mutation of a previously untouched volume (spec.md §3:
// "frozen until commit").
func (v *Volume) FreezeOriginal() {
	if v.Original.set {
		return
	}
	opts := make([]string, len(v.FstabOptions))
	copy(opts, v.FstabOptions)
	v.Original = Original{SizeK: v.SizeK, Mount: v.Mount, FstabOptions: opts, set: true}
}

// IsSwap reports whether this volume's mount is the swap sentinel.
func (v *Volume) IsSwap() bool { return v.Mount == SwapMount }

// Shrinking reports whether a pending resize reduces this volume's size
// relative to its frozen original.
func (v *Volume) Shrinking() bool {
	return v.PendingResize && v.Original.set && v.SizeK < v.Original.SizeK
}

// Growing reports whether a pending resize increases this volume's size
// relative to its frozen original.
func (v *Volume) Growing() bool {
	return v.PendingResize && v.Original.set && v.SizeK > v.Original.SizeK
}

// HadOriginalMount reports whether the volume was mounted before any pending
// edits (used by the MOUNT-stage sort rule, spec.md §4.E).
func (v *Volume) HadOriginalMount() bool {
	return v.Original.set && v.Original.Mount != ""
}

// clone deep-copies the volume for backup/restore purposes; container is left
// nil and patched by the caller (Container.clone) once the new owner exists.
func (v *Volume) clone() *Volume {
	cp := *v
	cp.container = nil
	cp.AltNames = append([]string(nil), v.AltNames...)
	cp.FstabOptions = append([]string(nil), v.FstabOptions...)
	cp.Original.FstabOptions = append([]string(nil), v.Original.FstabOptions...)
	return &cp
}
