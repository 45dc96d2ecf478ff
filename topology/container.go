package topology

import (
	"fmt"

	"github.com/suse/storageengine/domain"
)

// DiskAttrs holds the geometry and partition-slot accounting carried only by
// partition-table-bearing containers: DISK, DASD, DMRAID, DMMULTIPATH
// (spec.md §3).
type DiskAttrs struct {
	LabelKind     string // msdos|gpt|dasd|mac|sun|...
	Cylinders     int
	Heads         int
	Sectors       int
	CylinderSizeK uint64

	MaxPrimary int
	MaxLogical int
	NumPrimary int
	NumLogical int
	HasExtended bool
}

// LvmAttrs holds the attributes of an LVM volume group container.
type LvmAttrs struct {
	PeSizeK uint64
	Lvm1    bool
	PVs     []string
}

// MdAttrs holds the attributes of a software-RAID container.
type MdAttrs struct {
	RaidType   domain.RaidType
	Devices    []string
	ChunkSizeK uint64
	Parity     string
}

// Container is a disk-like aggregate that owns volumes: a disk, VG, md-set,
// loop-set, nfs-set or dm-set (spec.md §3 "Container (abstract)"). Modeled as
// one struct with optional kind-specific attribute records rather than a
// class hierarchy, per spec.md §9's "tagged variant" guidance.
type Container struct {
	Name    string
	Device  string
	Kind    domain.ContainerKind
	Ordinal int

	Deleted bool
	Created bool

	Volumes []*Volume
	UsedBy  UsedBy

	AltNames []string

	Disk *DiskAttrs
	Lvm  *LvmAttrs
	Md   *MdAttrs
}

// NewContainer constructs an empty container of the given kind, allocating
// the kind-specific attribute record partition-table-bearing and LVM/MD kinds
// carry.
func NewContainer(kind domain.ContainerKind, name, device string, ordinal int) *Container {
	c := &Container{Kind: kind, Name: name, Device: device, Ordinal: ordinal}
	if kind.HasPartitionTable() {
		c.Disk = &DiskAttrs{}
	}
	switch kind {
	case domain.LVM:
		c.Lvm = &LvmAttrs{}
	case domain.MD, domain.DMRAID, domain.DMMULTIPATH:
		c.Md = &MdAttrs{}
	}
	return c
}

// Key is the (name, kind) identity pair that must be unique across all live
// containers (spec.md §3 invariant).
type Key struct {
	Name string
	Kind domain.ContainerKind
}

func (c *Container) Key() Key { return Key{Name: c.Name, Kind: c.Kind} }

// AddVolume appends v to the container's child list, setting its back-pointer.
func (c *Container) AddVolume(v *Volume) {
	v.container = c
	c.Volumes = append(c.Volumes, v)
}

// FindVolumeByIndex returns the volume with the given numeric index, or nil.
func (c *Container) FindVolumeByIndex(idx int) *Volume {
	for _, v := range c.Volumes {
		if v.HasIndex && v.Index == idx {
			return v
		}
	}
	return nil
}

// FindVolumeByDevice returns the volume whose device (or an alternate name)
// equals dev, or nil.
func (c *Container) FindVolumeByDevice(dev string) *Volume {
	for _, v := range c.Volumes {
		if v.Device == dev {
			return v
		}
		for _, alt := range v.AltNames {
			if alt == dev {
				return v
			}
		}
	}
	return nil
}

// removeVolumeAt deletes the volume at index i from the slice (internal,
// called by commit once a volume's physical removal is confirmed).
func (c *Container) removeVolumeAt(i int) {
	c.Volumes = append(c.Volumes[:i], c.Volumes[i+1:]...)
}

// CanPhysicallyRemove reports whether commit may physically remove this
// container: every volume must be deleted and nothing may reference the
// container itself via usedBy (spec.md §3 invariant).
func (c *Container) CanPhysicallyRemove() bool {
	if c.UsedBy.IsSet() {
		return false
	}
	for _, v := range c.Volumes {
		if !v.PendingDelete {
			return false
		}
	}
	return true
}

// --- Partition slot policy (spec.md §4.D) -------------------------------

// LabelAllowsExtended reports whether this container's partition-table kind
// supports an extended partition at all (only the msdos family does).
func (c *Container) LabelAllowsExtended() bool {
	return c.Disk != nil && c.Disk.LabelKind == "msdos"
}

// PrimaryPossible reports whether another primary (or the extended)
// partition slot is available.
func (c *Container) PrimaryPossible() bool {
	if c.Disk == nil {
		return false
	}
	extended := 0
	if c.Disk.HasExtended {
		extended = 1
	}
	return c.Disk.NumPrimary+extended < c.Disk.MaxPrimary
}

// ExtendedPossible reports whether an extended partition may still be
// created on this container.
func (c *Container) ExtendedPossible() bool {
	return c.PrimaryPossible() && c.LabelAllowsExtended() && !c.Disk.HasExtended
}

// LogicalPossible reports whether another logical partition slot is
// available; requires an existing extended partition.
func (c *Container) LogicalPossible() bool {
	if c.Disk == nil || !c.Disk.HasExtended {
		return false
	}
	return c.Disk.NumLogical < (c.Disk.MaxLogical - c.Disk.MaxPrimary)
}

// --- Commit integration --------------------------------------------------

// GetToCommit returns this container's pending work for stage, split into
// container-level and volume-level actions (spec.md §4.E step 1). The
// commit executor sorts and merges these across all containers before
// executing anything.
func (c *Container) GetToCommit(stage domain.Stage) (containerActions, volumeActions []CommitAction) {
	switch stage {
	case domain.DECREASE:
		if c.Deleted && c.CanPhysicallyRemove() {
			containerActions = append(containerActions, CommitAction{
				Stage: stage, TargetKind: c.Kind, Container: c, Destructive: true,
				Description: fmt.Sprintf("delete container %s", c.Name),
			})
		}
		for _, v := range c.Volumes {
			if v.PendingDelete || v.Shrinking() {
				volumeActions = append(volumeActions, CommitAction{
					Stage: stage, TargetKind: c.Kind, Container: c, Volume: v,
					Destructive: v.PendingDelete,
					Description: fmt.Sprintf("decrease %s", v.Device),
				})
			}
		}
	case domain.INCREASE:
		if c.Created {
			containerActions = append(containerActions, CommitAction{
				Stage: stage, TargetKind: c.Kind, Container: c,
				Description: fmt.Sprintf("create container %s", c.Name),
			})
		}
		for _, v := range c.Volumes {
			if v.PendingCreate || v.Growing() {
				volumeActions = append(volumeActions, CommitAction{
					Stage: stage, TargetKind: c.Kind, Container: c, Volume: v,
					Description: fmt.Sprintf("increase %s", v.Device),
				})
			}
		}
	case domain.FORMAT:
		for _, v := range c.Volumes {
			if v.PendingFormat && !v.PendingDelete {
				volumeActions = append(volumeActions, CommitAction{
					Stage: stage, TargetKind: c.Kind, Container: c, Volume: v,
					Description: fmt.Sprintf("format %s", v.Device),
				})
			}
		}
	case domain.MOUNT:
		for _, v := range c.Volumes {
			if v.PendingMountChange && !v.PendingDelete {
				volumeActions = append(volumeActions, CommitAction{
					Stage: stage, TargetKind: c.Kind, Container: c, Volume: v,
					Description: fmt.Sprintf("mount %s", v.Device),
				})
			}
		}
	}
	return containerActions, volumeActions
}

// CommitChanges applies one already-selected action for stage against the
// live system through sys, then updates in-memory pending state to reflect
// the applied change. vol is nil for a container-level action.
func (c *Container) CommitChanges(stage domain.Stage, vol *Volume, sys domain.SystemRunner) error {
	switch stage {
	case domain.DECREASE:
		if vol == nil {
			return c.commitContainerDecrease(sys)
		}
		return c.commitVolumeDecrease(vol, sys)
	case domain.INCREASE:
		if vol == nil {
			return c.commitContainerIncrease(sys)
		}
		return c.commitVolumeIncrease(vol, sys)
	case domain.FORMAT:
		return c.commitVolumeFormat(vol, sys)
	case domain.MOUNT:
		return c.commitVolumeMount(vol, sys)
	}
	return fmt.Errorf("unknown stage %v", stage)
}

func (c *Container) commitContainerDecrease(sys domain.SystemRunner) error {
	if _, err := sys.Run("destroy-container", c.Device); err != nil {
		return err
	}
	c.Deleted = true
	return nil
}

func (c *Container) commitContainerIncrease(sys domain.SystemRunner) error {
	if _, err := sys.Run("create-container", c.Device); err != nil {
		return err
	}
	c.Created = false
	return nil
}

func (c *Container) commitVolumeDecrease(v *Volume, sys domain.SystemRunner) error {
	if v.PendingDelete {
		if _, err := sys.Run("remove-volume", v.Device); err != nil {
			return err
		}
		for i, vv := range c.Volumes {
			if vv == v {
				c.removeVolumeAt(i)
				break
			}
		}
		c.releasePartitionSlot(v)
		return nil
	}
	// shrink
	if _, err := sys.Run("resize-volume", v.Device, fmt.Sprintf("%dk", v.SizeK)); err != nil {
		return err
	}
	v.PendingResize = false
	v.Original.SizeK = v.SizeK
	return nil
}

// releasePartitionSlot recycles v's partition-number slot after it has been
// physically removed, so a later NextFreePartition/CreatePartitionAny call
// can reuse it (spec.md §8 boundary behavior around slot recycling). A no-op
// for volumes that were never partitions (Disk nil, or HasIndex false).
func (c *Container) releasePartitionSlot(v *Volume) {
	if c.Disk == nil || !v.HasIndex {
		return
	}
	switch v.PartType {
	case domain.PRIMARY:
		if c.Disk.NumPrimary > 0 {
			c.Disk.NumPrimary--
		}
	case domain.EXTENDED:
		c.Disk.HasExtended = false
	case domain.LOGICAL:
		if c.Disk.NumLogical > 0 {
			c.Disk.NumLogical--
		}
		if c.Disk.NumLogical == 0 {
			c.Disk.HasExtended = false
		}
	}
}

func (c *Container) commitVolumeIncrease(v *Volume, sys domain.SystemRunner) error {
	if v.PendingCreate {
		if _, err := sys.Run("create-volume", v.Device, fmt.Sprintf("%dk", v.SizeK)); err != nil {
			return err
		}
		v.PendingCreate = false
		v.Original.SizeK = v.SizeK
		return nil
	}
	// grow
	if _, err := sys.Run("resize-volume", v.Device, fmt.Sprintf("%dk", v.SizeK)); err != nil {
		return err
	}
	v.PendingResize = false
	v.Original.SizeK = v.SizeK
	return nil
}

func (c *Container) commitVolumeFormat(v *Volume, sys domain.SystemRunner) error {
	if _, err := sys.Run("mkfs."+v.Fs.String(), v.Device); err != nil {
		return err
	}
	v.PendingFormat = false
	return nil
}

func (c *Container) commitVolumeMount(v *Volume, sys domain.SystemRunner) error {
	if v.HadOriginalMount() && v.Original.Mount != v.Mount {
		if _, err := sys.Run("umount", v.Original.Mount); err != nil {
			return err
		}
	}
	if v.Mount != "" && v.Mount != SwapMount {
		if _, err := sys.Run("mount", v.Device, v.Mount); err != nil {
			return err
		}
	}
	v.PendingMountChange = false
	v.Original.Mount = v.Mount
	v.Original.FstabOptions = append([]string(nil), v.FstabOptions...)
	return nil
}

// clone deep-copies the container and its volumes for backup/restore.
func (c *Container) clone() *Container {
	cp := *c
	cp.AltNames = append([]string(nil), c.AltNames...)
	if c.Disk != nil {
		d := *c.Disk
		cp.Disk = &d
	}
	if c.Lvm != nil {
		l := *c.Lvm
		l.PVs = append([]string(nil), c.Lvm.PVs...)
		cp.Lvm = &l
	}
	if c.Md != nil {
		m := *c.Md
		m.Devices = append([]string(nil), c.Md.Devices...)
		cp.Md = &m
	}
	cp.Volumes = make([]*Volume, len(c.Volumes))
	for i, v := range c.Volumes {
		nv := v.clone()
		nv.container = &cp
		cp.Volumes[i] = nv
	}
	return &cp
}
