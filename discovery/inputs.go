// Package discovery implements component C: populating a topology.Model
// from already-parsed system state (spec.md §1 Non-goals: "does not itself
// parse on-disk partition tables"; §4.C). Every input here is the
// already-parsed form of a /proc, /sys or udev source — discovery never
// opens those files itself, matching the narrow consumption boundary spec.md
// §6 describes.
package discovery

import "github.com/suse/storageengine/domain"

// BlockDevice is the parsed equivalent of one /sys/block/* entry (spec.md
// §6): Range>1 (or a "dasd"-prefixed name) means a full disk; DASD-named
// devices are kind DASD rather than DISK.
type BlockDevice struct {
	Name        string
	Range       int
	SizeSectors uint64
	DeviceLink  string // the "device" symlink target, used for the XEN rule
}

// DiskLabel is the already-parsed partition-table descriptor for one
// whole-disk or partitionable-container device: the label kind, its CHS
// geometry and the primary/logical slot maxima the label format allows
// (the parted/sfdisk "unit cylinder print" equivalent, spec.md §3
// DiskAttrs). Carried as an Inputs field rather than probed by discovery
// itself, per spec.md §1 Non-goals.
type DiskLabel struct {
	Device        string
	LabelKind     string
	Cylinders     int
	Heads         int
	Sectors       int
	CylinderSizeK uint64
	MaxPrimary    int
	MaxLogical    int
}

// PartitionEntry is one /proc/partitions row.
type PartitionEntry struct {
	Major, Minor int
	BlocksK      uint64
	Name         string
}

// MountEntry is one /proc/mounts row.
type MountEntry struct {
	Device     string
	Mountpoint string
	Fs         string
	Options    []string
}

// FstabEntry is one /etc/fstab row (spec.md §6 field list).
type FstabEntry struct {
	Spec    string
	Mount   string
	Fs      string
	Options []string
	Freq    int
	Passno  int
}

// BlkidEntry is the blkid-equivalent per-device filesystem identification.
type BlkidEntry struct {
	Device string
	Fs     domain.FsKind
	UUID   string
	Label  string
}

// MdEntry is one /proc/mdstat array.
type MdEntry struct {
	Name     string
	RaidType domain.RaidType
	Devices  []string
	SizeK    uint64
}

// LvmLv is one logical volume within an LvmVg.
type LvmLv struct {
	Name    string
	SizeK   uint64
	Stripes int
}

// LvmVg is one LVM volume-group listing.
type LvmVg struct {
	Name    string
	PeSizeK uint64
	Lvm1    bool
	PVs     []string
	LVs     []LvmLv
}

// DmEntry is one device-mapper table entry (for plain DM targets that are
// neither DMRAID nor DMMULTIPATH nor LVM).
type DmEntry struct {
	Name  string
	Minor int
	Table string
}

// LoopEntry is one losetup listing row.
type LoopEntry struct {
	Name        string
	BackingFile string
	SizeK       uint64
}

// NfsEntry is one NFS mount.
type NfsEntry struct {
	Server     string
	Path       string
	Mountpoint string
	SizeK      uint64
}

// Inputs bundles every already-parsed system-state source discovery needs
// (spec.md §4.C's "(block-devices, partition-table, mounts, fstab, udev maps
// ..., mdstat, lvm-vg-list, dm-table, loop-list, nfs-mount-list)").
type Inputs struct {
	Mode domain.Mode

	BlockDevices []BlockDevice
	DiskLabels   []DiskLabel
	Partitions   []PartitionEntry
	Mounts       []MountEntry
	Fstab        []FstabEntry
	Blkid        []BlkidEntry

	UdevByID   map[string][]string // device -> by-id symlinks
	UdevByPath map[string][]string // device -> by-path symlinks

	Md          []MdEntry
	DmraidSets  []MdEntry // dmraid reuses the MdEntry shape (device list + size)
	Multipath   []MdEntry // dmmultipath likewise
	LvmVgs      []LvmVg
	Dm          []DmEntry
	Loop        []LoopEntry
	Nfs         []NfsEntry
}
