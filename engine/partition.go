package engine

import (
	"fmt"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/ident"
	"github.com/suse/storageengine/topology"
)

// CylinderToKb converts a cylinder count to kB using disk's geometry.
func CylinderToKb(disk *topology.Container, cylinders int) uint64 {
	return uint64(cylinders) * disk.Disk.CylinderSizeK
}

// KbToCylinder converts a kB size to a (rounded-up) cylinder count using
// disk's geometry.
func KbToCylinder(disk *topology.Container, sizeK uint64) int {
	if disk.Disk.CylinderSizeK == 0 {
		return 0
	}
	cyl := sizeK / disk.Disk.CylinderSizeK
	if sizeK%disk.Disk.CylinderSizeK != 0 {
		cyl++
	}
	return int(cyl)
}

// DefaultDiskLabel picks msdos for disks under the MBR-addressable
// cylinder/head/sector ceiling, gpt otherwise.
func DefaultDiskLabel(cylinders int) string {
	if cylinders > 267349 {
		return "gpt"
	}
	return "msdos"
}

// DefaultDiskLabelSize returns the geometry a fresh label of kind label
// should start with, for a disk of the given total size.
func DefaultDiskLabelSize(label string, totalSizeK uint64) (cylinders int, cylinderSizeK uint64) {
	cylinderSizeK = 8192
	cylinders = int(totalSizeK / cylinderSizeK)
	return cylinders, cylinderSizeK
}

func (e *Engine) findDisk(name string) (*topology.Container, error) {
	for _, kind := range []domain.ContainerKind{domain.DISK, domain.DASD, domain.DMRAID, domain.DMMULTIPATH} {
		if c := e.model.FindContainer(name, kind); c != nil {
			return c, nil
		}
	}
	return nil, domain.NewError(domain.DISK_NOT_FOUND, "disk %q not found", name)
}

// GetUnusedPartitionSlots reports which partition roles disk still has room
// for (spec.md §4.D partition slot policy).
type UnusedSlots struct {
	Primary, Extended, Logical bool
}

func (e *Engine) GetUnusedPartitionSlots(diskName string) (UnusedSlots, error) {
	disk, err := e.findDisk(diskName)
	if err != nil {
		return UnusedSlots{}, err
	}
	return UnusedSlots{
		Primary:  disk.PrimaryPossible(),
		Extended: disk.ExtendedPossible(),
		Logical:  disk.LogicalPossible(),
	}, nil
}

// NextFreePartition returns the lowest unused partition number for disk,
// respecting the msdos primary/logical numbering split (primary/extended
// numbers below 5, logical numbers from 5 up).
func (e *Engine) NextFreePartition(diskName string, partType domain.PartitionType) (int, error) {
	disk, err := e.findDisk(diskName)
	if err != nil {
		return 0, err
	}
	start, limit := 1, disk.Disk.MaxPrimary
	if partType == domain.LOGICAL {
		start, limit = disk.Disk.MaxPrimary+1, disk.Disk.MaxLogical
	}
	for n := start; n <= limit; n++ {
		if disk.FindVolumeByIndex(n) == nil {
			return n, nil
		}
	}
	return 0, domain.NewError(domain.CHANGE_AREA_INVALID_CONTAINER, "no free partition slot on %s", diskName)
}

// CreatePartitionKb creates a partition of partType and size sizeK on disk,
// returning its device path. startK is not recorded: the model holds a
// partition's size and number, not its start offset.
func (e *Engine) CreatePartitionKb(diskName string, partType domain.PartitionType, startK, sizeK uint64) (string, error) {
	if err := e.assertWritable(); err != nil {
		return "", err
	}
	disk, err := e.findDisk(diskName)
	if err != nil {
		return "", err
	}

	switch partType {
	case domain.PRIMARY:
		if !disk.PrimaryPossible() {
			return "", domain.NewError(domain.CHANGE_AREA_INVALID_CONTAINER, "no primary slot free on %s", diskName)
		}
	case domain.EXTENDED:
		if !disk.ExtendedPossible() {
			return "", domain.NewError(domain.CHANGE_AREA_INVALID_CONTAINER, "no extended slot free on %s", diskName)
		}
	case domain.LOGICAL:
		if !disk.LogicalPossible() {
			return "", domain.NewError(domain.CHANGE_AREA_INVALID_CONTAINER, "no logical slot free on %s", diskName)
		}
	}

	num, err := e.NextFreePartition(diskName, partType)
	if err != nil {
		return "", err
	}

	v := topology.NewVolume(disk)
	v.HasIndex = true
	v.Index = num
	v.PartType = partType
	v.Device = fmt.Sprintf("%s%d", devicePrefix(disk), num)
	v.SizeK = sizeK
	v.PendingCreate = true
	disk.AddVolume(v)

	switch partType {
	case domain.PRIMARY:
		disk.Disk.NumPrimary++
	case domain.EXTENDED:
		disk.Disk.HasExtended = true
	case domain.LOGICAL:
		disk.Disk.NumLogical++
	}

	e.model.Reindex()
	e.free.Invalidate(v.Device)
	return v.Device, e.checkCache()
}

// CreatePartition is the cylinder-addressed convenience wrapper CreatePartitionKb
// generalizes (spec.md §4.D).
func (e *Engine) CreatePartition(diskName string, partType domain.PartitionType, startCyl, sizeCyl int) (string, error) {
	disk, err := e.findDisk(diskName)
	if err != nil {
		return "", err
	}
	return e.CreatePartitionKb(diskName, partType, CylinderToKb(disk, startCyl), CylinderToKb(disk, sizeCyl))
}

// CreatePartitionAny picks PRIMARY if a slot is free, else LOGICAL (creating
// the extended container first if needed), the convenience form used when a
// caller has no opinion on partition role.
func (e *Engine) CreatePartitionAny(diskName string, sizeK uint64) (string, error) {
	disk, err := e.findDisk(diskName)
	if err != nil {
		return "", err
	}
	if disk.PrimaryPossible() {
		return e.CreatePartitionKb(diskName, domain.PRIMARY, 0, sizeK)
	}
	if disk.LogicalPossible() {
		return e.CreatePartitionKb(diskName, domain.LOGICAL, 0, sizeK)
	}
	if disk.ExtendedPossible() {
		if _, err := e.CreatePartitionKb(diskName, domain.EXTENDED, 0, 0); err != nil {
			return "", err
		}
		return e.CreatePartitionKb(diskName, domain.LOGICAL, 0, sizeK)
	}
	return "", domain.NewError(domain.CHANGE_AREA_INVALID_CONTAINER, "no partition slot free on %s", diskName)
}

// CreatePartitionMax creates the largest possible partition of partType on
// disk, sized to the remaining unallocated space.
func (e *Engine) CreatePartitionMax(diskName string, partType domain.PartitionType) (string, error) {
	disk, err := e.findDisk(diskName)
	if err != nil {
		return "", err
	}
	var used uint64
	for _, v := range disk.Volumes {
		if !v.PendingDelete {
			used += v.SizeK
		}
	}
	total := CylinderToKb(disk, disk.Disk.Cylinders)
	remaining := uint64(0)
	if total > used {
		remaining = total - used
	}
	return e.CreatePartitionKb(diskName, partType, 0, remaining)
}

// RemovePartition marks the partition numbered num on disk for deletion.
func (e *Engine) RemovePartition(diskName string, num int) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	disk, err := e.findDisk(diskName)
	if err != nil {
		return err
	}
	v := disk.FindVolumeByIndex(num)
	if v == nil {
		return domain.NewError(domain.VOLUME_NOT_FOUND, "partition %d not found on %s", num, diskName)
	}
	if v.UsedBy.IsSet() {
		return domain.NewError(domain.REMOVE_USED_VOLUME, "partition %s is in use", v.Device)
	}
	v.PendingDelete = true
	e.free.Invalidate(v.Device)
	return e.checkCache()
}

// UpdatePartitionArea changes the size of an existing (not-yet-
// committed-create) partition in place, without treating it as a resize of a
// live partition. startK is accepted but not recorded.
func (e *Engine) UpdatePartitionArea(diskName string, num int, startK, sizeK uint64) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	disk, err := e.findDisk(diskName)
	if err != nil {
		return err
	}
	v := disk.FindVolumeByIndex(num)
	if v == nil {
		return domain.NewError(domain.VOLUME_NOT_FOUND, "partition %d not found on %s", num, diskName)
	}
	if !v.PendingCreate {
		return domain.NewError(domain.CHANGE_AREA_INVALID_CONTAINER, "partition %s was not created in this session", v.Device)
	}
	v.SizeK = sizeK
	return e.checkCache()
}

// ChangePartitionId is a no-op placeholder recording the requested partition
// type byte; the core's topology model doesn't carry it as a first-class
// field since no invariant in this engine depends on it, only the mkfs/mount
// pipeline downstream does. Retained for API parity with spec.md §4.D.
func (e *Engine) ChangePartitionId(diskName string, num int, idByte byte) error {
	if _, err := e.findDisk(diskName); err != nil {
		return err
	}
	return nil
}

// ForgetChangePartitionId is the inverse no-op of ChangePartitionId.
func (e *Engine) ForgetChangePartitionId(diskName string, num int) error {
	if _, err := e.findDisk(diskName); err != nil {
		return err
	}
	return nil
}

// ResizePartitionNoFs changes a partition's size without touching its
// filesystem (a raw area resize); ResizePartition additionally marks the
// filesystem for an in-place resize during FORMAT.
func (e *Engine) ResizePartitionNoFs(diskName string, num int, newSizeK uint64) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	disk, err := e.findDisk(diskName)
	if err != nil {
		return err
	}
	v := disk.FindVolumeByIndex(num)
	if v == nil {
		return domain.NewError(domain.VOLUME_NOT_FOUND, "partition %d not found on %s", num, diskName)
	}
	v.FreezeOriginal()
	v.SizeK = newSizeK
	v.PendingResize = true
	e.free.Invalidate(v.Device)
	return e.checkCache()
}

// ResizePartition resizes the partition and schedules a filesystem resize
// alongside it.
func (e *Engine) ResizePartition(diskName string, num int, newSizeK uint64) error {
	if err := e.ResizePartitionNoFs(diskName, num, newSizeK); err != nil {
		return err
	}
	disk, _ := e.findDisk(diskName)
	if v := disk.FindVolumeByIndex(num); v != nil {
		v.PendingFormat = true
	}
	return e.checkCache()
}

// ForgetResizeVolume drops a pending resize, restoring the volume's original
// size.
func (e *Engine) ForgetResizeVolume(device string) error {
	v := e.model.FindVolumeByDevice(device)
	if v == nil {
		return domain.NewError(domain.VOLUME_NOT_FOUND, "volume %q not found", device)
	}
	v.PendingResize = false
	v.SizeK = v.Original.SizeK
	return nil
}

// DestroyPartitionTable wipes every partition on disk, resets its slot
// accounting and retires the container for this model (spec.md §4.E step
// 4). A fresh label can only be written against a disk discovery rebuilds
// after this commits, not against this same in-memory handle.
func (e *Engine) DestroyPartitionTable(diskName string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	disk, err := e.findDisk(diskName)
	if err != nil {
		return err
	}
	for _, v := range disk.Volumes {
		if v.UsedBy.IsSet() {
			return domain.NewError(domain.DISK_USED_BY, "partition %s is in use", v.Device)
		}
	}
	for _, v := range disk.Volumes {
		v.PendingDelete = true
	}
	disk.Disk.NumPrimary, disk.Disk.NumLogical, disk.Disk.HasExtended = 0, 0, false
	// Mark the container itself deleted, the same way RemoveLvmVg/RemoveMd/
	// RemoveFileLoop retire a container via model.RemoveContainer: this is
	// what makes GetToCommit emit the container-level DISK DECREASE action
	// that spec.md §4.E step 4 lets a per-partition DECREASE failure fall
	// back on.
	e.model.RemoveContainer(disk, false)
	return e.checkCache()
}

// InitializeDisk writes a fresh label of the given kind, which is only
// possible when the disk has no live volumes left (spec.md §7
// DISK_INIT_NOT_POSSIBLE).
func (e *Engine) InitializeDisk(diskName, label string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	disk, err := e.findDisk(diskName)
	if err != nil {
		return err
	}
	for _, v := range disk.Volumes {
		if !v.PendingDelete {
			return domain.NewError(domain.DISK_INIT_NOT_POSSIBLE, "disk %s still has live partitions", diskName)
		}
	}
	disk.Disk.LabelKind = label
	switch label {
	case "msdos":
		disk.Disk.MaxPrimary = 4
		disk.Disk.MaxLogical = 63
	case "gpt":
		disk.Disk.MaxPrimary = 128
		disk.Disk.MaxLogical = 128
	}
	return e.checkCache()
}

func devicePrefix(disk *topology.Container) string {
	if ident.NeedsPSeparator(disk.Device) {
		return disk.Device + "p"
	}
	return disk.Device
}
