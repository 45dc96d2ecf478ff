package discovery

import (
	"strings"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/ident"
	"github.com/suse/storageengine/topology"
)

// Run populates an empty topology.Model from in, in the fixed instantiation
// order spec.md §4.C requires: disks, then md, dmraid, dmmultipath, lvm,
// other dm, loop, nfs. Each step marks the devices it consumes as used so a
// later step's usedBy back-references are correct (e.g. an md member disk's
// partition shows UB_MD once the md step runs). Grounded on the teacher's
// domain/container.go discovery sequencing (state built once from injected
// process/mount info, never by this package re-reading the host itself).
func Run(in Inputs) (*topology.Model, error) {
	m := topology.NewModel()

	diskOrdinal := 0
	for _, bd := range in.BlockDevices {
		kind := domain.DISK
		if strings.HasPrefix(bd.Name, "dasd") {
			kind = domain.DASD
		}
		// A XEN virtual block device reports range==1 but is still a
		// partitionable disk: non-empty, linked under /xen/vbd, and named
		// with a trailing digit.
		xen := bd.Range == 1 && bd.SizeSectors > 0 && strings.Contains(bd.DeviceLink, "/xen/vbd") &&
			bd.Name != "" && bd.Name[len(bd.Name)-1] >= '0' && bd.Name[len(bd.Name)-1] <= '9'
		if bd.Range <= 1 && kind == domain.DISK && !xen {
			// Not a whole-disk entry.
			continue
		}
		disk := topology.NewContainer(kind, bd.Name, "/dev/"+bd.Name, diskOrdinal)
		diskOrdinal++
		disk.AltNames = append(disk.AltNames, in.UdevByID["/dev/"+bd.Name]...)
		disk.AltNames = append(disk.AltNames, in.UdevByPath["/dev/"+bd.Name]...)
		applyDiskLabel(disk, in.DiskLabels)
		m.AddContainer(disk)
	}

	addPartitionsOf := func(disk *topology.Container) {
		for _, pe := range in.Partitions {
			diskDevice, num := ident.SplitDiskPartition("/dev/" + pe.Name)
			if num == 0 || diskDevice != disk.Device {
				continue
			}
			v := topology.NewVolume(disk)
			v.HasIndex = true
			v.Index = num
			v.Device = "/dev/" + pe.Name
			v.SizeK = pe.BlocksK
			v.AltNames = append(v.AltNames, in.UdevByID["/dev/"+pe.Name]...)
			v.AltNames = append(v.AltNames, in.UdevByPath["/dev/"+pe.Name]...)
			applyBlkid(v, in.Blkid)
			applyMountAndFstab(v, in.Mounts, in.Fstab)
			v.FreezeOriginal()
			disk.AddVolume(v)
		}
	}
	for _, disk := range m.ContainersOfKind(domain.DISK) {
		addPartitionsOf(disk)
		classifyPartitionSlots(disk)
	}
	for _, disk := range m.ContainersOfKind(domain.DASD) {
		addPartitionsOf(disk)
		classifyPartitionSlots(disk)
	}
	m.Reindex() // partitions were added via Container.AddVolume, not AddContainer

	mdOrdinal := 0
	for _, md := range in.Md {
		c := topology.NewContainer(domain.MD, md.Name, "/dev/"+md.Name, mdOrdinal)
		mdOrdinal++
		c.Md.RaidType = md.RaidType
		c.Md.Devices = append([]string(nil), md.Devices...)
		markUsedBy(m, md.Devices, domain.UB_MD, c.Name, c.Device)
		v := topology.NewVolume(c)
		v.Device = c.Device
		v.SizeK = md.SizeK
		applyBlkid(v, in.Blkid)
		applyMountAndFstab(v, in.Mounts, in.Fstab)
		v.FreezeOriginal()
		c.AddVolume(v)
		m.AddContainer(c)
	}

	dmraidOrdinal := 0
	for _, dr := range in.DmraidSets {
		c := topology.NewContainer(domain.DMRAID, dr.Name, "/dev/mapper/"+dr.Name, dmraidOrdinal)
		dmraidOrdinal++
		c.Md.RaidType = dr.RaidType
		c.Md.Devices = append([]string(nil), dr.Devices...)
		markUsedBy(m, dr.Devices, domain.UB_DMRAID, c.Name, c.Device)
		applyDiskLabel(c, in.DiskLabels)
		m.AddContainer(c)
	}

	multipathOrdinal := 0
	for _, mp := range in.Multipath {
		c := topology.NewContainer(domain.DMMULTIPATH, mp.Name, "/dev/mapper/"+mp.Name, multipathOrdinal)
		multipathOrdinal++
		c.Md.Devices = append([]string(nil), mp.Devices...)
		markUsedBy(m, mp.Devices, domain.UB_DMMULTIPATH, c.Name, c.Device)
		applyDiskLabel(c, in.DiskLabels)
		m.AddContainer(c)
	}

	lvmOrdinal := 0
	for _, vg := range in.LvmVgs {
		c := topology.NewContainer(domain.LVM, vg.Name, "/dev/"+vg.Name, lvmOrdinal)
		lvmOrdinal++
		c.Lvm.PeSizeK = vg.PeSizeK
		c.Lvm.Lvm1 = vg.Lvm1
		c.Lvm.PVs = append([]string(nil), vg.PVs...)
		markUsedBy(m, vg.PVs, domain.UB_LVM, c.Name, c.Device)
		for _, lv := range vg.LVs {
			v := topology.NewVolume(c)
			v.Device = "/dev/" + vg.Name + "/" + lv.Name
			v.SizeK = lv.SizeK
			applyBlkid(v, in.Blkid)
			applyMountAndFstab(v, in.Mounts, in.Fstab)
			v.FreezeOriginal()
			c.AddVolume(v)
		}
		m.AddContainer(c)
	}

	dmOrdinal := 0
	for _, dm := range in.Dm {
		if m.FindContainer(dm.Name, domain.DM) != nil {
			continue
		}
		c := topology.NewContainer(domain.DM, dm.Name, "/dev/mapper/"+dm.Name, dmOrdinal)
		dmOrdinal++
		v := topology.NewVolume(c)
		v.Device = c.Device
		applyBlkid(v, in.Blkid)
		applyMountAndFstab(v, in.Mounts, in.Fstab)
		v.FreezeOriginal()
		c.AddVolume(v)
		m.AddContainer(c)
	}

	loopOrdinal := 0
	for _, lp := range in.Loop {
		c := topology.NewContainer(domain.LOOP, lp.Name, "/dev/"+lp.Name, loopOrdinal)
		loopOrdinal++
		v := topology.NewVolume(c)
		v.Device = c.Device
		v.SizeK = lp.SizeK
		v.DescText = lp.BackingFile
		applyBlkid(v, in.Blkid)
		applyMountAndFstab(v, in.Mounts, in.Fstab)
		v.FreezeOriginal()
		c.AddVolume(v)
		m.AddContainer(c)
	}

	nfsOrdinal := 0
	for _, n := range in.Nfs {
		name := n.Server + ":" + n.Path
		c := topology.NewContainer(domain.NFS, name, name, nfsOrdinal)
		nfsOrdinal++
		v := topology.NewVolume(c)
		v.Device = name
		v.SizeK = n.SizeK
		v.Fs = domain.NFSFS
		v.Mount = n.Mountpoint
		v.FreezeOriginal()
		c.AddVolume(v)
		m.AddContainer(c)
	}

	return m, nil
}

// applyDiskLabel copies the matching DiskLabel entry into c.Disk, leaving the
// geometry zeroed (as topology.NewContainer already leaves it) when no entry
// names this device — the fresh-disk case InitializeDisk alone can recover
// from (spec.md §7 DISK_INIT_NOT_POSSIBLE).
func applyDiskLabel(c *topology.Container, labels []DiskLabel) {
	if c.Disk == nil {
		return
	}
	for _, l := range labels {
		if l.Device != c.Device {
			continue
		}
		c.Disk.LabelKind = l.LabelKind
		c.Disk.Cylinders = l.Cylinders
		c.Disk.Heads = l.Heads
		c.Disk.Sectors = l.Sectors
		c.Disk.CylinderSizeK = l.CylinderSizeK
		c.Disk.MaxPrimary = l.MaxPrimary
		c.Disk.MaxLogical = l.MaxLogical
		return
	}
}

// classifyPartitionSlots derives NumPrimary/NumLogical/HasExtended and each
// volume's PartType from the partition numbers addPartitionsOf already
// assigned, using the same primary/logical split NextFreePartition uses
// (partition numbers at or below MaxPrimary are primary-range, above it are
// logical): a discovered partition table never hands discovery a separate
// "this is the extended container" marker, only the partition numbers
// themselves, so the extended partition's own slot (never a mountable
// volume) is inferred to exist whenever a logical partition is present.
func classifyPartitionSlots(disk *topology.Container) {
	if disk.Disk == nil || disk.Disk.MaxPrimary == 0 {
		return
	}
	var numPrimary, numLogical int
	for _, v := range disk.Volumes {
		if !v.HasIndex {
			continue
		}
		if v.Index <= disk.Disk.MaxPrimary {
			v.PartType = domain.PRIMARY
			numPrimary++
		} else {
			v.PartType = domain.LOGICAL
			numLogical++
		}
	}
	disk.Disk.NumPrimary = numPrimary
	disk.Disk.NumLogical = numLogical
	disk.Disk.HasExtended = numLogical > 0
}

// markUsedBy sets UsedBy (kind plus the owner's name and device) on every
// container or volume whose device appears in devices, preferring a volume
// match (a disk's partition used as a RAID member) over a whole-container
// match (a whole disk used directly).
func markUsedBy(m *topology.Model, devices []string, kind domain.UsedByKind, ownerName, ownerDevice string) {
	ub := topology.UsedBy{Kind: kind, Name: ownerName, Device: ownerDevice}
	for _, dev := range devices {
		if v := m.FindVolumeByDevice(dev); v != nil {
			v.UsedBy = ub
			continue
		}
		if c := m.FindContainerByDevice(dev); c != nil {
			c.UsedBy = ub
		}
	}
}

func applyBlkid(v *topology.Volume, entries []BlkidEntry) {
	for _, b := range entries {
		if b.Device == v.Device {
			v.Fs = b.Fs
			v.UUID = b.UUID
			v.Label = b.Label
			return
		}
	}
}

func applyMountAndFstab(v *topology.Volume, mounts []MountEntry, fstab []FstabEntry) {
	for _, mnt := range mounts {
		if mnt.Device == v.Device {
			v.Mount = mnt.Mountpoint
			break
		}
	}
	for _, fs := range fstab {
		if fs.Spec == v.Device {
			if v.Mount == "" {
				v.Mount = fs.Mount
			}
			v.FstabOptions = append([]string(nil), fs.Options...)
			break
		}
	}
}
