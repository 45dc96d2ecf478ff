package discovery

import (
	"testing"

	"github.com/suse/storageengine/domain"
)

func TestRunBuildsDiskWithPartitions(t *testing.T) {
	in := Inputs{
		BlockDevices: []BlockDevice{{Name: "sda", Range: 16, SizeSectors: 2000000}},
		Partitions: []PartitionEntry{
			{Major: 8, Minor: 1, BlocksK: 512000, Name: "sda1"},
			{Major: 8, Minor: 2, BlocksK: 256000, Name: "sda2"},
		},
		Blkid: []BlkidEntry{{Device: "/dev/sda1", Fs: domain.EXT3, UUID: "u-1"}},
		Mounts: []MountEntry{{Device: "/dev/sda1", Mountpoint: "/", Fs: "ext3"}},
	}

	m, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}

	disk := m.FindContainer("sda", domain.DISK)
	if disk == nil {
		t.Fatal("expected sda disk container")
	}
	if len(disk.Volumes) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(disk.Volumes))
	}
	p1 := disk.FindVolumeByIndex(1)
	if p1 == nil || p1.Fs != domain.EXT3 || p1.UUID != "u-1" || p1.Mount != "/" {
		t.Fatalf("partition 1 not populated correctly: %+v", p1)
	}
	if !p1.HadOriginalMount() {
		t.Fatal("expected partition 1's original mount to be frozen")
	}
}

func TestRunPopulatesDiskGeometryAndSlotAccounting(t *testing.T) {
	in := Inputs{
		BlockDevices: []BlockDevice{{Name: "sda", Range: 16, SizeSectors: 2000000}},
		DiskLabels: []DiskLabel{{
			Device: "/dev/sda", LabelKind: "msdos",
			Cylinders: 1024, Heads: 255, Sectors: 63, CylinderSizeK: 8225,
			MaxPrimary: 4, MaxLogical: 63,
		}},
		Partitions: []PartitionEntry{
			{Name: "sda1", BlocksK: 512000},
			{Name: "sda5", BlocksK: 256000},
			{Name: "sda6", BlocksK: 256000},
		},
	}

	m, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}

	disk := m.FindContainer("sda", domain.DISK)
	if disk == nil {
		t.Fatal("expected sda disk container")
	}
	if disk.Disk.LabelKind != "msdos" || disk.Disk.MaxPrimary != 4 || disk.Disk.MaxLogical != 63 {
		t.Fatalf("expected disk geometry populated from DiskLabels, got %+v", disk.Disk)
	}
	if disk.Disk.NumPrimary != 1 {
		t.Fatalf("expected 1 primary partition, got %d", disk.Disk.NumPrimary)
	}
	if disk.Disk.NumLogical != 2 {
		t.Fatalf("expected 2 logical partitions, got %d", disk.Disk.NumLogical)
	}
	if !disk.Disk.HasExtended {
		t.Fatal("expected HasExtended inferred true from logical partitions present")
	}
	if !disk.PrimaryPossible() {
		t.Fatal("expected a primary slot still free (1 primary + 1 extended < 4 max)")
	}
}

func TestRunMarksMdMembersUsedBy(t *testing.T) {
	in := Inputs{
		BlockDevices: []BlockDevice{{Name: "sda", Range: 16}, {Name: "sdb", Range: 16}},
		Partitions: []PartitionEntry{
			{Name: "sda1", BlocksK: 1000000},
			{Name: "sdb1", BlocksK: 1000000},
		},
		Md: []MdEntry{{Name: "md0", RaidType: domain.RAID1, Devices: []string{"/dev/sda1", "/dev/sdb1"}, SizeK: 1000000}},
	}

	m, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}

	md := m.FindContainer("md0", domain.MD)
	if md == nil {
		t.Fatal("expected md0 container")
	}
	sda := m.FindContainer("sda", domain.DISK)
	p1 := sda.FindVolumeByIndex(1)
	if !p1.UsedBy.IsSet() || p1.UsedBy.Kind != domain.UB_MD {
		t.Fatalf("expected sda1 usedBy MD, got %+v", p1.UsedBy)
	}
}

func TestRunBuildsLvmVgAndLvs(t *testing.T) {
	in := Inputs{
		LvmVgs: []LvmVg{{
			Name:    "system",
			PeSizeK: 4096,
			PVs:     []string{"/dev/sda2"},
			LVs:     []LvmLv{{Name: "root", SizeK: 10000000}, {Name: "swap", SizeK: 2000000}},
		}},
	}

	m, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}

	vg := m.FindContainer("system", domain.LVM)
	if vg == nil {
		t.Fatal("expected system VG container")
	}
	if len(vg.Volumes) != 2 {
		t.Fatalf("expected 2 LVs, got %d", len(vg.Volumes))
	}
	if vg.FindVolumeByDevice("/dev/system/root") == nil {
		t.Fatal("expected root LV device path")
	}
}

func TestRunBuildsNfsMount(t *testing.T) {
	in := Inputs{
		Nfs: []NfsEntry{{Server: "fileserver", Path: "/export/home", Mountpoint: "/home", SizeK: 500000}},
	}
	m, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}
	c := m.FindContainerByName("fileserver:/export/home")
	if c == nil || c.Kind != domain.NFS {
		t.Fatal("expected nfs container")
	}
	if c.Volumes[0].Mount != "/home" {
		t.Fatalf("expected mountpoint /home, got %q", c.Volumes[0].Mount)
	}
}
