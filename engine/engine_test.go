package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/freeinfo"
	"github.com/suse/storageengine/sysexec"
	"github.com/suse/storageengine/topology"
)

func newTestEngine(t *testing.T, readonly bool) (*Engine, *topology.Model) {
	t.Helper()
	m := topology.NewModel()
	disk := topology.NewContainer(domain.DISK, "sda", "/dev/sda", 0)
	disk.Disk.LabelKind = "msdos"
	disk.Disk.MaxPrimary = 4
	disk.Disk.MaxLogical = 63
	disk.Disk.Cylinders = 1000
	disk.Disk.CylinderSizeK = 8192
	m.AddContainer(disk)

	sys := sysexec.NewFakeRunner()
	prober := func(device string) (freeinfo.Entry, error) { return freeinfo.Entry{}, nil }

	e, err := New(m, sys, Options{
		Mode:     domain.ModeTest,
		ReadOnly: readonly,
		LockPath: filepath.Join(t.TempDir(), "lock"),
	}, prober)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, m
}

func TestCreatePartitionKbFillsPrimarySlot(t *testing.T) {
	e, m := newTestEngine(t, false)
	e.SetCacheChanges(true) // don't auto-commit against the fake runner

	device, err := e.CreatePartitionKb("sda", domain.PRIMARY, 0, 102400)
	if err != nil {
		t.Fatal(err)
	}
	if device != "/dev/sda1" {
		t.Fatalf("got %q, want /dev/sda1", device)
	}
	disk := m.FindContainer("sda", domain.DISK)
	if disk.Disk.NumPrimary != 1 {
		t.Fatalf("expected NumPrimary=1, got %d", disk.Disk.NumPrimary)
	}
	if disk.PrimaryPossible() != true {
		t.Fatal("expected another primary slot still free")
	}
}

func TestCreatePartitionKbReadOnlyRefuses(t *testing.T) {
	e, _ := newTestEngine(t, true)
	if _, err := e.CreatePartitionKb("sda", domain.PRIMARY, 0, 1000); err == nil {
		t.Fatal("expected CHANGE_READONLY")
	} else if code, _ := domain.CodeOf(err); code != domain.CHANGE_READONLY {
		t.Fatalf("got code %v, want CHANGE_READONLY", code)
	}
}

func TestCreateAndRemoveLvmVgLifecycle(t *testing.T) {
	e, m := newTestEngine(t, false)
	e.SetCacheChanges(true)

	disk := m.FindContainer("sda", domain.DISK)
	pv := topology.NewVolume(disk)
	pv.HasIndex = true
	pv.Index = 2
	pv.Device = "/dev/sda2"
	pv.SizeK = 5000000
	disk.AddVolume(pv)
	m.Reindex()

	if err := e.CreateLvmVg("system", 4096, false, []string{"/dev/sda2"}); err != nil {
		t.Fatal(err)
	}
	if pv.UsedBy.Kind != domain.UB_LVM {
		t.Fatalf("expected sda2 usedBy LVM, got %+v", pv.UsedBy)
	}

	device, err := e.CreateLvmLv("system", "root", 1000000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if device != "/dev/system/root" {
		t.Fatalf("got %q", device)
	}

	if err := e.RemoveLvmVg("system"); err != nil {
		t.Fatal(err)
	}
	if m.FindContainer("system", domain.LVM) != nil {
		t.Fatal("expected VG removed immediately (it was also created this session)")
	}
	if pv.UsedBy.IsSet() {
		t.Fatal("expected sda2's usedBy cleared after VG removal")
	}

	if err := e.RemoveLvmVg("system"); err == nil {
		t.Fatal("expected LVM_VG_NOT_FOUND for a second removal")
	} else if code, _ := domain.CodeOf(err); code != domain.LVM_VG_NOT_FOUND {
		t.Fatalf("got code %v, want LVM_VG_NOT_FOUND", code)
	}
}

func TestCreateMdComputesCanonicalSize(t *testing.T) {
	e, m := newTestEngine(t, false)
	e.SetCacheChanges(true)

	disk := m.FindContainer("sda", domain.DISK)
	for i, name := range []string{"/dev/sda2", "/dev/sda3"} {
		v := topology.NewVolume(disk)
		v.HasIndex = true
		v.Index = i + 2
		v.Device = name
		v.SizeK = 1000000
		disk.AddVolume(v)
	}
	m.Reindex()
	disk.FindVolumeByIndex(3).SizeK = 2000000 // mismatched sizes, RAID1 takes the min

	device, err := e.CreateMd("md0", domain.RAID1, []string{"/dev/sda2", "/dev/sda3"})
	if err != nil {
		t.Fatal(err)
	}
	md := m.FindContainer("md0", domain.MD)
	if md == nil || md.Volumes[0].Device != device || md.Volumes[0].SizeK != 1000000 {
		t.Fatalf("expected md0 sized at the smaller member, got %+v", md)
	}
}

func TestRemoveVolumeRecursiveRoutesThroughLvm(t *testing.T) {
	e, m := newTestEngine(t, false)
	e.SetCacheChanges(true)

	disk := m.FindContainer("sda", domain.DISK)
	pv := topology.NewVolume(disk)
	pv.HasIndex = true
	pv.Index = 2
	pv.Device = "/dev/sda2"
	disk.AddVolume(pv)
	m.Reindex()

	if err := e.CreateLvmVg("data", 4096, false, []string{"/dev/sda2"}); err != nil {
		t.Fatal(err)
	}

	if err := e.RemoveVolume("/dev/sda2", false); err == nil {
		t.Fatal("expected REMOVE_USED_VOLUME without the recursive flag")
	}

	if err := e.RemoveVolume("/dev/sda2", true); err != nil {
		t.Fatal(err)
	}
	if m.FindContainer("data", domain.LVM) != nil {
		t.Fatal("expected the owning VG to be removed by the recursive routing policy")
	}
}

func TestAddFstabOptionsIsIdempotent(t *testing.T) {
	e, m := newTestEngine(t, false)
	e.SetCacheChanges(true)

	disk := m.FindContainer("sda", domain.DISK)
	v := topology.NewVolume(disk)
	v.HasIndex = true
	v.Index = 1
	v.Device = "/dev/sda1"
	v.FstabOptions = []string{"defaults"}
	disk.AddVolume(v)
	m.Reindex()

	if err := e.AddFstabOptions("/dev/sda1", []string{"noatime", "defaults"}); err != nil {
		t.Fatal(err)
	}
	if len(v.FstabOptions) != 2 {
		t.Fatalf("expected set-union to de-duplicate, got %v", v.FstabOptions)
	}

	if err := e.AddFstabOptions("/dev/sda1", []string{"noatime"}); err != nil {
		t.Fatal(err)
	}
	if len(v.FstabOptions) != 2 {
		t.Fatalf("expected re-adding an existing option to be a no-op, got %v", v.FstabOptions)
	}
}

func TestRemoveFstabOptionsByRegex(t *testing.T) {
	e, m := newTestEngine(t, false)
	e.SetCacheChanges(true)

	disk := m.FindContainer("sda", domain.DISK)
	v := topology.NewVolume(disk)
	v.HasIndex = true
	v.Index = 1
	v.Device = "/dev/sda1"
	v.FstabOptions = []string{"defaults", "user_xattr", "acl"}
	disk.AddVolume(v)
	m.Reindex()

	if err := e.RemoveFstabOptions("/dev/sda1", "^user_"); err != nil {
		t.Fatal(err)
	}
	if len(v.FstabOptions) != 2 {
		t.Fatalf("expected user_xattr removed, got %v", v.FstabOptions)
	}
}

func TestCacheChangesDisabledAutoCommits(t *testing.T) {
	e, m := newTestEngine(t, false)
	// Default is cacheChanges=false: every mutation auto-commits.
	disk := m.FindContainer("sda", domain.DISK)
	_ = disk

	if _, err := e.CreatePartitionKb("sda", domain.PRIMARY, 0, 102400); err != nil {
		t.Fatal(err)
	}
	v := m.FindVolumeByDevice("/dev/sda1")
	if v.PendingCreate {
		t.Fatal("expected auto-commit to have cleared PendingCreate")
	}
}

func TestDestroyPartitionTableTeardownToleratesPerPartitionFailure(t *testing.T) {
	e, m := newTestEngine(t, false)
	e.SetCacheChanges(true)

	disk := m.FindContainer("sda", domain.DISK)
	v := topology.NewVolume(disk)
	v.HasIndex = true
	v.Index = 1
	v.PartType = domain.PRIMARY
	v.Device = "/dev/sda1"
	disk.AddVolume(v)
	disk.Disk.NumPrimary = 1
	m.Reindex()

	if err := e.DestroyPartitionTable("sda"); err != nil {
		t.Fatal(err)
	}
	if !disk.Deleted {
		t.Fatal("expected the disk container marked Deleted so the container-level DECREASE action fires")
	}

	sys := e.sys.(*sysexec.FakeRunner)
	sys.FailNext(errors.New("device busy"), "remove-volume", "/dev/sda1")

	if err := e.Commit(); err != nil {
		t.Fatalf("expected the per-partition failure to be tolerated by the disk teardown, got %v", err)
	}
}

func TestGetUnusedPartitionSlotsReflectsLabel(t *testing.T) {
	e, _ := newTestEngine(t, false)
	slots, err := e.GetUnusedPartitionSlots("sda")
	if err != nil {
		t.Fatal(err)
	}
	if !slots.Primary || !slots.Extended || slots.Logical {
		t.Fatalf("fresh disk should offer primary and extended slots but no logical slot yet, got %+v", slots)
	}
}

