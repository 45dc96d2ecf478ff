package topology

import (
	"testing"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/sysexec"
)

func newMsdosDisk() *Container {
	c := NewContainer(domain.DISK, "sda", "/dev/sda", 0)
	c.Disk.LabelKind = "msdos"
	c.Disk.MaxPrimary = 4
	c.Disk.MaxLogical = 16
	return c
}

func TestPartitionSlotPolicy(t *testing.T) {
	c := newMsdosDisk()

	if !c.PrimaryPossible() {
		t.Fatal("fresh disk should allow a primary partition")
	}
	if !c.ExtendedPossible() {
		t.Fatal("fresh disk should allow an extended partition")
	}
	if c.LogicalPossible() {
		t.Fatal("no extended partition yet: logical should not be possible")
	}

	c.Disk.NumPrimary = 1
	c.Disk.HasExtended = true
	if c.ExtendedPossible() {
		t.Fatal("extended partition already exists: should not allow another")
	}
	if !c.LogicalPossible() {
		t.Fatal("extended exists: logical partitions should now be possible")
	}

	c.Disk.NumPrimary = 3 // 3 primary + 1 extended == MaxPrimary
	if c.PrimaryPossible() {
		t.Fatal("primary+extended at max: should not allow another primary")
	}
}

func TestGetToCommitDecreaseIncludesDeletedVolume(t *testing.T) {
	c := newMsdosDisk()
	v := NewVolume(c)
	v.Device = "/dev/sda1"
	v.PendingDelete = true
	c.AddVolume(v)

	_, volActions := c.GetToCommit(domain.DECREASE)
	if len(volActions) != 1 || volActions[0].Volume != v {
		t.Fatalf("expected one DECREASE action for the deleted volume, got %v", volActions)
	}
}

func TestGetToCommitIncreaseIncludesCreatedVolume(t *testing.T) {
	c := newMsdosDisk()
	v := NewVolume(c)
	v.Device = "/dev/sda1"
	v.PendingCreate = true
	c.AddVolume(v)

	_, volActions := c.GetToCommit(domain.INCREASE)
	if len(volActions) != 1 || volActions[0].Volume != v {
		t.Fatalf("expected one INCREASE action for the created volume, got %v", volActions)
	}
}

func TestCommitVolumeDecreaseReleasesPartitionSlot(t *testing.T) {
	c := newMsdosDisk()
	c.Disk.NumPrimary = 1
	c.Disk.HasExtended = true
	c.Disk.NumLogical = 1

	logical := NewVolume(c)
	logical.HasIndex = true
	logical.Index = 5
	logical.PartType = domain.LOGICAL
	logical.Device = "/dev/sda5"
	logical.PendingDelete = true
	c.AddVolume(logical)

	sys := sysexec.NewFakeRunner()
	if err := c.commitVolumeDecrease(logical, sys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Disk.NumLogical != 0 {
		t.Fatalf("expected NumLogical released to 0, got %d", c.Disk.NumLogical)
	}
	if c.Disk.HasExtended {
		t.Fatal("expected HasExtended cleared once the last logical partition is gone")
	}

	primary := NewVolume(c)
	primary.HasIndex = true
	primary.Index = 1
	primary.PartType = domain.PRIMARY
	primary.Device = "/dev/sda1"
	primary.PendingDelete = true
	c.AddVolume(primary)

	if err := c.commitVolumeDecrease(primary, sys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Disk.NumPrimary != 0 {
		t.Fatalf("expected NumPrimary released to 0, got %d", c.Disk.NumPrimary)
	}
	if !c.PrimaryPossible() {
		t.Fatal("expected a primary slot free again after release")
	}
}

func TestCanPhysicallyRemove(t *testing.T) {
	c := newMsdosDisk()
	v := NewVolume(c)
	v.Device = "/dev/sda1"
	c.AddVolume(v)

	if c.CanPhysicallyRemove() {
		t.Fatal("container with a live volume should not be removable")
	}

	v.PendingDelete = true
	if !c.CanPhysicallyRemove() {
		t.Fatal("container whose only volume is deleted should be removable")
	}

	c.UsedBy = UsedBy{Kind: domain.UB_LVM, Name: "vg0"}
	if c.CanPhysicallyRemove() {
		t.Fatal("container referenced via usedBy should not be removable")
	}
}
