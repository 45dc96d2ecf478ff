package backup

import (
	"testing"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/topology"
)

func TestBackupRoundTrip(t *testing.T) {
	m := topology.NewModel()
	disk := topology.NewContainer(domain.DISK, "sda", "/dev/sda", 0)
	m.AddContainer(disk)

	store := NewStore(m)
	store.Create("A")

	// Mutate: add a new partition.
	sda1 := topology.NewVolume(disk)
	sda1.Device = "/dev/sda1"
	sda1.PendingCreate = true
	disk.AddVolume(sda1)

	if err := store.Restore("A"); err != nil {
		t.Fatal(err)
	}

	equal, diffs := store.Equal("", "A", false)
	if !equal {
		t.Fatalf("expected live model to equal snapshot A after restore, diffs=%v", diffs)
	}

	restoredDisk := m.FindContainer("sda", domain.DISK)
	if len(restoredDisk.Volumes) != 0 {
		t.Fatalf("expected the new partition to be gone after restore, got %d volumes", len(restoredDisk.Volumes))
	}
}

func TestBackupCreateReplacesExisting(t *testing.T) {
	m := topology.NewModel()
	store := NewStore(m)

	store.Create("A")
	disk := topology.NewContainer(domain.DISK, "sda", "/dev/sda", 0)
	m.AddContainer(disk)
	store.Create("A") // replace

	store.Restore("A")
	if m.FindContainer("sda", domain.DISK) == nil {
		t.Fatal("expected the second Create(\"A\") to have captured the disk")
	}
}

func TestBackupRemoveAll(t *testing.T) {
	m := topology.NewModel()
	store := NewStore(m)
	store.Create("A")
	store.Create("B")

	store.Remove("")

	if store.Check("A") || store.Check("B") {
		t.Fatal("expected Remove(\"\") to drop every snapshot")
	}
}

func TestBackupEqualVerboseCollectsAllDiffs(t *testing.T) {
	m := topology.NewModel()
	store := NewStore(m)
	store.Create("A")

	m.AddContainer(topology.NewContainer(domain.DISK, "sda", "/dev/sda", 0))
	m.AddContainer(topology.NewContainer(domain.DISK, "sdb", "/dev/sdb", 1))

	equal, diffs := store.Equal("", "A", true)
	if equal {
		t.Fatal("expected inequality")
	}
	if len(diffs) < 2 {
		t.Fatalf("verbose mode should report more than one diff, got %v", diffs)
	}
}
