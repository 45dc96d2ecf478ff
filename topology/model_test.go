package topology

import (
	"testing"

	"github.com/suse/storageengine/domain"
)

func TestModelAddContainerUniqueness(t *testing.T) {
	m := NewModel()
	c1 := NewContainer(domain.DISK, "sda", "/dev/sda", 0)
	c2 := NewContainer(domain.DISK, "sda", "/dev/sda", 0)

	if !m.AddContainer(c1) {
		t.Fatal("first add should succeed")
	}
	if m.AddContainer(c2) {
		t.Fatal("duplicate (name,kind) should be rejected")
	}
}

func TestModelIterationOrder(t *testing.T) {
	m := NewModel()
	md0 := NewContainer(domain.MD, "md0", "/dev/md0", 0)
	sdb := NewContainer(domain.DISK, "sdb", "/dev/sdb", 1)
	sda := NewContainer(domain.DISK, "sda", "/dev/sda", 0)

	m.AddContainer(md0)
	m.AddContainer(sdb)
	m.AddContainer(sda)

	got := m.Containers(false)
	want := []string{"sda", "sdb", "md0"}
	for i, c := range got {
		if c.Name != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, c.Name, want[i])
		}
	}
}

func TestModelRemoveContainerDeletedThenCreatedIsImmediate(t *testing.T) {
	m := NewModel()
	c := NewContainer(domain.LOOP, "loop0", "/dev/loop0", 0)
	c.Created = true
	m.AddContainer(c)

	m.RemoveContainer(c, false)

	if m.FindContainer("loop0", domain.LOOP) != nil {
		t.Fatal("created+deleted container should be physically gone immediately")
	}
}

func TestModelRemoveContainerJustMarksDeletedWhenNotCreated(t *testing.T) {
	m := NewModel()
	c := NewContainer(domain.DISK, "sda", "/dev/sda", 0)
	m.AddContainer(c)

	m.RemoveContainer(c, false)

	if !c.Deleted {
		t.Fatal("expected Deleted to be set")
	}
	if m.FindContainer("sda", domain.DISK) != nil {
		t.Fatal("FindContainer should not return a deleted container")
	}
	found := false
	for _, cc := range m.containers {
		if cc == c {
			found = true
		}
	}
	if !found {
		t.Fatal("container should remain in the underlying slice until commit")
	}
}

func TestModelCloneIsDeep(t *testing.T) {
	m := NewModel()
	c := NewContainer(domain.DISK, "sda", "/dev/sda", 0)
	v := NewVolume(c)
	v.Device = "/dev/sda1"
	v.SizeK = 1000
	c.AddVolume(v)
	m.AddContainer(c)

	clone := m.Clone()
	cv := clone.FindContainer("sda", domain.DISK).Volumes[0]
	cv.SizeK = 9999

	if v.SizeK == 9999 {
		t.Fatal("mutating the clone must not affect the live model")
	}
}

func TestFindContainerByDevice(t *testing.T) {
	m := NewModel()
	c := NewContainer(domain.DISK, "sda", "/dev/sda", 0)
	m.AddContainer(c)

	if got := m.FindContainerByDevice("/dev/sda"); got != c {
		t.Fatalf("FindContainerByDevice did not return the expected container, got %v", got)
	}
}
