package topology

import (
	"testing"

	"github.com/suse/storageengine/domain"
)

func TestComputeMdSize(t *testing.T) {
	MB := uint64(1024)
	cases := []struct {
		raid  domain.RaidType
		sizes []uint64
		want  uint64
	}{
		{domain.RAID0, []uint64{100 * MB, 200 * MB, 300 * MB}, 600 * MB},
		{domain.RAID1, []uint64{100 * MB, 200 * MB}, 100 * MB},
		{domain.MULTIPATH, []uint64{100 * MB, 50 * MB}, 50 * MB},
		{domain.RAID5, []uint64{100 * MB, 200 * MB, 300 * MB}, 100 * MB * 2},
		{domain.RAID6, []uint64{100 * MB, 200 * MB, 300 * MB, 400 * MB}, 100 * MB * 2},
		{domain.RAID10, []uint64{100 * MB, 100 * MB, 100 * MB, 100 * MB}, 100 * MB * 2},
	}
	for _, c := range cases {
		if got := ComputeMdSize(c.raid, c.sizes); got != c.want {
			t.Errorf("ComputeMdSize(%v, %v) = %d, want %d", c.raid, c.sizes, got, c.want)
		}
	}
}

func TestComputeMdSizeScenario4(t *testing.T) {
	// spec.md §8 scenario 4: RAID5 over 100/200/300 MB members in kB.
	sizesK := []uint64{100 * 1024, 200 * 1024, 300 * 1024}
	got := ComputeMdSize(domain.RAID5, sizesK)
	want := uint64(100 * 1024 * 2)
	if got != want {
		t.Errorf("got %d want %d", got, want)
	}
}
