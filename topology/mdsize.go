package topology

import "github.com/suse/storageengine/domain"

// ComputeMdSize implements the canonical MD sizing law (spec.md §4.D,
// §8 "MD sizing law"):
//
//	RAID0               -> sum of all member sizes
//	RAID1 / MULTIPATH   -> size of the smallest member
//	RAID5               -> smallest member * (n-1)
//	RAID6               -> smallest member * (n-2)
//	RAID10              -> smallest member * (n/2)
//
// devSizesK must be non-empty; callers are responsible for validating that
// beforehand (spec.md §8 quantifies the law "for any non-empty list").
func ComputeMdSize(raidType domain.RaidType, devSizesK []uint64) uint64 {
	n := len(devSizesK)
	min := devSizesK[0]
	var sum uint64
	for _, s := range devSizesK {
		sum += s
		if s < min {
			min = s
		}
	}
	switch raidType {
	case domain.RAID0:
		return sum
	case domain.RAID1, domain.MULTIPATH:
		return min
	case domain.RAID5:
		return min * uint64(n-1)
	case domain.RAID6:
		return min * uint64(n-2)
	case domain.RAID10:
		return min * uint64(n/2)
	default:
		return min
	}
}
