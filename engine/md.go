package engine

import (
	"strings"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/topology"
)

func validateMdName(name string) error {
	if name == "" || strings.ContainsAny(name, "\"' /\n\t:*?") {
		return domain.NewError(domain.MD_INVALID_NAME, "invalid md name %q", name)
	}
	return nil
}

// CreateMd assembles devices into a new software-RAID array of the given
// type, sizing it via the canonical MD sizing law (topology.ComputeMdSize).
func (e *Engine) CreateMd(name string, raidType domain.RaidType, devices []string) (string, error) {
	if err := e.assertWritable(); err != nil {
		return "", err
	}
	if err := validateMdName(name); err != nil {
		return "", err
	}
	if e.model.FindContainer(name, domain.MD) != nil {
		return "", domain.NewError(domain.MD_NOT_FOUND, "md %q already exists", name)
	}
	sizes := make([]uint64, 0, len(devices))
	for _, dev := range devices {
		v := e.model.FindVolumeByDevice(dev)
		if v == nil {
			return "", domain.NewError(domain.LVM_INVALID_DEVICE, "md member %q not found", dev)
		}
		sizes = append(sizes, v.SizeK)
	}
	if len(sizes) == 0 {
		return "", domain.NewError(domain.MD_INVALID_NAME, "md %q needs at least one member", name)
	}

	c := topology.NewContainer(domain.MD, name, "/dev/"+name, len(e.model.ContainersOfKind(domain.MD)))
	c.Created = true
	c.Md.RaidType = raidType
	c.Md.Devices = append([]string(nil), devices...)
	for _, dev := range devices {
		if v := e.model.FindVolumeByDevice(dev); v != nil {
			v.UsedBy = topology.UsedBy{Kind: domain.UB_MD, Name: name, Device: c.Device}
		}
	}

	v := topology.NewVolume(c)
	v.Device = c.Device
	v.SizeK = topology.ComputeMdSize(raidType, sizes)
	v.PendingCreate = true
	c.AddVolume(v)

	e.model.AddContainer(c)
	return c.Device, e.checkCache()
}

// CreateMdAny picks RAID1 for exactly two devices and RAID5 for three or
// more, the convenience form used when a caller has no opinion on layout.
func (e *Engine) CreateMdAny(name string, devices []string) (string, error) {
	raidType := domain.RAID5
	if len(devices) == 2 {
		raidType = domain.RAID1
	}
	return e.CreateMd(name, raidType, devices)
}

// RemoveMd marks a software-RAID array for removal and clears its members'
// usedBy. destroySb is accepted but neither recorded nor acted on: member
// superblocks are not wiped.
func (e *Engine) RemoveMd(name string, destroySb bool) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	c := e.model.FindContainer(name, domain.MD)
	if c == nil {
		return domain.NewError(domain.MD_NOT_FOUND, "md %q not found", name)
	}
	for _, v := range c.Volumes {
		if v.UsedBy.IsSet() {
			return domain.NewError(domain.REMOVE_USED_VOLUME, "md %s is in use", name)
		}
		v.PendingDelete = true
	}
	e.model.RemoveContainer(c, false)
	for _, dev := range c.Md.Devices {
		if v := e.model.FindVolumeByDevice(dev); v != nil {
			v.UsedBy.Clear()
		}
	}
	return e.checkCache()
}

// ExtendMd adds devices to an existing array and recomputes its size.
func (e *Engine) ExtendMd(name string, devices []string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	c := e.model.FindContainer(name, domain.MD)
	if c == nil {
		return domain.NewError(domain.MD_NOT_FOUND, "md %q not found", name)
	}
	c.Md.Devices = append(c.Md.Devices, devices...)
	for _, dev := range devices {
		if v := e.model.FindVolumeByDevice(dev); v != nil {
			v.UsedBy = topology.UsedBy{Kind: domain.UB_MD, Name: name, Device: c.Device}
		}
	}
	return e.recomputeMdSize(c)
}

// ShrinkMd removes devices from an existing array and recomputes its size.
func (e *Engine) ShrinkMd(name string, devices []string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	c := e.model.FindContainer(name, domain.MD)
	if c == nil {
		return domain.NewError(domain.MD_NOT_FOUND, "md %q not found", name)
	}
	removeSet := make(map[string]bool, len(devices))
	for _, d := range devices {
		removeSet[d] = true
	}
	remaining := c.Md.Devices[:0:0]
	for _, d := range c.Md.Devices {
		if removeSet[d] {
			if v := e.model.FindVolumeByDevice(d); v != nil {
				v.UsedBy.Clear()
			}
			continue
		}
		remaining = append(remaining, d)
	}
	c.Md.Devices = remaining
	return e.recomputeMdSize(c)
}

func (e *Engine) recomputeMdSize(c *topology.Container) error {
	sizes := make([]uint64, 0, len(c.Md.Devices))
	for _, d := range c.Md.Devices {
		if v := e.model.FindVolumeByDevice(d); v != nil {
			sizes = append(sizes, v.SizeK)
		}
	}
	if len(sizes) > 0 && len(c.Volumes) == 1 {
		c.Volumes[0].FreezeOriginal()
		c.Volumes[0].SizeK = topology.ComputeMdSize(c.Md.RaidType, sizes)
		c.Volumes[0].PendingResize = true
	}
	return e.checkCache()
}

// ChangeMdType changes an array's raid personality and resizes accordingly.
func (e *Engine) ChangeMdType(name string, raidType domain.RaidType) error {
	c := e.model.FindContainer(name, domain.MD)
	if c == nil {
		return domain.NewError(domain.MD_NOT_FOUND, "md %q not found", name)
	}
	c.Md.RaidType = raidType
	return e.recomputeMdSize(c)
}

// ChangeMdChunk changes an array's chunk size (a sysexec-layer attribute with
// no topology-model-level invariant to re-derive).
func (e *Engine) ChangeMdChunk(name string, chunkSizeK uint64) error {
	c := e.model.FindContainer(name, domain.MD)
	if c == nil {
		return domain.NewError(domain.MD_NOT_FOUND, "md %q not found", name)
	}
	c.Md.ChunkSizeK = chunkSizeK
	return e.checkCache()
}

// ChangeMdParity changes an array's parity layout (RAID5/6/10 algorithm
// variant).
func (e *Engine) ChangeMdParity(name, parity string) error {
	c := e.model.FindContainer(name, domain.MD)
	if c == nil {
		return domain.NewError(domain.MD_NOT_FOUND, "md %q not found", name)
	}
	c.Md.Parity = parity
	return e.checkCache()
}

// CheckMd reports whether name resolves to a live MD container.
func (e *Engine) CheckMd(name string) bool {
	return e.model.FindContainer(name, domain.MD) != nil
}

// MdStateInfo is getMdStateInfo's return shape: the array's member device
// list. GetMdStateInfo does not set Degraded, so it is always false.
type MdStateInfo struct {
	Devices  []string
	Degraded bool
}

// GetMdStateInfo reports an array's current membership.
func (e *Engine) GetMdStateInfo(name string) (MdStateInfo, error) {
	c := e.model.FindContainer(name, domain.MD)
	if c == nil {
		return MdStateInfo{}, domain.NewError(domain.MD_NOT_FOUND, "md %q not found", name)
	}
	return MdStateInfo{Devices: append([]string(nil), c.Md.Devices...)}, nil
}

// ComputeMdSize exposes topology.ComputeMdSize through the engine façade
// (spec.md §4.D).
func (e *Engine) ComputeMdSize(raidType domain.RaidType, devSizesK []uint64) uint64 {
	return topology.ComputeMdSize(raidType, devSizesK)
}
