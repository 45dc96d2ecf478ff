package engine

import (
	"strings"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/topology"
)

// vgNameInvalidChars are the characters spec.md §4.D forbids in a VG name.
const vgNameInvalidChars = "\"' /\n\t:*?"

func validateVgName(name string) error {
	if name == "" {
		return domain.NewError(domain.VG_INVALID_NAME, "VG name must not be empty")
	}
	if strings.ContainsAny(name, vgNameInvalidChars) {
		return domain.NewError(domain.VG_INVALID_NAME, "VG name %q contains a forbidden character", name)
	}
	return nil
}

// CreateLvmVg creates a new LVM volume group backed by pvs, each of which
// must be an existing, unused volume or whole disk.
func (e *Engine) CreateLvmVg(name string, peSizeK uint64, lvm1 bool, pvs []string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	if err := validateVgName(name); err != nil {
		return err
	}
	if e.model.FindContainer(name, domain.LVM) != nil {
		return domain.NewError(domain.LVM_VG_EXISTS, "VG %q already exists", name)
	}
	for _, pv := range pvs {
		if e.model.FindVolumeByDevice(pv) == nil && e.model.FindContainerByDevice(pv) == nil {
			return domain.NewError(domain.LVM_INVALID_DEVICE, "PV %q not found", pv)
		}
	}

	vg := topology.NewContainer(domain.LVM, name, "/dev/"+name, len(e.model.ContainersOfKind(domain.LVM)))
	vg.Created = true
	vg.Lvm.PeSizeK = peSizeK
	vg.Lvm.Lvm1 = lvm1
	vg.Lvm.PVs = append([]string(nil), pvs...)
	for _, pv := range pvs {
		if v := e.model.FindVolumeByDevice(pv); v != nil {
			v.UsedBy = topology.UsedBy{Kind: domain.UB_LVM, Name: name, Device: vg.Device}
		} else if c := e.model.FindContainerByDevice(pv); c != nil {
			c.UsedBy = topology.UsedBy{Kind: domain.UB_LVM, Name: name, Device: vg.Device}
		}
	}
	e.model.AddContainer(vg)
	return e.checkCache()
}

// RemoveLvmVg marks a whole volume group (and every LV within it) for
// removal.
func (e *Engine) RemoveLvmVg(name string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	vg := e.model.FindContainer(name, domain.LVM)
	if vg == nil {
		return domain.NewError(domain.LVM_VG_NOT_FOUND, "VG %q not found", name)
	}
	for _, v := range vg.Volumes {
		if v.UsedBy.IsSet() {
			return domain.NewError(domain.REMOVE_USED_VOLUME, "LV %s is in use", v.Device)
		}
		v.PendingDelete = true
	}
	e.model.RemoveContainer(vg, false)
	for _, pv := range vg.Lvm.PVs {
		if v := e.model.FindVolumeByDevice(pv); v != nil {
			v.UsedBy.Clear()
		} else if c := e.model.FindContainerByDevice(pv); c != nil {
			c.UsedBy.Clear()
		}
	}
	return e.checkCache()
}

// ExtendLvmVg adds pvs to an existing volume group.
func (e *Engine) ExtendLvmVg(name string, pvs []string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	vg := e.model.FindContainer(name, domain.LVM)
	if vg == nil {
		return domain.NewError(domain.LVM_VG_NOT_FOUND, "VG %q not found", name)
	}
	for _, pv := range pvs {
		if e.model.FindVolumeByDevice(pv) == nil && e.model.FindContainerByDevice(pv) == nil {
			return domain.NewError(domain.LVM_INVALID_DEVICE, "PV %q not found", pv)
		}
	}
	vg.Lvm.PVs = append(vg.Lvm.PVs, pvs...)
	for _, pv := range pvs {
		if v := e.model.FindVolumeByDevice(pv); v != nil {
			v.UsedBy = topology.UsedBy{Kind: domain.UB_LVM, Name: name, Device: vg.Device}
		} else if c := e.model.FindContainerByDevice(pv); c != nil {
			c.UsedBy = topology.UsedBy{Kind: domain.UB_LVM, Name: name, Device: vg.Device}
		}
	}
	return e.checkCache()
}

// ShrinkLvmVg removes pvs from an existing volume group.
func (e *Engine) ShrinkLvmVg(name string, pvs []string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	vg := e.model.FindContainer(name, domain.LVM)
	if vg == nil {
		return domain.NewError(domain.LVM_VG_NOT_FOUND, "VG %q not found", name)
	}
	remaining := vg.Lvm.PVs[:0:0]
	removeSet := make(map[string]bool, len(pvs))
	for _, pv := range pvs {
		removeSet[pv] = true
	}
	for _, pv := range vg.Lvm.PVs {
		if removeSet[pv] {
			if v := e.model.FindVolumeByDevice(pv); v != nil {
				v.UsedBy.Clear()
			} else if c := e.model.FindContainerByDevice(pv); c != nil {
				c.UsedBy.Clear()
			}
			continue
		}
		remaining = append(remaining, pv)
	}
	vg.Lvm.PVs = remaining
	return e.checkCache()
}

// CreateLvmLv creates a new logical volume within vgName of sizeK kilobytes
// (the size is taken in kB, not MB). A
// stripes count greater than 1 is recorded via the "striped" marker the
// commit planner's INCREASE sort rule consults.
func (e *Engine) CreateLvmLv(vgName, lvName string, sizeK uint64, stripes int) (string, error) {
	if err := e.assertWritable(); err != nil {
		return "", err
	}
	vg := e.model.FindContainer(vgName, domain.LVM)
	if vg == nil {
		return "", domain.NewError(domain.LVM_VG_NOT_FOUND, "VG %q not found", vgName)
	}
	device := "/dev/" + vgName + "/" + lvName
	if vg.FindVolumeByDevice(device) != nil {
		return "", domain.NewError(domain.LVM_INVALID_DEVICE, "LV %q already exists", device)
	}
	v := topology.NewVolume(vg)
	v.Device = device
	v.SizeK = sizeK
	v.PendingCreate = true
	if stripes > 1 {
		v.AltNames = append(v.AltNames, "striped")
	}
	vg.AddVolume(v)
	e.model.Reindex()
	return device, e.checkCache()
}

// RemoveLvmLv marks the logical volume lvName within vgName for removal.
func (e *Engine) RemoveLvmLv(vgName, lvName string) error {
	return e.RemoveLvmLvByDevice("/dev/" + vgName + "/" + lvName)
}

// RemoveLvmLvByDevice marks the logical volume at device for removal.
func (e *Engine) RemoveLvmLvByDevice(device string) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	v := e.model.FindVolumeByDevice(device)
	if v == nil {
		return domain.NewError(domain.LVM_LV_NOT_FOUND, "LV %q not found", device)
	}
	if v.UsedBy.IsSet() {
		return domain.NewError(domain.REMOVE_USED_VOLUME, "LV %s is in use", device)
	}
	v.PendingDelete = true
	e.free.Invalidate(device)
	return e.checkCache()
}

// ChangeLvStripeCount changes an LV's recorded stripe count (see CreateLvmLv).
func (e *Engine) ChangeLvStripeCount(device string, stripes int) error {
	v := e.model.FindVolumeByDevice(device)
	if v == nil {
		return domain.NewError(domain.LVM_LV_NOT_FOUND, "LV %q not found", device)
	}
	var kept []string
	for _, a := range v.AltNames {
		if a != "striped" {
			kept = append(kept, a)
		}
	}
	if stripes > 1 {
		kept = append(kept, "striped")
	}
	v.AltNames = kept
	return e.checkCache()
}

// ChangeLvStripeSize is a recorded-attribute no-op: stripe size affects the
// underlying LVM call this engine's sysexec layer makes, but carries no
// topology-model invariant, so nothing needs updating here beyond validating
// the LV exists.
func (e *Engine) ChangeLvStripeSize(device string, stripeSizeK uint64) error {
	if e.model.FindVolumeByDevice(device) == nil {
		return domain.NewError(domain.LVM_LV_NOT_FOUND, "LV %q not found", device)
	}
	return e.checkCache()
}

// LvSnapshotState reports a snapshot's allocation level, spec.md §4.D
// getLvmLvSnapshotStateInfo's return shape.
type LvSnapshotState struct {
	Device     string
	AllocatedK uint64
	Invalid    bool
}

// CreateLvmLvSnapshot creates a copy-on-write snapshot of an existing LV.
func (e *Engine) CreateLvmLvSnapshot(originDevice, snapName string, sizeK uint64) (string, error) {
	if err := e.assertWritable(); err != nil {
		return "", err
	}
	origin := e.model.FindVolumeByDevice(originDevice)
	if origin == nil {
		return "", domain.NewError(domain.LVM_LV_NOT_FOUND, "LV %q not found", originDevice)
	}
	vg := origin.Container()
	device := vg.Device + "/" + snapName
	v := topology.NewVolume(vg)
	v.Device = device
	v.SizeK = sizeK
	v.PendingCreate = true
	v.DescText = "snapshot of " + originDevice
	vg.AddVolume(v)
	e.model.Reindex()
	return device, e.checkCache()
}

// RemoveLvmLvSnapshot removes a previously created snapshot.
func (e *Engine) RemoveLvmLvSnapshot(device string) error {
	return e.RemoveLvmLvByDevice(device)
}

// GetLvmLvSnapshotStateInfo reports a snapshot's device and, as AllocatedK,
// its size in the model. Invalid is always false: the snapshot's real
// allocation and validity are not queried.
func (e *Engine) GetLvmLvSnapshotStateInfo(device string) (LvSnapshotState, error) {
	v := e.model.FindVolumeByDevice(device)
	if v == nil {
		return LvSnapshotState{}, domain.NewError(domain.LVM_LV_NOT_FOUND, "LV %q not found", device)
	}
	return LvSnapshotState{Device: device, AllocatedK: v.SizeK}, nil
}
