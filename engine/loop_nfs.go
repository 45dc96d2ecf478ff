package engine

import (
	"fmt"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/topology"
)

// CreateFileLoop creates a new loop device backed by backingFile. A fresh
// backing file defaults to EXT3 with LUKS encryption (spec.md §4.D); reusing
// an existing one leaves the filesystem/encryption fields for discovery or a
// later changeFormatVolume call to fill in.
func (e *Engine) CreateFileLoop(backingFile string, sizeK uint64, reuseExisting bool) (string, error) {
	if err := e.assertWritable(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("loop%d", len(e.model.ContainersOfKind(domain.LOOP)))
	c := topology.NewContainer(domain.LOOP, name, "/dev/"+name, len(e.model.ContainersOfKind(domain.LOOP)))
	c.Created = true
	v := topology.NewVolume(c)
	v.Device = c.Device
	v.SizeK = sizeK
	v.DescText = backingFile
	v.PendingCreate = true
	if !reuseExisting {
		v.Fs = domain.EXT3
		v.Encryption = domain.ENC_LUKS
		v.PendingFormat = true
	}
	c.AddVolume(v)
	e.model.AddContainer(c)
	return c.Device, e.checkCache()
}

// ModifyFileLoop changes the size of an existing loop device.
func (e *Engine) ModifyFileLoop(device string, newSizeK uint64) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	v := e.model.FindVolumeByDevice(device)
	if v == nil {
		return domain.NewError(domain.LOOP_NOT_FOUND, "loop device %q not found", device)
	}
	v.FreezeOriginal()
	v.SizeK = newSizeK
	v.PendingResize = true
	e.free.Invalidate(device)
	return e.checkCache()
}

// RemoveFileLoop marks a loop device for removal. removeFile is accepted
// but not acted on: the backing file is left in place.
func (e *Engine) RemoveFileLoop(device string, removeFile bool) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	v := e.model.FindVolumeByDevice(device)
	if v == nil {
		return domain.NewError(domain.LOOP_NOT_FOUND, "loop device %q not found", device)
	}
	if v.UsedBy.IsSet() {
		return domain.NewError(domain.REMOVE_USED_VOLUME, "loop device %s is in use", device)
	}
	v.PendingDelete = true
	c := v.Container()
	e.model.RemoveContainer(c, false)
	return e.checkCache()
}

// AddNfsDevice registers an NFS export as a mounted volume.
func (e *Engine) AddNfsDevice(server, path, mountpoint string, sizeK uint64) (string, error) {
	if err := e.assertWritable(); err != nil {
		return "", err
	}
	name := server + ":" + path
	if e.model.FindContainerByName(name) != nil {
		return "", domain.NewError(domain.CONTAINER_NOT_FOUND, "nfs export %q already registered", name)
	}
	c := topology.NewContainer(domain.NFS, name, name, len(e.model.ContainersOfKind(domain.NFS)))
	c.Created = true
	v := topology.NewVolume(c)
	v.Device = name
	v.SizeK = sizeK
	v.Fs = domain.NFSFS
	v.Mount = mountpoint
	v.PendingCreate = true
	v.PendingMountChange = true
	c.AddVolume(v)
	e.model.AddContainer(c)
	return name, e.checkCache()
}

// CheckNfsDevice probes an NFS export's size via a transient mount, using the
// same free-info prober the rest of the engine uses (spec.md §4.D "the
// latter probes size via a transient mount").
func (e *Engine) CheckNfsDevice(server, path string) (uint64, error) {
	name := server + ":" + path
	entry, err := e.free.GetFreeInfo(name, false)
	if err != nil {
		return 0, err
	}
	return entry.DfFreeK + entry.UsedK, nil
}

// RemoveDmraid is currently a no-op per spec.md §4.D: DMRAID/DMMULTIPATH
// container removal is not implemented by this engine generation, and the
// commit planner's ignoreError rule tolerates the corresponding DECREASE
// action failing outright.
func (e *Engine) RemoveDmraid(name string) error {
	if e.model.FindContainer(name, domain.DMRAID) == nil {
		return domain.NewError(domain.DMRAID_CO_NOT_FOUND, "dmraid set %q not found", name)
	}
	return domain.NewError(domain.REMOVE_USING_UNKNOWN_TYPE, "dmraid removal is not supported")
}
