package engine

import (
	"regexp"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/topology"
)

// ChangeFormatVolume schedules device to be (re)formatted with fs during the
// next FORMAT stage.
func (e *Engine) ChangeFormatVolume(device string, fs domain.FsKind) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	v := e.model.FindVolumeByDevice(device)
	if v == nil {
		return domain.NewError(domain.VOLUME_NOT_FOUND, "volume %q not found", device)
	}
	v.Fs = fs
	v.PendingFormat = true
	e.free.Invalidate(device)
	return e.checkCache()
}

// ChangeLabelVolume sets a volume's filesystem label.
func (e *Engine) ChangeLabelVolume(device, label string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.Label = label
	return e.checkCache()
}

// EraseLabelVolume clears a volume's filesystem label.
func (e *Engine) EraseLabelVolume(device string) error {
	return e.ChangeLabelVolume(device, "")
}

// ChangeMkfsOptVolume sets the mkfs options applied the next time device is
// formatted.
func (e *Engine) ChangeMkfsOptVolume(device, opts string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.MkfsOptions = opts
	return e.checkCache()
}

// ChangeTunefsOptVolume sets the tunefs options applied after the next
// format.
func (e *Engine) ChangeTunefsOptVolume(device, opts string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.TunefsOptions = opts
	return e.checkCache()
}

// ChangeDescText sets a volume's free-form description.
func (e *Engine) ChangeDescText(device, text string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.DescText = text
	return e.checkCache()
}

// ChangeMountPoint schedules device to be (re)mounted at mount during the
// next MOUNT stage.
func (e *Engine) ChangeMountPoint(device, mount string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.FreezeOriginal()
	v.Mount = mount
	v.PendingMountChange = true
	return e.checkCache()
}

// ChangeMountBy selects how device's fstab entry references it.
func (e *Engine) ChangeMountBy(device string, by domain.MountBy) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.MountBy = by
	v.PendingMountChange = true
	return e.checkCache()
}

// ChangeFstabOptions replaces device's fstab option list outright.
func (e *Engine) ChangeFstabOptions(device string, opts []string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.FreezeOriginal()
	v.FstabOptions = append([]string(nil), opts...)
	v.PendingMountChange = true
	return e.checkCache()
}

// AddFstabOptions set-unions opts into device's existing fstab options
// (spec.md §4.D "set-union with existing").
func (e *Engine) AddFstabOptions(device string, opts []string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(v.FstabOptions))
	for _, o := range v.FstabOptions {
		have[o] = true
	}
	v.FreezeOriginal()
	for _, o := range opts {
		if !have[o] {
			v.FstabOptions = append(v.FstabOptions, o)
			have[o] = true
		}
	}
	v.PendingMountChange = true
	return e.checkCache()
}

// RemoveFstabOptions drops every existing fstab option matching pattern
// (spec.md §4.D "regex-based removal").
func (e *Engine) RemoveFstabOptions(device, pattern string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	re, reErr := regexp.Compile(pattern)
	if reErr != nil {
		return domain.NewError(domain.INVALID_FSTAB_VALUE, "invalid fstab option pattern %q: %v", pattern, reErr)
	}
	v.FreezeOriginal()
	var kept []string
	for _, o := range v.FstabOptions {
		if !re.MatchString(o) {
			kept = append(kept, o)
		}
	}
	v.FstabOptions = kept
	v.PendingMountChange = true
	return e.checkCache()
}

// SetCrypt enables or disables volume encryption.
func (e *Engine) SetCrypt(device string, enabled bool) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	if !enabled {
		v.Encryption = domain.ENC_NONE
		v.CryptPassword = ""
	} else if v.Encryption == domain.ENC_NONE {
		v.Encryption = domain.ENC_LUKS
	}
	v.PendingFormat = true
	return e.checkCache()
}

// SetCryptType selects the encryption scheme for an already-encrypted
// volume.
func (e *Engine) SetCryptType(device string, kind domain.EncryptionKind) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.Encryption = kind
	return e.checkCache()
}

// SetCryptPassword stores the passphrase used the next time device is
// formatted or mounted.
func (e *Engine) SetCryptPassword(device, password string) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.CryptPassword = password
	return nil
}

// ForgetCryptPassword discards a previously set passphrase.
func (e *Engine) ForgetCryptPassword(device string) error {
	return e.SetCryptPassword(device, "")
}

// GetCryptPassword returns device's currently stored passphrase, if any.
func (e *Engine) GetCryptPassword(device string) (string, error) {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return "", err
	}
	return v.CryptPassword, nil
}

// SetIgnoreFstab marks device as excluded from fstab management entirely.
func (e *Engine) SetIgnoreFstab(device string, ignore bool) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.IgnoreFstab = ignore
	return e.checkCache()
}

// ResizeVolumeNoFs resizes a volume without scheduling a filesystem resize
// (used for volume kinds, e.g. LVs, where FORMAT-stage resize semantics
// don't apply the way they do to partitions).
func (e *Engine) ResizeVolumeNoFs(device string, newSizeK uint64) error {
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	v.FreezeOriginal()
	v.SizeK = newSizeK
	v.PendingResize = true
	e.free.Invalidate(device)
	return e.checkCache()
}

// ResizeVolume resizes a volume and schedules a filesystem resize alongside
// it.
func (e *Engine) ResizeVolume(device string, newSizeK uint64) error {
	if err := e.ResizeVolumeNoFs(device, newSizeK); err != nil {
		return err
	}
	v, _ := e.mustFindVolume(device)
	v.PendingFormat = true
	return e.checkCache()
}

// RemoveVolume marks device for removal, applying spec.md §4.D's
// recursive-removal routing policy when the volume is stacked under another
// container.
func (e *Engine) RemoveVolume(device string, recursive bool) error {
	if err := e.assertWritable(); err != nil {
		return err
	}
	v, err := e.mustFindVolume(device)
	if err != nil {
		return err
	}
	if v.UsedBy.IsSet() {
		if !recursive {
			return domain.NewError(domain.REMOVE_USED_VOLUME, "volume %s is in use", device)
		}
		switch v.UsedBy.Kind {
		case domain.UB_MD, domain.UB_DM:
			if err := e.RemoveVolume(v.UsedBy.Device, true); err != nil {
				return err
			}
		case domain.UB_LVM:
			if err := e.RemoveLvmVg(v.UsedBy.Name); err != nil {
				return err
			}
		case domain.UB_DMRAID, domain.UB_DMMULTIPATH:
			// No-op per spec.md §4.D: these removals are not yet supported.
		}
	}
	v.PendingDelete = true
	e.free.Invalidate(device)
	return e.checkCache()
}

func (e *Engine) mustFindVolume(device string) (*topology.Volume, error) {
	v := e.model.FindVolumeByDevice(device)
	if v == nil {
		return nil, domain.NewError(domain.VOLUME_NOT_FOUND, "volume %q not found", device)
	}
	return v, nil
}
