package freeinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/suse/storageengine/domain"
)

// windowsMarkers and the efi marker implement the heuristics of spec.md
// §4.G step 5.
var windowsMarkers = []string{
	"boot.ini", "msdos.sys", "io.sys", "config.sys",
	"MSDOS.SYS", "IO.SYS", "bootmgr", "$Boot",
}

// MountState is the subset of a volume's mount info the real prober needs:
// whether it is currently mounted, and where.
type MountState struct {
	Mounted    bool
	Mountpoint string
}

// RealProber builds a Prober backed by sys for non-NTFS/NTFS device probing,
// mirroring spec.md §4.G: tear down any dm table, transiently mount under
// tmpdir, statvfs, shell out to ntfsresize for NTFS, clean up.
func RealProber(sys domain.SystemRunner, tmpdir string, mountState func(device string) MountState, fsKind func(device string) domain.FsKind) Prober {
	return func(device string) (Entry, error) {
		fs := fsKind(device)
		if fs == domain.FSUNKNOWN {
			return Entry{}, nil
		}

		ms := mountState(device)
		mountpoint := ms.Mountpoint
		transient := false

		if !ms.Mounted {
			sys.Run("dmsetup", "remove", device)
			mountpoint = filepath.Join(tmpdir, "freeinfo-probe")
			os.MkdirAll(mountpoint, 0700)

			args := []string{device, mountpoint}
			if fs == domain.NTFS {
				args = append(args, "-o", "show_sys_files")
			}
			if _, err := sys.Run("mount", args...); err != nil {
				os.RemoveAll(mountpoint)
				return Entry{}, fmt.Errorf("transient mount of %s failed: %w", device, err)
			}
			transient = true
		}

		var stat unix.Statfs_t
		if err := unix.Statfs(mountpoint, &stat); err != nil {
			if transient {
				sys.Run("umount", mountpoint)
				os.RemoveAll(mountpoint)
			}
			return Entry{}, fmt.Errorf("statvfs %s: %w", mountpoint, err)
		}

		blockSizeK := uint64(stat.Bsize) / 1024
		dfFreeK := stat.Bavail * blockSizeK
		usedK := (stat.Blocks - stat.Bfree) * blockSizeK

		e := Entry{DfFreeK: dfFreeK, UsedK: usedK, ResizeFreeK: dfFreeK, ResizeOK: true}

		if fs == domain.NTFS {
			out, err := sys.Run("ntfsresize", "-f", "-i", device)
			if err == nil {
				if free, ok := parseNtfsresizeFree(out); ok {
					e.ResizeFreeK = free
				} else {
					e.ResizeOK = false
				}
			} else {
				e.ResizeOK = false
			}
		}

		e.LooksWindows = looksLikeWindows(mountpoint)
		if fs == domain.VFAT {
			if _, err := os.Stat(filepath.Join(mountpoint, "efi")); err == nil {
				e.LooksEfi = true
				e.LooksWindows = false
			}
		}

		if transient {
			sys.Run("umount", mountpoint)
			os.RemoveAll(mountpoint)
		}

		return e, nil
	}
}

func looksLikeWindows(mountpoint string) bool {
	for _, marker := range windowsMarkers {
		if _, err := os.Stat(filepath.Join(mountpoint, marker)); err == nil {
			return true
		}
	}
	return false
}

var ntfsresizeFreeRe = regexp.MustCompile(`might resize at (\d+)`)

func parseNtfsresizeFree(out string) (uint64, bool) {
	m := ntfsresizeFreeRe.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	bytes, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return bytes / 1024, true
}
