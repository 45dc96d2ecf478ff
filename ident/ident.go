// Package ident implements component A of the storage engine: pure,
// allocation-light device-name canonicalization and resolution helpers. None
// of these functions touch the filesystem or run external commands — they
// operate purely on strings and on an injected alternate-name lookup,
// grounded on the teacher's ioNode/domain path-handling style
// (domain/ionode.go) of treating device/path strings as plain values passed
// around rather than wrapped in heavier path objects.
package ident

import (
	"regexp"
	"strconv"
	"strings"
)

const devPrefix = "/dev/"

// Canonicalize rewrites a raw kernel or sysfs block-device name into its
// canonical "/dev/..." form. Sysfs names use "!" where the device path would
// use "/" (e.g. "cciss!c0d0" -> "/dev/cciss/c0d0"); stripDigits, when true,
// additionally strips a trailing partition-number suffix.
func Canonicalize(name string, stripDigits bool) string {
	if name == "" {
		return name
	}
	n := strings.ReplaceAll(name, "!", "/")
	if !strings.HasPrefix(n, devPrefix) {
		n = devPrefix + n
	}
	if stripDigits {
		n = strings.TrimRight(n, "0123456789")
	}
	return n
}

var partSuffix = regexp.MustCompile(`^(.*?)([0-9]+)$`)

// SplitDiskPartition splits a partition device into its owning disk device
// and partition number, handling both the "/dev/sda1" and "/dev/cciss/c0d0p1"
// conventions. Devices it cannot parse as "disk+number" return (dev, 0).
func SplitDiskPartition(dev string) (string, int) {
	base := strings.TrimSuffix(dev, "/")
	m := partSuffix.FindStringSubmatch(base)
	if m == nil {
		return dev, 0
	}
	disk := m[1]
	num, err := strconv.Atoi(m[2])
	if err != nil || disk == "" {
		return dev, 0
	}
	// a trailing "p" is a separator ("c0d0p1") only when the name before it
	// ends in a digit; otherwise it belongs to the disk name ("sdp1").
	if strings.HasSuffix(disk, "p") && looksLikePSeparatorDisk(strings.TrimSuffix(disk, "p")) {
		disk = strings.TrimSuffix(disk, "p")
	}
	return disk, num
}

func looksLikePSeparatorDisk(disk string) bool {
	last := disk[len(disk)-1]
	return last >= '0' && last <= '9'
}

// NeedsPSeparator reports whether partitions of disk take the "pN" suffix
// form rather than a bare trailing digit. Applies to md, loop, dm and
// nvme-style device names, all of which end in a digit themselves.
func NeedsPSeparator(disk string) bool {
	base := strings.TrimPrefix(disk, devPrefix)
	if base == "" {
		return false
	}
	switch {
	case strings.HasPrefix(base, "md"):
		return true
	case strings.HasPrefix(base, "loop"):
		return true
	case strings.HasPrefix(base, "dm-"):
		return true
	case strings.HasPrefix(base, "nvme"):
		return true
	}
	last := base[len(base)-1]
	return last >= '0' && last <= '9'
}

// AlternateNameLookup resolves a bare or symlinked alias using a volume
// model's alternate-name lists; it is supplied by the topology package so
// ident stays free of any dependency on it.
type AlternateNameLookup func(alias string) (canonical string, ok bool)

// Resolve maps an alias — a bare kernel name, a "/dev/mapper/..." symlink, a
// "/dev/disk/by-{id,path,uuid,label}/..." symlink, a "UUID=..." or
// "LABEL=..." fstab-style reference — to its canonical device path. When none
// of the recognized forms apply, it falls back to the supplied alternate-name
// lookup (and finally to the alias itself, unmodified).
func Resolve(alias string, lookup AlternateNameLookup) string {
	switch {
	case strings.HasPrefix(alias, "UUID="):
		if lookup != nil {
			if canon, ok := lookup(alias); ok {
				return canon
			}
		}
		return alias
	case strings.HasPrefix(alias, "LABEL="):
		if lookup != nil {
			if canon, ok := lookup(alias); ok {
				return canon
			}
		}
		return alias
	case strings.HasPrefix(alias, "/dev/mapper/"),
		strings.HasPrefix(alias, "/dev/disk/by-id/"),
		strings.HasPrefix(alias, "/dev/disk/by-path/"),
		strings.HasPrefix(alias, "/dev/disk/by-uuid/"),
		strings.HasPrefix(alias, "/dev/disk/by-label/"):
		if lookup != nil {
			if canon, ok := lookup(alias); ok {
				return canon
			}
		}
		return alias
	default:
		canon := Canonicalize(alias, false)
		if lookup != nil {
			if c, ok := lookup(canon); ok {
				return c
			}
		}
		return canon
	}
}

// MajorMinor formats a device major:minor pair the way udev and
// /proc/partitions do.
func MajorMinor(major, minor int) string {
	return strconv.Itoa(major) + ":" + strconv.Itoa(minor)
}
