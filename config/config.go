// Package config parses the engine's environment-variable and sysconfig
// inputs (spec.md §6), grounded on the teacher's cmd/sysbox-fs/main.go
// "app.Before" pattern of collecting process configuration once at startup
// into a plain struct rather than re-reading getenv scattered through the
// codebase.
package config

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/suse/storageengine/domain"
)

// Environment mirrors the environment variables spec.md §6 says the engine
// consults, collected once at construction time the way Storage::Storage
// (original_source/libstorage/src/Storage.cc) reads getenv into instance
// fields.
type Environment struct {
	InstSys          bool // YAST_IS_RUNNING == "instsys"
	TestMode         bool // YAST2_STORAGE_TMODE set
	TestDir          string
	MaxLogNum        int
	NoLvm            bool
	NoDmraid         bool
	NoDmmultipath    bool
	NoDm             bool
}

// LoadEnvironment reads the process environment the way the original
// constructor does.
func LoadEnvironment() Environment {
	e := Environment{MaxLogNum: 5}
	e.InstSys = os.Getenv("YAST_IS_RUNNING") == "instsys"
	e.TestMode = os.Getenv("YAST2_STORAGE_TMODE") != ""
	e.TestDir = os.Getenv("YAST2_STORAGE_TDIR")
	if n := os.Getenv("Y2MAXLOGNUM"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			e.MaxLogNum = v
		}
	}
	e.NoLvm = os.Getenv("YAST2_STORAGE_NO_LVM") != ""
	e.NoDmraid = os.Getenv("YAST2_STORAGE_NO_DMRAID") != ""
	e.NoDmmultipath = os.Getenv("YAST2_STORAGE_NO_DMMULTIPATH") != ""
	e.NoDm = os.Getenv("YAST2_STORAGE_NO_DM") != ""
	return e
}

var deviceNamesLine = regexp.MustCompile(`^\s*DEVICE_NAMES\s*=\s*['"]?([^'"]*)['"]?\s*$`)

// LoadSysconfig scans an /etc/sysconfig/storage-shaped reader for the
// DEVICE_NAMES= setting and returns the MountBy policy it selects. Discovery
// always supplies an already-open reader rather than the core opening the
// real file itself (spec.md §1 Non-goals: the core does not parse OS state
// files; it consumes their already-parsed form).
func LoadSysconfig(r io.Reader) (domain.MountBy, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := deviceNamesLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "id":
			return domain.MOUNTBY_ID, true
		case "path":
			return domain.MOUNTBY_PATH, true
		case "device":
			return domain.MOUNTBY_DEVICE, true
		case "uuid":
			return domain.MOUNTBY_UUID, true
		case "label":
			return domain.MOUNTBY_LABEL, true
		}
	}
	return domain.MOUNTBY_DEVICE, false
}
