package config

import (
	"strings"
	"testing"

	"github.com/suse/storageengine/domain"
)

func TestLoadSysconfigDeviceNames(t *testing.T) {
	cases := []struct {
		in   string
		want domain.MountBy
	}{
		{`DEVICE_NAMES="id"`, domain.MOUNTBY_ID},
		{`DEVICE_NAMES=path`, domain.MOUNTBY_PATH},
		{`DEVICE_NAMES='uuid'`, domain.MOUNTBY_UUID},
		{`DEVICE_NAMES=LABEL`, domain.MOUNTBY_LABEL},
	}
	for _, c := range cases {
		got, ok := LoadSysconfig(strings.NewReader(c.in))
		if !ok || got != c.want {
			t.Errorf("LoadSysconfig(%q) = (%v,%v), want (%v,true)", c.in, got, ok, c.want)
		}
	}
}

func TestLoadSysconfigAbsent(t *testing.T) {
	got, ok := LoadSysconfig(strings.NewReader("# nothing here\n"))
	if ok {
		t.Fatalf("expected no match, got %v", got)
	}
}
