package ident

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in, want string
		strip    bool
	}{
		{"sda", "/dev/sda", false},
		{"/dev/sda1", "/dev/sda1", false},
		{"cciss!c0d0", "/dev/cciss/c0d0", false},
		{"sda1", "/dev/sda", true},
	}
	for _, c := range cases {
		if got := Canonicalize(c.in, c.strip); got != c.want {
			t.Errorf("Canonicalize(%q,%v) = %q, want %q", c.in, c.strip, got, c.want)
		}
	}
}

func TestSplitDiskPartition(t *testing.T) {
	cases := []struct {
		in       string
		wantDisk string
		wantNum  int
	}{
		{"/dev/sda1", "/dev/sda", 1},
		{"/dev/sda12", "/dev/sda", 12},
		{"/dev/mapper/isw_raid_p1", "/dev/mapper/isw_raid_p", 1},
		{"/dev/somedisk", "/dev/somedisk", 0},
	}
	for _, c := range cases {
		disk, num := SplitDiskPartition(c.in)
		if disk != c.wantDisk || num != c.wantNum {
			t.Errorf("SplitDiskPartition(%q) = (%q,%d), want (%q,%d)", c.in, disk, num, c.wantDisk, c.wantNum)
		}
	}
}

func TestNeedsPSeparator(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"/dev/sda", false},
		{"/dev/md0", true},
		{"/dev/loop0", true},
		{"/dev/nvme0n1", true},
		{"/dev/dm-3", true},
	}
	for _, c := range cases {
		if got := NeedsPSeparator(c.in); got != c.want {
			t.Errorf("NeedsPSeparator(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestResolveFallsBackToLookup(t *testing.T) {
	lookup := func(alias string) (string, bool) {
		if alias == "UUID=abc-123" {
			return "/dev/sda1", true
		}
		return "", false
	}
	if got := Resolve("UUID=abc-123", lookup); got != "/dev/sda1" {
		t.Errorf("Resolve(UUID) = %q, want /dev/sda1", got)
	}
	if got := Resolve("sdb", nil); got != "/dev/sdb" {
		t.Errorf("Resolve(sdb) = %q, want /dev/sdb", got)
	}
}
