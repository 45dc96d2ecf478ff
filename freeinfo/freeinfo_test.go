package freeinfo

import "testing"

func TestGetFreeInfoCachesAndInvalidates(t *testing.T) {
	calls := 0
	c := NewCache(func(device string) (Entry, error) {
		calls++
		return Entry{DfFreeK: uint64(calls) * 100}, nil
	})

	e1, err := c.GetFreeInfo("/dev/sda1", true)
	if err != nil {
		t.Fatal(err)
	}
	if e1.DfFreeK != 100 {
		t.Fatalf("got %d, want 100", e1.DfFreeK)
	}

	e2, _ := c.GetFreeInfo("/dev/sda1", true)
	if e2.DfFreeK != 100 || calls != 1 {
		t.Fatalf("expected cache hit, got calls=%d, %v", calls, e2)
	}

	c.Invalidate("/dev/sda1")
	e3, _ := c.GetFreeInfo("/dev/sda1", true)
	if e3.DfFreeK != 200 || calls != 2 {
		t.Fatalf("expected reprobe after invalidate, got calls=%d, %v", calls, e3)
	}
}

func TestGetFreeInfoBypassesCacheWhenAsked(t *testing.T) {
	calls := 0
	c := NewCache(func(device string) (Entry, error) {
		calls++
		return Entry{DfFreeK: uint64(calls)}, nil
	})

	c.GetFreeInfo("/dev/sda1", true)
	c.GetFreeInfo("/dev/sda1", false)

	if calls != 2 {
		t.Fatalf("expected 2 probes, got %d", calls)
	}
}

func TestParseNtfsresizeFree(t *testing.T) {
	out := "Checking filesystems...\nvolume might resize at 1048576 bytes\n"
	free, ok := parseNtfsresizeFree(out)
	if !ok || free != 1024 {
		t.Fatalf("got (%d,%v), want (1024,true)", free, ok)
	}
}

func TestParseNtfsresizeFreeAbsent(t *testing.T) {
	if _, ok := parseNtfsresizeFree("no hint here"); ok {
		t.Fatal("expected no match")
	}
}
