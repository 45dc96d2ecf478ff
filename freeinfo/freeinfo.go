// Package freeinfo implements component G: the cached per-device filesystem
// usage and resize headroom described in spec.md §3 ("Free-info cache
// entry") and §4.G. Grounded on the teacher's state/containerDB.go idiom of
// an RWMutex-guarded map serving as the single source of truth for derived,
// invalidate-on-mutation state.
package freeinfo

import (
	"sync"
)

// Entry is one cached probe result, keyed by canonical device path
// (spec.md §3).
type Entry struct {
	ResizeFreeK uint64
	DfFreeK     uint64
	UsedK       uint64
	LooksWindows bool
	LooksEfi     bool
	ResizeOK     bool
}

// Prober performs the actual transient-mount-and-statvfs probe described in
// spec.md §4.G; the engine supplies an implementation backed by
// domain.SystemRunner, tests supply a canned one.
type Prober func(device string) (Entry, error)

// Cache is the per-device probe cache (spec.md §3 "Free-info cache entry").
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	probe   Prober
}

func NewCache(probe Prober) *Cache {
	return &Cache{entries: make(map[string]Entry), probe: probe}
}

// GetFreeInfo returns the probe result for device (spec.md §4.G algorithm):
// if cached and useCache, the cached value is returned without probing;
// otherwise the prober runs and its result is cached.
func (c *Cache) GetFreeInfo(device string, useCache bool) (Entry, error) {
	if useCache {
		c.mu.RLock()
		e, ok := c.entries[device]
		c.mu.RUnlock()
		if ok {
			return e, nil
		}
	}

	e, err := c.probe(device)
	if err != nil {
		return Entry{}, err
	}

	c.mu.Lock()
	c.entries[device] = e
	c.mu.Unlock()

	return e, nil
}

// Invalidate drops the cached entry for device. The engine calls it from its
// create, remove, resize and ChangeFormatVolume paths; SetCrypt, SetCryptType,
// UpdatePartitionArea, ForgetResizeVolume and the MD size recomputation
// (ExtendMd, ShrinkMd, ChangeMdType) leave the cached entry in place.
func (c *Cache) Invalidate(device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, device)
}

// Peek returns the cached entry without probing, for tests and diagnostics.
func (c *Cache) Peek(device string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[device]
	return e, ok
}
