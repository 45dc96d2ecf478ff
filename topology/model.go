// Package topology holds component B of the storage engine: the typed
// heterogeneous tree of containers and volumes, the cross-cutting usedBy
// back-references, and the commit-action records the planner sorts and
// executes. Grounded on the teacher's state/containerDB.go registry (an
// RWMutex-guarded map indexed by id) generalized from a single flat id table
// to an ordered, kind-ranked container list plus a radix-indexed device
// lookup, since spec.md §4.B requires deterministic kind/ordinal iteration
// rather than arbitrary map order.
package topology

import (
	"sort"

	"github.com/suse/storageengine/domain"
	iradix "github.com/hashicorp/go-immutable-radix"
)

// Model holds the ordered list of containers that make up the current
// topology (spec.md §4.B). It is single-writer: mutations are only valid
// from mutation-API handlers or from discovery/commit (spec.md §4.B).
type Model struct {
	containers []*Container
	index      *iradix.Tree
}

// NewModel returns an empty topology model.
func NewModel() *Model {
	return &Model{index: iradix.New()}
}

// Containers returns the live (non-deleted) containers, plus the deleted ones
// when includeDeleted is true, in canonical order: ranked by kind per
// domain.KindRank, then by sort ordinal within a kind.
func (m *Model) Containers(includeDeleted bool) []*Container {
	out := make([]*Container, 0, len(m.containers))
	for _, c := range m.containers {
		if includeDeleted || !c.Deleted {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := domain.KindRank[out[i].Kind], domain.KindRank[out[j].Kind]
		if ri != rj {
			return ri < rj
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out
}

// ContainersOfKind filters Containers(false) down to one kind.
func (m *Model) ContainersOfKind(kind domain.ContainerKind) []*Container {
	var out []*Container
	for _, c := range m.Containers(false) {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Volumes iterates every volume of every live container, including volumes
// pending delete, in container order, optionally filtered by predicate.
func (m *Model) Volumes(pred func(*Volume) bool) []*Volume {
	var out []*Volume
	for _, c := range m.Containers(false) {
		for _, v := range c.Volumes {
			if pred == nil || pred(v) {
				out = append(out, v)
			}
		}
	}
	return out
}

// FindContainer returns the live container with the given (name, kind)
// identity, or nil.
func (m *Model) FindContainer(name string, kind domain.ContainerKind) *Container {
	for _, c := range m.containers {
		if !c.Deleted && c.Name == name && c.Kind == kind {
			return c
		}
	}
	return nil
}

// FindContainerByName returns the first live container with the given name,
// regardless of kind (used where a caller only has a bare name, e.g. an LVM
// VG name, and the kind is implied by the operation).
func (m *Model) FindContainerByName(name string) *Container {
	for _, c := range m.containers {
		if !c.Deleted && c.Name == name {
			return c
		}
	}
	return nil
}

// FindContainerByDevice resolves a device path to its owning container via
// the radix index. The index is rebuilt by AddContainer, RemoveContainer and
// Reindex, not on lookup.
func (m *Model) FindContainerByDevice(device string) *Container {
	if v, ok := m.index.Get([]byte(device)); ok {
		if c, ok := v.(*Container); ok {
			return c
		}
	}
	return nil
}

// FindVolumeByDevice resolves a device path (including alternate names) to
// its owning volume via the radix index.
func (m *Model) FindVolumeByDevice(device string) *Volume {
	if v, ok := m.index.Get([]byte(device)); ok {
		if vol, ok := v.(*Volume); ok {
			return vol
		}
	}
	return nil
}

// AddContainer inserts c into the model, enforcing the (name, kind)
// uniqueness invariant (spec.md §3). Returns false if a live container with
// the same identity already exists.
func (m *Model) AddContainer(c *Container) bool {
	if existing := m.FindContainer(c.Name, c.Kind); existing != nil {
		return false
	}
	m.containers = append(m.containers, c)
	m.reindex()
	return true
}

// RemoveContainer removes c from the model. When physical is true the
// container is spliced out of the slice outright (used by commit once a
// deleted container's DECREASE action has succeeded). When physical is false the container is only marked
// Deleted and stays in the model for the commit planner to see, unless it
// was also Created — per spec.md §3, a container created then deleted before
// commit is removed immediately with no on-disk effect.
func (m *Model) RemoveContainer(c *Container, physical bool) {
	if !physical {
		c.Deleted = true
		if c.Created {
			physical = true
		} else {
			return
		}
	}
	for i, cc := range m.containers {
		if cc == c {
			m.containers = append(m.containers[:i], m.containers[i+1:]...)
			m.reindex()
			return
		}
	}
}

// ReplaceContainerList swaps the entire live container list, as used by
// backup restore (spec.md §4.F: "restoring it replaces the live container
// list in its entirety").
func (m *Model) ReplaceContainerList(list []*Container) {
	m.containers = list
	m.reindex()
}

// Clone returns a deep copy of the model: every container (and its volumes)
// is fully owned by the copy, sharing no mutable state with the live tree
// (spec.md §4.F).
func (m *Model) Clone() *Model {
	cp := NewModel()
	list := make([]*Container, len(m.containers))
	for i, c := range m.containers {
		list[i] = c.clone()
	}
	cp.containers = list
	cp.reindex()
	return cp
}

// Reindex rebuilds the device lookup index. Exposed for callers (discovery)
// that populate a container's volumes directly via Container.AddVolume
// rather than through a Model method, and need the index current before the
// next device lookup.
func (m *Model) Reindex() { m.reindex() }

func (m *Model) reindex() {
	txn := iradix.New().Txn()
	for _, c := range m.containers {
		txn.Insert([]byte(c.Device), c)
		for _, alt := range c.AltNames {
			txn.Insert([]byte(alt), c)
		}
		for _, v := range c.Volumes {
			txn.Insert([]byte(v.Device), v)
			for _, alt := range v.AltNames {
				txn.Insert([]byte(alt), v)
			}
		}
	}
	m.index = txn.Commit()
}
