// Package backup implements component F: named deep snapshots of the whole
// container list, used so a caller can roll back an exploratory edit
// (spec.md §4.F). Grounded on the teacher's state/containerDB.go map-backed
// registry, generalized from "id -> *container" to "name -> *topology.Model".
package backup

import (
	"fmt"

	"github.com/suse/storageengine/topology"
)

// Store holds named snapshots of a live topology model.
type Store struct {
	live     *topology.Model
	snapshots map[string]*topology.Model
	order     []string // insertion order, for a deterministic List()
}

// NewStore returns a backup store bound to the engine's live model. Creating
// or restoring a snapshot always reads or replaces this model's container
// list (spec.md §4.F).
func NewStore(live *topology.Model) *Store {
	return &Store{live: live, snapshots: make(map[string]*topology.Model)}
}

// Create deep-copies the live model's container list under name, replacing
// any existing snapshot with that name (spec.md §4.F: "Creating a state
// whose name already exists replaces it").
func (s *Store) Create(name string) {
	if _, exists := s.snapshots[name]; !exists {
		s.order = append(s.order, name)
	}
	s.snapshots[name] = s.live.Clone()
}

// Remove deletes the named snapshot; an empty name removes every snapshot
// (spec.md §4.F).
func (s *Store) Remove(name string) {
	if name == "" {
		s.snapshots = make(map[string]*topology.Model)
		s.order = nil
		return
	}
	delete(s.snapshots, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Restore replaces the live model's container list with a fresh deep copy of
// the named snapshot (spec.md §4.F: "replaces the live container list in its
// entirety").
func (s *Store) Restore(name string) error {
	snap, ok := s.snapshots[name]
	if !ok {
		return fmt.Errorf("backup state %q not found", name)
	}
	s.live.ReplaceContainerList(snap.Clone().Containers(true))
	return nil
}

// Check reports whether a snapshot with the given name exists.
func (s *Store) Check(name string) bool {
	_, ok := s.snapshots[name]
	return ok
}

// List returns the snapshot names in creation order.
func (s *Store) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Equal compares two states by name; "" refers to the live model. In
// non-verbose mode it returns at the first mismatch; verbose mode continues
// comparing, printing every asymmetric diff to diffs, and still returns
// whether the two states were equal overall.
func (s *Store) Equal(lhs, rhs string, verbose bool) (bool, []string) {
	lhsList, err := s.resolve(lhs)
	if err != nil {
		return false, []string{err.Error()}
	}
	rhsList, err := s.resolve(rhs)
	if err != nil {
		return false, []string{err.Error()}
	}

	equal := true
	var diffs []string

	if len(lhsList) != len(rhsList) {
		equal = false
		diffs = append(diffs, fmt.Sprintf("container count differs: %d vs %d", len(lhsList), len(rhsList)))
		if !verbose {
			return false, diffs
		}
	}

	matched := make(map[int]bool)
	for _, lc := range lhsList {
		found := false
		for i, rc := range rhsList {
			if matched[i] {
				continue
			}
			if lc.Name == rc.Name && lc.Kind == rc.Kind {
				found = true
				matched[i] = true
				if len(lc.Volumes) != len(rc.Volumes) {
					equal = false
					diffs = append(diffs, fmt.Sprintf("%s: volume count differs: %d vs %d", lc.Name, len(lc.Volumes), len(rc.Volumes)))
					if !verbose {
						return false, diffs
					}
				}
				break
			}
		}
		if !found {
			equal = false
			diffs = append(diffs, fmt.Sprintf("container %s (%v) present on one side only", lc.Name, lc.Kind))
			if !verbose {
				return false, diffs
			}
		}
	}

	return equal, diffs
}

func (s *Store) resolve(name string) ([]*topology.Container, error) {
	if name == "" {
		return s.live.Containers(true), nil
	}
	snap, ok := s.snapshots[name]
	if !ok {
		return nil, fmt.Errorf("backup state %q not found", name)
	}
	return snap.Containers(true), nil
}
