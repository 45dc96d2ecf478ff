// Package commit implements component E: the staged planner and executor
// that turns every container and volume's pending state into an ordered
// sequence of system calls. Grounded on the teacher's handlerDB dispatch loop
// (handler/handlerDB.go), which walks a registered handler list in a fixed
// priority order and stops at the first applicable one; here the fixed order
// is the four commit stages instead of a handler-type switch, and every
// applicable action within a stage runs rather than just the first.
package commit

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/topology"
)

// Plan is one stage's ordered, merged action list, restricted to one pass's
// container subset (spec.md §4.E step 2's merge-then-resort).
type Plan struct {
	Stage   domain.Stage
	Actions []topology.CommitAction
}

// Observer receives a post-action notification; commit calls it synchronously
// after each executed action, with err set when the action failed (spec.md
// §4.E "observability hook").
type Observer func(stage domain.Stage, action topology.CommitAction, err error)

// BuildPlan gathers every container's pending work for stage, restricted to
// containers for which include returns true, merges it into one ordered list
// per spec.md §4.E's sort rules, and returns it without executing anything.
func BuildPlan(m *topology.Model, stage domain.Stage, include func(*topology.Container) bool) Plan {
	containers := m.Containers(true)
	if include != nil {
		filtered := containers[:0:0]
		for _, c := range containers {
			if include(c) {
				filtered = append(filtered, c)
			}
		}
		containers = filtered
	}
	if stage == domain.DECREASE {
		containers = reversed(containers)
	}

	var containerActions, volumeActions []topology.CommitAction
	for _, c := range containers {
		ca, va := c.GetToCommit(stage)
		containerActions = append(containerActions, ca...)
		volumeActions = append(volumeActions, va...)
	}

	sortVolumeActions(stage, volumeActions)

	merged := append(containerActions, volumeActions...)
	// Kind rank ascends for building up; DECREASE runs it descending so a
	// consumer (e.g. an LVM VG) is torn down before its producer (a disk).
	sort.SliceStable(merged, func(i, j int) bool {
		ri, rj := domain.KindRank[merged[i].TargetKind], domain.KindRank[merged[j].TargetKind]
		if stage == domain.DECREASE {
			return ri > rj
		}
		return ri < rj
	})

	merged = applyIgnoreErrorSupersession(merged)

	return Plan{Stage: stage, Actions: merged}
}

func notLoop(c *topology.Container) bool  { return c.Kind != domain.LOOP }
func onlyLoop(c *topology.Container) bool { return c.Kind == domain.LOOP }

// reversed returns a copy of cs in reverse order (spec.md §4.E: container
// order is reversed for the DECREASE stage so the last-created container
// among a dependency chain is torn down first).
func reversed(cs []*topology.Container) []*topology.Container {
	out := make([]*topology.Container, len(cs))
	for i, c := range cs {
		out[len(cs)-1-i] = c
	}
	return out
}

// sortVolumeActions orders volumeActions in place per the per-stage rules of
// spec.md §4.E.
func sortVolumeActions(stage domain.Stage, actions []topology.CommitAction) {
	switch stage {
	case domain.DECREASE:
		// Mounted-first; two mounted volumes tie-break by mount path
		// descending rather than shrink-vs-delete (sort_vol_delete's rule for
		// the still-mounted case); otherwise shrink-before-delete, then
		// partition number descending, so a logical partition is torn down
		// before the extended partition that contains it.
		sort.SliceStable(actions, func(i, j int) bool {
			vi, vj := actions[i].Volume, actions[j].Volume
			mi, mj := vi.Mount != "", vj.Mount != ""
			if mi != mj {
				return mi // mounted volumes first
			}
			if mi && mj && vi.Mount != vj.Mount {
				return vi.Mount > vj.Mount
			}
			si, sj := !actions[i].Destructive, !actions[j].Destructive
			if si != sj {
				return si // shrinks (non-destructive) before deletes
			}
			return actions[i].Ordinal() > actions[j].Ordinal() // descending
		})
	case domain.INCREASE:
		// LVM striped LVs with a higher stripe count must be created first so
		// later, lower-striped LVs don't starve the VG's PE allocator;
		// ties are ordered by Ordinal ascending.
		sort.SliceStable(actions, func(i, j int) bool {
			si, sj := stripeCount(actions[i].Volume), stripeCount(actions[j].Volume)
			if si != sj {
				return si > sj
			}
			return actions[i].Ordinal() < actions[j].Ordinal()
		})
	case domain.MOUNT:
		// Swap last; among the rest, volumes that were already mounted before
		// this commit go first (so a bind or nested mount target exists), tied
		// volumes ordered by mount path ascending (parent before child).
		sort.SliceStable(actions, func(i, j int) bool {
			vi, vj := actions[i].Volume, actions[j].Volume
			swi, swj := vi.IsSwap(), vj.IsSwap()
			if swi != swj {
				return !swi
			}
			hi, hj := vi.HadOriginalMount(), vj.HadOriginalMount()
			if hi != hj {
				return hi
			}
			return vi.Mount < vj.Mount
		})
	case domain.FORMAT:
		// No ordering constraint among formats; keep discovery order.
	}
}

func stripeCount(v *topology.Volume) int {
	if v == nil {
		return 0
	}
	c := v.Container()
	if c == nil || c.Lvm == nil {
		return 0
	}
	// The volume itself doesn't carry a stripe count in this model (spec.md
	// §3 keeps striping a VG-level LVM attribute); a striped LV is
	// distinguished at creation time by the mutation API, which appends a
	// "striped" entry to AltNames as a light marker consumed only here.
	for _, a := range v.AltNames {
		if a == "striped" {
			return 1
		}
	}
	return 0
}

// diskDecreaseSuperseded implements spec.md §4.E step 4: a non-container
// DISK DECREASE failure (a single partition that couldn't be torn down) is
// tolerated when the same plan also carries a container-level DISK DECREASE
// action for that partition's disk — the whole disk is being destroyed, so
// the per-partition failure is moot. Checked against the whole plan rather
// than "later" actions specifically, since the container action for a disk
// is merged ahead of that disk's own volume actions (both carry the same
// TargetKind, and BuildPlan appends containerActions before volumeActions
// into the stable sort).
func diskDecreaseSuperseded(actions []topology.CommitAction, a topology.CommitAction) bool {
	if a.Stage != domain.DECREASE || a.IsContainerAction() || a.TargetKind != domain.DISK {
		return false
	}
	for _, other := range actions {
		if other.Stage == domain.DECREASE && other.IsContainerAction() &&
			other.TargetKind == domain.DISK && other.Container == a.Container {
			return true
		}
	}
	return false
}

// applyIgnoreErrorSupersession keeps the first DISK-DECREASE container
// action for a container and drops any later one in the same plan that
// targets the same container again — spec.md §4.E's "a superseded disk-decrease action
// is dropped rather than retried" rule, which arises when a container's
// GetToCommit is consulted more than once across merge passes. Unrelated to
// diskDecreaseSuperseded above, which tolerates a volume-level failure
// rather than dropping a duplicate container action.
func applyIgnoreErrorSupersession(actions []topology.CommitAction) []topology.CommitAction {
	seen := map[*topology.Container]bool{}
	out := make([]topology.CommitAction, 0, len(actions))
	for _, a := range actions {
		if a.Stage == domain.DECREASE && a.IsContainerAction() && a.TargetKind == domain.DISK {
			if seen[a.Container] {
				continue
			}
			seen[a.Container] = true
		}
		out = append(out, a)
	}
	return out
}

// Execute runs every action in plan against sys, in order, applying its
// in-memory state update through the owning container and notifying obs
// after each action (success or failure). ignoreError lets the caller treat
// a specific action as best-effort: its failure is logged and reported to
// obs but does not abort the plan (spec.md §4.E: some DECREASE-stage
// failures, e.g. a disk already gone, are tolerated).
func Execute(plan Plan, sys domain.SystemRunner, ignoreError func(topology.CommitAction) bool, obs Observer) error {
	for _, a := range plan.Actions {
		err := a.Container.CommitChanges(a.Stage, a.Volume, sys)
		if err != nil {
			logrus.Errorf("commit: stage %v action %q failed: %v", a.Stage, a.Description, err)
		} else {
			logrus.Debugf("commit: stage %v action %q applied", a.Stage, a.Description)
		}
		if obs != nil {
			obs(a.Stage, a, err)
		}
		if err != nil {
			tolerated := diskDecreaseSuperseded(plan.Actions, a) || (ignoreError != nil && ignoreError(a))
			if !tolerated {
				return domain.WrapError(codeForStage(a.Stage), err)
			}
		}

		// An LVM VG whose last LV was just physically removed may itself have
		// become eligible for removal within the same DECREASE pass; restart
		// enumeration at the container level so a subsequent VG-decrease
		// action (added by a later GetToCommit call outside this plan) isn't
		// needed for the common "remove LV, then remove the now-empty VG in
		// the same commit" flow (spec.md §4.E).
		if a.Stage == domain.DECREASE && !a.IsContainerAction() && a.Container.Kind == domain.LVM && a.Container.CanPhysicallyRemove() {
			if vgErr := a.Container.CommitChanges(domain.DECREASE, nil, sys); vgErr != nil {
				logrus.Errorf("commit: auto-removing empty VG %s failed: %v", a.Container.Name, vgErr)
			}
		}
	}
	return nil
}

func codeForStage(stage domain.Stage) domain.Code {
	switch stage {
	case domain.DECREASE:
		return domain.RESIZE_INVALID_CONTAINER
	case domain.INCREASE:
		return domain.RESIZE_INVALID_CONTAINER
	default:
		return domain.DEVICE_NODE_NOT_FOUND
	}
}

// Run executes the two outer passes spec.md §4.E describes — non-loop
// containers, then loop containers — each running all four stages in fixed
// order (DECREASE -> INCREASE -> FORMAT -> MOUNT), stopping at the first
// stage that returns an error. After any non-empty stage, logReadback is
// invoked as the observability hook (spec.md §4.E step 5); it may be nil.
// A deleted container whose container-level DECREASE action succeeded is
// removed from the model once that stage has run.
func Run(m *topology.Model, sys domain.SystemRunner, ignoreError func(topology.CommitAction) bool, obs Observer, logReadback func()) error {
	for _, include := range []func(*topology.Container) bool{notLoop, onlyLoop} {
		for _, stage := range domain.Stages {
			plan := BuildPlan(m, stage, include)
			if len(plan.Actions) == 0 {
				continue
			}
			logrus.Debugf("commit: stage %v has %d actions", stage, len(plan.Actions))
			var removed []*topology.Container
			record := func(st domain.Stage, a topology.CommitAction, err error) {
				if err == nil && st == domain.DECREASE && a.IsContainerAction() && a.Container.Deleted {
					removed = append(removed, a.Container)
				}
				if obs != nil {
					obs(st, a, err)
				}
			}
			if err := Execute(plan, sys, ignoreError, record); err != nil {
				return err
			}
			for _, c := range removed {
				m.RemoveContainer(c, true)
			}
			if logReadback != nil {
				logReadback()
			}
		}
	}
	return nil
}
