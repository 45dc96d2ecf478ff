// Package engine implements component D: the public mutation-API façade.
// Grounded on the teacher's cmd/sysbox-fs/main.go construction sequence
// (config collection -> service-locator wiring -> process-wide readiness)
// and on domain/handler.go's single entry-point-per-concern shape, adapted
// from per-/proc-file FUSE handlers to per-concern storage mutations.
package engine

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"

	"github.com/suse/storageengine/backup"
	"github.com/suse/storageengine/commit"
	"github.com/suse/storageengine/config"
	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/freeinfo"
	"github.com/suse/storageengine/sysexec"
	"github.com/suse/storageengine/topology"
)

// Options configures a new Engine (spec.md §4.C "testmode / install-system /
// autodetect").
type Options struct {
	Mode     domain.Mode
	ReadOnly bool
	LockPath string // when empty: <TmpDir, else YAST2_STORAGE_TDIR, else /run>/storageengine.lock
	TmpDir   string
}

// Engine is the public façade over a live topology.Model: every mutation
// spec.md §4.D describes is a method on this type, and Commit drives
// component E against the model it owns.
type Engine struct {
	model   *topology.Model
	sys     domain.SystemRunner
	backups *backup.Store
	free    *freeinfo.Cache

	lock *sysexec.ProcessLock

	env      config.Environment
	mode     domain.Mode
	readOnly bool
	tmpDir   string

	cacheChanges bool
}

// New constructs an engine, taking the process-wide lock before anything else
// touches the model (spec.md §5: "construction fails ... when that invariant
// would be violated"). model is normally built by discovery.Run and handed
// in already populated; prober backs the free-info cache.
func New(model *topology.Model, sys domain.SystemRunner, opts Options, prober freeinfo.Prober) (*Engine, error) {
	env := config.LoadEnvironment()

	lockPath := opts.LockPath
	if lockPath == "" {
		dir := opts.TmpDir
		if dir == "" {
			dir = env.TestDir
		}
		if dir == "" {
			dir = "/run"
		}
		lockPath = filepath.Join(dir, "storageengine.lock")
	}

	lock, heldBy, err := sysexec.Acquire(lockPath, !opts.ReadOnly)
	if err != nil {
		// A lock conflict is reported as a caller-facing RPC-style status
		// (state/containerDB.go's grpcStatus.Errorf/grpcCodes pairing for
		// AlreadyExists/NotFound), rather than a domain.StorageError, since the
		// competing PID is exactly the kind of detail a remote caller needs
		// surfaced through a stable status code.
		return nil, grpcStatus.Errorf(grpcCodes.Unavailable, "storage engine lock %s held by pid %d: %v", lockPath, heldBy, err)
	}

	e := &Engine{
		model:    model,
		sys:      sys,
		backups:  backup.NewStore(model),
		free:     freeinfo.NewCache(prober),
		lock:     lock,
		env:      env,
		mode:     opts.Mode,
		readOnly: opts.ReadOnly,
		tmpDir:   opts.TmpDir,
	}
	logrus.Debugf("engine: started, mode=%v readonly=%v", opts.Mode, opts.ReadOnly)
	return e, nil
}

// Close releases the process-wide lock.
func (e *Engine) Close() error { return e.lock.Release() }

// Model exposes the live topology for read-only inspection by callers (e.g.
// a CLI listing command); mutating it outside engine methods voids spec.md
// §4.B's single-writer invariant.
func (e *Engine) Model() *topology.Model { return e.model }

// Backups returns the engine's backup store (component F).
func (e *Engine) Backups() *backup.Store { return e.backups }

// SetCacheChanges toggles whether mutations auto-commit (spec.md §4.E
// "Cache discipline"). When disabled (the default), every mutation commits
// immediately via checkCache.
func (e *Engine) SetCacheChanges(enabled bool) { e.cacheChanges = enabled }

// checkCache auto-commits unless cache-changes mode is enabled (spec.md
// §4.D step 7).
func (e *Engine) checkCache() error {
	if e.cacheChanges {
		return nil
	}
	return e.Commit()
}

// Commit drives the staged planner/executor (component E) against the live
// model.
func (e *Engine) Commit() error {
	return commit.Run(e.model, e.sys, e.ignoreError, e.logCommitAction, e.logReadback)
}

// ignoreError covers the REMOVE_USING_UNKNOWN_TYPE class no-ops spec.md §4.D
// names: a DMRAID/DMMULTIPATH container DECREASE is never backed by a real
// removal command, so its result is always tolerated. The other DECREASE
// tolerance spec.md §4.E step 4 names — a non-container DISK DECREASE
// failure superseded by a container DISK DECREASE elsewhere in the same
// plan — needs visibility across the whole plan that this per-action
// predicate doesn't have; commit.Execute checks that case itself before
// ever calling ignoreError.
func (e *Engine) ignoreError(a topology.CommitAction) bool {
	return a.Stage == domain.DECREASE && (a.TargetKind == domain.DMRAID || a.TargetKind == domain.DMMULTIPATH) && a.IsContainerAction()
}

func (e *Engine) logCommitAction(stage domain.Stage, action topology.CommitAction, err error) {
	if err != nil {
		logrus.Errorf("engine: commit %v %q failed: %v", stage, action.Description, err)
		return
	}
	logrus.Debugf("engine: commit %v %q applied", stage, action.Description)
}

// logReadback re-logs device-mapper/partition/mdstat/mount state after a
// non-empty stage (spec.md §4.E step 5's observability hook). The engine has
// no filesystem access of its own (spec.md §1 Non-goals), so this only
// writes a debug log line; it does not touch the free-info cache.
func (e *Engine) logReadback() {
	logrus.Debugf("engine: post-stage readback (dm/partitions/mdstat/mounts)")
}

// assertWritable returns CHANGE_READONLY if the engine was constructed
// read-only (spec.md §4.D step 2). Only methods that call it refuse to run
// read-only. These do not call it: the volume.go setters other than
// ChangeFormatVolume and RemoveVolume (label, mkfs/tunefs options,
// description, mount point, mount-by, fstab options, encryption,
// ignore-fstab, ResizeVolume, ResizeVolumeNoFs), ForgetResizeVolume,
// ChangePartitionId, ForgetChangePartitionId, ChangeLvStripeCount,
// ChangeLvStripeSize, ChangeMdType, ChangeMdChunk and ChangeMdParity.
func (e *Engine) assertWritable() error {
	if e.readOnly {
		return domain.NewError(domain.CHANGE_READONLY, "engine is read-only")
	}
	return nil
}

// GetFreeInfo returns the free-space/resize probe for device (component G).
func (e *Engine) GetFreeInfo(device string, useCache bool) (freeinfo.Entry, error) {
	return e.free.GetFreeInfo(device, useCache)
}
