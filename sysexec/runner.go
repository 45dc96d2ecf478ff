// Package sysexec implements the external-command capability spec.md §6
// describes as out of the core's scope: the actual invocation of
// partitioners, mkfs/tune tools, mount/umount, blkid, losetup, dd, mdadm, LVM
// tools, dmsetup and udevadm. Grounded on the teacher's sysio package (a
// production/test-double pair selected by a factory, domain/ionode.go's
// IOServiceType), generalized from file I/O to process invocation.
package sysexec

import (
	"bytes"
	"fmt"
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"
)

// RealRunner invokes external commands for real via os/exec. It is the
// production implementation of domain.SystemRunner.
type RealRunner struct{}

func NewRealRunner() *RealRunner { return &RealRunner{} }

func (r *RealRunner) Run(name string, args ...string) (string, error) {
	logrus.Debugf("sysexec: running %s %v", name, args)
	cmd := exec.Command(name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("%s %v: %w: %s", name, args, err, out.String())
	}
	return out.String(), nil
}

// ScriptedResult is one canned response a FakeRunner returns for a given
// command invocation.
type ScriptedResult struct {
	Output string
	Err    error
}

// FakeRunner is a scripted stand-in for domain.SystemRunner used by
// storageenginectl's --testmode and by commit/engine tests. It
// records every invocation it receives so tests can assert on call order,
// the same role the teacher's in-memory ioNode plays for file I/O tests
// (sysio/ionodeFile_test.go).
type FakeRunner struct {
	mu      sync.Mutex
	scripts map[string]ScriptedResult
	calls   [][]string
	// Default, used when no script matches: nil error, empty output.
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{scripts: make(map[string]ScriptedResult)}
}

// Script registers the result to return the next time name is invoked with
// exactly these args (joined with a single space as the lookup key).
func (f *FakeRunner) Script(result ScriptedResult, name string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[key(name, args)] = result
}

// FailNext arranges for the given command to return err.
func (f *FakeRunner) FailNext(err error, name string, args ...string) {
	f.Script(ScriptedResult{Err: err}, name, args...)
}

func (f *FakeRunner) Run(name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	k := key(name, args)
	if r, ok := f.scripts[k]; ok {
		delete(f.scripts, k) // a script answers one invocation only
		return r.Output, r.Err
	}
	return "", nil
}

// Calls returns every invocation seen so far, in order.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func key(name string, args []string) string {
	s := name
	for _, a := range args {
		s += " " + a
	}
	return s
}
