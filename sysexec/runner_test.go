package sysexec

import (
	"errors"
	"testing"
)

func TestFakeRunnerRecordsCalls(t *testing.T) {
	r := NewFakeRunner()
	r.Script(ScriptedResult{Output: "ok"}, "mkfs.ext3", "/dev/sda1")

	out, err := r.Run("mkfs.ext3", "/dev/sda1")
	if err != nil || out != "ok" {
		t.Fatalf("got (%q, %v)", out, err)
	}

	calls := r.Calls()
	if len(calls) != 1 || calls[0][0] != "mkfs.ext3" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestFakeRunnerFailNext(t *testing.T) {
	r := NewFakeRunner()
	wantErr := errors.New("boom")
	r.FailNext(wantErr, "mount", "/dev/sda1", "/mnt")

	_, err := r.Run("mount", "/dev/sda1", "/mnt")
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestFakeRunnerDefaultIsSuccess(t *testing.T) {
	r := NewFakeRunner()
	out, err := r.Run("udevadm", "settle")
	if err != nil || out != "" {
		t.Fatalf("got (%q, %v), want (\"\", nil)", out, err)
	}
}
