package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCmd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--data-dir", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLI_SetGet(t *testing.T) {
	dir := t.TempDir()

	if _, err := runCmd(t, dir, "set", "a", "1"); err != nil {
		t.Fatalf("set error = %v", err)
	}
	out, err := runCmd(t, dir, "get", "a")
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "1" {
		t.Errorf("get output = %q, want %q", got, "1")
	}
}

func TestCLI_GetMissingKeyPrintsNotFoundAndExitsClean(t *testing.T) {
	dir := t.TempDir()

	out, err := runCmd(t, dir, "get", "missing")
	if err != nil {
		t.Fatalf("get on missing key returned error = %v, want nil (exit 0 per spec)", err)
	}
	if got := strings.TrimSpace(out); got != "Key not found" {
		t.Errorf("get output = %q, want %q", got, "Key not found")
	}
}

func TestCLI_RmMissingKeyPrintsNotFoundAndExitsNonZero(t *testing.T) {
	dir := t.TempDir()

	out, err := runCmd(t, dir, "rm", "missing")
	if err == nil {
		t.Fatal("rm on missing key returned nil error, want non-zero exit signal")
	}
	if got := strings.TrimSpace(out); got != "Key not found" {
		t.Errorf("rm output = %q, want %q", got, "Key not found")
	}
	silent, ok := err.(errSilentExit)
	if !ok || silent.code != 1 {
		t.Errorf("rm error = %#v, want errSilentExit{code: 1}", err)
	}
}

func TestCLI_RmPresentKeyRemovesIt(t *testing.T) {
	dir := t.TempDir()

	if _, err := runCmd(t, dir, "set", "a", "1"); err != nil {
		t.Fatalf("set error = %v", err)
	}
	if _, err := runCmd(t, dir, "rm", "a"); err != nil {
		t.Fatalf("rm error = %v", err)
	}
	out, err := runCmd(t, dir, "get", "a")
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "Key not found" {
		t.Errorf("get after rm output = %q, want %q", got, "Key not found")
	}
}

func TestCLI_Compact(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 5; i++ {
		if _, err := runCmd(t, dir, "set", "a", "v"); err != nil {
			t.Fatalf("set #%d error = %v", i, err)
		}
	}
	out, err := runCmd(t, dir, "compact")
	if err != nil {
		t.Fatalf("compact error = %v", err)
	}
	if !strings.Contains(out, "1 live keys") {
		t.Errorf("compact output = %q, want it to mention 1 live key", out)
	}
}
