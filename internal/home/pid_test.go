package home

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"testing"
)

func testDir(t *testing.T) *Dir {
	t.Helper()
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestClaimServer(t *testing.T) {
	d := testDir(t)

	release, err := d.ClaimServer()
	if err != nil {
		t.Fatalf("ClaimServer() error = %v", err)
	}
	pid, ok, err := d.ServerPid()
	if err != nil || !ok || pid != os.Getpid() {
		t.Fatalf("ServerPid() = %d, %v, %v; want this process", pid, ok, err)
	}

	release()
	if pid, ok, err := d.ServerPid(); pid != 0 || ok || err != nil {
		t.Errorf("ServerPid() after release = %d, %v, %v", pid, ok, err)
	}
}

func TestClaimServer_HeldByLiveProcess(t *testing.T) {
	d := testDir(t)
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	if err := os.WriteFile(d.PidPath(), []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := d.ClaimServer(); !errors.Is(err, ErrServerRunning) {
		t.Errorf("ClaimServer() error = %v, want ErrServerRunning", err)
	}
}

func TestClaimServer_TakesOverStaleFile(t *testing.T) {
	d := testDir(t)
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run helper process: %v", err)
	}
	stale := strconv.Itoa(cmd.ProcessState.Pid())
	if err := os.WriteFile(d.PidPath(), []byte(stale), 0o644); err != nil {
		t.Fatal(err)
	}

	release, err := d.ClaimServer()
	if err != nil {
		t.Fatalf("ClaimServer() over stale pid error = %v", err)
	}
	defer release()
	if pid, _, _ := d.ServerPid(); pid != os.Getpid() {
		t.Errorf("pid file = %d, want %d", pid, os.Getpid())
	}
}

func TestServerPid_Corrupt(t *testing.T) {
	d := testDir(t)
	if err := os.WriteFile(d.PidPath(), []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := d.ServerPid(); err == nil {
		t.Error("expected error for corrupt pid file")
	}
	release, err := d.ClaimServer()
	if err != nil {
		t.Fatalf("ClaimServer() over corrupt file error = %v", err)
	}
	release()
}
