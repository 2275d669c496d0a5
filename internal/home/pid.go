package home

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrServerRunning means another live process holds the home's pid file.
var ErrServerRunning = errors.New("a rentshelf server is already running for this home")

// ServerPid returns the pid recorded in the home's pid file and whether that
// process is still alive. A missing file yields (0, false, nil).
func (d *Dir) ServerPid() (int, bool, error) {
	data, err := os.ReadFile(d.PidPath())
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false, fmt.Errorf("corrupt pid file %s: %q", d.PidPath(), data)
	}
	return pid, alive(pid), nil
}

// ClaimServer records this process as the home's server. A pid file left by
// a dead process, or an unreadable one, is taken over. The returned release
// removes the file only while it still names this process.
func (d *Dir) ClaimServer() (release func(), err error) {
	self := os.Getpid()
	if pid, ok, _ := d.ServerPid(); ok && pid != self {
		return nil, fmt.Errorf("%w (pid %d)", ErrServerRunning, pid)
	}
	if err := os.WriteFile(d.PidPath(), []byte(strconv.Itoa(self)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() {
		if pid, _, err := d.ServerPid(); err == nil && pid == self {
			_ = os.Remove(d.PidPath())
		}
	}, nil
}

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence. EPERM still means someone owns the pid.
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
