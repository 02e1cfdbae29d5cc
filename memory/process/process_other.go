//go:build !linux

package process

import (
	"fmt"
	"runtime"

	"v8-tagdecoder-go/v8/common"
)

// Process is unavailable outside Linux.
type Process struct{}

// Attach always fails on this platform.
func Attach(pid int) (*Process, error) {
	return nil, fmt.Errorf("attaching to pid %d: ptrace is not supported on %s", pid, runtime.GOOS)
}

func (p *Process) Pid() int { return 0 }

func (p *Process) ReadMemory(addr uint64, length uint32) ([]byte, error) {
	return nil, common.MemoryAccessError(pkgName, "peek", addr, fmt.Errorf("unsupported platform"))
}

func (p *Process) Close() error { return nil }
