package process

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"v8-tagdecoder-go/config"
	"v8-tagdecoder-go/v8/common"
)

// Process is a ptrace-attached target. Every ptrace request must come from
// the thread that attached, so all of them are funnelled through one locked
// goroutine.
type Process struct {
	pid  int
	reqs chan func()
	done chan struct{}
}

// Attach stops pid with PTRACE_ATTACH and waits until it is stopped.
func Attach(pid int) (*Process, error) {
	p := &Process{pid: pid, reqs: make(chan func()), done: make(chan struct{})}
	errc := make(chan error, 1)
	go p.loop(errc)
	if err := <-errc; err != nil {
		return nil, err
	}
	config.Log.Debugf("attached to pid %d", pid)
	return p, nil
}

func (p *Process) loop(errc chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	if err := unix.PtraceAttach(p.pid); err != nil {
		errc <- fmt.Errorf("ptrace attach %d: %w", p.pid, err)
		return
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(p.pid, &ws, 0, nil); err != nil {
		_ = unix.PtraceDetach(p.pid)
		errc <- fmt.Errorf("wait for %d: %w", p.pid, err)
		return
	}
	if !ws.Stopped() {
		_ = unix.PtraceDetach(p.pid)
		errc <- fmt.Errorf("process %d did not stop after attach (status 0x%x)", p.pid, uint32(ws))
		return
	}
	errc <- nil
	for req := range p.reqs {
		req()
	}
	if err := unix.PtraceDetach(p.pid); err != nil {
		config.Log.Warningf("detach from %d: %v", p.pid, err)
	}
}

// Pid returns the traced process id.
func (p *Process) Pid() int { return p.pid }

// ReadMemory implements common.MemoryReader with PTRACE_PEEKDATA.
func (p *Process) ReadMemory(addr uint64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	var (
		n   int
		err error
	)
	p.do(func() { n, err = unix.PtracePeekData(p.pid, uintptr(addr), buf) })
	if err != nil {
		return nil, common.MemoryAccessError(pkgName, "peek", addr, err)
	}
	if n < int(length) {
		return nil, common.MemoryAccessError(pkgName, "peek", addr,
			fmt.Errorf("short read: got %d of %d bytes", n, length))
	}
	config.Log.Debugf("pid %d: read %d bytes at %s", p.pid, length, common.Hex(addr))
	return buf, nil
}

func (p *Process) do(f func()) {
	finished := make(chan struct{})
	p.reqs <- func() {
		f()
		close(finished)
	}
	<-finished
}

// Close detaches from the process and lets it run again.
func (p *Process) Close() error {
	close(p.reqs)
	<-p.done
	config.Log.Debugf("detached from pid %d", p.pid)
	return nil
}
