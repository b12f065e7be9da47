package proc

import (
	"defs"
	"hal"
)

// Waitpid implements sys_waitpid: blocks until the named child
// terminates, then copies its encoded wait status out to userspace.
// Reaping the child record is left to the parent's own exit path (see
// reapTerminatedChildren); this call only reads the exit code.
func (p *Proc_t) Waitpid(pid defs.Pid_t, statusUVA uintptr, options int) (defs.Pid_t, defs.Err_t) {
	if options != 0 {
		return 0, defs.EINVAL
	}
	if pid < 0 {
		return 0, defs.ESRCH
	}

	p.pLock.Lock()
	var child *Proc_t
	for _, c := range p.children {
		if c.Pid == pid {
			child = c
			break
		}
	}
	p.pLock.Unlock()

	if child == nil {
		return 0, defs.ECHILD
	}

	child.childrenLk.Lock()
	for !child.Terminated {
		child.pCv.Wait()
	}
	status := defs.MkWaitExit(child.ExitCode)
	child.childrenLk.Unlock()

	if err := hal.CopyOutWord(uintptr(status), statusUVA); err != 0 {
		return 0, err
	}
	return pid, 0
}
