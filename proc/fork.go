package proc

import (
	"defs"
	"hal"
)

// Fork duplicates the calling process p, implementing sys_fork. tf is
// the trapframe captured at the fork syscall trap; the child thread gets
// its own heap copy so it survives independent of the parent's kernel
// stack.
func (p *Proc_t) Fork(tf *hal.TrapFrame) (defs.Pid_t, defs.Err_t) {
	child, err := CreateRunprogram("child_process")
	if err != 0 {
		return 0, err
	}

	newas, err := p.AS.Copy()
	if err != 0 {
		child.Destroy()
		return 0, defs.ENOMEM
	}

	child.pLock.Lock()
	child.AS = newas
	child.pLock.Unlock()

	p.pLock.Lock()
	p.children = append(p.children, child)
	child.parent = p
	p.pLock.Unlock()

	tfCopy := new(hal.TrapFrame)
	*tfCopy = *tf

	entry := func(arg any) {
		hal.EnterForkedProcess(arg.(*hal.TrapFrame))
	}
	if err := hal.ThreadFork(child.Name, child, entry, tfCopy); err != 0 {
		newas.Destroy()
		child.Destroy()
		return 0, defs.ENOMEM
	}

	return child.Pid, 0
}
