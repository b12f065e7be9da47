package proc

import (
	"hal"
)

// Exit implements sys__exit: publishes the exit code, wakes any waiting
// parent, tears down the current address space, detaches the calling
// thread, and destroys the process record outright if it was never
// going to be waited on.
func (p *Proc_t) Exit(code int) {
	p.pLock.Lock()
	parent := p.parent
	p.pLock.Unlock()

	p.childrenLk.Lock()
	p.Terminated = true
	p.ExitCode = code
	if parent != nil {
		p.pCv.Signal()
	}
	p.childrenLk.Unlock()

	p.Accnt.Finish(p.createdAt)

	p.AS.Deactivate()
	p.pLock.Lock()
	as := p.AS
	p.AS = nil
	p.pLock.Unlock()
	as.Destroy()

	p.RemThread()

	p.reapTerminatedChildren()

	if parent == nil {
		p.Destroy()
	}

	hal.ThreadExit()
}

// reapTerminatedChildren destroys every child already observed to have
// terminated and orphans the rest. spec.md §9 leaves reaping ambiguous
// ("note and do not guess"); we resolve it as the parent's own exit path
// sweeping its children list, rather than waitpid reaping inline, so a
// parent that never calls waitpid on a child still releases it
// eventually instead of leaking it forever.
func (p *Proc_t) reapTerminatedChildren() {
	p.pLock.Lock()
	children := p.children
	p.children = nil
	p.pLock.Unlock()

	for _, c := range children {
		c.childrenLk.Lock()
		done := c.Terminated
		c.childrenLk.Unlock()

		if done {
			p.Accnt.Add(&c.Accnt)
			c.Destroy()
		} else {
			c.pLock.Lock()
			c.parent = nil
			c.pLock.Unlock()
		}
	}
}
