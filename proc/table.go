package proc

import (
	"sync"

	"defs"
	"hashtable"
)

// Table is the PID-to-process registry (C4), backed by a
// hashtable.Hashtable_t instead of a linear scan over every live
// process.
type Table struct {
	mu      sync.Mutex
	nextPid defs.Pid_t
	byPid   *hashtable.Hashtable_t
}

func newTable() *Table {
	return &Table{nextPid: 1, byPid: hashtable.MkHash(64)}
}

// TheTable is the single process-wide process table.
var TheTable = newTable()

func (t *Table) nextPidLocked() defs.Pid_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	pid := t.nextPid
	t.nextPid++
	return pid
}

func (t *Table) insert(p *Proc_t) {
	t.byPid.Set(p.Pid, p)
}

func (t *Table) remove(pid defs.Pid_t) {
	t.byPid.Del(pid)
}

// Lookup returns the process registered under pid, if any.
func (t *Table) Lookup(pid defs.Pid_t) (*Proc_t, bool) {
	v, ok := t.byPid.Get(pid)
	if !ok {
		return nil, false
	}
	return v.(*Proc_t), true
}

// Size returns the number of live processes, mostly useful for tests and
// diagnostics.
func (t *Table) Size() int {
	return t.byPid.Size()
}
