// Package accnt accumulates per-process CPU time accounting, kept from
// biscuit's accnt package and wired into proc's exit path instead of
// biscuit's timer-interrupt sampling.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Accnt_t accumulates per-process accounting information. Both Userns
// and Sysns store runtime in nanoseconds. The embedded mutex lets Add
// take a consistent snapshot while merging a terminated child's usage
// into its parent, mirroring rusage's ru_utime/ru_stime across a process
// and its reaped children.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Now returns the current time in nanoseconds since the Unix epoch.
func (a *Accnt_t) Now() int64 {
	return time.Now().UnixNano()
}

// Finish finalizes accounting by adding the time elapsed since inttime
// to system time, called once by proc.Exit with the process's creation
// timestamp.
func (a *Accnt_t) Finish(inttime int64) {
	a.Systadd(a.Now() - inttime)
}

// Add merges another process's accounting record into this one, used
// when a parent reaps a terminated child.
func (a *Accnt_t) Add(n *Accnt_t) {
	n.Lock()
	userns, sysns := n.Userns, n.Sysns
	n.Unlock()

	a.Lock()
	a.Userns += userns
	a.Sysns += sysns
	a.Unlock()
}
