// Package limits tracks system-wide resource caps, kept from biscuit's
// limits package and narrowed to the one cap this subsystem enforces:
// the live-process ceiling fork and process creation admission-check
// against.
package limits

import (
	"sync/atomic"
	"unsafe"
)

// Lhits counts admission failures against a Sysatomic_t limit.
var Lhits int32

// Sysatomic_t is a numeric limit that can be atomically taken and given
// back, the way biscuit tracks socket, pipe and memfs-page counts.
type Sysatomic_t int64

// Syslimit_t tracks system-wide resource limits. Only Sysprocs survives
// the port: the disk/network/futex caps biscuit also tracks here belong
// to subsystems spec §1 places out of scope.
type Syslimit_t struct {
	// Sysprocs is the ceiling on live processes, taken by
	// proc.CreateRunprogram and given back by Proc_t.Destroy.
	Sysprocs Sysatomic_t
}

// Syslimit holds the configured system-wide limits.
var Syslimit = MkSysLimit()

// MkSysLimit returns the default set of limits.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Sysprocs: 1e4,
	}
}

func (s *Sysatomic_t) _aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64(s._aptr(), int64(n))
}

// Taken tries to decrement the limit by the provided amount, returning
// true on success and leaving the limit unchanged on failure.
func (s *Sysatomic_t) Taken(n uint) bool {
	g := atomic.AddInt64(s._aptr(), -int64(n))
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s._aptr(), int64(n))
	return false
}

// Take decrements the limit by one and reports whether it succeeded.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

// Give increments the limit by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}
