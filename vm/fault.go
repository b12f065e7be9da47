package vm

import (
	"fmt"

	"caller"
	"defs"
	"mem"
	"util"
)

// FaultKind identifies the access that triggered a TLB miss (VM_FAULT_*).
type FaultKind int

const (
	FaultRead FaultKind = iota
	FaultWrite
	FaultReadOnly
)

// shootdownDedup dedupes repeated kernel logging for the (always fatal)
// shootdown panic, the way caller.Distinct_caller_t dedupes repeated
// callers in the teacher.
var shootdownDedup = &caller.Distinct_caller_t{Enabled: true}

// TLBShootdown always panics: this subsystem targets a single CPU, so a
// cross-processor TLB invalidation request indicates a kernel bug rather
// than anything vm_fault should try to service (spec §5, §9).
func TLBShootdown() {
	caller.Callerdump(2)
	if distinct, trace := shootdownDedup.Distinct(); distinct {
		fmt.Printf("dumbvm: unexpected tlb shootdown request\n%s", trace)
	}
	panic("dumbvm tried to do tlb shootdown?!")
}

// Fault implements vm_fault (C3): it resolves a user fault address
// through as and installs a TLB entry for it. as is the faulting
// process's current address space; a nil as models "no current process
// or address space", which the (out-of-scope) trap dispatcher is
// expected to turn into a panic rather than retry.
func Fault(kind FaultKind, faultaddress uintptr, as *AddressSpace) defs.Err_t {
	switch kind {
	case FaultReadOnly:
		return defs.EPERM
	case FaultRead, FaultWrite:
		// fall through to resolution below
	default:
		return defs.EINVAL
	}

	faultaddress = util.Rounddown(faultaddress, uintptr(mem.PageSize))

	if as == nil {
		return defs.EFAULT
	}

	as.Lock()
	defer as.Unlock()

	var paddr uintptr
	readOnly := false
	resolved := false

	for i := 0; i < as.nregions; i++ {
		r := as.regions[i]
		top := r.Vbase + uintptr(len(r.Frames))*mem.PageSize
		if faultaddress < r.Vbase || faultaddress >= top {
			continue
		}
		idx := (faultaddress - r.Vbase) / mem.PageSize
		f := r.Frames[idx]
		if !f.Valid() {
			return defs.EFAULT
		}
		paddr = f.Address()
		readOnly = i == textRegion
		resolved = true
		break
	}

	if !resolved {
		stackBase := UserStackTop - DumbvmStackPages*mem.PageSize
		if faultaddress >= stackBase && faultaddress < UserStackTop {
			idx := (faultaddress - stackBase) / mem.PageSize
			f := as.stack[idx]
			if !f.Valid() {
				return defs.EFAULT
			}
			paddr = f.Address()
			resolved = true
		}
	}

	if !resolved {
		return defs.EFAULT
	}

	elo := uint32(paddr) | FlagValid | FlagDirty
	if readOnly && as.loadelfDone {
		elo &^= FlagDirty
	}
	TheTLB.Install(uint32(faultaddress), elo)
	return 0
}
