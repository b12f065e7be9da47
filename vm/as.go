// Package vm implements the dumbvm-style address space: two loadable
// regions plus a fixed-size stack, backed by whole physical frames with
// no demand paging, swapping, copy-on-write or shared mappings (spec
// Non-goals). It is grounded on dumbvm.c's as_* family, adapted from
// biscuit's Vm_t for the coremap frame allocator in package mem.
package vm

import (
	"sync"

	"defs"
	"hal"
	"mem"
	"util"
)

// DumbvmStackPages is the fixed number of pages reserved for every
// process's stack (STACKPAGES).
const DumbvmStackPages = 12

// UserStackTop is the first invalid address above the user stack
// (USERSTACK); the stack occupies the DumbvmStackPages below it.
const UserStackTop uintptr = 0x80000000

// maxRegions is the number of loadable regions a dumbvm address space can
// hold: one text segment and one data segment.
const maxRegions = 2

// textRegion is the index of the region the fault handler treats as
// read-only once loading completes; dumbvm never makes this configurable
// — the first region defined is always text.
const textRegion = 0

// Region is one loadable segment (text or data). Unlike dumbvm.c, which
// tracks a region by a single contiguous physical base address, each
// region here owns one mem.Frame per page so that fork can copy frame by
// frame even when the allocator could not satisfy the whole region from
// a single coremap run (spec §4.2 rationale: this decouples fork from
// contiguous physical availability).
type Region struct {
	Vbase  uintptr
	Frames []mem.Frame
}

// AddressSpace is one process's virtual memory mapping (struct
// addrspace). It is created empty and populated by DefineRegion,
// PrepareLoad, CompleteLoad and DefineStack, in that order, mirroring
// runprogram's call sequence in proc_syscalls.c.
type AddressSpace struct {
	sync.Mutex

	regions     [maxRegions]*Region
	nregions    int
	stack       []mem.Frame
	loadelfDone bool
}

// Create allocates an empty address space (as_create).
func Create() *AddressSpace {
	return &AddressSpace{}
}

// DefineRegion records a new loadable region [vaddr, vaddr+sz) (as_define_
// region). Permission bits are accepted but ignored, matching dumbvm.c:
// the first call populates the text region, the second the data region;
// a third returns EUNIMP ("Support for more than two regions is not
// available"). The per-page frame array is allocated with every entry
// left invalid; PrepareLoad is what actually reserves physical frames.
func (as *AddressSpace) DefineRegion(vaddr, sz uintptr, readable, writable, executable bool) defs.Err_t {
	as.Lock()
	defer as.Unlock()

	if as.nregions >= maxRegions {
		return defs.EUNIMP
	}

	sz += vaddr - util.Rounddown(vaddr, uintptr(mem.PageSize))
	vaddr = util.Rounddown(vaddr, uintptr(mem.PageSize))
	sz = util.Roundup(sz, uintptr(mem.PageSize))
	npages := int(sz / mem.PageSize)

	as.regions[as.nregions] = &Region{
		Vbase:  vaddr,
		Frames: make([]mem.Frame, npages),
	}
	as.nregions++
	return 0
}

// PrepareLoad allocates and zeroes one physical frame for every page of
// every defined region and for every one of the DumbvmStackPages stack
// pages (as_prepare_load). On any allocation failure it returns ENOMEM;
// the caller is expected to Destroy the partially filled address space.
func (as *AddressSpace) PrepareLoad() defs.Err_t {
	as.Lock()
	defer as.Unlock()

	for i := 0; i < as.nregions; i++ {
		r := as.regions[i]
		for p := range r.Frames {
			f := mem.TheCoremap.GetPPages(1)
			if !f.Valid() {
				return defs.ENOMEM
			}
			hal.ZeroFrame(f.KVAddr())
			r.Frames[p] = f
		}
	}

	as.stack = make([]mem.Frame, DumbvmStackPages)
	for p := range as.stack {
		f := mem.TheCoremap.GetPPages(1)
		if !f.Valid() {
			return defs.ENOMEM
		}
		hal.ZeroFrame(f.KVAddr())
		as.stack[p] = f
	}
	return 0
}

// CompleteLoad marks the address space as fully loaded (as_complete_
// load). Its sole effect is making the text region logically read-only
// for TLB installs made from this point on; it does not itself flush the
// TLB, since stale entries are implicitly dropped on the next Activate —
// dumbvm.c's own as_complete_load is an empty stub and never sets such a
// flag, but spec.md §4.2 states this flip explicitly, so we follow the
// spec over the literal source (recorded in DESIGN.md).
func (as *AddressSpace) CompleteLoad() defs.Err_t {
	as.Lock()
	defer as.Unlock()
	as.loadelfDone = true
	return 0
}

// LoadElfDone reports whether CompleteLoad has run.
func (as *AddressSpace) LoadElfDone() bool {
	as.Lock()
	defer as.Unlock()
	return as.loadelfDone
}

// DefineStack asserts the stack has already been reserved by PrepareLoad
// and returns the initial user stack pointer, USERSTACK (as_define_
// stack). Unlike the loadable regions, the stack has no separate
// allocation step of its own.
func (as *AddressSpace) DefineStack() (stackptr uintptr, err defs.Err_t) {
	as.Lock()
	defer as.Unlock()

	if as.stack == nil {
		return 0, defs.EINVAL
	}
	return UserStackTop, 0
}

// Activate installs as as the running address space by flushing every
// TLB entry with interrupts disabled, matching dumbvm's stateless
// as_activate: nothing needs loading besides discarding stale
// translations, since every mapping is resolved lazily through Fault.
func (as *AddressSpace) Activate() {
	TheTLB.InvalidateAll()
}

// Deactivate is a no-operation, per spec.md §4.2 (dumbvm.c's real
// as_deactivate re-runs as_activate, but the abstraction this is ported
// from declares it a no-op).
func (as *AddressSpace) Deactivate() {}

// Copy duplicates as into a freshly allocated address space with
// identical region geometry and byte-identical contents (as_copy). It is
// used by fork to give the child process an independent address space.
func (as *AddressSpace) Copy() (*AddressSpace, defs.Err_t) {
	as.Lock()
	defer as.Unlock()

	newas := Create()
	for i := 0; i < as.nregions; i++ {
		r := as.regions[i]
		sz := uintptr(len(r.Frames)) * mem.PageSize
		if err := newas.DefineRegion(r.Vbase, sz, true, true, true); err != 0 {
			newas.Destroy()
			return nil, err
		}
	}
	if err := newas.PrepareLoad(); err != 0 {
		newas.Destroy()
		return nil, err
	}

	for i := 0; i < as.nregions; i++ {
		r := as.regions[i]
		nr := newas.regions[i]
		for p, f := range r.Frames {
			hal.CopyFrame(nr.Frames[p].KVAddr(), f.KVAddr())
		}
	}
	for p, f := range as.stack {
		hal.CopyFrame(newas.stack[p].KVAddr(), f.KVAddr())
	}
	newas.loadelfDone = as.loadelfDone

	return newas, 0
}

// Destroy releases every physical frame owned by as (as_destroy): the
// regions, then the stack.
func (as *AddressSpace) Destroy() {
	as.Lock()
	defer as.Unlock()

	for i := 0; i < as.nregions; i++ {
		for _, f := range as.regions[i].Frames {
			if f.Valid() {
				mem.TheCoremap.FreeFrames(f)
			}
		}
		as.regions[i] = nil
	}
	as.nregions = 0

	for _, f := range as.stack {
		if f.Valid() {
			mem.TheCoremap.FreeFrames(f)
		}
	}
	as.stack = nil
}
