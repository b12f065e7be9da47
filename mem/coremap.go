package mem

import (
	"fmt"
	"sync"

	"hal"
)

// Coremap is the process-wide table of physical frame ownership (C1). It
// is created once at boot from the RAM extents hal.RamGetSize reports
// and never resized afterwards. Each slot holds either 0 (free) or the
// 1-indexed position of that frame within the allocation it belongs to,
// exactly the encoding described in spec §3: the run starting at slot i
// has length equal to the longest prefix i, i+1, ... carrying 1, 2, 3...
type Coremap struct {
	sync.Mutex

	slots      []uint32
	frameStart Frame
	n          int
	ready      bool
}

// TheCoremap is the global coremap instance, mirroring biscuit's
// single package-level Physmem.
var TheCoremap = &Coremap{}

// Bootstrap queries hal.RamGetSize once and carves out the managed frame
// range, following dumbvm.c's vm_bootstrap: the coremap reserves
// floor((hi-lo)/(PAGE_SIZE+4)) candidate slots worth of bookkeeping
// space starting at lo, then rounds the first managed frame up to a
// page boundary.
func (c *Coremap) Bootstrap() {
	lo, hi := hal.RamGetSize()

	candidateSlots := int((hi - lo) / (PageSize + 4))
	tableBytes := uintptr(candidateSlots) * 4
	frameStart := roundup(lo+tableBytes, PageSize)
	nFrames := int((hi - frameStart) / PageSize)

	c.Lock()
	c.slots = make([]uint32, nFrames)
	c.frameStart = Frame(frameStart >> PageShift)
	c.n = nFrames
	c.ready = true
	c.Unlock()

	fmt.Printf("[coremap] bootstrap: %d frames managed, base 0x%x\n", nFrames, frameStart)
}

func roundup(v, b uintptr) uintptr {
	return (v + b - 1) &^ (b - 1)
}

// GetPPages implements get_ppages(n): before Bootstrap has run it falls
// back to the serialized early allocator; afterwards it performs a
// first-fit scan of the coremap under the single coremap lock. On
// finding an occupied slot at offset i within the candidate window, the
// scan restarts the search at the slot immediately after it — the exact
// advance dumbvm.c performs (spec §9 flags this as worth flagging during
// a port; the advance only ever skips ahead to slot s+i+1, which cannot
// skip a valid fit, since any run starting at s+1..s+i would have to
// extend through the occupied slot at s+i).
func (c *Coremap) GetPPages(n int) Frame {
	c.Lock()
	ready := c.ready
	c.Unlock()

	if !ready {
		addr := bootAlloc.allocEarly(n)
		if addr == 0 {
			return InvalidFrame
		}
		return Frame(addr >> PageShift)
	}

	c.Lock()
	defer c.Unlock()

	for s := 0; s+n <= c.n; {
		fit := true
		for i := 0; i < n; i++ {
			if c.slots[s+i] != 0 {
				s += i + 1
				fit = false
				break
			}
		}
		if fit {
			for j := 0; j < n; j++ {
				c.slots[s+j] = uint32(j + 1)
			}
			return c.frameStart + Frame(s)
		}
	}
	return InvalidFrame
}

// FreeFrames implements free_kpages(first): it clears the run beginning
// at first for as long as the slots carry the sequence 1, 2, 3, ...,
// stopping at the first slot that does not match the next expected
// index. Passing the address of a frame that is not the head of an
// allocation silently frees nothing beyond the mismatch point — spec §9
// notes this is the source's behavior and a correct reimplementation
// should either require a length or detect the mismatch; we preserve the
// source's behavior here and document the caller's obligation instead.
func (c *Coremap) FreeFrames(first Frame) {
	c.Lock()
	defer c.Unlock()

	s := int(first - c.frameStart)
	if s < 0 || s >= c.n {
		return
	}
	expect := uint32(1)
	for i := s; i < c.n; i++ {
		if c.slots[i] != expect {
			break
		}
		c.slots[i] = 0
		expect++
	}
}

// AllocKPages is the kernel-page wrapper alloc_kpages(n): it returns the
// kernel-virtual address of a freshly allocated run, or 0 on failure.
func AllocKPages(n int) uintptr {
	f := TheCoremap.GetPPages(n)
	if !f.Valid() {
		return 0
	}
	return f.KVAddr()
}

// FreeKPages is the kernel-page wrapper free_kpages(kvaddr).
func FreeKPages(kvaddr uintptr) {
	if kvaddr == 0 {
		return
	}
	TheCoremap.FreeFrames(FrameFromKVAddr(kvaddr))
}
