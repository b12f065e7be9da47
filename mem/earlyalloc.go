package mem

import (
	"sync"

	"hal"
)

// earlyAllocator serializes calls into hal.RamStealMem with its own
// mutex, distinct from the coremap's, exactly as dumbvm.c wraps
// ram_stealmem in stealmem_lock separately from coremap_lock. It is used
// for every frame request made before the coremap has finished
// bootstrapping.
type earlyAllocator struct {
	sync.Mutex
}

var bootAlloc earlyAllocator

// allocEarly reserves npages contiguous frames via hal.RamStealMem and
// returns the physical address of the first one, or 0 on failure.
func (e *earlyAllocator) allocEarly(npages int) uintptr {
	e.Lock()
	defer e.Unlock()
	return hal.RamStealMem(uint(npages))
}
