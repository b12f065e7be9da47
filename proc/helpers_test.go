package proc

import (
	"encoding/binary"
	"sync"
	"testing"

	"defs"
	"hal"
	"mem"
	"vm"
)

// fakeUserMem is a byte-addressable stand-in for user memory, letting
// tests exercise the hal.CopyIn/CopyOut family without a real MMU.
type fakeUserMem struct {
	mu    sync.Mutex
	bytes map[uintptr]byte
}

func newFakeUserMem() *fakeUserMem {
	return &fakeUserMem{bytes: make(map[uintptr]byte)}
}

func (u *fakeUserMem) read(addr uintptr, n int) []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = u.bytes[addr+uintptr(i)]
	}
	return out
}

func (u *fakeUserMem) write(addr uintptr, data []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, b := range data {
		u.bytes[addr+uintptr(i)] = b
	}
}

func (u *fakeUserMem) writeString(addr uintptr, s string) {
	u.write(addr, []byte(s))
}

// fakePhysMem backs every physical frame the coremap hands out, keyed by
// its kernel-virtual alias, standing in for the direct-mapped segment.
type fakePhysMem struct {
	mu    sync.Mutex
	pages map[uintptr][]byte
}

func newFakePhysMem() *fakePhysMem {
	return &fakePhysMem{pages: make(map[uintptr][]byte)}
}

func (f *fakePhysMem) page(kv uintptr) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[kv]
	if !ok {
		p = make([]byte, mem.PageSize)
		f.pages[kv] = p
	}
	return p
}

type fakeFile struct{ closed bool }

func (f *fakeFile) Close() defs.Err_t {
	f.closed = true
	return 0
}

// installFakeHAL wires every hal function variable to an in-memory
// simulation and returns the shared user-memory and physical-memory
// fakes so tests can seed/inspect them. It also bootstraps a fresh
// mem.Coremap large enough for a handful of address spaces.
func installFakeHAL(t *testing.T, nframes int) (*fakeUserMem, *fakePhysMem) {
	t.Helper()

	um := newFakeUserMem()
	pm := newFakePhysMem()

	oldCoremap := mem.TheCoremap
	oldRamGetSize := hal.RamGetSize
	oldRamStealMem := hal.RamStealMem
	oldCopyIn := hal.CopyIn
	oldCopyOut := hal.CopyOut
	oldCopyInString := hal.CopyInString
	oldCopyInWord := hal.CopyInWord
	oldCopyOutWord := hal.CopyOutWord
	oldVFSOpen := hal.VFSOpen
	oldLoadELF := hal.LoadELF
	oldThreadFork := hal.ThreadFork
	oldThreadExit := hal.ThreadExit
	oldEnterForked := hal.EnterForkedProcess
	oldEnterNew := hal.EnterNewProcess
	oldZeroFrame := hal.ZeroFrame
	oldCopyFrame := hal.CopyFrame

	t.Cleanup(func() {
		mem.TheCoremap = oldCoremap
		hal.RamGetSize = oldRamGetSize
		hal.RamStealMem = oldRamStealMem
		hal.CopyIn = oldCopyIn
		hal.CopyOut = oldCopyOut
		hal.CopyInString = oldCopyInString
		hal.CopyInWord = oldCopyInWord
		hal.CopyOutWord = oldCopyOutWord
		hal.VFSOpen = oldVFSOpen
		hal.LoadELF = oldLoadELF
		hal.ThreadFork = oldThreadFork
		hal.ThreadExit = oldThreadExit
		hal.EnterForkedProcess = oldEnterForked
		hal.EnterNewProcess = oldEnterNew
		hal.ZeroFrame = oldZeroFrame
		hal.CopyFrame = oldCopyFrame
	})

	const lo = 0x10000
	hi := uintptr(lo + nframes*(mem.PageSize+4))
	hal.RamGetSize = func() (uintptr, uintptr) { return lo, hi }
	hal.RamStealMem = func(uint) uintptr { return 0 }

	mem.TheCoremap = &mem.Coremap{}
	mem.TheCoremap.Bootstrap()

	hal.ZeroFrame = func(kv uintptr) {
		p := pm.page(kv)
		for i := range p {
			p[i] = 0
		}
	}
	hal.CopyFrame = func(dstKV, srcKV uintptr) {
		copy(pm.page(dstKV), pm.page(srcKV))
	}

	hal.CopyIn = func(uva uintptr, dst []byte) defs.Err_t {
		copy(dst, um.read(uva, len(dst)))
		return 0
	}
	hal.CopyOut = func(src []byte, uva uintptr) defs.Err_t {
		um.write(uva, src)
		return 0
	}
	hal.CopyInString = func(uva uintptr, max int) ([]byte, defs.Err_t) {
		return um.read(uva, max), 0
	}
	hal.CopyInWord = func(uva uintptr) (uintptr, defs.Err_t) {
		b := um.read(uva, 4)
		return uintptr(binary.LittleEndian.Uint32(b)), 0
	}
	hal.CopyOutWord = func(word, uva uintptr) defs.Err_t {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(word))
		um.write(uva, b)
		return 0
	}

	hal.VFSOpen = func(path string, flags int) (hal.File, defs.Err_t) {
		return &fakeFile{}, 0
	}
	hal.LoadELF = func(f hal.File, as hal.Regioner) (uintptr, defs.Err_t) {
		const textBase, dataBase = 0x400000, 0x500000
		if err := as.DefineRegion(textBase, mem.PageSize, true, false, true); err != 0 {
			return 0, err
		}
		if err := as.DefineRegion(dataBase, mem.PageSize, true, true, false); err != 0 {
			return 0, err
		}
		if err := as.PrepareLoad(); err != 0 {
			return 0, err
		}
		return textBase, 0
	}

	hal.ThreadFork = func(name string, child any, entry hal.ThreadEntry, arg any) defs.Err_t {
		entry(arg)
		return 0
	}
	hal.ThreadExit = func() {}
	hal.EnterForkedProcess = func(tf *hal.TrapFrame) {}
	hal.EnterNewProcess = func(argc int, argv, sp, entry uintptr) {}

	return um, pm
}

// newRunningProc builds a process with a prepared address space (one
// text page, one data page, plus the fixed stack), the shape fork and
// execv both expect to find on entry.
func newRunningProc(t *testing.T) *Proc_t {
	t.Helper()
	p, err := CreateRunprogram("init")
	if err != 0 {
		t.Fatalf("CreateRunprogram failed: %v", err)
	}
	as := vm.Create()
	if err := as.DefineRegion(0x400000, mem.PageSize, true, false, true); err != 0 {
		t.Fatalf("DefineRegion(text) failed: %v", err)
	}
	if err := as.DefineRegion(0x500000, mem.PageSize, true, true, false); err != 0 {
		t.Fatalf("DefineRegion(data) failed: %v", err)
	}
	if err := as.PrepareLoad(); err != 0 {
		t.Fatalf("PrepareLoad failed: %v", err)
	}
	as.CompleteLoad()
	p.AS = as
	return p
}
