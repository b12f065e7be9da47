// Package hal declares the contracts for the collaborators this kernel
// subsystem depends on but does not implement: early RAM discovery,
// user/kernel copy primitives, the VFS, the ELF loader, the thread
// scheduler, and zeroing/copying whole frames through the kernel alias.
// Every one of these is explicitly out of scope
// (spec §1) — this package exists only so proc, mem and vm have something
// concrete to call, following gopher-os's vmm.FrameAllocatorFn /
// SetFrameAllocator pattern: a package-level function variable that the
// boot sequence installs and production code calls through.
package hal

import "defs"

// TrapFrame is the saved register file captured on a user-to-kernel
// transition. Its encoding is architecture-defined and out of scope
// (spec §1); we only need to copy it by value and hand a pointer to the
// thread scheduler, so it is kept opaque.
type TrapFrame [40]uint64

// ThreadEntry is the function signature threads start at; it mirrors the
// (data1, data2) convention of thread_fork by taking a single argument,
// since the second argument is unused by every caller in this subsystem.
type ThreadEntry func(arg any)

// File is the handle returned by VFSOpen. Its only use in this subsystem
// is being handed to LoadELF and then closed.
type File interface {
	Close() defs.Err_t
}

// Regioner is the slice of vm.AddressSpace that LoadELF needs to lay out
// the segments it reads from the ELF headers: defining each loadable
// region and then reserving physical frames for all of them. vm.AddressSpace
// satisfies this structurally, so hal never imports vm (which itself
// imports hal for frame zeroing/copying).
type Regioner interface {
	DefineRegion(vaddr, size uintptr, readable, writable, executable bool) defs.Err_t
	PrepareLoad() defs.Err_t
}

var (
	// RamGetSize reports the lowest unused and highest usable physical
	// addresses known at boot, queried once during coremap bootstrap.
	RamGetSize func() (lo, hi uintptr) = func() (uintptr, uintptr) {
		panic("hal: RamGetSize not installed")
	}

	// RamStealMem is the pre-bootstrap physical frame allocator. It must
	// be serialized by the caller (mem's earlyAllocator does this with its
	// own spinlock-equivalent mutex, distinct from the coremap's).
	RamStealMem func(npages uint) uintptr = func(uint) uintptr {
		panic("hal: RamStealMem not installed")
	}

	// CopyIn copies len(dst) bytes from the user virtual address uva into
	// dst, returning a fault code on failure.
	CopyIn func(uva uintptr, dst []byte) defs.Err_t = func(uintptr, []byte) defs.Err_t {
		panic("hal: CopyIn not installed")
	}

	// CopyOut copies src to the user virtual address uva, returning a
	// fault code on failure.
	CopyOut func(src []byte, uva uintptr) defs.Err_t = func([]byte, uintptr) defs.Err_t {
		panic("hal: CopyOut not installed")
	}

	// CopyInString copies up to max raw bytes from the user virtual
	// address uva, the bounded string copy execv uses for the program
	// name and each argument; trimming at the first NUL is left to the
	// caller (ustr.MkUstrSlice), matching copyinstr's "at most len(dst),
	// including any terminator" contract.
	CopyInString func(uva uintptr, max int) ([]byte, defs.Err_t) = func(uintptr, int) ([]byte, defs.Err_t) {
		panic("hal: CopyInString not installed")
	}

	// CopyInWord reads a single user-pointer-sized word from uva, used to
	// walk execv's NULL-terminated argv vector one element at a time.
	CopyInWord func(uva uintptr) (uintptr, defs.Err_t) = func(uintptr) (uintptr, defs.Err_t) {
		panic("hal: CopyInWord not installed")
	}

	// CopyOutWord writes a single user-pointer-sized word to uva, used to
	// push the argv pointer vector onto the new user stack.
	CopyOutWord func(word uintptr, uva uintptr) defs.Err_t = func(uintptr, uintptr) defs.Err_t {
		panic("hal: CopyOutWord not installed")
	}

	// VFSOpen opens path with the given flags (O_RDONLY for execv).
	VFSOpen func(path string, flags int) (File, defs.Err_t) = func(string, int) (File, defs.Err_t) {
		panic("hal: VFSOpen not installed")
	}

	// LoadELF loads the executable referenced by f into as, defining its
	// regions and preparing their frames, and returns its entry point.
	LoadELF func(f File, as Regioner) (entry uintptr, err defs.Err_t) = func(File, Regioner) (uintptr, defs.Err_t) {
		panic("hal: LoadELF not installed")
	}

	// ThreadFork starts a new kernel thread running under child, calling
	// entry(arg). It returns a fault code if the thread could not be
	// created; the scheduler is responsible for actually running it.
	ThreadFork func(name string, child any, entry ThreadEntry, arg any) defs.Err_t = func(string, any, ThreadEntry, any) defs.Err_t {
		panic("hal: ThreadFork not installed")
	}

	// ThreadExit terminates the calling thread. It never returns.
	ThreadExit func() = func() {
		panic("hal: ThreadExit not installed")
	}

	// EnterForkedProcess warps a freshly forked child thread into user
	// mode using tf, fixed up so the child's syscall return value is 0.
	// It never returns.
	EnterForkedProcess func(tf *TrapFrame) = func(*TrapFrame) {
		panic("hal: EnterForkedProcess not installed")
	}

	// EnterNewProcess warps into user mode at entrypoint with a freshly
	// built argument vector, as the final step of execv. It never
	// returns.
	EnterNewProcess func(argc int, argv uintptr, stackptr uintptr, entrypoint uintptr) = func(int, uintptr, uintptr, uintptr) {
		panic("hal: EnterNewProcess not installed")
	}

	// CopyFrame copies one physical page's worth of bytes from srcKV to
	// dstKV, both kernel-virtual addresses, the way as_copy's memmove
	// duplicates a frame's contents during fork.
	CopyFrame func(dstKV, srcKV uintptr) = func(uintptr, uintptr) {
		panic("hal: CopyFrame not installed")
	}

	// ZeroFrame clears one physical page's worth of bytes at kvaddr, the
	// way as_prepare_load's bzero does before a region is loaded into.
	ZeroFrame func(kvaddr uintptr) = func(uintptr) {
		panic("hal: ZeroFrame not installed")
	}
)
