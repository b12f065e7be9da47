package vm

import (
	"math/rand/v2"
	"sync"
)

// NumTLB is the number of hardware TLB entries (NUM_TLB), matching the
// MIPS r3000 family dumbvm.c targets.
const NumTLB = 64

// TLB flag bits packed into the low bits of elo, below the page-aligned
// physical address, exactly as real MIPS TLB entries do.
const (
	FlagValid uint32 = 1 << 0
	FlagDirty uint32 = 1 << 1 // DIRTY set means writable, per MIPS convention
)

// Entry is one hardware TLB slot: (ehi, elo).
type Entry struct {
	Ehi uint32
	Elo uint32
}

// present reports whether this entry holds a valid mapping.
func (e Entry) present() bool {
	return e.Elo&FlagValid != 0
}

// TLB is the per-CPU software model of the hardware translation cache
// that vm_fault refills on a miss. Real hardware provides tlb_read,
// tlb_write and tlb_random directly; we implement them concretely here
// since, unlike the ELF loader or VFS, there is no external collaborator
// to stand in for actual TLB hardware in a pure Go port.
type TLB struct {
	mu      sync.Mutex
	entries [NumTLB]Entry
}

// SplHigh disables interrupts on this (simulated) CPU while the TLB is
// being read or written, matching dumbvm.c's spl = splhigh(). There is
// no real interrupt controller to program in software, so the critical
// section is enforced with a mutex instead.
func (t *TLB) SplHigh() {
	t.mu.Lock()
}

// SplX restores the interrupt level saved by SplHigh.
func (t *TLB) SplX() {
	t.mu.Unlock()
}

// Read returns the entry at index i (tlb_read). The caller must hold
// SplHigh.
func (t *TLB) Read(i int) Entry {
	return t.entries[i]
}

// Write installs e at index i (tlb_write). The caller must hold
// SplHigh.
func (t *TLB) Write(i int, e Entry) {
	t.entries[i] = e
}

// WriteRandom installs e into a pseudo-randomly chosen slot (tlb_random),
// used once every entry is already valid. The caller must hold SplHigh.
func (t *TLB) WriteRandom(e Entry) {
	t.entries[rand.IntN(NumTLB)] = e
}

// InvalidateAll clears every entry, used by Activate on every context
// switch into a user thread.
func (t *TLB) InvalidateAll() {
	t.SplHigh()
	defer t.SplX()
	for i := range t.entries {
		t.entries[i] = Entry{}
	}
}

// TheTLB is the single simulated CPU's TLB. dumbvm targets a uniprocessor
// kernel, so one package-level instance is sufficient.
var TheTLB = &TLB{}

// Install finds the first invalid slot and writes (ehi, elo) there,
// falling back to a random slot if the TLB is full, implementing the
// scan in vm_fault's final step.
func (t *TLB) Install(ehi, elo uint32) {
	t.SplHigh()
	defer t.SplX()

	for i := range t.entries {
		if !t.entries[i].present() {
			t.entries[i] = Entry{Ehi: ehi, Elo: elo}
			return
		}
	}
	t.WriteRandom(Entry{Ehi: ehi, Elo: elo})
}
