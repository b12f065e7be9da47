package proc

import (
	"encoding/binary"
	"runtime"
	"sync"
	"testing"

	"defs"
	"hal"
)

func putWord(um *fakeUserMem, addr uintptr, word uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, word)
	um.write(addr, b)
}

// runExecvAndWait drives p.Execv to completion even though, on the
// happy path, hal.EnterNewProcess never returns to its caller (it warps
// into user mode). The fake installed here mirrors that by calling
// runtime.Goexit() after recording its arguments, so Execv's goroutine
// unwinds through its own deferred cleanup exactly as it would if the
// real primitive had taken over the CPU. The caller only observes a
// returned error if Execv failed before ever reaching EnterNewProcess.
func runExecvAndWait(t *testing.T, p *Proc_t, prognameUVA, argvUVA uintptr, onEnter func(argc int, argv, sp, entry uintptr)) {
	t.Helper()

	hal.EnterNewProcess = func(argc int, argv, sp, entry uintptr) {
		onEnter(argc, argv, sp, entry)
		runtime.Goexit()
	}

	var wg sync.WaitGroup
	var err defs.Err_t
	wg.Add(1)
	go func() {
		defer wg.Done()
		err = p.Execv(prognameUVA, argvUVA)
	}()
	wg.Wait()

	if err != 0 {
		t.Fatalf("Execv: %v", err)
	}
}

// TestExecvBuildsArgvOnNewStack exercises sys_execv end to end: program
// name and argument copy-in, a freshly loaded address space, and an
// argv vector built on the new user stack that the kernel entry point
// receives pointers into. The calling process starts with no address
// space at all, covering the very first exec a process ever makes.
func TestExecvBuildsArgvOnNewStack(t *testing.T) {
	um, _ := installFakeHAL(t, 200)

	var gotArgc int
	var gotArgv, gotSP, gotEntry uintptr

	p, err := CreateRunprogram("shell")
	if err != 0 {
		t.Fatalf("CreateRunprogram: %v", err)
	}
	if p.AS != nil {
		t.Fatalf("freshly created process already has an address space")
	}

	const prognameUVA = 0x80001000
	um.writeString(prognameUVA, "hello\x00")

	const arg0UVA = 0x80002000
	const arg1UVA = 0x80002100
	um.writeString(arg0UVA, "hello\x00")
	um.writeString(arg1UVA, "world\x00")

	const argvUVA = 0x80003000
	putWord(um, argvUVA+0*4, arg0UVA)
	putWord(um, argvUVA+1*4, arg1UVA)
	putWord(um, argvUVA+2*4, 0)

	runExecvAndWait(t, p, prognameUVA, argvUVA, func(argc int, argv, sp, entry uintptr) {
		gotArgc, gotArgv, gotSP, gotEntry = argc, argv, sp, entry
	})

	if p.AS == nil {
		t.Fatalf("Execv left the process without an address space")
	}
	if gotEntry != 0x400000 {
		t.Fatalf("entry = %#x, want %#x", gotEntry, 0x400000)
	}
	if gotArgc != 2 {
		t.Fatalf("argc = %d, want 2", gotArgc)
	}
	if gotSP%8 != 0 {
		t.Fatalf("stack pointer %#x not 8-byte aligned", gotSP)
	}

	wantArgs := []string{"hello", "world"}
	for i, want := range wantArgs {
		wordAddr := gotArgv + uintptr(i)*4
		strAddr := uintptr(binary.LittleEndian.Uint32(um.read(wordAddr, 4)))
		if strAddr == 0 {
			t.Fatalf("argv[%d] is NULL", i)
		}
		got := string(um.read(strAddr, len(want)))
		if got != want {
			t.Fatalf("argv[%d] = %q, want %q", i, got, want)
		}
	}

	terminator := binary.LittleEndian.Uint32(um.read(gotArgv+uintptr(len(wantArgs))*4, 4))
	if terminator != 0 {
		t.Fatalf("argv vector not NULL-terminated, got %#x", terminator)
	}
}

// TestExecvReplacesExistingAddressSpace confirms a process that already
// had an address space gets a distinct new one after exec, rather than
// keeping the old one.
func TestExecvReplacesExistingAddressSpace(t *testing.T) {
	um, _ := installFakeHAL(t, 200)

	p := newRunningProc(t)
	oldAS := p.AS

	const prognameUVA = 0x80001000
	um.writeString(prognameUVA, "second\x00")
	const argvUVA = 0x80002000
	putWord(um, argvUVA, 0)

	runExecvAndWait(t, p, prognameUVA, argvUVA, func(argc int, argv, sp, entry uintptr) {})

	if p.AS == oldAS {
		t.Fatalf("Execv kept the old address space pointer")
	}
}
