package proc

import (
	"defs"
	"hal"
	"ustr"
	"util"
	"vm"
)

// MaxArgLen is the hard per-argument truncation bound (os161's local
// MAX_LEN = 128), promoted to a named constant per spec.md §9.
const MaxArgLen = 128

// maxNameLen bounds the bounded string copy of the program name itself;
// os161 sizes this copy exactly to strlen(progname)+1, but our user-copy
// primitive needs an upper bound to size its destination buffer.
const maxNameLen = 1024

const ptrSize = 4 // MIPS user pointers are 4 bytes wide
const openReadOnly = 0

// Execv implements sys_execv: replaces p's process image with the named
// program, laying out argv on a freshly built user stack. Every failure
// path undoes everything allocated so far before returning, using defer
// rather than the source's manual unwind ladder (spec.md §9).
func (p *Proc_t) Execv(prognameUVA, argvUVA uintptr) defs.Err_t {
	nameBuf, err := hal.CopyInString(prognameUVA, maxNameLen)
	if err != 0 {
		return err
	}
	name := ustr.MkUstrSlice(nameBuf).String()

	var argUVAs []uintptr
	for i := 0; ; i++ {
		wordUVA := argvUVA + uintptr(i)*ptrSize
		argUVA, err := hal.CopyInWord(wordUVA)
		if err != 0 {
			return err
		}
		if argUVA == 0 {
			break
		}
		argUVAs = append(argUVAs, argUVA)
	}

	args := make([]string, len(argUVAs))
	for i, uva := range argUVAs {
		buf, err := hal.CopyInString(uva, MaxArgLen)
		if err != 0 {
			return err
		}
		args[i] = ustr.MkUstrSlice(buf).String()
	}

	file, err := hal.VFSOpen(name, openReadOnly)
	if err != 0 {
		return err
	}
	closeFile := true
	defer func() {
		if closeFile {
			file.Close()
		}
	}()

	newas := vm.Create()
	p.pLock.Lock()
	oldas := p.AS
	p.AS = newas
	p.pLock.Unlock()

	haveNewas := true
	defer func() {
		if haveNewas {
			p.pLock.Lock()
			p.AS = oldas
			p.pLock.Unlock()
			newas.Destroy()
		}
	}()
	newas.Activate()

	entry, err := hal.LoadELF(file, newas)
	if err != 0 {
		return err
	}
	closeFile = false
	file.Close()

	newas.CompleteLoad()

	stackptr, err := newas.DefineStack()
	if err != 0 {
		return err
	}

	argUserVAs := make([]uintptr, len(args)+1)
	for i := len(args) - 1; i >= 0; i-- {
		s := args[i] + "\x00"
		stackptr -= uintptr(len(s))
		if err := hal.CopyOut([]byte(s), stackptr); err != 0 {
			return err
		}
		argUserVAs[i] = stackptr
	}
	argUserVAs[len(args)] = 0

	stackptr = util.Rounddown(stackptr, 4)

	for i := len(argUserVAs) - 1; i >= 0; i-- {
		stackptr -= ptrSize
		if err := hal.CopyOutWord(argUserVAs[i], stackptr); err != 0 {
			return err
		}
	}

	argvUserPtr := stackptr
	haveNewas = false
	if oldas != nil {
		oldas.Destroy()
	}

	alignedStackptr := util.Rounddown(stackptr, 8)
	hal.EnterNewProcess(len(args), argvUserPtr, alignedStackptr, entry)
	kpanic("enter_new_process returned")
	return defs.EINVAL
}
