// Package ustr represents kernel-owned byte strings copied in from user
// memory, kept from biscuit's ustr package and trimmed to the trim/
// convert operations execv's argument marshalling needs; biscuit's
// path-joining helpers (Extend, IsAbsolute, ...) belong to the VFS/path
// layer, which is out of scope here (spec §1).
package ustr

// Ustr is an immutable byte string copied in from user memory.
type Ustr []uint8

// MkUstrSlice truncates buf at its first NUL byte, the way copyinstr's
// destination buffer is trimmed to the string it actually received.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[:i]
		}
	}
	return buf
}

// String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}
