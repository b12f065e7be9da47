// Package hashtable implements a lock-friendly concurrent map, kept from
// biscuit's hashtable package and specialized from its original
// interface{}-keyed design down to defs.Pid_t keys — the shape proc.Table
// needs for its PID-to-process lookup, replacing a hypothetical linear
// scan over every live process.
package hashtable

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"defs"
)

type elem_t struct {
	key   defs.Pid_t
	value any
	next  *elem_t
}

type bucket_t struct {
	sync.RWMutex
	first *elem_t
}

func (b *bucket_t) len() int {
	b.RLock()
	defer b.RUnlock()

	l := 0
	for e := b.first; e != nil; e = e.next {
		l++
	}
	return l
}

// Hashtable_t maps defs.Pid_t keys to arbitrary values, with a lock-free
// Get: readers follow an atomically-loaded pointer chain while writers
// serialize per bucket.
type Hashtable_t struct {
	table    []*bucket_t
	capacity int
}

// MkHash allocates a new Hashtable_t with the given bucket count.
func MkHash(size int) *Hashtable_t {
	ht := &Hashtable_t{capacity: size, table: make([]*bucket_t, size)}
	for i := range ht.table {
		ht.table[i] = &bucket_t{}
	}
	return ht
}

// Size returns the total number of elements stored in the table.
func (ht *Hashtable_t) Size() int {
	n := 0
	for _, b := range ht.table {
		n += b.len()
	}
	return n
}

func (ht *Hashtable_t) hash(key defs.Pid_t) int {
	return int(uint32(key) % uint32(len(ht.table)))
}

// Get looks up key and returns its value.
func (ht *Hashtable_t) Get(key defs.Pid_t) (any, bool) {
	b := ht.table[ht.hash(key)]
	for e := loadptr(&b.first); e != nil; e = loadptr(&e.next) {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Set inserts a key/value pair, returning false if the key already
// existed (the prior value is left untouched).
func (ht *Hashtable_t) Set(key defs.Pid_t, value any) bool {
	b := ht.table[ht.hash(key)]
	b.Lock()
	defer b.Unlock()

	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			return false
		}
	}
	n := &elem_t{key: key, value: value, next: b.first}
	storeptr(&b.first, n)
	return true
}

// Del removes a key from the table. It is a no-op if key is absent.
func (ht *Hashtable_t) Del(key defs.Pid_t) {
	b := ht.table[ht.hash(key)]
	b.Lock()
	defer b.Unlock()

	var last *elem_t
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			if last == nil {
				storeptr(&b.first, e.next)
			} else {
				storeptr(&last.next, e.next)
			}
			return
		}
		last = e
	}
}

// Without an explicit memory model, it is hard to know if this code is
// correct. LoadPointer/StorePointer don't issue a memory fence, but for
// traversing pointers in Get() and updating them in Set()/Del(), this
// might be ok on x86. The Go compiler also hopefully doesn't reorder
// loads wrt. LoadPointer.
func loadptr(e **elem_t) *elem_t {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(e))
	p := atomic.LoadPointer(ptr)
	return (*elem_t)(p)
}

func storeptr(p **elem_t, n *elem_t) {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(p))
	atomic.StorePointer(ptr, unsafe.Pointer(n))
}
