// Package mm stands in for the Sv39 page-table machinery and ELF loader
// that spec.md §1 declares out of scope ("referenced only as a user address
// space builder"). It gives the kernel something concrete to translate user
// pointers through in tests, without implementing a real MMU: each process
// gets a flat byte arena, and "physical" slices are just sub-slices of it.
// A real port replaces AddressSpace with the Sv39 walker; UserBuffer's
// gather/scatter contract (spec.md §6) is unaffected either way.
package mm

import "fmt"

// AddressSpace is the per-process memory arena. Real kernels back this with
// page tables; here it is one contiguous []byte, which is enough to test
// the syscall plumbing that reads/writes through user pointers.
type AddressSpace struct {
	mem []byte
}

// NewAddressSpace allocates a zeroed arena of size bytes.
func NewAddressSpace(size int) *AddressSpace {
	return &AddressSpace{mem: make([]byte, size)}
}

// Size returns the arena's byte size.
func (a *AddressSpace) Size() int { return len(a.mem) }

// UserBuffer is the gather/scatter list of physical byte slices a user
// pointer+length pair translates to (spec.md §6): "a translated byte buffer
// routine that returns the target bytes as a list of physical-memory
// slices crossing page boundaries". Since AddressSpace here is flat, a
// UserBuffer is always a single slice, but every syscall consumes it
// through this type so a real paged AddressSpace can return multiple
// slices without changing any caller.
type UserBuffer struct {
	Slices [][]byte
}

// Len returns the total byte length across every slice.
func (u UserBuffer) Len() int {
	n := 0
	for _, s := range u.Slices {
		n += len(s)
	}
	return n
}

// CopyIn copies min(len(dst), u.Len()) bytes from the user buffer into dst.
func (u UserBuffer) CopyIn(dst []byte) int {
	n := 0
	for _, s := range u.Slices {
		if n >= len(dst) {
			break
		}
		c := copy(dst[n:], s)
		n += c
	}
	return n
}

// CopyOut copies min(len(src), u.Len()) bytes from src into the user
// buffer's backing memory.
func (u UserBuffer) CopyOut(src []byte) int {
	n := 0
	for _, s := range u.Slices {
		if n >= len(src) {
			break
		}
		c := copy(s, src[n:])
		n += c
	}
	return n
}

// Translate implements the "translated byte buffer" routine: it returns the
// UserBuffer covering [ptr, ptr+length) of this address space.
func (a *AddressSpace) Translate(ptr uint64, length int) (UserBuffer, error) {
	if length < 0 {
		return UserBuffer{}, fmt.Errorf("mm: negative length %d", length)
	}
	end := ptr + uint64(length)
	if end > uint64(len(a.mem)) {
		return UserBuffer{}, fmt.Errorf("mm: translate [%d,%d) out of range (arena size %d)", ptr, end, len(a.mem))
	}
	return UserBuffer{Slices: [][]byte{a.mem[ptr:end]}}, nil
}

// TranslateString reads a NUL-terminated string starting at ptr.
func (a *AddressSpace) TranslateString(ptr uint64) (string, error) {
	for end := ptr; end < uint64(len(a.mem)); end++ {
		if a.mem[end] == 0 {
			return string(a.mem[ptr:end]), nil
		}
	}
	return "", fmt.Errorf("mm: unterminated string at %d", ptr)
}

// Raw exposes the backing arena for the rare callers (fork's address-space
// copy, tests) that need to lay out memory directly rather than through a
// translated buffer.
func (a *AddressSpace) Raw() []byte { return a.mem }
