// Package vfile implements the polymorphic "readable/writable byte sink"
// file abstraction of spec.md §4.6: a uniform contract consumed by the
// read/write system calls, with four concrete variants (OSInode, Pipe,
// Stdin, Stdout). This is the bridge between Core A (the file system) and
// Core B (the task subsystem) the spec calls out in §1.
package vfile

import "context"

// File is the tagged-variant vtable spec.md §9 calls for: a uniform
// {readable, writable, read, write} contract. The fd table stores owned
// File values directly (spec.md §9 "Polymorphic file").
type File interface {
	Readable() bool
	Writable() bool
	// Read/Write operate on a gather/scatter UserBuffer (mm.UserBuffer).
	// A blocking read (Stdin, an empty Pipe) suspends the calling thread
	// through the Scheduler the variant was built with rather than
	// busy-spinning; the variants do not use ctx.
	Read(ctx context.Context, buf [][]byte) (int, error)
	Write(ctx context.Context, buf [][]byte) (int, error)
}

func readLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	return n
}
