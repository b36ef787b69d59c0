package mm

// PushArgv lays out argv on the user stack exactly as spec.md §6 describes
// and as original_source's Process::exec builds it (os/src/task/process.rs
// ~214-275): from stackTop down, first the argv pointer array plus its NUL
// terminator entry (argv_base, nearest the original top), then each
// string's bytes packed below it NUL-terminated in argv order (so argv[0]
// sits at a higher address than argv[1], etc.), then the final stack
// pointer is padded down to pointer-size alignment. It returns the new
// stack top and argv_base, which callers place in a1 while argc goes in
// a0.
func (a *AddressSpace) PushArgv(stackTop uint64, argv []string) (newTop, argvBase uint64) {
	const ptrSize = 8
	sp := stackTop

	sp -= uint64(len(argv)+1) * ptrSize // pointer array + NUL terminator entry
	argvBase = sp
	putU64(a.mem[argvBase+uint64(len(argv))*ptrSize:], 0)

	for i, s := range argv {
		sp -= uint64(len(s) + 1) // NUL-terminated
		copy(a.mem[sp:], s)
		a.mem[sp+uint64(len(s))] = 0
		putU64(a.mem[argvBase+uint64(i)*ptrSize:], sp)
	}

	sp -= sp % ptrSize // pad to pointer-size alignment

	return sp, argvBase
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
