// Package syscall implements the kernel's user-facing system call surface
// (spec.md §5): the fixed number table, argument translation through a
// process's address space, and dispatch into internal/task, internal/vfile
// and internal/vfs. The real trap-entry/a7-register convention is out of
// scope (spec.md §1); there is no central dispatcher, and each Handlers
// method takes already-decoded arguments instead of trap-frame registers.
package syscall

// Syscall numbers, matching the RISC-V Linux ABI subset spec.md §5 names.
const (
	SysDup         = 24
	SysOpen        = 56
	SysClose       = 57
	SysPipe        = 59
	SysRead        = 63
	SysWrite       = 64
	SysExit        = 93
	SysYield       = 124
	SysKill        = 129
	SysSigaction   = 134
	SysSigprocmask = 135
	SysSigreturn   = 139
	SysGetTime     = 169
	SysGetpid      = 172
	SysFork        = 220
	SysExec        = 221
	SysWaitpid     = 260
	SysMutexCreate = 1010
	SysMutexLock   = 1011
	SysMutexUnlock = 1012
)

// Name returns the syscall mnemonic for num, or "unknown" if not in the
// table this kernel implements.
func Name(num int) string {
	switch num {
	case SysDup:
		return "dup"
	case SysOpen:
		return "open"
	case SysClose:
		return "close"
	case SysPipe:
		return "pipe"
	case SysRead:
		return "read"
	case SysWrite:
		return "write"
	case SysExit:
		return "exit"
	case SysYield:
		return "yield"
	case SysKill:
		return "kill"
	case SysSigaction:
		return "sigaction"
	case SysSigprocmask:
		return "sigprocmask"
	case SysSigreturn:
		return "sigreturn"
	case SysGetTime:
		return "get_time"
	case SysGetpid:
		return "getpid"
	case SysFork:
		return "fork"
	case SysExec:
		return "exec"
	case SysWaitpid:
		return "waitpid"
	case SysMutexCreate:
		return "mutex_create"
	case SysMutexLock:
		return "mutex_lock"
	case SysMutexUnlock:
		return "mutex_unlock"
	default:
		return "unknown"
	}
}
