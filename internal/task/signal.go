package task

import "fmt"

// The 32 POSIX-like signal numbers spec.md §4.9 models as bit positions in
// a uint32 mask (signal 32 and above, and real-time signals, are out of
// scope — spec.md §1).
const (
	SIGDEF = iota // default/no-op placeholder occupying bit 0
	SIGHUP
	SIGINT
	SIGQUIT
	SIGILL
	SIGTRAP
	SIGABRT
	SIGBUS
	SIGFPE
	SIGKILL
	SIGUSR1
	SIGSEGV
	SIGUSR2
	SIGPIPE
	SIGALRM
	SIGTERM
	SIGSTKFLT
	SIGCHLD
	SIGCONT
	SIGSTOP
	SIGTSTP
	SIGTTIN
	SIGTTOU
	SIGURG
	SIGXCPU
	SIGXFSZ
	SIGVTALRM
	SIGPROF
	SIGWINCH
	SIGIO
	SIGPWR
	SIGSYS
)

// MaxSig is the highest valid signal number this port models.
const MaxSig = 31

func sigBit(sig int) uint32 { return 1 << uint(sig) }

// fatalByDefault are the signals whose default (no installed handler)
// action terminates the process, mirroring the small fatal set the
// original kernel special-cases in check_signals_error_of_current rather
// than the full POSIX default-action table.
var fatalByDefault = map[int]bool{
	SIGINT:  true,
	SIGILL:  true,
	SIGABRT: true,
	SIGFPE:  true,
	SIGSEGV: true,
	SIGKILL: true,
}

// kernelOwned signals bypass the signal mask in CheckSignalsError (spec.md
// §4.9). SigAction refuses handlers only for SIGKILL and SIGSTOP; SIGCONT
// and SIGDEF are kernel-delivered bookkeeping signals.
func kernelOwned(sig int) bool {
	switch sig {
	case SIGKILL, SIGSTOP, SIGCONT, SIGDEF:
		return true
	default:
		return false
	}
}

// Kill sets sig pending on p. Matches the kill(2) syscall semantics of
// spec.md §5: delivery is asynchronous, observed the next time the
// process's current thread checks pending signals.
func (p *Process) Kill(sig int) error {
	if sig < 0 || sig > MaxSig {
		return fmt.Errorf("task: signal %d out of range", sig)
	}
	p.mu.Lock()
	p.PendingSignals |= sigBit(sig)
	p.mu.Unlock()
	return nil
}

// SigProcMask installs a new signal mask and returns the previous one,
// matching sigprocmask(2)'s SIG_SETMASK semantics (the only variant
// spec.md §5 exposes).
func (p *Process) SigProcMask(mask uint32) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.SignalMask
	p.SignalMask = mask
	return old
}

// SigAction installs action for sig, returning the action it replaced.
// SIGKILL and SIGSTOP reject installation, matching sigaction(2).
func (p *Process) SigAction(sig int, action SignalAction) (SignalAction, error) {
	if sig < 0 || sig > MaxSig {
		return SignalAction{}, fmt.Errorf("task: signal %d out of range", sig)
	}
	if sig == SIGKILL || sig == SIGSTOP {
		return SignalAction{}, fmt.Errorf("task: signal %d cannot be caught or ignored", sig)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.SignalActions[sig]
	p.SignalActions[sig] = action
	return old, nil
}

// CheckSignalsError reports whether a pending, unmasked signal has no
// installed handler and is fatal by default: if so it returns the negative
// exit code the current thread should exit with (mirroring
// check_signals_error_of_current), and clears that signal's pending bit.
// Handler-installed signals are left for TakeHandlerSignal; pending
// unmasked signals that are neither handled nor fatal are discarded.
func (p *Process) CheckSignalsError() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sig := 0; sig <= MaxSig; sig++ {
		bit := sigBit(sig)
		if p.PendingSignals&bit == 0 {
			continue
		}
		if !kernelOwned(sig) && p.SignalMask&bit != 0 {
			continue
		}
		if p.SignalActions[sig].Handler != 0 {
			continue
		}
		if fatalByDefault[sig] {
			p.PendingSignals &^= bit
			return -(sig + 1), true
		}
		// Non-fatal default action (e.g. SIGCHLD, SIGWINCH): discard.
		p.PendingSignals &^= bit
	}
	return 0, false
}

// TakeHandlerSignal pops one pending, unmasked signal that has a user
// handler installed, records it in HandlingSignal and returns its action.
// While any signal is being handled (spec.md §4.9's handling_sig guard)
// it delivers nothing. TrapCtxBackup is not touched here.
func (p *Process) TakeHandlerSignal() (int, SignalAction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.HandlingSignal != 0 {
		return 0, SignalAction{}, false
	}
	for sig := 1; sig <= MaxSig; sig++ {
		bit := sigBit(sig)
		if p.PendingSignals&bit == 0 {
			continue
		}
		if p.SignalMask&bit != 0 {
			continue
		}
		action := p.SignalActions[sig]
		if action.Handler == 0 {
			continue
		}
		p.PendingSignals &^= bit
		p.HandlingSignal = sig
		return sig, action, true
	}
	return 0, SignalAction{}, false
}

// SigReturn clears the handling-signal guard, matching sigreturn(2). It
// restores neither the signal mask nor a trap frame; the mask is restored
// by checkSignalsAtReturnToUser.
func (p *Process) SigReturn() {
	p.mu.Lock()
	p.HandlingSignal = 0
	p.mu.Unlock()
}
