package vmm

import (
	"eclipseos/kernel"
	"eclipseos/kernel/cpu"
	"eclipseos/kernel/kfmt"
)

// Page fault error code bits pushed by the CPU.
const (
	// FaultPresent is set when the fault was caused by a protection
	// violation on a present page rather than a missing mapping.
	FaultPresent = 1 << 0

	// FaultWrite is set when the faulting access was a write.
	FaultWrite = 1 << 1

	// FaultUser is set when the faulting access originated in user mode.
	FaultUser = 1 << 2
)

// UnhandledFaultHandlerFn receives page faults the vmm cannot resolve.
type UnhandledFaultHandlerFn func(virtAddr uintptr, errorCode uint64)

var unhandledFaultFn UnhandledFaultHandlerFn = defaultUnhandledFault

// SetUnhandledFaultHandler registers the function invoked for faults the vmm
// cannot resolve. The boot sequence points it at the process reaper so a
// faulting process is terminated instead of bringing down the kernel. A nil
// fn restores the default panic behaviour.
func SetUnhandledFaultHandler(fn UnhandledFaultHandlerFn) {
	if fn == nil {
		fn = defaultUnhandledFault
	}
	unhandledFaultFn = fn
}

// HandlePageFault services a page fault raised while activeSpace was loaded.
// A fault whose mapping is present with sufficient permissions is treated as
// a stale TLB entry and resolved with a flush; anything else is forwarded to
// the unhandled fault handler.
func HandlePageFault(errorCode uint64) {
	virtAddr := cpu.FaultAddress()

	vmmLock.Acquire()
	space := activeSpace
	var resolved bool
	if space != nil {
		if pte, err := space.walkLocked(virtAddr, false, 0); err == nil && pte.HasFlags(FlagPresent) {
			switch {
			case errorCode&FaultWrite != 0 && !pte.HasFlags(FlagRW):
			case errorCode&FaultUser != 0 && !pte.HasFlags(FlagUserAccessible):
			default:
				cpu.FlushTLBEntry(virtAddr)
				resolved = true
			}
		}
	}
	vmmLock.Release()

	if resolved {
		return
	}
	unhandledFaultFn(virtAddr, errorCode)
}

func defaultUnhandledFault(virtAddr uintptr, errorCode uint64) {
	kfmt.Printf("vmm: unhandled page fault at %x (error code %x)\n", virtAddr, errorCode)
	kernel.Panic(kernel.ErrAddressSpaceFault)
}
