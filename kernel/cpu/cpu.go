// Package cpu isolates the architecture-specific entry points that the rest
// of the kernel depends on. Each operation dispatches through a hook that the
// platform bootstrap code installs at boot; the defaults model the CPU state
// in software which keeps every other kernel package architecture-neutral and
// allows tests to run on a host without touching real hardware.
package cpu

// Hooks binds the architecture-specific operations used by the kernel core.
// A zero-value field leaves the currently installed binding unchanged.
type Hooks struct {
	// EnableInterrupts enables interrupt delivery on the calling CPU.
	EnableInterrupts func()

	// DisableInterrupts disables interrupt delivery on the calling CPU.
	DisableInterrupts func()

	// Halt stops instruction execution until the next interrupt.
	Halt func()

	// SwitchPagingRoot loads the supplied physical address into the
	// CPU's paging root register and flushes the TLB.
	SwitchPagingRoot func(rootPhysAddr uintptr)

	// ActivePagingRoot returns the physical address held in the paging
	// root register.
	ActivePagingRoot func() uintptr

	// FlushTLBEntry flushes the TLB entry for a particular virtual address.
	FlushTLBEntry func(virtAddr uintptr)

	// FaultAddress returns the virtual address whose access raised the
	// most recent page fault.
	FaultAddress func() uintptr

	// CurrentCPU returns the index of the calling CPU.
	CurrentCPU func() int

	// SwitchContext saves the outgoing register state and resumes the
	// incoming one. Must be called with interrupts disabled.
	SwitchContext func(old, next *Context)
}

var (
	// The software model backing the default hooks.
	intsEnabled   = true
	pagingRoot    uintptr
	faultAddr     uintptr
	enableIntsFn  = func() { intsEnabled = true }
	disableIntsFn = func() { intsEnabled = false }
	haltFn        = func() {}
	switchRootFn  = func(addr uintptr) { pagingRoot = addr }
	activeRootFn  = func() uintptr { return pagingRoot }
	flushTLBFn    = func(_ uintptr) {}
	faultAddrFn   = func() uintptr { return faultAddr }
	currentCPUFn  = func() int { return 0 }
)

// Install binds the non-nil members of h as the active architecture hooks.
// It is called once by the platform bootstrap code before interrupts are
// enabled.
func Install(h Hooks) {
	if h.EnableInterrupts != nil {
		enableIntsFn = h.EnableInterrupts
	}
	if h.DisableInterrupts != nil {
		disableIntsFn = h.DisableInterrupts
	}
	if h.Halt != nil {
		haltFn = h.Halt
	}
	if h.SwitchPagingRoot != nil {
		switchRootFn = h.SwitchPagingRoot
	}
	if h.ActivePagingRoot != nil {
		activeRootFn = h.ActivePagingRoot
	}
	if h.FlushTLBEntry != nil {
		flushTLBFn = h.FlushTLBEntry
	}
	if h.FaultAddress != nil {
		faultAddrFn = h.FaultAddress
	}
	if h.CurrentCPU != nil {
		currentCPUFn = h.CurrentCPU
	}
	if h.SwitchContext != nil {
		switchContextFn = h.SwitchContext
	}
}

// DisableInterrupts masks interrupt delivery on the calling CPU and returns
// true if interrupts were enabled before the call. The returned value must be
// passed to RestoreInterrupts so that nested critical sections do not
// prematurely re-enable delivery.
func DisableInterrupts() bool {
	wasEnabled := intsEnabled
	disableIntsFn()
	return wasEnabled
}

// RestoreInterrupts undoes a previous DisableInterrupts call.
func RestoreInterrupts(wasEnabled bool) {
	if wasEnabled {
		enableIntsFn()
	}
}

// EnableInterrupts enables interrupt delivery on the calling CPU.
func EnableInterrupts() { enableIntsFn() }

// InterruptsEnabled returns true while the software interrupt model reports
// delivery as enabled. Platform hooks that manage the real interrupt flag
// keep this model in sync through Install.
func InterruptsEnabled() bool { return intsEnabled }

// Halt stops instruction execution on the calling CPU until the next
// interrupt arrives.
func Halt() { haltFn() }

// SwitchPagingRoot loads the supplied physical address into the paging root
// register. It must only be called with interrupts disabled.
func SwitchPagingRoot(rootPhysAddr uintptr) { switchRootFn(rootPhysAddr) }

// ActivePagingRoot returns the physical address of the currently active
// paging root.
func ActivePagingRoot() uintptr { return activeRootFn() }

// FlushTLBEntry flushes the TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr) { flushTLBFn(virtAddr) }

// FaultAddress returns the virtual address whose access raised the most
// recent page fault.
func FaultAddress() uintptr { return faultAddrFn() }

// SetFaultAddress records a fault address in the software CPU model. It is
// used by the exception dispatch path on platforms without a fault address
// register hook.
func SetFaultAddress(virtAddr uintptr) { faultAddr = virtAddr }

// CurrentCPU returns the index of the calling CPU.
func CurrentCPU() int { return currentCPUFn() }
