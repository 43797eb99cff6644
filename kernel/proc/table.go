package proc

import (
	"eclipseos/kernel"
	"eclipseos/kernel/mm"
	"eclipseos/kernel/mm/vmm"
	"eclipseos/kernel/sync"
)

var (
	errNoSuchProcess = &kernel.Error{Module: "proc", Message: "no such process"}
	errBadTransition = &kernel.Error{Module: "proc", Message: "invalid process state transition"}
)

const (
	// kernelThreadStackSize is the stack size mapped for kernel threads.
	kernelThreadStackSize = 4 * uintptr(mm.PageSize)

	// kernelStackRegionBase is the start of the kernel-half region where
	// kernel thread stacks are mapped. Consecutive stacks are separated by
	// an unmapped guard page.
	kernelStackRegionBase = vmm.KernelSpaceBase + 0x100000000
)

var (
	// tableLock guards the process table, the PID counter and every PCB
	// state transition.
	tableLock sync.IrqSpinlock

	procs   map[PID]*PCB
	nextPID PID

	nextKernelStackBase uintptr

	// readyFn is installed by the scheduler; it is invoked, outside
	// tableLock, whenever a process becomes Ready.
	readyFn func(pid PID, priority uint8)

	// cleanupFns run, outside tableLock, after a process terminates so
	// the scheduler and the IPC subsystem can drop every reference to its
	// PID before its resources are released.
	cleanupFns []func(pid PID)

	// currentPIDFn reports the PID running on the calling CPU. The
	// scheduler installs the real provider; the default reports the boot
	// pseudo-process.
	currentPIDFn = func() PID { return 0 }
)

// Init resets the process table. PID numbering starts at 1.
func Init() {
	tableLock.Acquire()
	procs = make(map[PID]*PCB)
	nextPID = 1
	nextKernelStackBase = kernelStackRegionBase
	readyFn = nil
	cleanupFns = nil
	currentPIDFn = func() PID { return 0 }
	tableLock.Release()
}

// SetReadyCallback installs the function invoked whenever a process becomes
// Ready. The scheduler uses it to enqueue the process for dispatch.
func SetReadyCallback(fn func(pid PID, priority uint8)) {
	tableLock.Acquire()
	readyFn = fn
	tableLock.Release()
}

// AddCleanupHook appends a function invoked after a process terminates.
// Hooks must drop every reference they hold to the PID.
func AddCleanupHook(fn func(pid PID)) {
	tableLock.Acquire()
	cleanupFns = append(cleanupFns, fn)
	tableLock.Release()
}

// SetCurrentProvider installs the function that reports the PID running on
// the calling CPU.
func SetCurrentProvider(fn func() PID) {
	tableLock.Acquire()
	currentPIDFn = fn
	tableLock.Release()
}

// CreateProcess builds a new user process: a fresh address space, a stack of
// stackSize bytes ending at stackBase and an initial context that enters
// entryPoint with the stack pointer at stackBase. The process is inserted in
// state Ready and handed to the scheduler.
func CreateProcess(entryPoint, stackBase, stackSize uintptr) (PID, *kernel.Error) {
	if stackSize == 0 || stackBase&(uintptr(mm.PageSize)-1) != 0 {
		return 0, kernel.ErrInvalidArgument
	}
	stackSize = (stackSize + uintptr(mm.PageSize) - 1) &^ (uintptr(mm.PageSize) - 1)

	// The stack occupies [stackBase-stackSize, stackBase) and must sit
	// entirely in the user half. A size reaching the base would wrap the
	// range past address zero into the kernel half.
	if stackBase > vmm.KernelSpaceBase || stackSize >= stackBase {
		return 0, kernel.ErrInvalidArgument
	}

	space, err := vmm.NewAddressSpace()
	if err != nil {
		return 0, err
	}

	if err = mapStack(space, stackBase, stackSize, vmm.FlagRW|vmm.FlagUserAccessible|vmm.FlagNoExecute, nil); err != nil {
		space.Release()
		return 0, err
	}

	pcb := &PCB{
		name:      "user",
		priority:  DefaultPriority,
		stackBase: stackBase,
		stackSize: stackSize,
		space:     space,
	}
	pcb.ctx.RIP = uint64(entryPoint)
	pcb.ctx.RSP = uint64(stackBase)
	pcb.ctx.RFLAGS = initialRFLAGS

	return commit(pcb)
}

// SpawnKernelThread builds a process that executes entry inside the kernel
// address space. The thread receives arg through the first argument register
// of the platform calling convention.
func SpawnKernelThread(entry uintptr, arg uintptr, name string) (PID, *kernel.Error) {
	tableLock.Acquire()
	stackBase := nextKernelStackBase + kernelThreadStackSize
	// Leave an unmapped guard page between consecutive stacks.
	nextKernelStackBase = stackBase + uintptr(mm.PageSize)
	tableLock.Release()

	var stackFrames []mm.Frame
	kernelSpace := vmm.KernelAddressSpace()
	if err := mapStack(kernelSpace, stackBase, kernelThreadStackSize, vmm.FlagRW|vmm.FlagNoExecute, &stackFrames); err != nil {
		for _, frame := range stackFrames {
			mm.FreeFrame(frame)
		}
		return 0, err
	}

	pcb := &PCB{
		name:        name,
		priority:    DefaultPriority,
		stackBase:   stackBase,
		stackSize:   kernelThreadStackSize,
		stackFrames: stackFrames,
	}
	pcb.ctx.RIP = uint64(entry)
	pcb.ctx.RSP = uint64(stackBase)
	pcb.ctx.RDI = uint64(arg)
	pcb.ctx.RFLAGS = initialRFLAGS

	return commit(pcb)
}

// initialRFLAGS enables interrupt delivery for freshly created contexts;
// bit 1 is the always-set reserved bit.
const initialRFLAGS = 0x202

// mapStack allocates frames for a stack occupying [base-size, base) and maps
// them into space. When frames is non-nil each allocated frame is also
// recorded there so callers managing the kernel space can reclaim them.
func mapStack(space *vmm.AddressSpace, base, size uintptr, flags vmm.PageTableEntryFlag, frames *[]mm.Frame) *kernel.Error {
	pageCount := size >> mm.PageShift
	firstPage := mm.PageFromAddress(base - size)

	for pageIndex := uintptr(0); pageIndex < pageCount; pageIndex++ {
		frame, err := mm.AllocFrame()
		if err != nil {
			return err
		}
		if frames != nil {
			*frames = append(*frames, frame)
		}
		if err = space.Map(firstPage+mm.Page(pageIndex), frame, flags); err != nil {
			if frames == nil {
				mm.FreeFrame(frame)
			}
			return err
		}
	}
	return nil
}

// commit assigns the next PID, inserts the PCB in state Ready and notifies
// the scheduler.
func commit(pcb *PCB) (PID, *kernel.Error) {
	// The provider may take the scheduler lock; never call it with the
	// table lock held.
	parent := currentPIDFn()

	tableLock.Acquire()
	pcb.pid = nextPID
	nextPID++
	pcb.parent = parent
	pcb.state = StateReady
	procs[pcb.pid] = pcb
	notify := readyFn
	tableLock.Release()

	if notify != nil {
		notify(pcb.pid, pcb.priority)
	}
	return pcb.pid, nil
}

// CurrentPID reports the PID running on the calling CPU via the installed
// provider.
func CurrentPID() PID {
	return currentPIDFn()
}

// Lookup returns the PCB for pid or nil if no live process has that PID.
func Lookup(pid PID) *PCB {
	tableLock.Acquire()
	pcb := procs[pid]
	tableLock.Release()
	return pcb
}

// StateOf reports the lifecycle state of pid.
func StateOf(pid PID) (State, *kernel.Error) {
	tableLock.Acquire()
	pcb := procs[pid]
	tableLock.Release()

	if pcb == nil {
		return StateTerminated, errNoSuchProcess
	}
	return pcb.state, nil
}

// Terminate moves pid to the absorbing Terminated state, runs the registered
// cleanup hooks so no queue or mailbox still references the PID and then
// releases the process's address space and stack frames. The PID is never
// reassigned.
func Terminate(pid PID) *kernel.Error {
	tableLock.Acquire()
	pcb := procs[pid]
	if pcb == nil {
		tableLock.Release()
		return errNoSuchProcess
	}
	pcb.state = StateTerminated
	delete(procs, pid)
	hooks := cleanupFns
	tableLock.Release()

	for _, fn := range hooks {
		fn(pid)
	}

	if pcb.space != nil {
		// The space cannot be released while it is loaded.
		if vmm.ActiveAddressSpace() == pcb.space {
			vmm.KernelAddressSpace().Activate()
		}
		return pcb.space.Release()
	}

	// Kernel threads map their stack in the shared kernel space; unmap it
	// and return the frames.
	kernelSpace := vmm.KernelAddressSpace()
	firstPage := mm.PageFromAddress(pcb.stackBase - pcb.stackSize)
	for pageIndex := uintptr(0); pageIndex < pcb.stackSize>>mm.PageShift; pageIndex++ {
		kernelSpace.Unmap(firstPage + mm.Page(pageIndex))
	}
	for _, frame := range pcb.stackFrames {
		if err := mm.FreeFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

// Block suspends the process running on the calling CPU. Only a Running
// process can block; the IPC receive path is the single caller.
func Block(pid PID) *kernel.Error {
	tableLock.Acquire()
	defer tableLock.Release()

	pcb := procs[pid]
	if pcb == nil {
		return errNoSuchProcess
	}
	if pcb.state != StateRunning {
		return errBadTransition
	}
	pcb.state = StateBlocked
	return nil
}

// Unblock transitions a Blocked process back to Ready and hands it to the
// scheduler. Unblocking a process that is not blocked is a no-op so message
// delivery to a running destination does not fail.
func Unblock(pid PID) *kernel.Error {
	tableLock.Acquire()
	pcb := procs[pid]
	if pcb == nil {
		tableLock.Release()
		return errNoSuchProcess
	}
	if pcb.state != StateBlocked {
		tableLock.Release()
		return nil
	}
	pcb.state = StateReady
	notify := readyFn
	priority := pcb.priority
	tableLock.Release()

	if notify != nil {
		notify(pid, priority)
	}
	return nil
}

// MarkRunning records the dispatch of a Ready process.
func MarkRunning(pid PID) *kernel.Error {
	return transition(pid, StateReady, StateRunning)
}

// MarkReady records the preemption of a Running process. The scheduler
// re-enqueues it itself, so no ready notification fires.
func MarkReady(pid PID) *kernel.Error {
	return transition(pid, StateRunning, StateReady)
}

func transition(pid PID, from, to State) *kernel.Error {
	tableLock.Acquire()
	defer tableLock.Release()

	pcb := procs[pid]
	if pcb == nil {
		return errNoSuchProcess
	}
	if pcb.state != from {
		return errBadTransition
	}
	pcb.state = to
	return nil
}

// Snapshot returns a copy of the externally visible fields of every live
// PCB ordered by ascending PID.
func Snapshot() []Info {
	tableLock.Acquire()
	infos := make([]Info, 0, len(procs))
	for _, pcb := range procs {
		infos = append(infos, Info{
			PID:      pcb.pid,
			Parent:   pcb.parent,
			Name:     pcb.name,
			State:    pcb.state,
			Priority: pcb.priority,
		})
	}
	tableLock.Release()

	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j-1].PID > infos[j].PID; j-- {
			infos[j-1], infos[j] = infos[j], infos[j-1]
		}
	}
	return infos
}
