// Package proc implements the process manager: the process table, process
// control blocks and the lifecycle state machine. Scheduling and IPC attach
// to it through registered callbacks so the manager itself stays free of
// policy.
package proc

import (
	"eclipseos/kernel/cpu"
	"eclipseos/kernel/mm"
	"eclipseos/kernel/mm/vmm"
)

// PID identifies a process. PIDs increase monotonically and are never reused
// even after the process they named has been reaped.
type PID uint32

// State tracks a process through its lifecycle.
type State uint8

const (
	// StateCreated is the initial state of a PCB before it is made
	// runnable.
	StateCreated State = iota

	// StateReady marks a process that is eligible for dispatch.
	StateReady

	// StateRunning marks the process currently executing on a CPU.
	StateRunning

	// StateBlocked marks a process suspended on an empty mailbox.
	StateBlocked

	// StateTerminated is absorbing; a terminated process never runs again.
	StateTerminated
)

// String implements fmt.Stringer for State.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultPriority is assigned to processes that do not request a specific
// scheduling priority.
const DefaultPriority = 5

// PCB is the process control block: the kernel-internal record describing one
// process's execution state. All mutation goes through the process table so
// the state machine stays consistent under concurrent access.
type PCB struct {
	pid      PID
	parent   PID
	name     string
	state    State
	priority uint8

	// ctx is the saved register state used by the context switch.
	ctx cpu.Context

	// The stack occupies [stackBase-stackSize, stackBase).
	stackBase uintptr
	stackSize uintptr

	// space is nil for kernel threads which execute in the kernel address
	// space.
	space *vmm.AddressSpace

	// stackFrames records the stack frames of a kernel thread; user
	// process stacks are reclaimed through their address space instead.
	stackFrames []mm.Frame
}

// State returns the current lifecycle state.
func (p *PCB) State() State { return p.state }

// ID returns the process identifier.
func (p *PCB) ID() PID { return p.pid }

// Parent returns the PID of the process that created this one.
func (p *PCB) Parent() PID { return p.parent }

// Name returns the human-readable process name.
func (p *PCB) Name() string { return p.name }

// Priority returns the scheduling priority.
func (p *PCB) Priority() uint8 { return p.priority }

// Context returns the saved register context. The scheduler passes it to
// cpu.SwitchContext when dispatching.
func (p *PCB) Context() *cpu.Context { return &p.ctx }

// AddressSpace returns the address space owned by this process or nil for
// kernel threads.
func (p *PCB) AddressSpace() *vmm.AddressSpace { return p.space }

// Info is a point-in-time copy of the externally visible PCB fields.
type Info struct {
	PID      PID
	Parent   PID
	Name     string
	State    State
	Priority uint8
}
