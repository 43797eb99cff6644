// Package sched implements preemptive, priority-ordered process scheduling.
// Each CPU owns an independent ready queue and steals work from its peers
// when its own queue runs dry. The periodic timer drives preemption through
// Tick; Yield and the IPC blocking path drive voluntary dispatch through
// Reschedule.
package sched

import (
	"eclipseos/kernel/cpu"
	"eclipseos/kernel/kfmt"
	"eclipseos/kernel/proc"
	"eclipseos/kernel/sync"
)

const (
	// DefaultQuantum is the number of timer ticks a process may run
	// before it is preempted.
	DefaultQuantum = 10

	// maxCPUs bounds the number of CPUs with scheduler state.
	maxCPUs = 8
)

// cpuState carries the per-CPU scheduler state.
type cpuState struct {
	queue   readyQueue
	current proc.PID
	quantum uint32

	// idleCtx receives the outgoing register state when a dispatch
	// leaves the CPU's idle loop.
	idleCtx cpu.Context
}

var (
	// schedLock guards every cpuState and the dispatch counter. proc is
	// never entered with its table lock held, so calling into proc while
	// holding schedLock cannot deadlock.
	schedLock sync.IrqSpinlock

	cpus     [maxCPUs]cpuState
	switches uint64
)

// Init resets the scheduler state and attaches it to the process manager:
// processes becoming Ready are enqueued here and terminated PIDs are purged
// from every queue. It must run after proc.Init.
func Init() {
	schedLock.Acquire()
	for cpuID := range cpus {
		cpus[cpuID] = cpuState{}
	}
	switches = 0
	schedLock.Release()

	proc.SetReadyCallback(onProcessReady)
	proc.AddCleanupHook(Remove)
	proc.SetCurrentProvider(Current)
}

// Enqueue marks pid as eligible for dispatch on the calling CPU's queue.
func Enqueue(pid proc.PID, priority uint8) {
	schedLock.Acquire()
	ok := cpus[cpu.CurrentCPU()].queue.push(pid, priority)
	schedLock.Release()

	if !ok {
		kfmt.Printf("sched: ready queue full; dropping pid %d\n", uint64(pid))
	}
}

func onProcessReady(pid proc.PID, priority uint8) {
	Enqueue(pid, priority)
}

// Current returns the PID running on the calling CPU, or 0 while the CPU is
// idle.
func Current() proc.PID {
	schedLock.Acquire()
	pid := cpus[cpu.CurrentCPU()].current
	schedLock.Release()
	return pid
}

// ContextSwitches returns the number of dispatches that transferred control
// between two different execution streams.
func ContextSwitches() uint64 {
	schedLock.Acquire()
	count := switches
	schedLock.Release()
	return count
}

// Tick is invoked from the timer interrupt. It charges one tick against the
// running process's quantum and preempts it on expiry; an idle CPU uses the
// tick to look for runnable work.
func Tick() {
	schedLock.Acquire()
	state := &cpus[cpu.CurrentCPU()]
	if state.current != 0 && state.quantum > 1 {
		state.quantum--
		schedLock.Release()
		return
	}
	schedLock.Release()

	Reschedule()
}

// Yield voluntarily gives up the CPU: the caller is re-enqueued behind its
// priority peers and the next runnable process is dispatched.
func Yield() {
	Reschedule()
}

// Remove purges pid from every ready queue and clears it as the current
// process of any CPU. It runs as a proc cleanup hook so a terminated PID can
// never be dispatched from stale queue state.
func Remove(pid proc.PID) {
	schedLock.Acquire()
	for cpuID := range cpus {
		cpus[cpuID].queue.remove(pid)
		if cpus[cpuID].current == pid {
			cpus[cpuID].current = 0
			cpus[cpuID].quantum = 0
		}
	}
	schedLock.Release()
}

// Reschedule dispatches the highest-priority runnable process on the calling
// CPU. The outgoing process is re-enqueued if it is still runnable; a process
// that blocked or terminated is left out. With no runnable process the CPU
// returns to its caller which idles until the next interrupt.
func Reschedule() {
	cpuID := cpu.CurrentCPU()

	schedLock.Acquire()
	state := &cpus[cpuID]
	prev := state.current

	if prev != 0 {
		state.current = 0
		// A blocked or terminated process fails the Running to Ready
		// transition and stays off the queue.
		if proc.MarkReady(prev) == nil {
			if pcb := proc.Lookup(prev); pcb != nil {
				if !state.queue.push(prev, pcb.Priority()) {
					kfmt.Printf("sched: ready queue full; dropping pid %d\n", uint64(prev))
				}
			}
		}
	}

	var next proc.PID
	for {
		pid, ok := state.queue.popHighest()
		if !ok {
			pid, ok = stealLocked(cpuID)
		}
		if !ok {
			break
		}
		// Skip entries whose process went away between enqueue and
		// dispatch.
		if proc.MarkRunning(pid) == nil {
			next = pid
			break
		}
	}

	if next == 0 {
		schedLock.Release()
		return
	}

	state.current = next
	state.quantum = DefaultQuantum
	if next != prev {
		switches++
	}

	prevCtx := &state.idleCtx
	if pcb := proc.Lookup(prev); pcb != nil {
		prevCtx = pcb.Context()
	}
	nextCtx := proc.Lookup(next).Context()
	schedLock.Release()

	if next != prev {
		cpu.SwitchContext(prevCtx, nextCtx)
	}
}

// stealLocked pops a runnable PID from the busiest peer queue. schedLock
// must be held.
func stealLocked(selfID int) (proc.PID, bool) {
	victim := -1
	for cpuID := range cpus {
		if cpuID == selfID || cpus[cpuID].queue.len() == 0 {
			continue
		}
		if victim == -1 || cpus[cpuID].queue.len() > cpus[victim].queue.len() {
			victim = cpuID
		}
	}
	if victim == -1 {
		return 0, false
	}
	return cpus[victim].queue.popHighest()
}

// Idle is the per-CPU idle loop entered at the end of the boot sequence:
// dispatch when work exists, halt until the next interrupt otherwise.
func Idle() {
	cpu.EnableInterrupts()
	for {
		Reschedule()
		cpu.Halt()
	}
}
