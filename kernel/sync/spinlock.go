// Package sync provides the synchronization primitives used by the kernel
// core: spinlocks and interrupt-disabling spinlocks.
package sync

import (
	"sync/atomic"

	"eclipseos/kernel/cpu"
)

// Spinlock implements a lock where each CPU trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the calling CPU. Any
// attempt to re-acquire a lock already held by the current CPU will cause a
// deadlock.
func (l *Spinlock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock
// could be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other CPUs to acquire it.
// Calling Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// IrqSpinlock is a spinlock that additionally disables interrupt delivery on
// the local CPU for as long as it is held. Structures that interrupt handlers
// mutate (ready queues, the process table, mailboxes, the frame allocator
// cursor) must be guarded by an IrqSpinlock: a timer interrupt re-entering a
// locked structure on the same CPU would otherwise deadlock.
type IrqSpinlock struct {
	lock     Spinlock
	intState bool
}

// Acquire disables interrupts on the local CPU and then acquires the lock.
func (l *IrqSpinlock) Acquire() {
	intState := cpu.DisableInterrupts()
	l.lock.Acquire()
	l.intState = intState
}

// Release releases the lock and restores the interrupt state the local CPU
// had before the matching Acquire call.
func (l *IrqSpinlock) Release() {
	intState := l.intState
	l.lock.Release()
	cpu.RestoreInterrupts(intState)
}
