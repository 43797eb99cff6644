package sync

import (
	"testing"

	"eclipseos/kernel/cpu"
)

func TestSpinlockTryToAcquire(t *testing.T) {
	var l Spinlock

	if !l.TryToAcquire() {
		t.Fatal("expected TryToAcquire on a free lock to succeed")
	}

	if l.TryToAcquire() {
		t.Fatal("expected TryToAcquire on a held lock to fail")
	}

	l.Release()

	if !l.TryToAcquire() {
		t.Fatal("expected TryToAcquire after Release to succeed")
	}
}

func TestSpinlockAcquireRelease(t *testing.T) {
	var l Spinlock

	l.Acquire()
	if l.TryToAcquire() {
		t.Fatal("expected lock to be held after Acquire")
	}
	l.Release()

	// Acquire must succeed immediately on a free lock.
	l.Acquire()
	l.Release()
}

func TestIrqSpinlockMasksInterrupts(t *testing.T) {
	var l IrqSpinlock

	if !cpu.InterruptsEnabled() {
		cpu.EnableInterrupts()
	}

	l.Acquire()
	if cpu.InterruptsEnabled() {
		t.Fatal("expected interrupts to be disabled while the lock is held")
	}
	l.Release()

	if !cpu.InterruptsEnabled() {
		t.Fatal("expected interrupt state to be restored after Release")
	}
}

func TestIrqSpinlockNesting(t *testing.T) {
	var outer, inner IrqSpinlock

	cpu.EnableInterrupts()

	outer.Acquire()
	inner.Acquire()
	inner.Release()

	if cpu.InterruptsEnabled() {
		t.Fatal("expected interrupts to remain disabled while the outer lock is held")
	}

	outer.Release()
	if !cpu.InterruptsEnabled() {
		t.Fatal("expected interrupts to be re-enabled after the outer lock is released")
	}
}
