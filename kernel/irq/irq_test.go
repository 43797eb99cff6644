package irq

import (
	"testing"

	"eclipseos/kernel"
	"eclipseos/kernel/cpu"
	"eclipseos/kernel/mm"
	"eclipseos/kernel/mm/vmm"
	"eclipseos/kernel/proc"
	"eclipseos/kernel/sched"
)

func setupIRQTest(t *testing.T) {
	t.Helper()

	nextFrame := mm.Frame(1)
	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
		frame := nextFrame
		nextFrame++
		return frame, nil
	})
	mm.SetFrameFreer(func(_ mm.Frame) *kernel.Error { return nil })
	t.Cleanup(func() {
		mm.SetFrameAllocator(nil)
		mm.SetFrameFreer(nil)
		vmm.SetUnhandledFaultHandler(nil)
	})

	if err := vmm.Init(); err != nil {
		t.Fatal(err)
	}
	proc.Init()
	sched.Init()
	Init()
}

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	setupIRQTest(t)

	calls := 0
	Register(40, func() { calls++ })

	Dispatch(40, 0)
	Dispatch(40, 0)
	if calls != 2 {
		t.Fatalf("expected 2 handler invocations; got %d", calls)
	}

	// Unhandled vectors must not bring the kernel down.
	Dispatch(41, 0)
}

func TestTimerVectorDrivesScheduler(t *testing.T) {
	setupIRQTest(t)

	pid, err := proc.SpawnKernelThread(0xffff800000200000, 0, "worker")
	if err != nil {
		t.Fatal(err)
	}

	// An idle CPU picks up the ready process on the first tick.
	Dispatch(VectorTimer, 0)
	if sched.Current() != pid {
		t.Fatalf("expected the timer tick to dispatch pid %d; got %d", pid, sched.Current())
	}
}

func TestPageFaultVectorEntersFaultPath(t *testing.T) {
	setupIRQTest(t)

	var (
		gotAddr uintptr
		gotCode uint64
	)
	vmm.SetUnhandledFaultHandler(func(virtAddr uintptr, errorCode uint64) {
		gotAddr = virtAddr
		gotCode = errorCode
	})

	cpu.SetFaultAddress(0xdeadbeef000)
	Dispatch(VectorPageFault, vmm.FaultUser|vmm.FaultWrite)

	if gotAddr != 0xdeadbeef000 {
		t.Fatalf("expected the fault address to reach the handler; got %x", gotAddr)
	}
	if gotCode != vmm.FaultUser|vmm.FaultWrite {
		t.Fatalf("expected the error code to reach the handler; got %x", gotCode)
	}
}
