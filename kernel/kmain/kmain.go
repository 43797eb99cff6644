// Package kmain implements the kernel boot sequence. The platform entry code
// parses the firmware handoff into a bootinfo structure, installs its cpu
// hooks and calls Kmain; from that point on everything is architecture
// neutral.
package kmain

import (
	"eclipseos/kernel"
	"eclipseos/kernel/hal/bootinfo"
	"eclipseos/kernel/ipc"
	"eclipseos/kernel/irq"
	"eclipseos/kernel/kfmt"
	"eclipseos/kernel/mm/pmm"
	"eclipseos/kernel/mm/vmm"
	"eclipseos/kernel/proc"
	"eclipseos/kernel/sched"
)

// Kmain bootstraps the kernel core in dependency order, spawns the init
// kernel thread and enters the idle loop. It never returns; unrecoverable
// boot errors halt the machine.
func Kmain(info *bootinfo.BootInfo, initEntry uintptr) {
	if err := bootstrap(info); err != nil {
		kernel.Panic(err)
	}

	if initEntry != 0 {
		if _, err := proc.SpawnKernelThread(initEntry, 0, "init"); err != nil {
			kernel.Panic(err)
		}
	}

	sched.Idle()
}

// bootstrap brings up the subsystems in dependency order: boot handoff,
// physical memory, virtual memory, processes, scheduling, IPC and finally
// interrupt routing.
func bootstrap(info *bootinfo.BootInfo) *kernel.Error {
	bootinfo.Set(info)

	if fb := bootinfo.Framebuffer(); fb != nil && fb.Width != 0 {
		kfmt.Printf("[kmain] framebuffer: %dx%d @ 0x%x\n", uint64(fb.Width), uint64(fb.Height), fb.PhysAddr)
	}

	if err := pmm.Init(); err != nil {
		return err
	}
	if err := vmm.Init(); err != nil {
		return err
	}

	proc.Init()
	sched.Init()
	ipc.Init()
	irq.Init()

	// A page fault the vmm cannot resolve kills the faulting process and
	// hands the CPU to the next runnable one. Faults with no process
	// context are kernel bugs.
	vmm.SetUnhandledFaultHandler(func(virtAddr uintptr, errorCode uint64) {
		pid := sched.Current()
		if pid == 0 {
			kfmt.Printf("[kmain] page fault at 0x%x (error code 0x%x) outside process context\n", virtAddr, errorCode)
			kernel.Panic(kernel.ErrAddressSpaceFault)
		}

		kfmt.Printf("[kmain] terminating pid %d: page fault at 0x%x (error code 0x%x)\n", uint64(pid), virtAddr, errorCode)
		proc.Terminate(pid)
		sched.Reschedule()
	})

	kfmt.Printf("[kmain] kernel core ready\n")
	return nil
}
