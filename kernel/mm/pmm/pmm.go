// Package pmm manages physical memory frame allocations. The boot handoff
// memory map is consumed by a monotonic cursor allocator which in turn backs
// a reclaiming frame pool; the pool is registered as the system-wide frame
// allocator used by the vmm.
package pmm

import (
	"eclipseos/kernel"
	"eclipseos/kernel/mm"
)

var (
	// bootAllocator is the cursor allocator that carves the boot memory
	// map into frames.
	bootAllocator BootMemAllocator

	// framePool is the standard allocator used by the kernel. It supports
	// frame reclamation on process termination.
	framePool FramePool
)

// Init sets up the kernel physical memory allocation sub-system using the
// boot handoff memory map and registers the frame pool as the system frame
// allocator.
func Init() *kernel.Error {
	bootAllocator.Init()
	bootAllocator.printMemoryMap()
	framePool.Init(&bootAllocator)

	mm.SetFrameAllocator(poolAllocFrame)
	mm.SetFrameFreer(poolFreeFrame)
	return nil
}

// poolAllocFrame delegates a frame allocation request to the frame pool.
// Keeping this as a named function (instead of a method value) avoids an
// allocation when it is registered with mm.SetFrameAllocator.
func poolAllocFrame() (mm.Frame, *kernel.Error) {
	return framePool.AllocFrame()
}

func poolFreeFrame(frame mm.Frame) *kernel.Error {
	return framePool.FreeFrame(frame)
}
