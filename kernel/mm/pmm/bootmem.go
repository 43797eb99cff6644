package pmm

import (
	"eclipseos/kernel"
	"eclipseos/kernel/hal/bootinfo"
	"eclipseos/kernel/kfmt"
	"eclipseos/kernel/mm"
	"eclipseos/kernel/sync"
)

var errBootAllocOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

// BootMemAllocator implements a rudimentary physical memory allocator used to
// bootstrap the kernel.
//
// The allocator carves the usable regions reported by the boot handoff into
// page frames and hands them out by advancing a cursor: a region index plus a
// frame offset inside that region. Non-usable regions are skipped entirely;
// when the cursor reaches the end of a region it advances to the next one and
// resets the offset. Once the last region is exhausted every subsequent
// allocation fails.
//
// The allocator is monotonic: frames cannot be returned to it. Once the
// kernel is properly initialized its remaining frames are handed over to the
// FramePool which does support freeing.
type BootMemAllocator struct {
	mu sync.IrqSpinlock

	// regions holds the usable memory regions with their extents rounded
	// to frame boundaries.
	regions []frameRegion

	// The allocation cursor.
	regionIndex int
	nextFrame   mm.Frame

	// allocCount tracks the total number of allocated frames.
	allocCount uint64
}

// frameRegion is a usable memory map entry converted to frame extents. Both
// bounds are inclusive.
type frameRegion struct {
	startFrame, endFrame mm.Frame
}

// Init populates the allocator regions from the boot handoff memory map.
// Reported region addresses may not be page-aligned: region starts are
// rounded up and region ends are rounded down so only whole frames inside a
// usable region are ever handed out.
func (alloc *BootMemAllocator) Init() {
	alloc.regions = nil
	alloc.regionIndex = 0
	alloc.nextFrame = 0
	alloc.allocCount = 0

	pageSizeMinus1 := uint64(mm.PageSize - 1)

	bootinfo.VisitMemRegions(func(region *bootinfo.MemoryRegion) bool {
		// Ignore reserved regions and regions smaller than a single page.
		if region.Type != bootinfo.RegionAvailable || region.Length < uint64(mm.PageSize) {
			return true
		}

		startFrame := mm.Frame(((region.PhysAddress + pageSizeMinus1) & ^pageSizeMinus1) >> mm.PageShift)
		endFrame := mm.Frame(((region.PhysAddress+region.Length) & ^pageSizeMinus1)>>mm.PageShift) - 1
		if endFrame < startFrame {
			return true
		}

		alloc.regions = append(alloc.regions, frameRegion{startFrame, endFrame})
		return true
	})

	if len(alloc.regions) != 0 {
		alloc.nextFrame = alloc.regions[0].startFrame
	}
}

// AllocFrame reserves the next available frame and advances the allocation
// cursor. It returns ErrOutOfMemory once all usable regions are exhausted;
// exhaustion is permanent.
func (alloc *BootMemAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	alloc.mu.Acquire()
	defer alloc.mu.Release()

	for alloc.regionIndex < len(alloc.regions) {
		region := alloc.regions[alloc.regionIndex]
		if alloc.nextFrame <= region.endFrame {
			frame := alloc.nextFrame
			alloc.nextFrame++
			alloc.allocCount++
			return frame, nil
		}

		// Cursor passed the region bound; move to the next region and
		// reset the offset.
		alloc.regionIndex++
		if alloc.regionIndex < len(alloc.regions) {
			alloc.nextFrame = alloc.regions[alloc.regionIndex].startFrame
		}
	}

	return mm.InvalidFrame, errBootAllocOutOfMemory
}

// AllocCount returns the total number of frames handed out so far.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	alloc.mu.Acquire()
	defer alloc.mu.Release()
	return alloc.allocCount
}

// printMemoryMap logs the firmware memory map and the usable frame count.
func (alloc *BootMemAllocator) printMemoryMap() {
	kfmt.Printf("[pmm] system memory map:\n")

	var totalFree uint64
	bootinfo.VisitMemRegions(func(region *bootinfo.MemoryRegion) bool {
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n",
			region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())

		if region.Type == bootinfo.RegionAvailable {
			totalFree += region.Length
		}
		return true
	})

	kfmt.Printf("[pmm] available memory: %dKb\n", totalFree/1024)
}
