package pmm

import (
	"eclipseos/kernel"
	"eclipseos/kernel/mm"
	"eclipseos/kernel/sync"
)

var (
	errFrameNotAllocated = &kernel.Error{Module: "pmm", Message: "attempt to free a frame that is not allocated"}
)

// FramePool is the standard physical allocator used once the kernel is
// initialized. It layers frame reclamation on top of the monotonic boot
// allocator: frames released by terminating processes are pushed on a free
// list and served before the boot cursor is advanced again, so the physical
// memory of a dead process becomes available to the next one.
type FramePool struct {
	mu sync.IrqSpinlock

	boot *BootMemAllocator

	// freeList holds reclaimed frames in LIFO order.
	freeList []mm.Frame

	// inFreeList guards against double frees.
	inFreeList map[mm.Frame]struct{}

	// reservedCount tracks the number of frames currently handed out.
	reservedCount uint64
}

// Init binds the pool to the boot allocator whose remaining frames it serves.
func (pool *FramePool) Init(boot *BootMemAllocator) {
	pool.boot = boot
	pool.freeList = nil
	pool.inFreeList = make(map[mm.Frame]struct{})
	pool.reservedCount = 0
}

// AllocFrame reserves a frame, preferring reclaimed frames over advancing
// the boot cursor. It returns ErrOutOfMemory when the free list is empty and
// the boot allocator is exhausted.
func (pool *FramePool) AllocFrame() (mm.Frame, *kernel.Error) {
	pool.mu.Acquire()

	if last := len(pool.freeList) - 1; last >= 0 {
		frame := pool.freeList[last]
		pool.freeList = pool.freeList[:last]
		delete(pool.inFreeList, frame)
		pool.reservedCount++
		pool.mu.Release()
		return frame, nil
	}
	pool.mu.Release()

	frame, err := pool.boot.AllocFrame()
	if err != nil {
		return mm.InvalidFrame, err
	}

	pool.mu.Acquire()
	pool.reservedCount++
	pool.mu.Release()
	return frame, nil
}

// FreeFrame returns a previously allocated frame to the pool. Freeing a
// frame that is already free or was never handed out is an invariant
// violation and gets rejected.
func (pool *FramePool) FreeFrame(frame mm.Frame) *kernel.Error {
	pool.mu.Acquire()
	defer pool.mu.Release()

	if !frame.Valid() || pool.reservedCount == 0 {
		return errFrameNotAllocated
	}

	if _, alreadyFree := pool.inFreeList[frame]; alreadyFree {
		return errFrameNotAllocated
	}

	pool.freeList = append(pool.freeList, frame)
	pool.inFreeList[frame] = struct{}{}
	pool.reservedCount--
	return nil
}

// ReservedFrames returns the number of frames currently handed out.
func (pool *FramePool) ReservedFrames() uint64 {
	pool.mu.Acquire()
	defer pool.mu.Release()
	return pool.reservedCount
}

// FreeFrames returns the number of reclaimed frames awaiting reuse.
func (pool *FramePool) FreeFrames() uint64 {
	pool.mu.Acquire()
	defer pool.mu.Release()
	return uint64(len(pool.freeList))
}
