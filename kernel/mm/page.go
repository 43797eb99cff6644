// Package mm contains the types and constants shared by the kernel's memory
// management subsystems: physical frames, virtual pages and the pluggable
// frame allocator interface through which the vmm requests physical memory.
package mm

import (
	"math"

	"eclipseos/kernel"
)

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by page allocators when they fail to
	// reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical
// address. Addresses that are not page-aligned are rounded down.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(PageSize - 1)) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns the Page that contains the given virtual address.
// Addresses that are not page-aligned are rounded down.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(PageSize - 1)) >> PageShift)
}

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// FrameFreerFn is a function that can release physical frames back to the
// allocator that owns them.
type FrameFreerFn func(Frame) *kernel.Error

var (
	frameAllocator FrameAllocatorFn
	frameFreer     FrameFreerFn
)

// SetFrameAllocator registers a frame allocator function that will be used
// by the vmm code when new physical frames need to be allocated.
func SetFrameAllocator(allocFn FrameAllocatorFn) { frameAllocator = allocFn }

// SetFrameFreer registers a function for returning frames to the active
// physical allocator. Allocators that do not support reclamation leave this
// unset, in which case FreeFrame is a no-op.
func SetFrameFreer(freeFn FrameFreerFn) { frameFreer = freeFn }

// AllocFrame allocates a new physical frame using the currently registered
// physical frame allocator.
func AllocFrame() (Frame, *kernel.Error) { return frameAllocator() }

// FreeFrame returns a frame to the currently registered physical frame
// allocator.
func FreeFrame(frame Frame) *kernel.Error {
	if frameFreer == nil {
		return nil
	}
	return frameFreer(frame)
}
