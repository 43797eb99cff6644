// Package vmm implements the virtual memory manager. Each process owns an
// AddressSpace built out of 4-level page tables that use the hardware entry
// layout. The kernel half of the virtual address range is shared by every
// address space while user mappings enforce frame exclusivity: a physical
// frame can be writable-mapped by at most one address space at a time.
package vmm

import (
	"eclipseos/kernel"
	"eclipseos/kernel/cpu"
	"eclipseos/kernel/mm"
	"eclipseos/kernel/sync"
)

var (
	// ErrInvalidMapping is returned when a virtual address lookup fails.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address not mapped"}

	errFrameInUse        = &kernel.Error{Module: "vmm", Message: "frame is writable-mapped by another address space"}
	errSpaceReleased     = &kernel.Error{Module: "vmm", Message: "address space has been released"}
	errReleaseActive     = &kernel.Error{Module: "vmm", Message: "cannot release the active address space"}
	errReleaseKernel     = &kernel.Error{Module: "vmm", Message: "cannot release the kernel address space"}
	errUserMapKernelHalf = &kernel.Error{Module: "vmm", Message: "user-accessible mapping in the kernel half"}
	errNotInitialized    = &kernel.Error{Module: "vmm", Message: "vmm not initialized"}
)

var (
	// vmmLock guards the page table registry, the frame ownership map and
	// the active address space pointer.
	vmmLock sync.IrqSpinlock

	// tables tracks the contents of every page table frame handed out by
	// the frame allocator.
	tables map[mm.Frame]*pageTable

	// frameOwner maps each writable user frame to the address space that
	// claimed it.
	frameOwner map[mm.Frame]*AddressSpace

	kernelSpace *AddressSpace
	activeSpace *AddressSpace
)

// AddressSpace describes one virtual address space: a root page table plus
// the physical frames reserved for its table hierarchy and its writable user
// mappings.
type AddressSpace struct {
	rootFrame mm.Frame

	// tableFrames lists the frames backing the tables this space
	// allocated, root included. Tables inherited from the kernel half are
	// not listed; the kernel space owns those.
	tableFrames []mm.Frame

	// ownedFrames lists the writable user frames claimed by this space.
	ownedFrames []mm.Frame

	released bool
}

// Init sets up the vmm: it builds the kernel address space, pre-allocates the
// page tables for the shared kernel half and activates the kernel space. It
// must be called after the physical frame allocator has been registered.
func Init() *kernel.Error {
	vmmLock.Acquire()
	defer vmmLock.Release()

	tables = make(map[mm.Frame]*pageTable)
	frameOwner = make(map[mm.Frame]*AddressSpace)

	space := new(AddressSpace)
	rootFrame, root, err := space.allocTableLocked()
	if err != nil {
		return err
	}
	space.rootFrame = rootFrame

	// The second-level tables for the kernel half are allocated up front
	// so that kernel mappings established after a process address space
	// was created remain visible to it: process roots alias these tables
	// rather than copy their contents.
	for entryIndex := kernelRootEntryBase; entryIndex < pageTableEntries; entryIndex++ {
		frame, _, err := space.allocTableLocked()
		if err != nil {
			return err
		}

		pte := &root[entryIndex]
		pte.SetFrame(frame)
		pte.SetFlags(FlagPresent | FlagRW)
	}

	kernelSpace = space
	activeSpace = space
	cpu.SwitchPagingRoot(rootFrame.Address())
	return nil
}

// KernelAddressSpace returns the address space that maps the kernel half.
func KernelAddressSpace() *AddressSpace { return kernelSpace }

// ActiveAddressSpace returns the currently activated address space.
func ActiveAddressSpace() *AddressSpace {
	vmmLock.Acquire()
	space := activeSpace
	vmmLock.Release()
	return space
}

// NewAddressSpace allocates a fresh address space whose root table aliases
// the shared kernel half.
func NewAddressSpace() (*AddressSpace, *kernel.Error) {
	vmmLock.Acquire()
	defer vmmLock.Release()

	if kernelSpace == nil {
		return nil, errNotInitialized
	}

	space := new(AddressSpace)
	rootFrame, root, err := space.allocTableLocked()
	if err != nil {
		space.freeFramesLocked()
		return nil, err
	}
	space.rootFrame = rootFrame

	kernelRoot := tables[kernelSpace.rootFrame]
	for entryIndex := kernelRootEntryBase; entryIndex < pageTableEntries; entryIndex++ {
		root[entryIndex] = kernelRoot[entryIndex]
	}

	return space, nil
}

// Map establishes a mapping from a virtual page to a physical frame with the
// given flags, allocating any missing intermediate tables. Mapping a frame
// writable into a non-kernel address space claims exclusive ownership of it;
// a frame already claimed by another live address space cannot be mapped.
// User-accessible mappings are confined to the lower half: the kernel-half
// tables are shared by every address space, so a user mapping installed there
// would become visible to all of them.
func (as *AddressSpace) Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	vmmLock.Acquire()
	defer vmmLock.Release()

	if as.released {
		return errSpaceReleased
	}

	if flags&FlagUserAccessible != 0 && page.Address() >= KernelSpaceBase {
		return errUserMapKernelHalf
	}

	if flags&FlagRW != 0 && as != kernelSpace {
		if owner, claimed := frameOwner[frame]; claimed && owner != as {
			return errFrameInUse
		}
	}

	pte, err := as.walkLocked(page.Address(), true, flags)
	if err != nil {
		return err
	}

	// A remap releases the claim on the frame previously mapped here.
	if pte.HasFlags(FlagPresent) {
		if oldFrame := pte.Frame(); frameOwner[oldFrame] == as {
			delete(frameOwner, oldFrame)
			as.dropOwnedFrameLocked(oldFrame)
		}
	}

	if flags&FlagRW != 0 && as != kernelSpace {
		if _, claimed := frameOwner[frame]; !claimed {
			frameOwner[frame] = as
			as.ownedFrames = append(as.ownedFrames, frame)
		}
	}

	*pte = 0
	pte.SetFrame(frame)
	pte.SetFlags(flags | FlagPresent)

	if as == activeSpace {
		cpu.FlushTLBEntry(page.Address())
	}
	return nil
}

// MapRange maps a contiguous run of virtual pages starting at startPage to
// the supplied frames. If an allocation fails midway the mappings established
// so far are kept; the caller is expected to release the whole address space.
func (as *AddressSpace) MapRange(startPage mm.Page, frames []mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	for frameIndex, frame := range frames {
		if err := as.Map(startPage+mm.Page(frameIndex), frame, flags); err != nil {
			return err
		}
	}
	return nil
}

// Unmap removes the mapping for a virtual page. The backing frame is not
// returned to the frame allocator but any ownership claim on it is dropped.
func (as *AddressSpace) Unmap(page mm.Page) *kernel.Error {
	vmmLock.Acquire()
	defer vmmLock.Release()

	if as.released {
		return errSpaceReleased
	}

	pte, err := as.walkLocked(page.Address(), false, 0)
	if err != nil {
		return err
	}
	if !pte.HasFlags(FlagPresent) {
		return ErrInvalidMapping
	}

	frame := pte.Frame()
	if frameOwner[frame] == as {
		delete(frameOwner, frame)
		as.dropOwnedFrameLocked(frame)
	}

	*pte = 0
	if as == activeSpace {
		cpu.FlushTLBEntry(page.Address())
	}
	return nil
}

// Translate returns the physical address that virtAddr maps to.
func (as *AddressSpace) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	vmmLock.Acquire()
	defer vmmLock.Release()

	if as.released {
		return 0, errSpaceReleased
	}

	pte, err := as.walkLocked(virtAddr, false, 0)
	if err != nil {
		return 0, err
	}
	if !pte.HasFlags(FlagPresent) {
		return 0, ErrInvalidMapping
	}

	return pte.Frame().Address() + (virtAddr & (uintptr(mm.PageSize) - 1)), nil
}

// Activate switches the CPU paging root to this address space. It must be
// called with interrupts disabled.
func (as *AddressSpace) Activate() *kernel.Error {
	vmmLock.Acquire()
	defer vmmLock.Release()

	if as.released {
		return errSpaceReleased
	}

	activeSpace = as
	cpu.SwitchPagingRoot(as.rootFrame.Address())
	return nil
}

// Release returns every frame reserved by this address space (page tables and
// writable user frames) to the physical allocator. The kernel space and the
// currently active space cannot be released.
func (as *AddressSpace) Release() *kernel.Error {
	vmmLock.Acquire()
	defer vmmLock.Release()

	if as.released {
		return errSpaceReleased
	}
	if as == kernelSpace {
		return errReleaseKernel
	}
	if as == activeSpace {
		return errReleaseActive
	}

	as.freeFramesLocked()
	as.released = true
	return nil
}

// walkLocked descends the table hierarchy for virtAddr and returns a pointer
// to the leaf entry. With allocate set, missing intermediate tables are
// created; otherwise the walk fails with ErrInvalidMapping. The vmm lock must
// be held.
func (as *AddressSpace) walkLocked(virtAddr uintptr, allocate bool, leafFlags PageTableEntryFlag) (*pageTableEntry, *kernel.Error) {
	interFlags := FlagPresent | FlagRW
	if leafFlags&FlagUserAccessible != 0 {
		interFlags |= FlagUserAccessible
	}

	table := tables[as.rootFrame]
	for level := 0; level < pageLevels-1; level++ {
		pte := &table[tableIndexForLevel(virtAddr, level)]
		if !pte.HasFlags(FlagPresent) {
			if !allocate {
				return nil, ErrInvalidMapping
			}

			frame, _, err := as.allocTableLocked()
			if err != nil {
				return nil, err
			}
			pte.SetFrame(frame)
		}
		if allocate {
			pte.SetFlags(interFlags)
		}
		table = tables[pte.Frame()]
	}

	return &table[tableIndexForLevel(virtAddr, pageLevels-1)], nil
}

// allocTableLocked reserves a frame for a new zeroed page table and registers
// its contents. The vmm lock must be held.
func (as *AddressSpace) allocTableLocked() (mm.Frame, *pageTable, *kernel.Error) {
	frame, err := mm.AllocFrame()
	if err != nil {
		return mm.InvalidFrame, nil, err
	}

	table := new(pageTable)
	tables[frame] = table
	as.tableFrames = append(as.tableFrames, frame)
	return frame, table, nil
}

// freeFramesLocked returns the space's owned user frames and table frames to
// the physical allocator. The vmm lock must be held.
func (as *AddressSpace) freeFramesLocked() {
	for _, frame := range as.ownedFrames {
		delete(frameOwner, frame)
		mm.FreeFrame(frame)
	}
	as.ownedFrames = nil

	for _, frame := range as.tableFrames {
		delete(tables, frame)
		mm.FreeFrame(frame)
	}
	as.tableFrames = nil
}

func (as *AddressSpace) dropOwnedFrameLocked(frame mm.Frame) {
	for frameIndex, owned := range as.ownedFrames {
		if owned == frame {
			as.ownedFrames = append(as.ownedFrames[:frameIndex], as.ownedFrames[frameIndex+1:]...)
			return
		}
	}
}
