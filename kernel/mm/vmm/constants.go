package vmm

const (
	// pageLevels indicates the number of page table levels supported by
	// the architecture.
	pageLevels = 4

	// pageTableEntries is the number of entries in a page table at any
	// level.
	pageTableEntries = 512

	// ptePhysPageMask is a mask that allows us to extract the physical
	// memory address pointed to by a page table entry. Bits 12-51 contain
	// the physical memory address.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// KernelSpaceBase is the first virtual address of the kernel's high
	// half. The root page table entries covering addresses at or above
	// this base are shared by every address space so kernel code and data
	// remain accessible after a privilege-level switch.
	KernelSpaceBase = uintptr(0xffff800000000000)

	// kernelRootEntryBase is the index of the first root table entry that
	// belongs to the kernel half.
	kernelRootEntryBase = (KernelSpaceBase >> pageLevelShift0) & (pageTableEntries - 1)

	pageLevelShift0 = 39
)

var (
	// pageLevelShifts defines the shift required to extract each page
	// table index from a virtual address.
	pageLevelShifts = [pageLevels]uint8{
		39,
		30,
		21,
		12,
	}
)

// PageTableEntryFlag describes a flag that can be applied to a page table
// entry.
type PageTableEntryFlag uintptr

const (
	// FlagPresent is set when the page is backed by a physical frame.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this
	// page. If not set only kernel code can access the page.
	FlagUserAccessible

	// FlagNoExecute, if set, indicates that a page contains
	// non-executable data.
	FlagNoExecute = PageTableEntryFlag(1) << 63
)
