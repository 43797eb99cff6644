// Package bootinfo models the one-time boot handoff supplied to the kernel
// entry point: the firmware-reported physical memory map and the framebuffer
// description. The handoff is consumed exactly once during early boot; the
// frame allocator carves its usable regions into page frames and the
// framebuffer description is handed to the display server once IPC is up.
package bootinfo

// RegionType describes the type of a firmware-reported memory region.
type RegionType uint32

const (
	// RegionAvailable means the region is usable RAM.
	RegionAvailable RegionType = iota

	// RegionReserved means the region must not be touched by the kernel.
	RegionReserved
)

// String implements fmt.Stringer for RegionType.
func (t RegionType) String() string {
	switch t {
	case RegionAvailable:
		return "available"
	case RegionReserved:
		return "reserved"
	default:
		return "unknown"
	}
}

// MemoryRegion describes one entry of the firmware memory map.
type MemoryRegion struct {
	// The physical start address of the region. The reported address is
	// not guaranteed to be page-aligned.
	PhysAddress uint64

	// The region length in bytes.
	Length uint64

	// The region type.
	Type RegionType
}

// PixelFormat describes the layout of a framebuffer pixel.
type PixelFormat uint8

const (
	// PixelFormatRGB specifies direct RGB mode, 8 bits per channel.
	PixelFormatRGB PixelFormat = iota

	// PixelFormatBGR specifies direct BGR mode, 8 bits per channel.
	PixelFormatBGR
)

// FramebufferInfo describes the framebuffer set up by the bootloader.
type FramebufferInfo struct {
	// The framebuffer physical address.
	PhysAddr uint64

	// Width and height in pixels.
	Width, Height uint32

	// Row pitch in bytes.
	Pitch uint32

	// The pixel format.
	Format PixelFormat
}

// BootInfo is the structure the bootloader passes to the kernel entry point
// in a fixed register.
type BootInfo struct {
	Framebuffer FramebufferInfo
	MemoryMap   []MemoryRegion
}

// MemRegionVisitor is invoked for each memory map entry by VisitMemRegions.
// Returning false stops the iteration.
type MemRegionVisitor func(*MemoryRegion) bool

var info *BootInfo

// Set records the boot handoff structure. It is called exactly once by the
// kernel entry point before any allocator is initialized.
func Set(bi *BootInfo) {
	info = bi
}

// VisitMemRegions calls visitor for each entry of the firmware memory map.
func VisitMemRegions(visitor MemRegionVisitor) {
	if info == nil {
		return
	}

	for i := range info.MemoryMap {
		if !visitor(&info.MemoryMap[i]) {
			return
		}
	}
}

// Framebuffer returns the framebuffer description supplied at boot, or nil
// if no handoff has been recorded.
func Framebuffer() *FramebufferInfo {
	if info == nil {
		return nil
	}
	return &info.Framebuffer
}
