package bootinfo

import "testing"

func TestVisitMemRegions(t *testing.T) {
	defer Set(nil)

	Set(&BootInfo{
		MemoryMap: []MemoryRegion{
			{PhysAddress: 0x0, Length: 0x9fc00, Type: RegionAvailable},
			{PhysAddress: 0xf0000, Length: 0x10000, Type: RegionReserved},
			{PhysAddress: 0x100000, Length: 0x7ee0000, Type: RegionAvailable},
		},
	})

	var visited int
	VisitMemRegions(func(region *MemoryRegion) bool {
		visited++
		return true
	})

	if visited != 3 {
		t.Fatalf("expected visitor to be called 3 times; got %d", visited)
	}

	// The visitor can abort the iteration.
	visited = 0
	VisitMemRegions(func(region *MemoryRegion) bool {
		visited++
		return false
	})

	if visited != 1 {
		t.Fatalf("expected aborted visit to stop after 1 region; got %d", visited)
	}
}

func TestVisitMemRegionsWithoutHandoff(t *testing.T) {
	Set(nil)

	VisitMemRegions(func(region *MemoryRegion) bool {
		t.Fatal("unexpected visitor call without a recorded handoff")
		return false
	})

	if Framebuffer() != nil {
		t.Fatal("expected Framebuffer to return nil without a recorded handoff")
	}
}

func TestFramebuffer(t *testing.T) {
	defer Set(nil)

	Set(&BootInfo{
		Framebuffer: FramebufferInfo{
			PhysAddr: 0xfd000000,
			Width:    1024,
			Height:   768,
			Pitch:    4096,
			Format:   PixelFormatBGR,
		},
	})

	fb := Framebuffer()
	if fb == nil {
		t.Fatal("expected a framebuffer description")
	}

	if fb.Width != 1024 || fb.Height != 768 || fb.Pitch != 4096 {
		t.Fatalf("unexpected framebuffer geometry: %+v", *fb)
	}
}

func TestRegionTypeString(t *testing.T) {
	specs := []struct {
		in  RegionType
		exp string
	}{
		{RegionAvailable, "available"},
		{RegionReserved, "reserved"},
		{RegionType(99), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.in.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}
