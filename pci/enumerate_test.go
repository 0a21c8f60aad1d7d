package pci

import (
	"context"
	"testing"
)

func TestEnumerateSingleController(t *testing.T) {
	bus := newFakeBus()
	bus.putDevice(Location{Bus: 0, Device: 0, Function: 0}, 0x8086, 0x1234, classBridge, 0x00, 0x00, 0x00)

	devs, err := Enumerate(context.Background(), bus, nil)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(devs) != 1 {
		t.Fatalf("len(devs) = %d, want 1", len(devs))
	}
	if devs[0].VendorName != "Intel Corporation" {
		t.Fatalf("VendorName = %q", devs[0].VendorName)
	}
}

func TestEnumerateWithBridge(t *testing.T) {
	bus := newFakeBus()
	bus.putDevice(Location{Bus: 0, Device: 0, Function: 0}, 0x8086, 0x0000, classBridge, 0x00, 0x00, 0x00)
	bridgeLoc := Location{Bus: 0, Device: 2, Function: 0}
	bus.putDevice(bridgeLoc, 0x8086, 0x1111, classBridge, subclassPCIBridge, 0x00, 0x01)
	bus.putBridge(bridgeLoc, 1, 3)

	// Devices on the downstream buses.
	bus.putDevice(Location{Bus: 1, Device: 0, Function: 0}, 0x1AF4, 0x1000, 0x02, 0x00, 0x00, 0x00)
	bus.putDevice(Location{Bus: 2, Device: 0, Function: 0}, 0x1AF4, 0x1001, 0x01, 0x00, 0x00, 0x00)
	bus.putDevice(Location{Bus: 3, Device: 0, Function: 0}, 0x1AF4, 0x1002, 0x03, 0x00, 0x00, 0x00)

	devs, err := Enumerate(context.Background(), bus, nil)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	seen := map[uint8]bool{}
	for _, d := range devs {
		seen[d.Location.Bus] = true
	}
	for _, b := range []uint8{0, 1, 2, 3} {
		if !seen[b] {
			t.Fatalf("bus %d not visited; visited=%v", b, seen)
		}
	}
	// bus 0 contributes the root device and the bridge itself; buses 1-3
	// each contribute one downstream device.
	if len(devs) != 5 {
		t.Fatalf("len(devs) = %d, want 5", len(devs))
	}
}

func TestEnumerateMultiFunctionRoot(t *testing.T) {
	bus := newFakeBus()
	// Multi-function root: host bridges on functions 0 and 1, each
	// defining bus == function index per spec.md §4.4 point 2.
	bus.putDevice(Location{Bus: 0, Device: 0, Function: 0}, 0x8086, 0x0000, classBridge, 0x00, 0x00, 0x80)
	bus.putDevice(Location{Bus: 0, Device: 0, Function: 1}, 0x8086, 0x0001, classBridge, 0x00, 0x00, 0x00)

	bus.putDevice(Location{Bus: 0, Device: 5, Function: 0}, 0x1AF4, 0x2000, 0x02, 0x00, 0x00, 0x00)
	bus.putDevice(Location{Bus: 1, Device: 3, Function: 0}, 0x1AF4, 0x2001, 0x01, 0x00, 0x00, 0x00)

	devs, err := Enumerate(context.Background(), bus, nil)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	busesSeen := map[uint8]int{}
	for _, d := range devs {
		busesSeen[d.Location.Bus]++
	}
	if busesSeen[0] == 0 || busesSeen[1] == 0 {
		t.Fatalf("expected devices on bus 0 and bus 1, got %v", busesSeen)
	}
}

func TestResolveClassTolerance(t *testing.T) {
	ci := ResolveClass(classBridge, subclassPCIBridge, 0x00)
	if ci.ClassName == "" || ci.SubclassName == "" || ci.ProgIfName == "" {
		t.Fatalf("expected full resolution, got %+v", ci)
	}

	// Subclass present, progif absent from the table -> class/subclass
	// names still resolve, progif name is empty.
	ci = ResolveClass(0x02, 0x00, 0x99)
	if ci.ClassName == "" || ci.SubclassName == "" {
		t.Fatalf("expected class/subclass names, got %+v", ci)
	}
	if ci.ProgIfName != "" {
		t.Fatalf("expected empty ProgIfName, got %q", ci.ProgIfName)
	}

	// Unknown class entirely -> unknown device.
	ci = ResolveClass(0xEE, 0x00, 0x00)
	if ci.ClassName != "" {
		t.Fatalf("expected unknown class, got %+v", ci)
	}
}

func TestLegacyBackendAlignmentAndSegment(t *testing.T) {
	io := &fakePortIO{}
	b := NewLegacyBackend(io)

	if _, err := b.Read(Location{Segment: 1}, 0, 32); err == nil {
		t.Fatalf("expected error for non-zero segment")
	}
	if _, err := b.Read(Location{}, 1, 16); err == nil {
		t.Fatalf("expected alignment error")
	}
	if _, err := b.Read(Location{}, 256, 8); err == nil {
		t.Fatalf("expected out-of-range offset error")
	}
}

type fakePortIO struct {
	lastAddr uint32
	mem      map[uint32]uint32
}

func (f *fakePortIO) Outl(port uint16, val uint32) {
	if f.mem == nil {
		f.mem = make(map[uint32]uint32)
	}
	if port == 0xCF8 {
		f.lastAddr = val
	} else {
		f.mem[f.lastAddr] = val
	}
}

func (f *fakePortIO) Inl(port uint16) uint32 {
	if f.mem == nil {
		return 0
	}
	return f.mem[f.lastAddr]
}

func TestEcamBackendAddressFormula(t *testing.T) {
	mmio := &fakeMMIO{mem: make(map[uintptr]uint32)}
	seg := Segment{BasePAddr: 0x10000000, Segment: 0, StartBus: 0, EndBus: 255}
	b := NewEcamBackend(mmio, []Segment{seg})

	loc := Location{Segment: 0, Bus: 2, Device: 3, Function: 1}
	want := uintptr(0x10000000 + (2 << 20) + (3 << 15) + (1 << 12) + 0x08)
	if err := b.Write(loc, 0x08, 32, 0xDEADBEEF); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := b.Read(loc, 0x08, 32)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("got %#x, want 0xDEADBEEF", got)
	}
	if mmio.mem[want] != 0xDEADBEEF {
		t.Fatalf("address formula mismatch: expected write at %#x", want)
	}
}

type fakeMMIO struct {
	mem map[uintptr]uint32
}

func (m *fakeMMIO) Load8(addr uintptr) uint8   { return uint8(m.mem[addr]) }
func (m *fakeMMIO) Load16(addr uintptr) uint16 { return uint16(m.mem[addr]) }
func (m *fakeMMIO) Load32(addr uintptr) uint32 { return m.mem[addr] }
func (m *fakeMMIO) Store8(addr uintptr, v uint8)   { m.mem[addr] = uint32(v) }
func (m *fakeMMIO) Store16(addr uintptr, v uint16) { m.mem[addr] = uint32(v) }
func (m *fakeMMIO) Store32(addr uintptr, v uint32) { m.mem[addr] = v }
