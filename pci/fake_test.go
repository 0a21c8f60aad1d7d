package pci

// fakeBus is an in-memory configuration-space backend used by tests: a map
// from Location to a 256-byte configuration space, read/written exactly
// like a real backend but with no hardware underneath. It plays the role
// a real LegacyBackend/EcamBackend play in production, exercised directly
// here rather than through cpu.PortIO/cpu.MMIO, so enumerator and table
// tests don't need to simulate port I/O timing.
type fakeBus struct {
	spaces map[Location]*[256]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{spaces: make(map[Location]*[256]byte)}
}

func (f *fakeBus) space(loc Location) *[256]byte {
	s, ok := f.spaces[loc]
	if !ok {
		s = &[256]byte{0xFF, 0xFF, 0xFF, 0xFF} // default: vendor id 0xFFFF == absent
		f.spaces[loc] = s
	}
	return s
}

func (f *fakeBus) putDevice(loc Location, vendor, device uint16, class, subclass, progif, header uint8) {
	s := f.space(loc)
	s[0], s[1] = byte(vendor), byte(vendor>>8)
	s[2], s[3] = byte(device), byte(device>>8)
	s[0x08] = 0 // revision
	s[0x09] = progif
	s[0x0A] = subclass
	s[0x0B] = class
	s[OffHeaderType] = header
}

func (f *fakeBus) putBridge(loc Location, secondary, subordinate uint8) {
	s := f.space(loc)
	s[OffSecondaryBus] = secondary
	s[OffSubordinateBus] = subordinate
}

func (f *fakeBus) Read(loc Location, off uint16, width uint8) (uint32, error) {
	if err := checkWidth(width); err != nil {
		return 0, err
	}
	s := f.space(loc)
	switch width {
	case 8:
		return uint32(s[off]), nil
	case 16:
		return uint32(s[off]) | uint32(s[off+1])<<8, nil
	default:
		return uint32(s[off]) | uint32(s[off+1])<<8 | uint32(s[off+2])<<16 | uint32(s[off+3])<<24, nil
	}
}

func (f *fakeBus) Write(loc Location, off uint16, width uint8, val uint32) error {
	if err := checkWidth(width); err != nil {
		return err
	}
	s := f.space(loc)
	s[off] = byte(val)
	if width >= 16 {
		s[off+1] = byte(val >> 8)
	}
	if width == 32 {
		s[off+2] = byte(val >> 16)
		s[off+3] = byte(val >> 24)
	}
	return nil
}
