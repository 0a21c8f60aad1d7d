package acpi

import (
	"encoding/binary"
	"testing"
)

// buildMCFG constructs a minimal, checksum-valid MCFG table with the given
// allocations, for testing ParseMCFG without a real ACPI table walker.
func buildMCFG(allocs [][4]uint64) []byte {
	length := sdtHeaderLen + 8 + len(allocs)*mcfgAllocationLen
	buf := make([]byte, length)
	copy(buf[0:4], "MCFG")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(length))

	off := sdtHeaderLen + 8
	for _, a := range allocs {
		rec := buf[off : off+mcfgAllocationLen]
		binary.LittleEndian.PutUint64(rec[0:8], a[0])
		binary.LittleEndian.PutUint16(rec[8:10], uint16(a[1]))
		rec[10] = byte(a[2])
		rec[11] = byte(a[3])
		off += mcfgAllocationLen
	}

	var sum byte
	for _, b := range buf {
		sum += b
	}
	buf[9] -= sum // checksum byte lives at SDT header offset 9
	return buf
}

func TestParseMCFGSingleAllocation(t *testing.T) {
	table := buildMCFG([][4]uint64{
		{0xB0000000, 0, 0, 255},
	})
	segs, err := ParseMCFG(table)
	if err != nil {
		t.Fatalf("ParseMCFG: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("len(segs) = %d, want 1", len(segs))
	}
	if segs[0].BasePAddr != 0xB0000000 || segs[0].StartBus != 0 || segs[0].EndBus != 255 {
		t.Fatalf("unexpected segment: %+v", segs[0])
	}
}

func TestParseMCFGMultipleSegments(t *testing.T) {
	table := buildMCFG([][4]uint64{
		{0xB0000000, 0, 0, 127},
		{0xC0000000, 1, 0, 255},
	})
	segs, err := ParseMCFG(table)
	if err != nil {
		t.Fatalf("ParseMCFG: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("len(segs) = %d, want 2", len(segs))
	}
	if segs[1].Segment != 1 || segs[1].BasePAddr != 0xC0000000 {
		t.Fatalf("unexpected second segment: %+v", segs[1])
	}
}

func TestParseMCFGBadSignature(t *testing.T) {
	table := buildMCFG([][4]uint64{{0, 0, 0, 0}})
	copy(table[0:4], "XXXX")
	if _, err := ParseMCFG(table); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseMCFGChecksumMismatch(t *testing.T) {
	table := buildMCFG([][4]uint64{{0, 0, 0, 0}})
	table[20] ^= 0xFF // corrupt a header byte without fixing the checksum
	if _, err := ParseMCFG(table); err == nil {
		t.Fatalf("expected checksum error")
	}
}

type fakeLister struct {
	tables map[string][]byte
}

func (f *fakeLister) Lookup(sig string) ([]byte, bool) {
	t, ok := f.tables[sig]
	return t, ok
}

func TestLocateMCFGAbsent(t *testing.T) {
	lister := &fakeLister{tables: map[string][]byte{}}
	segs, ok, err := LocateMCFG(lister)
	if err != nil {
		t.Fatalf("LocateMCFG: %v", err)
	}
	if ok {
		t.Fatalf("ok = true, want false when MCFG absent")
	}
	if segs != nil {
		t.Fatalf("segs = %v, want nil", segs)
	}
}

func TestLocateMCFGPresent(t *testing.T) {
	table := buildMCFG([][4]uint64{{0xB0000000, 0, 0, 255}})
	lister := &fakeLister{tables: map[string][]byte{"MCFG": table}}
	segs, ok, err := LocateMCFG(lister)
	if err != nil {
		t.Fatalf("LocateMCFG: %v", err)
	}
	if !ok || len(segs) != 1 {
		t.Fatalf("ok=%v segs=%v", ok, segs)
	}
}
