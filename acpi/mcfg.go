// Package acpi completes the ACPI MCFG parsing spec.md flags as an open
// question: given the raw bytes of an MCFG table (obtained from the
// out-of-scope table walker via ACPITableLister), decode its header and
// per-segment allocation records into pci.Segment values. The SDT header
// validation follows the dhiemaz-gopher-os acpi driver's approach
// (signature, length, checksum) rather than trusting the table blindly.
package acpi

import (
	"encoding/binary"
	"fmt"

	"github.com/kernelcore/corebus/cpu"
	"github.com/kernelcore/corebus/pci"
)

const sdtHeaderLen = 36
const mcfgAllocationLen = 16

// sdtHeader mirrors the standard ACPI System Description Table header used
// by every table, including MCFG.
type sdtHeader struct {
	Signature [4]byte
	Length    uint32
}

// validChecksum sums every byte of the table (header + payload) and
// requires the low byte of the sum to be zero, per the ACPI specification
// and the gopher-os example's validTable check.
func validChecksum(table []byte) bool {
	var sum byte
	for _, b := range table {
		sum += b
	}
	return sum == 0
}

// ParseMCFG decodes an ACPI MCFG table into its constituent ECAM segment
// allocations. Each allocation is 16 bytes: 8-byte base physical address,
// 2-byte PCI segment group, 1-byte start bus, 1-byte end bus, 4 bytes
// reserved.
func ParseMCFG(table []byte) ([]pci.Segment, error) {
	if len(table) < sdtHeaderLen {
		return nil, fmt.Errorf("acpi: MCFG table too short: %d bytes", len(table))
	}
	var hdr sdtHeader
	copy(hdr.Signature[:], table[0:4])
	hdr.Length = binary.LittleEndian.Uint32(table[4:8])
	if string(hdr.Signature[:]) != "MCFG" {
		return nil, fmt.Errorf("acpi: unexpected signature %q, want MCFG", hdr.Signature[:])
	}
	if int(hdr.Length) > len(table) {
		return nil, fmt.Errorf("acpi: MCFG length %d exceeds buffer of %d bytes", hdr.Length, len(table))
	}
	if !validChecksum(table[:hdr.Length]) {
		return nil, fmt.Errorf("acpi: MCFG checksum mismatch")
	}

	// The MCFG-specific header adds 8 reserved bytes after the standard SDT
	// header before the allocation array begins.
	payloadStart := sdtHeaderLen + 8
	if payloadStart > int(hdr.Length) {
		return nil, fmt.Errorf("acpi: MCFG table has no allocation entries")
	}
	payload := table[payloadStart:hdr.Length]

	n := len(payload) / mcfgAllocationLen
	segments := make([]pci.Segment, 0, n)
	for i := 0; i < n; i++ {
		rec := payload[i*mcfgAllocationLen : (i+1)*mcfgAllocationLen]
		segments = append(segments, pci.Segment{
			BasePAddr: binary.LittleEndian.Uint64(rec[0:8]),
			Segment:   binary.LittleEndian.Uint16(rec[8:10]),
			StartBus:  rec[10],
			EndBus:    rec[11],
		})
	}
	return segments, nil
}

// LocateMCFG asks the out-of-scope ACPI table walker for the MCFG table and
// parses it if present. ok is false (with a nil error) when no MCFG table
// exists, the signal to the PCI subsystem to fall back to the legacy
// I/O-port backend with a single implicit segment 0, per spec.md §4.4
// point 1.
func LocateMCFG(lister cpu.ACPITableLister) (segments []pci.Segment, ok bool, err error) {
	raw, found := lister.Lookup("MCFG")
	if !found {
		return nil, false, nil
	}
	segs, err := ParseMCFG(raw)
	if err != nil {
		return nil, false, err
	}
	return segs, true, nil
}
