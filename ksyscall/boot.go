package ksyscall

import (
	"github.com/kernelcore/corebus/acpi"
	"github.com/kernelcore/corebus/cpu"
	"github.com/kernelcore/corebus/pci"
)

// InitPCI implements spec.md §4.4 point 1: look for an MCFG table through
// the out-of-scope ACPI table walker; if present, select the MMIO/ECAM
// backend over its segments, otherwise fall back to the legacy I/O-port
// backend with a single implicit segment 0. It installs the chosen backend
// on k and returns the segments that will be enumerated.
func (k *Kernel) InitPCI(lister cpu.ACPITableLister, mmio cpu.MMIO, io cpu.PortIO) ([]pci.Segment, error) {
	segs, ok, err := acpi.LocateMCFG(lister)
	if ok && err == nil && len(segs) > 0 {
		k.SetPCIBackend(pci.NewEcamBackend(mmio, segs), segs)
		return segs, nil
	}

	// spec.md §7: a segment-table construction failure surfaces to the
	// caller, but PCI enumeration still continues with no ECAM — the
	// parsed segment table is dropped and the legacy backend takes over
	// with the single implicit segment 0.
	implicit := []pci.Segment{{Segment: 0, StartBus: 0, EndBus: 255}}
	k.SetPCIBackend(pci.NewLegacyBackend(io), implicit)
	return implicit, err
}
