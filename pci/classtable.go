package pci

// ClassEntry is one row of the static class/subclass/progif table spec.md
// §4.4 point 4 describes: class-major ordering so the lookup can do three
// nested linear scans instead of a map keyed on the full triple (which
// would hide the "tolerate missing subclass/progif" rule). The set of
// entries below is representative of the classes spec.md's scenarios
// exercise (mass storage, network, display, bridge) plus the vendor ids
// seen across the retrieval pack's PCI-adjacent examples (mpleso-vnet,
// tinyrange-cc's virtio backend).
type ClassEntry struct {
	ClassID      uint8
	SubclassID   uint8
	ProgIfID     uint8
	HasSubclass  bool
	HasProgIf    bool
	ClassName    string
	SubclassName string
	ProgIfName   string
}

// ClassTable is ordered by ClassID, then by SubclassID within a class, then
// by ProgIfID within a subclass, matching the scan spec.md describes.
var ClassTable = []ClassEntry{
	{ClassID: 0x01, SubclassID: 0x00, HasSubclass: true, ClassName: "Mass Storage Controller", SubclassName: "SCSI Controller"},
	{ClassID: 0x01, SubclassID: 0x01, HasSubclass: true, ProgIfID: 0x80, HasProgIf: true, ClassName: "Mass Storage Controller", SubclassName: "IDE Controller", ProgIfName: "ISA Compatibility Mode"},
	{ClassID: 0x01, SubclassID: 0x06, HasSubclass: true, ProgIfID: 0x01, HasProgIf: true, ClassName: "Mass Storage Controller", SubclassName: "SATA Controller", ProgIfName: "AHCI 1.0"},
	{ClassID: 0x01, SubclassID: 0x08, HasSubclass: true, ProgIfID: 0x02, HasProgIf: true, ClassName: "Mass Storage Controller", SubclassName: "Non-Volatile Memory Controller", ProgIfName: "NVMHCI"},

	{ClassID: 0x02, SubclassID: 0x00, HasSubclass: true, ClassName: "Network Controller", SubclassName: "Ethernet Controller"},
	{ClassID: 0x02, SubclassID: 0x80, HasSubclass: true, ClassName: "Network Controller", SubclassName: "Other Network Controller"},

	{ClassID: 0x03, SubclassID: 0x00, HasSubclass: true, ProgIfID: 0x00, HasProgIf: true, ClassName: "Display Controller", SubclassName: "VGA Compatible Controller", ProgIfName: "VGA Controller"},

	{ClassID: 0x06, SubclassID: 0x00, HasSubclass: true, ClassName: "Bridge Device", SubclassName: "Host Bridge"},
	{ClassID: 0x06, SubclassID: 0x01, HasSubclass: true, ClassName: "Bridge Device", SubclassName: "ISA Bridge"},
	{ClassID: 0x06, SubclassID: 0x04, HasSubclass: true, ProgIfID: 0x00, HasProgIf: true, ClassName: "Bridge Device", SubclassName: "PCI-to-PCI Bridge", ProgIfName: "Normal Decode"},
	{ClassID: 0x06, SubclassID: 0x04, HasSubclass: true, ProgIfID: 0x01, HasProgIf: true, ClassName: "Bridge Device", SubclassName: "PCI-to-PCI Bridge", ProgIfName: "Subtractive Decode"},
	{ClassID: 0x06, SubclassID: 0x80, HasSubclass: true, ClassName: "Bridge Device", SubclassName: "Other Bridge Device"},

	{ClassID: 0x0C, SubclassID: 0x03, HasSubclass: true, ProgIfID: 0x30, HasProgIf: true, ClassName: "Serial Bus Controller", SubclassName: "USB Controller", ProgIfName: "XHCI"},
}

// ClassInfo is the resolved result of a class/subclass/progif lookup.
type ClassInfo struct {
	ClassName    string // empty means "unknown device"
	SubclassName string
	ProgIfName   string
}

// ResolveClass implements spec.md §4.4 point 4's lookup algorithm: find any
// entry matching classID, then scan forward while classID holds to find
// subclassID, then further scan while subclassID holds to find progifID.
// Missing subclass/progif names are tolerated; only a missing ClassName
// means "unknown device".
func ResolveClass(classID, subclassID, progifID uint8) ClassInfo {
	start := -1
	for i, e := range ClassTable {
		if e.ClassID == classID {
			start = i
			break
		}
	}
	if start == -1 {
		return ClassInfo{}
	}

	info := ClassInfo{ClassName: ClassTable[start].ClassName}

	subStart := -1
	for i := start; i < len(ClassTable) && ClassTable[i].ClassID == classID; i++ {
		if ClassTable[i].HasSubclass && ClassTable[i].SubclassID == subclassID {
			subStart = i
			break
		}
	}
	if subStart == -1 {
		return info
	}
	info.SubclassName = ClassTable[subStart].SubclassName

	for i := subStart; i < len(ClassTable) && ClassTable[i].ClassID == classID && ClassTable[i].SubclassID == subclassID; i++ {
		if ClassTable[i].HasProgIf && ClassTable[i].ProgIfID == progifID {
			info.ProgIfName = ClassTable[i].ProgIfName
			break
		}
	}
	return info
}

// VendorEntry is one row of the vendor id -> name table.
type VendorEntry struct {
	VendorID uint16
	Name     string
}

// VendorTable covers the vendor ids exercised across the retrieval pack's
// PCI examples: Intel (biscuit's pci.go), the QEMU/virtio vendor id
// (tinyrange-cc's virtio backend), and a couple of other common ids for a
// realistic lookup surface.
var VendorTable = []VendorEntry{
	{VendorID: 0x8086, Name: "Intel Corporation"},
	{VendorID: 0x1AF4, Name: "Red Hat, Inc. (QEMU virtio)"},
	{VendorID: 0x10DE, Name: "NVIDIA Corporation"},
	{VendorID: 0x1022, Name: "Advanced Micro Devices, Inc."},
	{VendorID: 0x15AD, Name: "VMware, Inc."},
}

// ResolveVendor returns the vendor name for id, or "" if unknown.
func ResolveVendor(id uint16) string {
	for _, v := range VendorTable {
		if v.VendorID == id {
			return v.Name
		}
	}
	return ""
}
