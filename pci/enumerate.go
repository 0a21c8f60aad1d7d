package pci

import "context"

// visitState is one of the 256-entry bus visitation table's states, per
// spec.md §3.
type visitState uint8

const (
	notVisited visitState = iota
	toVisit
	visited
)

const maxBuses = 256
const maxDevicesPerBus = 32
const maxFunctionsPerDevice = 8

// Device is the supplemented top-level result: a fully resolved device
// entry, combining spec.md §3's basic info with the class/vendor name
// resolution of §4.4 point 4.
type Device = DeviceInfo

// Enumerate walks, for each provided segment (or an implicit segment 0 when
// none is given), every bus reachable from that segment's bus 0, following
// bridges breadth-first via an explicit worklist
// rather than the teacher's repeat-full-sweep loop (spec.md §9's
// "explicit worklist" design note) while preserving the same visit order:
// bus 0 (or the host-bridge buses on a multi-function root), then each
// bridge's subordinate range in the order bridges were discovered.
func Enumerate(ctx context.Context, backend Backend, segments []Segment) ([]Device, error) {
	var all []Device
	if len(segments) == 0 {
		segments = []Segment{{Segment: 0, StartBus: 0, EndBus: 255}}
	}
	for _, seg := range segments {
		devs, err := enumerateSegment(ctx, backend, seg.Segment)
		if err != nil {
			return all, err
		}
		all = append(all, devs...)
	}
	return all, nil
}

// enumerateSegment implements spec.md §4.4 points 2 and 3 for one segment:
// segment discovery (single vs. multi host-bridge controller) followed by
// the worklist-driven recursive bus walk.
func enumerateSegment(ctx context.Context, backend Backend, segment uint16) ([]Device, error) {
	var state [maxBuses]visitState
	var worklist []uint8

	root := Location{Segment: segment, Bus: 0, Device: 0, Function: 0}
	rootInfo, present, err := probe(backend, root)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}

	if rootInfo.MultiFunc {
		for f := uint8(0); f < maxFunctionsPerDevice; f++ {
			loc := Location{Segment: segment, Bus: 0, Device: 0, Function: f}
			_, ok, err := probe(backend, loc)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			bus := f
			if state[bus] == notVisited {
				state[bus] = toVisit
				worklist = append(worklist, bus)
			}
		}
	} else {
		state[0] = toVisit
		worklist = append(worklist, 0)
	}

	var devices []Device
	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		bus := worklist[0]
		worklist = worklist[1:]
		if state[bus] == visited {
			continue
		}
		found, newBuses, err := visitBus(backend, segment, bus)
		if err != nil {
			return devices, err
		}
		state[bus] = visited
		devices = append(devices, found...)
		for _, nb := range newBuses {
			if state[nb] == notVisited {
				state[nb] = toVisit
				worklist = append(worklist, nb)
			}
		}
	}
	return devices, nil
}

// visitBus probes every device/function on one bus, in ascending
// device-then-function order, resolving class/vendor names and collecting
// any bridge subordinate ranges to add to the worklist, per spec.md §4.4
// point 3.
func visitBus(backend Backend, segment uint16, bus uint8) ([]Device, []uint8, error) {
	var devices []Device
	var newBuses []uint8

	for dev := uint8(0); dev < maxDevicesPerBus; dev++ {
		loc0 := Location{Segment: segment, Bus: bus, Device: dev, Function: 0}
		info0, present, err := probe(backend, loc0)
		if err != nil {
			return devices, newBuses, err
		}
		if !present {
			continue
		}
		devices = append(devices, resolveNames(info0))
		if err := maybeBridge(backend, info0, &newBuses); err != nil {
			return devices, newBuses, err
		}

		if !info0.MultiFunc {
			continue
		}
		for f := uint8(1); f < maxFunctionsPerDevice; f++ {
			loc := Location{Segment: segment, Bus: bus, Device: dev, Function: f}
			info, ok, err := probe(backend, loc)
			if err != nil {
				return devices, newBuses, err
			}
			if !ok {
				continue
			}
			devices = append(devices, resolveNames(info))
			if err := maybeBridge(backend, info, &newBuses); err != nil {
				return devices, newBuses, err
			}
		}
	}
	return devices, newBuses, nil
}

func maybeBridge(backend Backend, info DeviceInfo, newBuses *[]uint8) error {
	if !isPCIBridge(info) {
		return nil
	}
	secondary, subordinate, err := bridgeRange(backend, info.Location)
	if err != nil {
		return err
	}
	for b := secondary; b <= subordinate; b++ {
		*newBuses = append(*newBuses, b)
		if b == 255 {
			break // avoid uint8 wraparound when subordinate == 255
		}
	}
	return nil
}

func resolveNames(info DeviceInfo) Device {
	ci := ResolveClass(info.ClassID, info.SubclassID, info.ProgIfID)
	info.ClassName = ci.ClassName
	info.SubclassName = ci.SubclassName
	info.ProgIfName = ci.ProgIfName
	info.VendorName = ResolveVendor(info.VendorID)
	return info
}
