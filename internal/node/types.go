package node

// DriverName identifies a driver slot. The set is fixed by the node
// definitions the remote controller was given.
type DriverName string

// Driver identifiers.
const (
	DriverStatus     DriverName = "ST"
	DriverOnline     DriverName = "OL"
	DriverFrequency  DriverName = "FREQ"
	DriverPulseCount DriverName = "PULSCNT"
	DriverGV0        DriverName = "GV0"
	DriverGV1        DriverName = "GV1"
	DriverGV2        DriverName = "GV2"
	DriverGV3        DriverName = "GV3"
	DriverTime       DriverName = "TIME"
	DriverText       DriverName = "GPV"
)

// UOM is a remote-controller unit-of-measure code.
type UOM int

// Units used by the node definitions.
const (
	UOMBoolean      UOM = 2
	UOMKelvin       UOM = 26
	UOMRaw          UOM = 56
	UOMOnOffUnknown UOM = 78
)

// Reserved driver values.
const (
	// Uninitialized marks a driver that has never carried real data.
	Uninitialized = -1

	// StatusUnknown is reported on ST when the bridge stops.
	StatusUnknown = 101
)

// Kind distinguishes the controller node from device nodes.
type Kind string

// Node kinds.
const (
	KindController Kind = "controller"
	KindDevice     Kind = "device"
)

// Valid reports whether k is a known node kind.
func (k Kind) Valid() bool {
	return k == KindController || k == KindDevice
}

// Driver is one named value slot on a node.
type Driver struct {
	Name  DriverName `json:"driver"`
	Value int        `json:"value"`
	UOM   UOM        `json:"uom"`
}

// DefaultDrivers returns a fresh copy of the driver set for a node kind.
func DefaultDrivers(kind Kind) []Driver {
	switch kind {
	case KindController:
		return []Driver{
			{Name: DriverStatus, Value: Uninitialized, UOM: UOMBoolean},
			{Name: DriverGV0, Value: Uninitialized, UOM: UOMRaw},
			{Name: DriverText, Value: Uninitialized, UOM: UOMRaw},
		}
	case KindDevice:
		return []Driver{
			{Name: DriverStatus, Value: StatusUnknown, UOM: UOMOnOffUnknown},
			{Name: DriverOnline, Value: StatusUnknown, UOM: UOMOnOffUnknown},
			{Name: DriverFrequency, Value: Uninitialized, UOM: UOMRaw},
			{Name: DriverPulseCount, Value: Uninitialized, UOM: UOMBoolean},
			{Name: DriverGV0, Value: Uninitialized, UOM: UOMKelvin},
			{Name: DriverGV1, Value: Uninitialized, UOM: UOMRaw},
			{Name: DriverGV2, Value: Uninitialized, UOM: UOMRaw},
			{Name: DriverGV3, Value: Uninitialized, UOM: UOMRaw},
			{Name: DriverTime, Value: Uninitialized, UOM: UOMRaw},
			{Name: DriverText, Value: Uninitialized, UOM: UOMRaw},
		}
	default:
		return nil
	}
}

// Snapshot is a point-in-time, JSON-friendly copy of a node.
type Snapshot struct {
	Address    string   `json:"address"`
	Parent     string   `json:"parent"`
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	IP         string   `json:"ip,omitempty"`
	Registered bool     `json:"registered"`
	Started    bool     `json:"started"`
	Drivers    []Driver `json:"drivers"`
}
