package bms

import (
	"time"
)

// BatterySnapshot is the reconstructed battery state. It is owned by the
// acquisition loop and continuously overwritten as frames decode; consumers
// must not trust any field while LastUpdateAt is the zero value.
type BatterySnapshot struct {
	TotalVoltage   float64 // volts
	Current        float64 // amps, positive while charging
	SOC            uint8   // percent
	SOH            uint8   // percent
	CycleCount     uint16
	FullCapacityWh float64

	TempPrimary   int // degrees Celsius
	TempSecondary int
	TempMOS       int

	CellVoltages   [NumCells]float64 // index 0 is physical cell 1
	MinCellVoltage float64
	MaxCellVoltage float64
	MinCellIndex   int
	MaxCellIndex   int

	// Pack-level extremes reported by the BMU itself in the cell block B
	// continuation, as opposed to the scan over CellVoltages above.
	PackVoltageMax float64
	PackVoltageMin float64

	LastUpdateAt time.Time
}

// Valid reports whether at least one frame has decoded since start.
func (s *BatterySnapshot) Valid() bool {
	return !s.LastUpdateAt.IsZero()
}

// pendingBlock identifies which 14-cell half, if any, is awaiting its
// continuation chunk. The protocol has no sequence numbers, so this enum and
// the carried byte are the only reassembly state there is.
type pendingBlock int

const (
	blockNone pendingBlock = iota
	blockLow               // cells 1-14
	blockHigh              // cells 15-28
)

func (b pendingBlock) String() string {
	switch b {
	case blockLow:
		return "low"
	case blockHigh:
		return "high"
	default:
		return "none"
	}
}

// reassemblyState tracks an in-progress cell block transfer. Owned
// exclusively by the decode path.
type reassemblyState struct {
	pending pendingBlock
	carry   byte // low byte of the cell value split across the chunk boundary
}

// ControlFlags are the inputs and output of the charge decision. They are
// shared between the acquisition loop and the command path and must only be
// touched under the Reader lock. RelayActive mirrors the physical output and
// is mutated solely by reconcileRelay.
type ControlFlags struct {
	LimitPercent      int // 50..100, persisted
	MasterSwitchOn    bool
	RemoteModeEnabled bool
	RemoteForceOff    bool
	RelayActive       bool
}

// DecodeStats are diagnostic counters for the decode path. The protocol
// cannot distinguish a true continuation chunk from any other 18-byte frame,
// so these exist to make that fragility observable without changing behavior.
type DecodeStats struct {
	FramesDecoded         uint64
	FramesIgnored         uint64 // short, unknown tag, or bad start byte
	ContinuationsConsumed uint64 // 18-byte chunks claimed by a pending block
	OrphanContinuations   uint64 // 18-byte frames seen with nothing pending
}

// ServiceConfig is the static configuration for the service, parsed from
// command line flags in cmd/.
type ServiceConfig struct {
	RedisServerAddress string
	RedisServerPort    uint16

	MQTTBrokerURL string
	MQTTClientID  string

	// SerialDevice is the tty the wireless bridge exposes the BMU link on.
	SerialDevice string
	SerialBaud   int

	// RelayGPIOPath is the sysfs value file of the charge-enable line.
	// Empty selects the log-only relay.
	RelayGPIOPath string

	MasterSwitchOn    bool
	RemoteModeEnabled bool

	LogLevel int
}
