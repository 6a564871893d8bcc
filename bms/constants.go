package bms

import (
	"time"
)

const (
	// Register tags reported by the BMU. The tag byte sits at frameTagOffset
	// in every first-chunk frame; continuation chunks carry no tag at all.
	tagVoltage      = 0x83
	tagCurrentSuite = 0x84 // current, SOC, SOH, full capacity
	tagTemperature  = 0x85
	tagCycleCount   = 0x87
	tagCellBlockA   = 0x24 // cells 1-14, first chunk
	tagCellBlockB   = 0x25 // cells 15-28, first chunk

	frameStartByte = 0x5A
	frameTagOffset = 1

	// Minimum frame lengths per register. Shorter frames are transport
	// noise and are dropped without an error.
	minLenVoltage      = 9
	minLenCurrentSuite = 18
	minLenTemperature  = 9
	minLenCycleCount   = 7
	minLenCellHeader   = 20

	// Continuation chunks are exactly this long. The link MTU truncates a
	// cell block response after 20 bytes; the remainder arrives as one
	// tagless 18-byte chunk.
	lenContinuation = 18

	// Cell block chunk layout
	cellHeaderDataOffset  = 5  // seven full cells, little-endian millivolts
	cellHeaderCarryOffset = 19 // low byte of the eighth cell in the half
	contCellsOffset       = 1  // six full cells after the carried byte
	contPackMaxOffset     = 13 // block B continuation only
	contPackMinOffset     = 15

	// NumCells is the pack size; snapshot index 0 is physical cell 1.
	NumCells     = 28
	cellsPerHalf = 14

	// Outbound request frame: header, tag, reserved, sum-of-bytes checksum
	reqHeader0 = 0xA5
	reqHeader1 = 0x03
	reqLen     = 5

	// Timing constants
	timeRequestInterval = 500 * time.Millisecond // BMU rejects faster request pacing
	timePublishInterval = 10 * time.Second
	timeTransportWrite  = 2 * time.Second // bound on a single outbound write
	timeWatchdogStale   = 5 * time.Second
	timeHousekeeping    = 1 * time.Second

	// Charge limit bounds; values outside are rejected, never clamped
	limitMin            = 50
	limitMax            = 100
	defaultLimitPercent = 80

	// Cells below this are treated as not yet received this session and
	// excluded from the min/max scan.
	cellIgnoreVolts = 0.1
)

// MQTT topics
const (
	topicSetLimit = "charge/set_limit"
	topicSetPower = "charge/set_power"
	topicStatus   = "bms/status"
	topicCells    = "bms/cells"
)

// pollCycle is the round-robin request order for the acquisition loop.
var pollCycle = []byte{
	tagVoltage,
	tagCurrentSuite,
	tagTemperature,
	tagCycleCount,
	tagCellBlockA,
	tagCellBlockB,
}
