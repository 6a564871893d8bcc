package bms

import (
	"encoding/binary"
	"time"
)

// decodeFrame interprets one chunk received from the BMU link and folds it
// into the snapshot. Malformed, truncated or unrecognized frames are dropped
// silently: the link makes no guarantees, and noise must never desynchronize
// the decoder. Callers hold the Reader lock.
//
// Returns true if the snapshot was updated.
func (r *Reader) decodeFrame(data []byte) bool {
	// An in-progress cell transfer claims the next 18-byte chunk sight
	// unseen. Continuation chunks carry no tag, so length is the only
	// discriminator the protocol offers; a stray 18-byte frame from some
	// other register would be consumed here just the same. Preserved
	// behavior, counted in DecodeStats for diagnosis.
	if r.reassembly.pending != blockNone && len(data) == lenContinuation {
		r.decodeContinuation(data)
		return true
	}

	if len(data) <= frameTagOffset || data[0] != frameStartByte {
		if len(data) == lenContinuation {
			r.stats.OrphanContinuations++
		}
		r.stats.FramesIgnored++
		return false
	}

	switch data[frameTagOffset] {
	case tagVoltage:
		if len(data) < minLenVoltage {
			r.stats.FramesIgnored++
			return false
		}
		mv := int32(binary.LittleEndian.Uint32(data[2:6]))
		r.snapshot.TotalVoltage = float64(mv) / 1000.0

	case tagCurrentSuite:
		if len(data) < minLenCurrentSuite {
			r.stats.FramesIgnored++
			return false
		}
		ma := int32(binary.LittleEndian.Uint32(data[2:6]))
		r.snapshot.Current = float64(ma) / 1000.0
		r.snapshot.SOC = data[8]
		r.snapshot.SOH = data[9]
		r.snapshot.FullCapacityWh = float64(binary.LittleEndian.Uint16(data[12:14]))

	case tagTemperature:
		if len(data) < minLenTemperature {
			r.stats.FramesIgnored++
			return false
		}
		r.snapshot.TempPrimary = int(int8(data[2]))
		r.snapshot.TempSecondary = int(int8(data[3]))
		r.snapshot.TempMOS = int(int8(data[4]))

	case tagCycleCount:
		if len(data) < minLenCycleCount {
			r.stats.FramesIgnored++
			return false
		}
		r.snapshot.CycleCount = binary.LittleEndian.Uint16(data[2:4])

	case tagCellBlockA:
		if len(data) < minLenCellHeader {
			r.stats.FramesIgnored++
			return false
		}
		r.decodeCellHeader(blockLow, data)

	case tagCellBlockB:
		if len(data) < minLenCellHeader {
			r.stats.FramesIgnored++
			return false
		}
		r.decodeCellHeader(blockHigh, data)

	default:
		if len(data) == lenContinuation {
			r.stats.OrphanContinuations++
		}
		r.stats.FramesIgnored++
		return false
	}

	r.stats.FramesDecoded++
	r.snapshot.LastUpdateAt = time.Now()
	return true
}

// decodeCellHeader handles the first chunk of a 14-cell half: seven complete
// cell values plus the low byte of the eighth, whose high byte arrives at
// the head of the continuation chunk. Opening a new header while another
// block is pending abandons the old transfer; the BMU never interleaves
// halves, so a leftover pending block means its continuation was lost.
func (r *Reader) decodeCellHeader(block pendingBlock, data []byte) {
	if r.reassembly.pending != blockNone {
		r.logger.Debugf("cell block %s header while %s pending, dropping stale transfer",
			block, r.reassembly.pending)
	}

	base := 0
	if block == blockHigh {
		base = cellsPerHalf
	}

	for i := 0; i < 7; i++ {
		mv := binary.LittleEndian.Uint16(data[cellHeaderDataOffset+2*i:])
		r.snapshot.CellVoltages[base+i] = float64(mv) / 1000.0
	}

	r.reassembly.pending = block
	r.reassembly.carry = data[cellHeaderCarryOffset]

	r.recomputeCellExtremes()
}

// decodeContinuation completes the pending half: the carried byte plus the
// chunk's first byte form the eighth cell, six more cells follow, and the
// block B continuation additionally reports the BMU's own pack min/max.
func (r *Reader) decodeContinuation(data []byte) {
	base := 7
	if r.reassembly.pending == blockHigh {
		base = cellsPerHalf + 7
	}

	carried := uint16(r.reassembly.carry) | uint16(data[0])<<8
	r.snapshot.CellVoltages[base] = float64(carried) / 1000.0

	for i := 0; i < 6; i++ {
		mv := binary.LittleEndian.Uint16(data[contCellsOffset+2*i:])
		r.snapshot.CellVoltages[base+1+i] = float64(mv) / 1000.0
	}

	if r.reassembly.pending == blockHigh {
		r.snapshot.PackVoltageMax = float64(binary.LittleEndian.Uint16(data[contPackMaxOffset:])) / 1000.0
		r.snapshot.PackVoltageMin = float64(binary.LittleEndian.Uint16(data[contPackMinOffset:])) / 1000.0
	}

	r.reassembly.pending = blockNone
	r.reassembly.carry = 0

	r.stats.ContinuationsConsumed++
	r.stats.FramesDecoded++
	r.snapshot.LastUpdateAt = time.Now()

	r.recomputeCellExtremes()
}

// recomputeCellExtremes rescans the whole cell array. Entries at or below
// cellIgnoreVolts have not been received this session and are skipped.
func (r *Reader) recomputeCellExtremes() {
	minV, maxV := 0.0, 0.0
	minIdx, maxIdx := 0, 0
	seen := false

	for i, v := range r.snapshot.CellVoltages {
		if v <= cellIgnoreVolts {
			continue
		}
		if !seen || v < minV {
			minV, minIdx = v, i
		}
		if !seen || v > maxV {
			maxV, maxIdx = v, i
		}
		seen = true
	}

	r.snapshot.MinCellVoltage = minV
	r.snapshot.MaxCellVoltage = maxV
	r.snapshot.MinCellIndex = minIdx
	r.snapshot.MaxCellIndex = maxIdx
}

// buildRequest assembles the outbound poll frame for a register: fixed
// header, tag, reserved byte, then a sum-of-bytes checksum over everything
// before it.
func buildRequest(tag byte) []byte {
	frame := []byte{reqHeader0, reqHeader1, tag, 0x00, 0x00}
	var sum byte
	for _, b := range frame[:reqLen-1] {
		sum += b
	}
	frame[reqLen-1] = sum
	return frame
}
