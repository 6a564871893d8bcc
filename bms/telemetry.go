package bms

import (
	"fmt"
	"strings"
)

// Publisher sends telemetry to the remote broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// statusPayload renders the flat bms/status record. The format is part of
// the external contract: two decimals for voltage and current, whole watt
// hours, integers everywhere else, relay as 0/1.
func statusPayload(snap BatterySnapshot, flags ControlFlags) string {
	rly := 0
	if flags.RelayActive {
		rly = 1
	}
	return fmt.Sprintf(
		`{"v":%.2f,"i":%.2f,"soc":%d,"soh":%d,"cap":%.0f,"cyc":%d,"t1":%d,"t2":%d,"tm":%d,"rly":%d,"lim":%d}`,
		snap.TotalVoltage, snap.Current, snap.SOC, snap.SOH, snap.FullCapacityWh,
		snap.CycleCount, snap.TempPrimary, snap.TempSecondary, snap.TempMOS,
		rly, flags.LimitPercent)
}

// cellsPayload renders bms/cells: all 28 cells, three decimals, physical
// cell 1 first.
func cellsPayload(snap BatterySnapshot) string {
	var b strings.Builder
	b.WriteString(`{"cells":[`)
	for i, v := range snap.CellVoltages {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.3f", v)
	}
	b.WriteString("]}")
	return b.String()
}

// publishTelemetry emits the current snapshot, gated on validity: before the
// first successful decode every field is garbage and publishing it would
// poison downstream consumers.
func (r *Reader) publishTelemetry() {
	r.Lock()
	snap := r.snapshot
	flags := r.flags
	stats := r.stats
	r.Unlock()

	if !snap.Valid() {
		r.logger.Debugf("telemetry suppressed, snapshot not yet valid")
		return
	}

	if err := r.publisher.Publish(topicStatus, []byte(statusPayload(snap, flags))); err != nil {
		r.logger.Warnf("failed to publish %s: %v", topicStatus, err)
	}
	if err := r.publisher.Publish(topicCells, []byte(cellsPayload(snap))); err != nil {
		r.logger.Warnf("failed to publish %s: %v", topicCells, err)
	}

	r.logger.Debugf("decode stats: decoded=%d ignored=%d continuations=%d orphans=%d",
		stats.FramesDecoded, stats.FramesIgnored, stats.ContinuationsConsumed,
		stats.OrphanContinuations)
}
