package bms

import (
	"context"
	"sync"
	"time"
)

// Reader owns the acquisition loop: it drives the request cycle against the
// BMU, folds inbound frames into the snapshot, publishes telemetry and
// reconciles the relay. The snapshot, reassembly state and control flags all
// live here behind the embedded mutex; the command path mutates flags
// through the exported Apply* methods and never touches them directly.
type Reader struct {
	sync.Mutex
	ctx    context.Context
	logger *Logger

	transport Transport
	relay     Relay
	publisher Publisher
	settings  SettingsStore // nil disables persistence, decisions never wait on it

	snapshot   BatterySnapshot
	reassembly reassemblyState
	flags      ControlFlags
	stats      DecodeStats

	pollIndex int

	heartbeat      *Heartbeat
	masterChan     chan bool
	remoteModeChan chan bool
	stopChan       chan struct{}
	doneChan       chan struct{}
}

func NewReader(ctx context.Context, logger *Logger, transport Transport, relay Relay,
	publisher Publisher, settings SettingsStore, flags ControlFlags) *Reader {
	return &Reader{
		ctx:            ctx,
		logger:         logger.WithComponent("Reader"),
		transport:      transport,
		relay:          relay,
		publisher:      publisher,
		settings:       settings,
		flags:          flags,
		heartbeat:      NewHeartbeat(),
		masterChan:     make(chan bool, 1),
		remoteModeChan: make(chan bool, 1),
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}
}

// Heartbeat exposes the loop's liveness signal for the watchdog.
func (r *Reader) Heartbeat() *Heartbeat {
	return r.heartbeat
}

func (r *Reader) Start() {
	go r.run()
}

func (r *Reader) Stop() {
	close(r.stopChan)
	<-r.doneChan
}

// SetMasterSwitch feeds a local master switch change into the loop. Latest
// value wins; the sender never blocks.
func (r *Reader) SetMasterSwitch(on bool) {
	tryUpdateChannel(r.masterChan, on)
}

// SetRemoteMode enables or disables the remote override path.
func (r *Reader) SetRemoteMode(enabled bool) {
	tryUpdateChannel(r.remoteModeChan, enabled)
}

// Snapshot returns a copy of the current battery state.
func (r *Reader) Snapshot() BatterySnapshot {
	r.Lock()
	defer r.Unlock()
	return r.snapshot
}

// Flags returns a copy of the current control flags.
func (r *Reader) Flags() ControlFlags {
	r.Lock()
	defer r.Unlock()
	return r.flags
}

// Stats returns a copy of the decode counters.
func (r *Reader) Stats() DecodeStats {
	r.Lock()
	defer r.Unlock()
	return r.stats
}

func (r *Reader) run() {
	defer close(r.doneChan)

	r.logger.Debugf("acquisition loop started")

	requestTicker := time.NewTicker(timeRequestInterval)
	defer requestTicker.Stop()
	publishTicker := time.NewTicker(timePublishInterval)
	defer publishTicker.Stop()

	// Apply safety rules from the first moment, before any data arrives:
	// master-off and force-off must hold even with an invalid snapshot.
	r.reconcileRelay("startup")

	for {
		select {
		case <-r.stopChan:
			r.logger.Debugf("acquisition loop stopping")
			return

		case <-r.ctx.Done():
			r.logger.Debugf("acquisition loop cancelled")
			return

		case on := <-r.masterChan:
			r.Lock()
			r.flags.MasterSwitchOn = on
			r.Unlock()
			r.logger.Infof("master switch %t", on)
			r.reconcileRelay("master switch")

		case enabled := <-r.remoteModeChan:
			r.Lock()
			r.flags.RemoteModeEnabled = enabled
			r.Unlock()
			r.logger.Infof("remote mode %t", enabled)
			r.reconcileRelay("remote mode")

		case ev, ok := <-r.transport.Frames():
			if !ok {
				r.logger.Warnf("transport frame stream closed")
				return
			}
			r.handleFrame(ev)

		case <-requestTicker.C:
			r.heartbeat.Beat()
			if r.transport.Connected() {
				r.sendNextRequest()
			}
			// Control-decision tick; a command may also have reconciled
			// already, which makes this a cheap no-op.
			r.reconcileRelay("poll tick")

		case <-publishTicker.C:
			r.heartbeat.Beat()
			if r.transport.Connected() {
				r.publishTelemetry()
			}
		}
	}
}

func (r *Reader) handleFrame(ev FrameEvent) {
	r.Lock()
	updated := r.decodeFrame(ev.Data)
	r.Unlock()

	if updated {
		r.reconcileRelay("frame")
	}
}

// sendNextRequest advances the round-robin cycle and writes one request
// frame. A write failure or timeout is not fatal; the loop just moves on to
// the next cycle and leaves persistent unresponsiveness to the transport's
// own reconnect policy.
func (r *Reader) sendNextRequest() {
	tag := pollCycle[r.pollIndex]
	r.pollIndex = (r.pollIndex + 1) % len(pollCycle)

	ctx, cancel := context.WithTimeout(r.ctx, timeTransportWrite)
	defer cancel()

	r.heartbeat.EnterBlocking()
	err := r.transport.Write(ctx, buildRequest(tag))
	r.heartbeat.ExitBlocking()

	if err != nil {
		r.logger.Warnf("request for register 0x%02x failed: %v", tag, err)
	}
}
