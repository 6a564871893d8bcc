package bms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendNextRequestRoundRobin(t *testing.T) {
	r, transport, _, _, _ := newTestReader(ControlFlags{})

	// Two full cycles: every register is polled, in order, before any
	// register repeats.
	for i := 0; i < 2*len(pollCycle); i++ {
		r.sendNextRequest()
	}

	requests := transport.requests()
	require.Len(t, requests, 2*len(pollCycle))

	for i, req := range requests {
		want := buildRequest(pollCycle[i%len(pollCycle)])
		assert.Equal(t, want, req, "request %d", i)
	}
}

func TestHandleFrameReconcilesRelay(t *testing.T) {
	r, _, relay, _, _ := newTestReader(ControlFlags{LimitPercent: 85, MasterSwitchOn: true})

	r.handleFrame(FrameEvent{Data: encodeCurrentSuite(2000, 90, 98, 1000)})
	assert.Empty(t, relay.transitions(), "soc above band, relay stays off")

	r.handleFrame(FrameEvent{Data: encodeCurrentSuite(2000, 80, 98, 1000)})
	assert.Equal(t, []bool{true}, relay.transitions())

	// Ignored frames must not trigger a reconcile pass.
	before := len(relay.transitions())
	r.handleFrame(FrameEvent{Data: []byte{0x00, 0x00, 0x00}})
	assert.Len(t, relay.transitions(), before)
}

func TestReaderAccessorsReturnCopies(t *testing.T) {
	r, _, _, _, _ := newTestReader(ControlFlags{LimitPercent: 85, MasterSwitchOn: true})

	feed(r, encodeVoltage(58100))

	snap := r.Snapshot()
	snap.TotalVoltage = 0
	assert.InDelta(t, 58.1, r.Snapshot().TotalVoltage, 0.0005)

	flags := r.Flags()
	flags.LimitPercent = 50
	assert.Equal(t, 85, r.Flags().LimitPercent)
}
