package bms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeartbeatStale(t *testing.T) {
	hb := NewHeartbeat()
	timeout := 5 * time.Second

	now := time.Now()
	stale, _ := hb.stale(now, timeout)
	assert.False(t, stale, "fresh heartbeat must not be stale")

	stale, first := hb.stale(now.Add(6*time.Second), timeout)
	assert.True(t, stale)
	assert.True(t, first, "first stall detection must report firstTime")

	stale, first = hb.stale(now.Add(7*time.Second), timeout)
	assert.True(t, stale)
	assert.False(t, first, "repeat detections of one stall must not")

	// A beat ends the stall and re-arms the alarm.
	hb.Beat()
	stale, _ = hb.stale(time.Now(), timeout)
	assert.False(t, stale)

	stale, first = hb.stale(time.Now().Add(6*time.Second), timeout)
	assert.True(t, stale)
	assert.True(t, first)
}

func TestHeartbeatBlockingSuppressesStale(t *testing.T) {
	hb := NewHeartbeat()
	timeout := 5 * time.Second
	now := time.Now()

	hb.EnterBlocking()
	stale, _ := hb.stale(now.Add(time.Minute), timeout)
	assert.False(t, stale, "a blocking transport call is not a stall")

	// ExitBlocking counts as activity.
	hb.ExitBlocking()
	stale, _ = hb.stale(time.Now(), timeout)
	assert.False(t, stale)

	stale, _ = hb.stale(time.Now().Add(6*time.Second), timeout)
	assert.True(t, stale)
}

func TestHeartbeatNestedBlocking(t *testing.T) {
	hb := NewHeartbeat()
	timeout := time.Second
	now := time.Now()

	hb.EnterBlocking()
	hb.EnterBlocking()
	hb.ExitBlocking()

	stale, _ := hb.stale(now.Add(time.Minute), timeout)
	assert.False(t, stale, "still one level deep")

	hb.ExitBlocking()
	stale, _ = hb.stale(time.Now().Add(2*time.Second), timeout)
	assert.True(t, stale)
}
