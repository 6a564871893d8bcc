package bms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySetLimitAccepted(t *testing.T) {
	r, _, relay, _, settings := newTestReader(ControlFlags{LimitPercent: 80, MasterSwitchOn: true})

	r.ApplySetLimit("85")

	assert.Equal(t, 85, r.Flags().LimitPercent)
	assert.Equal(t, "85", settings.values[settingChargeLimit])
	// SOC is still zero, below the new band: the relay reconciles on
	// immediately, without waiting for a poll tick.
	assert.Equal(t, []bool{true}, relay.transitions())
}

func TestApplySetLimitRejected(t *testing.T) {
	payloads := []string{"49", "101", "abc", "", " 85", "85.0", "0x55", "-85"}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			r, _, relay, _, settings := newTestReader(ControlFlags{LimitPercent: 80, MasterSwitchOn: true})

			r.ApplySetLimit(payload)

			assert.Equal(t, 80, r.Flags().LimitPercent, "limit must be unchanged")
			assert.Empty(t, settings.values, "nothing may be persisted")
			assert.Empty(t, relay.transitions(), "relay must not be touched")
		})
	}
}

func TestApplySetLimitBounds(t *testing.T) {
	r, _, _, _, _ := newTestReader(ControlFlags{LimitPercent: 80, MasterSwitchOn: true})

	r.ApplySetLimit("50")
	assert.Equal(t, 50, r.Flags().LimitPercent)

	r.ApplySetLimit("100")
	assert.Equal(t, 100, r.Flags().LimitPercent)
}

func TestApplySetLimitTakesEffectImmediately(t *testing.T) {
	r, _, relay, _, _ := newTestReader(ControlFlags{LimitPercent: 90, MasterSwitchOn: true})

	feed(r, encodeCurrentSuite(2000, 82, 98, 1000))
	r.reconcileRelay("frame")
	assert.Equal(t, []bool{true}, relay.transitions())

	// Lowering the limit below the current SOC cuts the relay at once.
	r.ApplySetLimit("80")
	assert.Equal(t, []bool{true, false}, relay.transitions())
}

func TestApplySetLimitPersistFailureKeepsFlag(t *testing.T) {
	r, _, _, _, settings := newTestReader(ControlFlags{LimitPercent: 80, MasterSwitchOn: true})
	settings.setErr = assert.AnError

	r.ApplySetLimit("85")

	// Storage failure is logged, not propagated: the in-memory limit stands.
	assert.Equal(t, 85, r.Flags().LimitPercent)
}

func TestApplySetPower(t *testing.T) {
	r, _, relay, _, _ := newTestReader(ControlFlags{
		LimitPercent: 85, MasterSwitchOn: true, RemoteModeEnabled: true})

	feed(r, encodeCurrentSuite(2000, 50, 98, 1000))
	r.reconcileRelay("frame")
	assert.Equal(t, []bool{true}, relay.transitions())

	r.ApplySetPower("OFF")
	assert.True(t, r.Flags().RemoteForceOff)
	assert.Equal(t, []bool{true, false}, relay.transitions())

	// Any payload other than the literal "OFF" clears the override.
	r.ApplySetPower("ON")
	assert.False(t, r.Flags().RemoteForceOff)
	assert.Equal(t, []bool{true, false, true}, relay.transitions())
}

func TestApplySetPowerNonOffPayloadsClear(t *testing.T) {
	for _, payload := range []string{"on", "off", "", "garbage", "OFF "} {
		r, _, _, _, _ := newTestReader(ControlFlags{
			MasterSwitchOn: true, RemoteModeEnabled: true, RemoteForceOff: true, LimitPercent: 85})

		r.ApplySetPower(payload)
		assert.False(t, r.Flags().RemoteForceOff, "payload %q must clear force-off", payload)
	}
}

func TestApplySetPowerIgnoredWithoutRemoteMode(t *testing.T) {
	r, _, relay, _, _ := newTestReader(ControlFlags{
		LimitPercent: 85, MasterSwitchOn: true, RemoteModeEnabled: false})

	feed(r, encodeCurrentSuite(2000, 50, 98, 1000))
	r.reconcileRelay("frame")

	// The flag is still recorded so enabling remote mode later honors the
	// last command, but it has no effect on the relay now.
	r.ApplySetPower("OFF")
	assert.True(t, r.Flags().RemoteForceOff)
	assert.Equal(t, []bool{true}, relay.transitions())
}
