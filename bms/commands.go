package bms

import (
	"context"
	"strconv"
	"time"
)

// ApplySetLimit handles a remote charge/set_limit command. Only integers in
// [limitMin, limitMax] are accepted; anything else is a no-op. Strict
// parsing matters here: a garbage payload must not decay to zero and then
// get clamped into range. The new limit is persisted best-effort and the
// relay is reconciled synchronously so the change takes effect without
// waiting for the next poll tick.
func (r *Reader) ApplySetLimit(payload string) {
	limit, err := strconv.Atoi(payload)
	if err != nil {
		r.logger.Warnf("set_limit rejected, not an integer: %q", payload)
		return
	}
	if limit < limitMin || limit > limitMax {
		r.logger.Warnf("set_limit rejected, out of range [%d,%d]: %d", limitMin, limitMax, limit)
		return
	}

	r.Lock()
	r.flags.LimitPercent = limit
	r.Unlock()

	r.logger.Infof("charge limit set to %d%%", limit)
	r.persistLimit(limit)
	r.reconcileRelay("set_limit")
}

// ApplySetPower handles a remote charge/set_power command. The literal
// "OFF" asserts force-off; every other payload, including "ON", empty and
// garbage, clears it. That asymmetry is deliberate: the remote path may
// only withhold charging, never force it on past the local policy.
func (r *Reader) ApplySetPower(payload string) {
	off := payload == "OFF"

	r.Lock()
	r.flags.RemoteForceOff = off
	r.Unlock()

	r.logger.Infof("remote force-off %t (payload %q)", off, payload)
	r.reconcileRelay("set_power")
}

func (r *Reader) persistLimit(limit int) {
	if r.settings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
	defer cancel()
	if err := r.settings.Set(ctx, settingChargeLimit, strconv.Itoa(limit)); err != nil {
		// The in-memory flag already changed; the relay must not wait on
		// storage. Worst case the old limit comes back after a restart.
		r.logger.Warnf("failed to persist charge limit: %v", err)
	}
}
