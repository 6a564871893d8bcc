package bms

// decideRelay maps battery state and control flags to the desired relay
// output. Pure: no side effects, deterministic for a given input.
//
// Rules, in priority order:
//  1. Master switch off forces OFF, overriding everything.
//  2. A limit of 100 removes the SOC ceiling entirely.
//  3. Otherwise hysteresis around the limit: at or above limit+1 turn OFF,
//     at or below limit-1 turn ON, inside the dead band hold the current
//     state so the relay does not chatter.
//  4. Remote force-off is applied last: it can only ever turn the relay
//     off, never force it on.
func decideRelay(snap BatterySnapshot, flags ControlFlags, relayOn bool) bool {
	if !flags.MasterSwitchOn {
		return false
	}

	desired := relayOn
	if flags.LimitPercent >= limitMax {
		desired = true
	} else if int(snap.SOC) >= flags.LimitPercent+1 {
		desired = false
	} else if int(snap.SOC) <= flags.LimitPercent-1 {
		desired = true
	}

	if flags.RemoteModeEnabled && flags.RemoteForceOff {
		desired = false
	}

	return desired
}

// reconcileRelay runs the decision against the current snapshot and flags
// and applies it to the physical output, only on change. This is the single
// place RelayActive is mutated; every transition is logged with the values
// that triggered it.
func (r *Reader) reconcileRelay(reason string) {
	r.Lock()
	desired := decideRelay(r.snapshot, r.flags, r.flags.RelayActive)
	changed := desired != r.flags.RelayActive
	if changed {
		r.flags.RelayActive = desired
	}
	soc := r.snapshot.SOC
	valid := r.snapshot.Valid()
	flags := r.flags
	r.Unlock()

	if !changed {
		return
	}

	state := "OFF"
	if desired {
		state = "ON"
	}
	r.logger.Infof("relay -> %s (%s): soc=%d%% valid=%t limit=%d%% master=%t forceOff=%t",
		state, reason, soc, valid, flags.LimitPercent, flags.MasterSwitchOn,
		flags.RemoteModeEnabled && flags.RemoteForceOff)

	if err := r.relay.Set(desired); err != nil {
		r.logger.Errorf("failed to drive relay %s: %v", state, err)
	}
}
