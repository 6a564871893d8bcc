package bms

import (
	"sync"
	"time"
)

// Heartbeat tracks liveness of one execution context. The owning goroutine
// calls Beat on every loop iteration and brackets bounded transport calls
// with EnterBlocking/ExitBlocking so an outstanding write is never mistaken
// for a stall.
type Heartbeat struct {
	mu       sync.Mutex
	lastBeat time.Time
	blocking int
	alarmed  bool
}

func NewHeartbeat() *Heartbeat {
	return &Heartbeat{lastBeat: time.Now()}
}

func (h *Heartbeat) Beat() {
	h.mu.Lock()
	h.lastBeat = time.Now()
	h.alarmed = false
	h.mu.Unlock()
}

func (h *Heartbeat) EnterBlocking() {
	h.mu.Lock()
	h.blocking++
	h.mu.Unlock()
}

func (h *Heartbeat) ExitBlocking() {
	h.mu.Lock()
	if h.blocking > 0 {
		h.blocking--
	}
	h.lastBeat = time.Now()
	h.mu.Unlock()
}

// stale reports whether the context has gone quiet past timeout. A context
// inside a blocking transport call is never stale. The alarmed latch makes
// the watchdog log once per stall instead of once per poll.
func (h *Heartbeat) stale(now time.Time, timeout time.Duration) (stale, firstTime bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.blocking > 0 {
		return false, false
	}
	if now.Sub(h.lastBeat) <= timeout {
		return false, false
	}
	first := !h.alarmed
	h.alarmed = true
	return true, first
}

type watchdogEntry struct {
	name string
	hb   *Heartbeat
}

// Watchdog polls registered heartbeats and logs when one goes stale. Expiry
// is alarmed, never escalated to a process exit: killing the service over a
// recoverable transport transient would trade a hiccup for a full restart.
type Watchdog struct {
	logger  *Logger
	timeout time.Duration

	mu      sync.Mutex
	entries []watchdogEntry

	stopChan chan struct{}
	stopped  sync.Once
}

func NewWatchdog(logger *Logger, timeout time.Duration) *Watchdog {
	return &Watchdog{
		logger:   logger.WithComponent("Watchdog"),
		timeout:  timeout,
		stopChan: make(chan struct{}),
	}
}

// Observe adds a heartbeat to the poll set.
func (w *Watchdog) Observe(name string, hb *Heartbeat) {
	w.mu.Lock()
	w.entries = append(w.entries, watchdogEntry{name: name, hb: hb})
	w.mu.Unlock()
}

func (w *Watchdog) Start() {
	go w.run()
}

func (w *Watchdog) Stop() {
	w.stopped.Do(func() { close(w.stopChan) })
}

func (w *Watchdog) run() {
	ticker := time.NewTicker(w.timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case now := <-ticker.C:
			w.mu.Lock()
			entries := make([]watchdogEntry, len(w.entries))
			copy(entries, w.entries)
			w.mu.Unlock()

			for _, e := range entries {
				if stale, first := e.hb.stale(now, w.timeout); stale && first {
					w.logger.Warnf("context %q has not beaten for over %s", e.name, w.timeout)
				}
			}
		}
	}
}
