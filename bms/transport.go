package bms

import (
	"context"
	"time"
)

// FrameEvent is one discrete chunk of bytes received from the BMU link,
// delivered into the acquisition loop's inbox. Chunk boundaries are
// significant: a 20-byte cell block header and its 18-byte continuation
// arrive as two separate events.
type FrameEvent struct {
	Data       []byte
	ReceivedAt time.Time
}

// Transport is the boundary to the wireless link. Scanning, connecting and
// reconnect policy live entirely behind this interface; the core only
// observes connected / not connected and withholds requests while down.
type Transport interface {
	// Connected reports whether the link is currently usable.
	Connected() bool

	// Write sends one request frame. It may block up to the transport's
	// own timeout; ctx bounds the wait.
	Write(ctx context.Context, frame []byte) error

	// Frames is the inbound event stream. The channel is closed when the
	// transport shuts down for good.
	Frames() <-chan FrameEvent
}

// tryUpdateChannel sends a value to a latest-value channel, displacing any
// stale value if the receiver has not caught up. The sender never blocks.
func tryUpdateChannel[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
			ch <- value
		default:
			// receiver drained it between the checks, send again
			ch <- value
		}
	}
}
