package bms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialTransport adapts a serial tty to the Transport interface. The
// wireless bridge hardware presents the BMU link as a stream device and
// preserves the radio's chunking, so each successful read is one frame
// event.
type SerialTransport struct {
	mu     sync.Mutex
	port   serial.Port
	device string
	logger *Logger

	frames   chan FrameEvent
	stopChan chan struct{}
}

func NewSerialTransport(device string, baud int, logger *Logger) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", device, err)
	}

	t := &SerialTransport{
		port:     port,
		device:   device,
		logger:   logger.WithComponent("Serial"),
		frames:   make(chan FrameEvent, 8),
		stopChan: make(chan struct{}),
	}

	go t.readLoop()

	return t, nil
}

func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

func (t *SerialTransport) Write(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()

	if port == nil {
		return fmt.Errorf("serial port %s is closed", t.device)
	}

	// serial writes have no context support; do the write in a goroutine
	// so a wedged device cannot hold the acquisition loop past ctx.
	done := make(chan error, 1)
	go func() {
		_, err := port.Write(frame)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("serial write failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("serial write cancelled: %w", ctx.Err())
	}
}

func (t *SerialTransport) Frames() <-chan FrameEvent {
	return t.frames
}

// Close shuts the port and ends the read loop. The frame channel is closed
// by the read loop once it observes the shutdown.
func (t *SerialTransport) Close() {
	close(t.stopChan)

	t.mu.Lock()
	if t.port != nil {
		t.port.Close()
		t.port = nil
	}
	t.mu.Unlock()
}

func (t *SerialTransport) readLoop() {
	defer close(t.frames)

	// One radio chunk never exceeds the 20-byte link MTU.
	buf := make([]byte, 20)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		t.mu.Lock()
		port := t.port
		t.mu.Unlock()
		if port == nil {
			return
		}

		n, err := port.Read(buf)
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
			}
			t.logger.Warnf("read failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if n == 0 {
			continue // read timeout, nothing pending
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case t.frames <- FrameEvent{Data: data, ReceivedAt: time.Now()}:
		case <-t.stopChan:
			return
		}
	}
}
