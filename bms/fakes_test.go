package bms

import (
	"context"
	"io"
	"log"
	"sync"
)

func testLogger() *Logger {
	return NewLogger(log.New(io.Discard, "", 0), LogLevelNone)
}

type fakeRelay struct {
	mu     sync.Mutex
	states []bool
}

func (f *fakeRelay) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, on)
	return nil
}

func (f *fakeRelay) transitions() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.states))
	copy(out, f.states)
	return out
}

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][]string)}
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[topic] = append(f.messages[topic], string(payload))
	return nil
}

func (f *fakePublisher) last(topic string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[topic]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func (f *fakePublisher) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[topic])
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]string)}
}

func (f *fakeSettings) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

type fakeTransport struct {
	mu      sync.Mutex
	frames  chan FrameEvent
	written [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(chan FrameEvent, 16)}
}

func (f *fakeTransport) Connected() bool { return true }

func (f *fakeTransport) Write(_ context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := make([]byte, len(frame))
	copy(data, frame)
	f.written = append(f.written, data)
	return nil
}

func (f *fakeTransport) Frames() <-chan FrameEvent { return f.frames }

func (f *fakeTransport) requests() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func newTestReader(flags ControlFlags) (*Reader, *fakeTransport, *fakeRelay, *fakePublisher, *fakeSettings) {
	transport := newFakeTransport()
	relay := &fakeRelay{}
	publisher := newFakePublisher()
	settings := newFakeSettings()
	r := NewReader(context.Background(), testLogger(), transport, relay, publisher, settings, flags)
	return r, transport, relay, publisher, settings
}
