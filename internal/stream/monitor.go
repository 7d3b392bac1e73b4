package stream

import "sync"

// Monitor fans the rendered mix out to network listeners, so a browser
// hears exactly what the output device plays: track audio plus clicks.
// The render path feeds it one 20ms PCM frame at a time.
type Monitor struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives monitor frames.
type Listener struct {
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}
}

// NewMonitor creates a monitor with no listeners.
func NewMonitor() *Monitor {
	return &Monitor{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener. Its channel buffers about three
// seconds of audio.
func (m *Monitor) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, 150), // ~3 seconds at 20ms/frame
		done: make(chan struct{}),
	}
	m.mu.Lock()
	m.listeners[l] = struct{}{}
	m.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop.
func (m *Monitor) Unsubscribe(l *Listener) {
	m.mu.Lock()
	delete(m.listeners, l)
	m.mu.Unlock()
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (m *Monitor) ListenerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners)
}

// Feed delivers one frame to every listener. It is called from the render
// path and never blocks: slow listeners lose frames instead of stalling
// audio output.
func (m *Monitor) Feed(frame []int16) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for l := range m.listeners {
		select {
		case l.C <- frame:
		default:
			// listener too slow, drop the frame
		}
	}
}
