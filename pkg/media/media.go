package media

import (
	"sync"
	"time"
)

// FrameBuffer holds the most recent webcam frame pushed by the interview
// client. Older frames are overwritten; the engine's polling loops only ever
// care about "now". A frame older than the staleness window is treated the
// same as no frame at all, which covers a client that stops streaming without
// closing the socket.
type FrameBuffer struct {
	mu        sync.RWMutex
	frame     []byte
	updatedAt time.Time
	staleness time.Duration
}

func NewFrameBuffer(staleness time.Duration) *FrameBuffer {
	return &FrameBuffer{staleness: staleness}
}

func (b *FrameBuffer) Put(frame []byte) {
	if len(frame) == 0 {
		return
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)

	b.mu.Lock()
	b.frame = buf
	b.updatedAt = time.Now()
	b.mu.Unlock()
}

// Latest returns a copy of the freshest frame, or false when the buffer is
// empty or stale.
func (b *FrameBuffer) Latest() ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.frame == nil || time.Since(b.updatedAt) > b.staleness {
		return nil, false
	}
	out := make([]byte, len(b.frame))
	copy(out, b.frame)
	return out, true
}

func (b *FrameBuffer) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame != nil && time.Since(b.updatedAt) <= b.staleness
}

// SampleBuffer is a fixed-capacity ring of unsigned 8-bit PCM samples
// (silence at 128). The client streams chunks in; the audio monitor pulls a
// fixed-size window of the newest samples on its own schedule.
type SampleBuffer struct {
	mu       sync.Mutex
	samples  []byte
	head     int
	filled   int
	received bool
}

func NewSampleBuffer(capacity int) *SampleBuffer {
	return &SampleBuffer{samples: make([]byte, capacity)}
}

func (b *SampleBuffer) Write(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.received = true
	for _, s := range chunk {
		b.samples[b.head] = s
		b.head = (b.head + 1) % len(b.samples)
		if b.filled < len(b.samples) {
			b.filled++
		}
	}
}

// ReadWindow copies out the newest n samples. Returns false until at least n
// samples have arrived.
func (b *SampleBuffer) ReadWindow(n int) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > len(b.samples) || b.filled < n {
		return nil, false
	}

	out := make([]byte, n)
	start := (b.head - n + len(b.samples)) % len(b.samples)
	for i := 0; i < n; i++ {
		out[i] = b.samples[(start+i)%len(b.samples)]
	}
	return out, true
}

// Receiving reports whether the client ever streamed audio. A candidate who
// denied microphone access simply never connects the audio socket and the
// monitor stays idle.
func (b *SampleBuffer) Receiving() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}
