package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBufferLatestWins(t *testing.T) {
	buf := NewFrameBuffer(2 * time.Second)

	_, ok := buf.Latest()
	assert.False(t, ok)
	assert.False(t, buf.Ready())

	buf.Put([]byte("frame-1"))
	buf.Put([]byte("frame-2"))

	frame, ok := buf.Latest()
	require.True(t, ok)
	assert.Equal(t, []byte("frame-2"), frame)
	assert.True(t, buf.Ready())
}

func TestFrameBufferCopiesData(t *testing.T) {
	buf := NewFrameBuffer(2 * time.Second)

	src := []byte{1, 2, 3}
	buf.Put(src)
	src[0] = 99

	frame, ok := buf.Latest()
	require.True(t, ok)
	assert.Equal(t, byte(1), frame[0])

	frame[1] = 42
	again, _ := buf.Latest()
	assert.Equal(t, byte(2), again[1])
}

func TestFrameBufferIgnoresEmptyFrames(t *testing.T) {
	buf := NewFrameBuffer(2 * time.Second)
	buf.Put(nil)
	assert.False(t, buf.Ready())
}

func TestSampleBufferWindow(t *testing.T) {
	buf := NewSampleBuffer(8)

	_, ok := buf.ReadWindow(4)
	assert.False(t, ok, "window unavailable before enough samples arrive")
	assert.False(t, buf.Receiving())

	buf.Write([]byte{1, 2, 3, 4, 5})
	assert.True(t, buf.Receiving())

	window, ok := buf.ReadWindow(4)
	require.True(t, ok)
	assert.Equal(t, []byte{2, 3, 4, 5}, window)
}

func TestSampleBufferWrapsAround(t *testing.T) {
	buf := NewSampleBuffer(4)
	buf.Write([]byte{1, 2, 3, 4, 5, 6})

	window, ok := buf.ReadWindow(4)
	require.True(t, ok)
	assert.Equal(t, []byte{3, 4, 5, 6}, window)

	_, ok = buf.ReadWindow(5)
	assert.False(t, ok, "window larger than capacity")
}
