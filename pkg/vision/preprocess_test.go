package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidJPEG(t *testing.T, c color.RGBA, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestPreprocessJPEGLayout(t *testing.T) {
	const size = 8
	// Strong red so each channel plane is clearly separable even after
	// JPEG's lossy round trip.
	frame := solidJPEG(t, color.RGBA{R: 250, G: 10, B: 10, A: 255}, 32, 24)

	data, err := PreprocessJPEG(frame, size)
	require.NoError(t, err)
	require.Len(t, data, 3*size*size)

	numPixels := size * size
	for i := 0; i < numPixels; i++ {
		assert.Greater(t, data[i], float32(0.8), "red plane")
		assert.Less(t, data[numPixels+i], float32(0.3), "green plane")
		assert.Less(t, data[2*numPixels+i], float32(0.3), "blue plane")
	}

	for _, v := range data {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPreprocessJPEGRejectsBadInput(t *testing.T) {
	_, err := PreprocessJPEG(nil, 8)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = PreprocessJPEG([]byte("not a jpeg"), 8)
	assert.Error(t, err)
}
