package vision

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

var ErrEmptyFrame = errors.New("frame contains no image data")

// PreprocessJPEG converts a raw JPEG frame into the planar float tensor layout
// the object detector expects: the frame is scaled to size x size and encoded
// as CHW float32 of length 3*size*size, each channel contiguous, values scaled
// from [0,255] to [0,1]. Interleaved RGBA would silently break every
// downstream detection, so the layout here is a hard contract.
func PreprocessJPEG(frame []byte, size int) ([]float32, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}

	return PreprocessImage(img, size), nil
}

// PreprocessImage scales an already-decoded frame and lays it out channel
// first. Split out so a decoded frame can be reused across model input sizes.
func PreprocessImage(img image.Image, size int) []float32 {
	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	numPixels := size * size
	data := make([]float32, 3*numPixels)

	for i := 0; i < numPixels; i++ {
		offset := i * 4 // RGBA stride
		data[i] = float32(scaled.Pix[offset]) / 255.0
		data[numPixels+i] = float32(scaled.Pix[offset+1]) / 255.0
		data[2*numPixels+i] = float32(scaled.Pix[offset+2]) / 255.0
	}

	return data
}
