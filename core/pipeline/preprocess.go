package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/siherrmann/grader/helper"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadImage reads and decodes an image file.
// Unreadable or undecodable files fail with a read error.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewReadError(path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, helper.NewReadError(path, fmt.Errorf("decode image: %w", err))
	}
	return img, nil
}

// Binarize converts img to grayscale and applies an inverted binary threshold:
// pixels brighter than threshold become black, all others white.
func Binarize(img image.Image, threshold uint8) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			v := uint8(255)
			if gray.Y > threshold {
				v = 0
			}
			out.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: v})
		}
	}
	return out
}

// EncodePNG encodes an image losslessly for the recognition engine
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PreprocessImage loads an answer sheet and returns the binarized PNG bytes
func PreprocessImage(path string, threshold uint8) ([]byte, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	data, err := EncodePNG(Binarize(img, threshold))
	if err != nil {
		return nil, helper.NewReadError(path, fmt.Errorf("encode binarized image: %w", err))
	}
	return data, nil
}
