package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/siherrmann/grader/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinarize(t *testing.T) {
	t.Run("Inverts around the threshold", func(t *testing.T) {
		img := image.NewGray(image.Rect(0, 0, 3, 1))
		img.SetGray(0, 0, color.Gray{Y: 20})  // ink
		img.SetGray(1, 0, color.Gray{Y: 128}) // exactly at threshold counts as ink
		img.SetGray(2, 0, color.Gray{Y: 240}) // paper

		out := Binarize(img, 128)

		assert.Equal(t, uint8(255), out.GrayAt(0, 0).Y, "Expected dark pixel to become white")
		assert.Equal(t, uint8(255), out.GrayAt(1, 0).Y)
		assert.Equal(t, uint8(0), out.GrayAt(2, 0).Y, "Expected bright pixel to become black")
	})

	t.Run("Converts color images and rebases bounds", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(10, 10, 12, 11))
		img.Set(10, 10, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		img.Set(11, 10, color.RGBA{R: 10, G: 10, B: 10, A: 255})

		out := Binarize(img, 128)

		assert.Equal(t, image.Rect(0, 0, 2, 1), out.Bounds())
		assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
		assert.Equal(t, uint8(255), out.GrayAt(1, 0).Y)
	})
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	t.Run("Decodes jpeg", func(t *testing.T) {
		path := filepath.Join(dir, "sheet.jpg")
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		img, err := LoadImage(path)

		require.NoError(t, err)
		assert.Equal(t, 8, img.Bounds().Dx())
	})

	t.Run("Missing file is a read error", func(t *testing.T) {
		_, err := LoadImage(filepath.Join(dir, "missing.jpg"))

		assert.ErrorIs(t, err, helper.ErrRead)
	})

	t.Run("Corrupt file is a read error", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.jpg")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

		_, err := LoadImage(path)

		assert.ErrorIs(t, err, helper.ErrRead)
		assert.Equal(t, helper.KindRead, helper.KindOf(err))
	})
}

func TestPreprocessImage(t *testing.T) {
	t.Run("Produces a decodable binarized png", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sheet.png")
		src := image.NewGray(image.Rect(0, 0, 4, 4))
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, src))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		data, err := PreprocessImage(path, 128)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		r, _, _, _ := img.At(0, 0).RGBA()
		assert.Equal(t, uint32(0xffff), r, "Expected black source pixel to be inverted to white")
	})
}
