package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTone: left half dark, right half light.
func twoTone(w, h int, dark, light uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := light
			if x < w/2 {
				v = dark
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestOtsuLevelSplitsClasses(t *testing.T) {
	img := twoTone(20, 10, 30, 220)
	level := OtsuLevel(img)
	assert.GreaterOrEqual(t, level, uint8(30))
	assert.Less(t, level, uint8(220))

	bin := Threshold(img, level)
	assert.Equal(t, uint8(0), bin.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0xFF), bin.GrayAt(19, 9).Y)
}

func TestOtsuLevelEmpty(t *testing.T) {
	assert.Equal(t, uint8(128), OtsuLevel(image.NewGray(image.Rect(0, 0, 0, 0))))
}

func TestMorphRemovesSpeck(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 7, 7))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetGray(3, 3, color.Gray{Y: 0})

	assert.Equal(t, uint8(0xFF), Close(img).GrayAt(3, 3).Y)
	// erode first spreads the speck, dilate shrinks it back
	assert.Equal(t, uint8(0), Open(img).GrayAt(3, 3).Y)
}

func TestAdaptiveThresholdFlatImageIsWhite(t *testing.T) {
	img := twoTone(10, 10, 100, 100)
	bin := AdaptiveThreshold(img, 2, 2)
	for _, v := range bin.Pix {
		assert.Equal(t, uint8(0xFF), v)
	}
}

func TestDecodeAndVariants(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, twoTone(40, 20, 20, 240)))

	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	vs, err := Variants(img)
	require.NoError(t, err)
	var names []string
	for _, v := range vs {
		names = append(names, v.Name)
		decoded, err := png.Decode(bytes.NewReader(v.Data))
		require.NoError(t, err, v.Name)
		// upscaled x2 because the source is narrow
		assert.Equal(t, 80, decoded.Bounds().Dx(), v.Name)
	}
	assert.Equal(t, []string{"gray", "otsu", "adaptive", "morph", "blur_otsu", "contrast_otsu"}, names)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.Error(t, err)
}
