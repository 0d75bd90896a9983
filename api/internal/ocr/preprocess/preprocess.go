// Package preprocess renders the uploaded image into several binarized
// variants; different reports survive different filters.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"cbc-anemia/api/internal/ocr"
)

const (
	// adaptive threshold: Gaussian local mean over ~11px, minus C
	adaptiveSigma = 2.0
	adaptiveC     = 2
	blurSigma     = 1.0
	// AdjustContrast percentage; in place of CLAHE
	contrastBoost = 40
	// tiny phone screenshots are upscaled before OCR
	minWidth = 1000
)

// Decode reads any format imaging understands (png, jpeg, gif, bmp, tiff)
// and applies EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Variants returns gray, otsu, adaptive, morph, blur_otsu, contrast_otsu in
// this order, PNG encoded.
func Variants(img image.Image) ([]ocr.Variant, error) {
	if w := img.Bounds().Dx(); w > 0 && w < minWidth {
		img = imaging.Resize(img, w*2, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)

	otsu := Threshold(gray, OtsuLevel(gray))
	rendered := []struct {
		name string
		img  image.Image
	}{
		{"gray", gray},
		{"otsu", otsu},
		{"adaptive", AdaptiveThreshold(gray, adaptiveSigma, adaptiveC)},
		{"morph", Open(Close(otsu))},
		{"blur_otsu", otsuOf(imaging.Blur(gray, blurSigma))},
		{"contrast_otsu", otsuOf(imaging.AdjustContrast(gray, contrastBoost))},
	}

	out := make([]ocr.Variant, 0, len(rendered))
	for _, r := range rendered {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, r.img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("encode %s: %w", r.name, err)
		}
		out = append(out, ocr.Variant{Name: r.name, Data: buf.Bytes()})
	}
	return out, nil
}

func otsuOf(img *image.NRGBA) *image.Gray {
	return Threshold(img, OtsuLevel(img))
}

func luma(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

// OtsuLevel picks the threshold that maximizes between-class variance of
// the luminance histogram.
func OtsuLevel(img image.Image) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[luma(img, x, y)]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 128
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}
	var (
		sumB, best float64
		wB         int
		level      uint8
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = uint8(t)
		}
	}
	return level
}

// Threshold: luma > level -> white, else black.
func Threshold(img image.Image, level uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if luma(img, b.Min.X+x, b.Min.Y+y) > level {
				out.Pix[y*out.Stride+x] = 0xFF
			}
		}
	}
	return out
}

// AdaptiveThreshold compares each pixel with its Gaussian-blurred
// neighbourhood minus c.
func AdaptiveThreshold(gray image.Image, sigma float64, c int) *image.Gray {
	mean := imaging.Blur(gray, sigma)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := int(luma(gray, b.Min.X+x, b.Min.Y+y))
			m := int(luma(mean, x, y))
			if v > m-c {
				out.Pix[y*out.Stride+x] = 0xFF
			}
		}
	}
	return out
}

// Close is dilate then erode over intensity, 3x3 kernel: dark specks
// narrower than the kernel vanish.
func Close(img *image.Gray) *image.Gray { return morph(morph(img, maxOf), minOf) }

// Open is erode then dilate: thin white gaps inside glyph strokes fill up.
func Open(img *image.Gray) *image.Gray { return morph(morph(img, minOf), maxOf) }

func minOf(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func morph(img *image.Gray, pick func(a, b uint8) uint8) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := img.Pix[y*img.Stride+x]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					v = pick(v, img.Pix[ny*img.Stride+nx])
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}
