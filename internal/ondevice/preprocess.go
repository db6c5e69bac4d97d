package ondevice

import (
	"image"

	"github.com/nfnt/resize"
)

// Preprocess resizes img to size x size and lays it out channel-first
// (3 x H x W) with each channel scaled to [0,1].
func Preprocess(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	inputData := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := y*width + x
			inputData[i] = float32(r) / 65535.0
			inputData[plane+i] = float32(g) / 65535.0
			inputData[2*plane+i] = float32(b) / 65535.0
		}
	}
	return inputData
}

// BestClass returns the highest scoring class. Scores past the end of
// classes are ignored.
func BestClass(scores []float32, classes []string) (string, float32) {
	if len(scores) == 0 || len(classes) == 0 {
		return "", 0
	}
	n := len(scores)
	if len(classes) < n {
		n = len(classes)
	}
	best := 0
	for i := 1; i < n; i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return classes[best], scores[best]
}
