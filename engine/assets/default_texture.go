package assets

import (
	"image"
	"image/color"
)

// DefaultTextureKey is the catalogue key of the generated fallback texture.
const DefaultTextureKey = "builtin://default"

const (
	defaultTextureSize = 64
	checkerSize        = 8
)

var (
	checkerA = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	checkerB = color.RGBA{A: 255}
)

// DefaultTexture returns a magenta and black checkerboard.
func DefaultTexture() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, defaultTextureSize, defaultTextureSize))
	for y := 0; y < defaultTextureSize; y++ {
		for x := 0; x < defaultTextureSize; x++ {
			c := checkerB
			if (x/checkerSize+y/checkerSize)%2 == 0 {
				c = checkerA
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
