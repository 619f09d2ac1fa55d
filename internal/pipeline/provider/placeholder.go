package provider

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
)

// RenderPlaceholderImage writes a flat-color PNG stand-in for a scene whose
// provider failed, so downstream assembly always has a frame per scene. The
// color is derived from the prompt so reruns stay stable.
func RenderPlaceholderImage(outputDir string, sceneIndex int, prompt string) (string, error) {
	const side = 512

	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	seed := h.Sum32()
	fill := color.NRGBA{
		R: uint8(80 + seed%120),
		G: uint8(80 + (seed>>8)%120),
		B: uint8(80 + (seed>>16)%120),
		A: 255,
	}

	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return writeArtifactFile(outputDir, fmt.Sprintf("scene_%d_placeholder.png", sceneIndex+1), buf.Bytes())
}
