package session

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/facelab/internal/detector"
)

// Label drawing, matching the block tool's rendering.
const (
	FaceLabel        = "Face"
	LabelOffset      = 10
	LabelFontScale   = 0.9
	LabelThickness   = 2
	DefaultThickness = 2
)

// RGB is a color as callers specify it.
type RGB struct {
	R, G, B uint8
}

// Red is the default annotation color.
var Red = RGB{R: 255}

// NewRGB builds an RGB from integer channels, clamping each to 0–255.
func NewRGB(r, g, b int) RGB {
	return RGB{R: clampChannel(r), G: clampChannel(g), B: clampChannel(b)}
}

func clampChannel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// DrawOptions controls the annotation drawn by Draw.
type DrawOptions struct {
	Color     RGB
	Thickness int
}

// DefaultDrawOptions returns a red outline of thickness 2.
func DefaultDrawOptions() DrawOptions {
	return DrawOptions{Color: Red, Thickness: DefaultThickness}
}

// engineColor is the single place where a caller's RGB becomes a drawing color.
// The channels are passed through unchanged: gocv's drawing functions turn a
// color.RGBA into the scalar (B, G, R, A), which performs the swap into the
// BGR order of the images they draw on.
func engineColor(c RGB) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// annotate returns a copy of src with a rectangle and label per box.
func annotate(src gocv.Mat, boxes []detector.Box, opts DrawOptions) gocv.Mat {
	out := src.Clone()
	c := engineColor(opts.Color)

	thickness := opts.Thickness
	if thickness <= 0 {
		thickness = 1
	}

	for _, b := range boxes {
		gocv.Rectangle(&out, b.Rect(), c, thickness)
		gocv.PutText(&out, FaceLabel, image.Pt(b.X, b.Y-LabelOffset),
			gocv.FontHersheySimplex, LabelFontScale, c, LabelThickness)
	}

	return out
}
