// Package detector wraps the face classifiers used by a session.
package detector

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

var (
	// ErrResourceLoad is returned when a classifier resource is missing, empty or unreadable.
	ErrResourceLoad = errors.New("cannot load classifier")
	// ErrDetection is returned when the engine rejects its input or parameters.
	ErrDetection = errors.New("detection failed")
)

// Box is one detected face in pixel coordinates with the origin at the top left.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// Rect returns the box as an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Params controls a multi-scale detection run.
type Params struct {
	// ScaleFactor is the step between search scales; it must be greater than 1.
	ScaleFactor float64
	// MinNeighbors is the vote threshold a candidate needs to be kept.
	MinNeighbors int
}

// DefaultParams returns the parameters used when a caller supplies none.
func DefaultParams() Params {
	return Params{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
	}
}

// Engine detects faces in a single-channel grayscale image.
type Engine interface {
	// Detect returns the faces found in gray, in the order the classifier reports them.
	// An empty slice is a valid result.
	Detect(gray gocv.Mat, params Params) ([]Box, error)

	// Name identifies the loaded classifier.
	Name() string

	// Close releases any resources held by the engine.
	Close() error
}

// Loader resolves a model identifier to a ready Engine.
type Loader interface {
	Load(identifier string) (Engine, error)
}

func validate(gray gocv.Mat, params Params) error {
	if gray.Empty() {
		return fmt.Errorf("%w: image is empty", ErrDetection)
	}
	if gray.Channels() != 1 {
		return fmt.Errorf("%w: image must be single-channel grayscale", ErrDetection)
	}
	if !(params.ScaleFactor > 1.0) {
		return fmt.Errorf("%w: scale factor must be greater than 1", ErrDetection)
	}
	if params.MinNeighbors < 0 {
		return fmt.Errorf("%w: min neighbors must not be negative", ErrDetection)
	}
	return nil
}
