package detector

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// CascadeEngine runs an OpenCV Haar or LBP cascade classifier.
type CascadeEngine struct {
	path       string
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
	closed     bool
}

// NewCascadeEngine loads the cascade XML at path.
// It returns ErrResourceLoad if the file is unreadable or holds no classifier.
func NewCascadeEngine(path string) (*CascadeEngine, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: %s is empty or not a cascade file", ErrResourceLoad, path)
	}

	return &CascadeEngine{
		path:       path,
		classifier: classifier,
	}, nil
}

// Detect runs multi-scale detection over gray.
func (e *CascadeEngine) Detect(gray gocv.Mat, params Params) ([]Box, error) {
	if err := validate(gray, params); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("%w: engine is closed", ErrDetection)
	}

	rects := e.classifier.DetectMultiScaleWithParams(
		gray,
		params.ScaleFactor,
		params.MinNeighbors,
		0,
		image.Point{},
		image.Point{},
	)

	boxes := make([]Box, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, BoxFromRect(r))
	}

	return boxes, nil
}

// Name returns the file name of the loaded cascade.
func (e *CascadeEngine) Name() string {
	return filepath.Base(e.path)
}

// Close releases the native classifier.
func (e *CascadeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.classifier.Close()
}
