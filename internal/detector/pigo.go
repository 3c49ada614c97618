package detector

import (
	"fmt"
	"os"
	"path/filepath"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

// Pigo tuning. The classifier has no notion of neighbor votes, so Params.MinNeighbors
// is used as the minimum detection score instead; 5 is the usual pigo cut-off.
const (
	PigoMinSize      = 20
	PigoShiftFactor  = 0.1
	PigoIoUThreshold = 0.2
)

// PigoEngine runs the pure Go pigo face classifier.
type PigoEngine struct {
	path       string
	classifier *pigo.Pigo
}

// NewPigoEngine reads and unpacks the pigo cascade at path.
func NewPigoEngine(path string) (*PigoEngine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceLoad, err)
	}

	classifier, err := unpackPigo(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResourceLoad, path, err)
	}

	return &PigoEngine{
		path:       path,
		classifier: classifier,
	}, nil
}

// unpackPigo guards against the index panics Unpack raises on truncated files.
func unpackPigo(data []byte) (classifier *pigo.Pigo, err error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("cascade is too short (%d bytes)", len(data))
	}

	defer func() {
		if r := recover(); r != nil {
			classifier = nil
			err = fmt.Errorf("malformed cascade: %v", r)
		}
	}()

	classifier, err = pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, err
	}

	// A cascade without trees unpacks cleanly but panics on first use, so probe it here.
	classifier.RunCascade(pigo.CascadeParams{
		MinSize:     1,
		MaxSize:     1,
		ShiftFactor: 1,
		ScaleFactor: 2,
		ImageParams: pigo.ImageParams{Pixels: make([]uint8, 9), Rows: 3, Cols: 3, Dim: 3},
	}, 0)

	return classifier, nil
}

// Detect runs the pigo cascade over gray and clusters overlapping hits.
func (e *PigoEngine) Detect(gray gocv.Mat, params Params) ([]Box, error) {
	if err := validate(gray, params); err != nil {
		return nil, err
	}

	rows, cols := gray.Rows(), gray.Cols()
	pixels := gray.ToBytes()
	if len(pixels) < rows*cols {
		return nil, fmt.Errorf("%w: image buffer is not continuous", ErrDetection)
	}

	maxSize := rows
	if cols > maxSize {
		maxSize = cols
	}

	dets := e.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     PigoMinSize,
		MaxSize:     maxSize,
		ShiftFactor: PigoShiftFactor,
		ScaleFactor: params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}, 0.0)
	dets = e.classifier.ClusterDetections(dets, PigoIoUThreshold)

	return pigoBoxes(dets, params.MinNeighbors, rows, cols), nil
}

// pigoBoxes keeps detections scoring at least minScore and turns each centered
// square into a Box clipped to the rows x cols image. Boxes entirely outside
// the image are dropped.
func pigoBoxes(dets []pigo.Detection, minScore, rows, cols int) []Box {
	boxes := make([]Box, 0, len(dets))
	for _, d := range dets {
		if d.Q < float32(minScore) {
			continue
		}

		half := d.Scale / 2
		x0, y0 := max(d.Col-half, 0), max(d.Row-half, 0)
		x1, y1 := min(d.Col-half+d.Scale, cols), min(d.Row-half+d.Scale, rows)
		if x1 <= x0 || y1 <= y0 {
			continue
		}

		boxes = append(boxes, Box{
			X:      x0,
			Y:      y0,
			Width:  x1 - x0,
			Height: y1 - y0,
		})
	}
	return boxes
}

// Name returns the file name of the loaded cascade.
func (e *PigoEngine) Name() string {
	return "pigo:" + filepath.Base(e.path)
}

// Close is a no-op; the classifier lives on the Go heap.
func (e *PigoEngine) Close() error {
	return nil
}
