package session

import (
	"context"
	"fmt"

	"github.com/ayusman/facelab/internal/detector"
)

// PipelineRequest carries the parameters of every step Pipeline runs.
type PipelineRequest struct {
	Model       string
	SourceKind  SourceKind
	SourceValue string
	Params      detector.Params
	Draw        bool
	Style       DrawOptions
}

// PipelineResult is the outcome of a successful Pipeline call.
type PipelineResult struct {
	Faces   []detector.Box
	Image   string
	Message string
}

// Pipeline runs init, load, preprocess and detect in order, returning the first
// failure unchanged. It then reads the detections and, if requested, draws them.
//
// The returned image is the annotated image when drawing succeeded. When drawing
// is skipped or fails the grayscale image from preprocessing is returned, not the
// original color image; block programs built against the tool depend on this.
func (s *Session) Pipeline(ctx context.Context, req PipelineRequest) (PipelineResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.initEngine(req.Model); err != nil {
		return PipelineResult{}, err
	}

	if _, err := s.loadSource(ctx, req.SourceKind, req.SourceValue); err != nil {
		return PipelineResult{}, err
	}

	grayImage, err := s.preprocess()
	if err != nil {
		return PipelineResult{}, err
	}

	if _, err := s.detect(req.Params); err != nil {
		return PipelineResult{}, err
	}

	faces, err := s.getDetections()
	if err != nil {
		faces = []detector.Box{}
	}

	image := grayImage
	if req.Draw {
		drawn, err := s.draw(req.Style)
		if err != nil {
			s.log.WithError(err).Warn("pipeline draw failed, returning grayscale image")
		} else if drawn != "" {
			image = drawn
		}
	}

	return PipelineResult{
		Faces:   faces,
		Image:   image,
		Message: fmt.Sprintf("pipeline complete, %d face(s) detected", len(faces)),
	}, nil
}
