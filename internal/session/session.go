package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/facelab/internal/capture"
	"github.com/ayusman/facelab/internal/codec"
	"github.com/ayusman/facelab/internal/detector"
)

// DefaultMaxSessions caps live sessions when Config leaves MaxSessions unset.
const DefaultMaxSessions = 256

// DefaultCaptureTimeout bounds a camera snapshot when Config leaves it unset.
const DefaultCaptureTimeout = 5 * time.Second

// SourceKind selects where LoadSource reads its image from.
type SourceKind string

const (
	SourceFile   SourceKind = "file"
	SourceCamera SourceKind = "camera"
)

// ParseSourceKind maps a request value to a SourceKind. The empty string means file.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceFile:
		return SourceFile, nil
	case SourceCamera:
		return SourceCamera, nil
	}
	return "", newError(KindInvalidArgument, OpLoadSource, fmt.Sprintf("unknown source type %q", s), nil)
}

// Run describes one successful detection, as handed to a Recorder.
type Run struct {
	SessionID    string
	Model        string
	SourceKind   SourceKind
	SourceValue  string
	ScaleFactor  float64
	MinNeighbors int
	Faces        int
}

// Recorder persists detection runs.
type Recorder interface {
	RecordRun(run Run) error
}

// Config holds the collaborators shared by sessions.
type Config struct {
	Engines        detector.Loader
	Cameras        capture.Opener
	CaptureTimeout time.Duration
	Recorder       Recorder
	Logger         logrus.FieldLogger
	// MaxSessions caps the sessions a Registry keeps alive at once.
	MaxSessions int
}

func (c Config) withDefaults() Config {
	if c.Cameras == nil {
		c.Cameras = capture.NewCamera
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = DefaultCaptureTimeout
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	return c
}

// Session holds the state of one client's walk through the workflow.
// Operations are serialized; a Session is safe for concurrent use.
type Session struct {
	id  string
	cfg Config
	log logrus.FieldLogger

	mu          sync.Mutex
	stage       Stage
	engine      detector.Engine
	model       string
	sourceKind  SourceKind
	sourceValue string
	source      *gocv.Mat
	gray        *gocv.Mat
	detections  []detector.Box
	annotated   *gocv.Mat

	// lastUsed is read by the registry janitor without taking mu, so a long
	// capture or detection never blocks eviction checks.
	lastUsed atomic.Int64
}

// New creates a session in the Uninitialized stage.
func New(id string, cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		id:    id,
		cfg:   cfg,
		log:   cfg.Logger.WithField("session", id),
		stage: Uninitialized,
	}
	s.touch()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Check reports the KindSequence error op would fail with in the current stage,
// without running it. Callers use it to reject an out-of-order request before
// validating its arguments.
func (s *Session) Check(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := next(op, s.stage)
	return err
}

// LastUsed returns when an operation last ran on the session.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// InitEngine loads the classifier named by model and moves to EngineReady.
// Artifacts of any earlier run are released.
func (s *Session) InitEngine(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initEngine(model)
}

func (s *Session) initEngine(model string) error {
	s.touch()
	to, err := next(OpInitEngine, s.stage)
	if err != nil {
		return err
	}

	if s.cfg.Engines == nil {
		return newError(KindResourceLoad, OpInitEngine, "no classifier loader configured", nil)
	}

	engine, err := s.cfg.Engines.Load(model)
	if err != nil {
		return newError(KindResourceLoad, OpInitEngine, "failed to load model", err)
	}

	if s.engine != nil && s.engine != engine {
		if cerr := s.engine.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("error closing previous engine")
		}
	}
	s.releaseFrom(SourceLoaded)

	s.engine = engine
	s.model = model
	s.stage = to
	s.log.WithField("model", engine.Name()).Debug("engine ready")
	return nil
}

// LoadSource captures a camera frame or decodes an image file and moves to SourceLoaded.
// It returns the encoded source image.
func (s *Session) LoadSource(ctx context.Context, kind SourceKind, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSource(ctx, kind, value)
}

func (s *Session) loadSource(ctx context.Context, kind SourceKind, value string) (string, error) {
	s.touch()
	to, err := next(OpLoadSource, s.stage)
	if err != nil {
		return "", err
	}

	var img gocv.Mat
	switch kind {
	case SourceCamera:
		img, err = s.snapshot(ctx, value)
	case SourceFile, "":
		kind = SourceFile
		img, err = s.readFile(value)
	default:
		return "", newError(KindInvalidArgument, OpLoadSource, fmt.Sprintf("unknown source type %q", kind), nil)
	}
	if err != nil {
		return "", err
	}

	encoded, err := codec.Encode(&img)
	if err != nil {
		img.Close()
		return "", newError(KindConversion, OpLoadSource, "cannot encode source image", err)
	}

	s.releaseFrom(SourceLoaded)
	s.source = &img
	s.sourceKind = kind
	s.sourceValue = value
	s.stage = to
	return encoded, nil
}

func (s *Session) snapshot(ctx context.Context, value string) (gocv.Mat, error) {
	deviceID, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return gocv.Mat{}, newError(KindDevice, OpLoadSource, fmt.Sprintf("invalid camera index %q", value), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CaptureTimeout)
	defer cancel()

	img, err := capture.Snapshot(ctx, s.cfg.Cameras, deviceID)
	if err != nil {
		msg := "cannot capture from camera"
		if errors.Is(err, capture.ErrDeviceTimeout) {
			msg = "camera capture timed out"
		}
		return gocv.Mat{}, newError(KindDevice, OpLoadSource, msg, err)
	}
	return img, nil
}

func (s *Session) readFile(path string) (gocv.Mat, error) {
	if strings.TrimSpace(path) == "" {
		return gocv.Mat{}, newError(KindNotFound, OpLoadSource, "no file path given", nil)
	}

	img, err := codec.DecodeFile(path)
	switch {
	case err == nil:
		return img, nil
	case errors.Is(err, codec.ErrNotFound):
		return gocv.Mat{}, newError(KindNotFound, OpLoadSource, "file does not exist: "+path, err)
	default:
		return gocv.Mat{}, newError(KindDecode, OpLoadSource, "cannot read image data", err)
	}
}

// Preprocess converts the source image to grayscale and moves to Preprocessed.
// It returns the encoded grayscale image.
func (s *Session) Preprocess() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preprocess()
}

func (s *Session) preprocess() (string, error) {
	s.touch()
	to, err := next(OpPreprocess, s.stage)
	if err != nil {
		return "", err
	}

	gray, err := toGray(s.source)
	if err != nil {
		return "", newError(KindConversion, OpPreprocess, "grayscale conversion failed", err)
	}

	encoded, err := codec.Encode(&gray)
	if err != nil {
		gray.Close()
		return "", newError(KindConversion, OpPreprocess, "cannot encode grayscale image", err)
	}

	s.releaseFrom(Preprocessed)
	s.gray = &gray
	s.stage = to
	return encoded, nil
}

// depthMask extracts the element depth from an OpenCV type code.
const depthMask = 7

func toGray(src *gocv.Mat) (gocv.Mat, error) {
	if src == nil || src.Empty() {
		return gocv.Mat{}, errors.New("source image is empty")
	}
	if int(src.Type())&depthMask != int(gocv.MatTypeCV8U) {
		return gocv.Mat{}, fmt.Errorf("unsupported pixel depth (type %d), expected 8-bit", int(src.Type()))
	}

	gray := gocv.NewMat()
	switch src.Channels() {
	case 1:
		src.CopyTo(&gray)
	case 3:
		gocv.CvtColor(*src, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(*src, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("unsupported channel count %d", src.Channels())
	}

	if gray.Empty() {
		gray.Close()
		return gocv.Mat{}, errors.New("conversion produced an empty image")
	}
	return gray, nil
}

// Detect runs the engine over the grayscale image and moves to Detected.
// Zero faces is a successful result. It returns the number of faces found.
func (s *Session) Detect(params detector.Params) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detect(params)
}

func (s *Session) detect(params detector.Params) (int, error) {
	s.touch()
	to, err := next(OpDetect, s.stage)
	if err != nil {
		return 0, err
	}

	boxes, err := s.engine.Detect(*s.gray, params)
	if err != nil {
		return 0, newError(KindDetection, OpDetect, "detection failed", err)
	}
	if boxes == nil {
		boxes = []detector.Box{}
	}

	s.releaseFrom(Detected)
	s.detections = boxes
	s.stage = to

	s.record(params, len(boxes))
	return len(boxes), nil
}

func (s *Session) record(params detector.Params, faces int) {
	if s.cfg.Recorder == nil {
		return
	}

	run := Run{
		SessionID:    s.id,
		Model:        s.engine.Name(),
		SourceKind:   s.sourceKind,
		SourceValue:  s.sourceValue,
		ScaleFactor:  params.ScaleFactor,
		MinNeighbors: params.MinNeighbors,
		Faces:        faces,
	}
	if err := s.cfg.Recorder.RecordRun(run); err != nil {
		s.log.WithError(err).Warn("failed to record detection run")
	}
}

// Detections returns a copy of the boxes found by the last Detect.
func (s *Session) Detections() ([]detector.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getDetections()
}

func (s *Session) getDetections() ([]detector.Box, error) {
	s.touch()
	if _, err := next(OpGetDetections, s.stage); err != nil {
		return nil, err
	}

	out := make([]detector.Box, len(s.detections))
	copy(out, s.detections)
	return out, nil
}

// Draw annotates a copy of the source image and moves to Annotated.
// The source image itself is never modified. It returns the encoded annotated image.
func (s *Session) Draw(opts DrawOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draw(opts)
}

func (s *Session) draw(opts DrawOptions) (string, error) {
	s.touch()
	to, err := next(OpDraw, s.stage)
	if err != nil {
		return "", err
	}

	out := annotate(*s.source, s.detections, opts)
	encoded, err := codec.Encode(&out)
	if err != nil {
		out.Close()
		return "", newError(KindConversion, OpDraw, "cannot encode annotated image", err)
	}

	s.releaseFrom(Annotated)
	s.annotated = &out
	s.stage = to
	return encoded, nil
}

// FinalImage returns the annotated image when one exists, otherwise the source image.
func (s *Session) FinalImage() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.finalImage()
	if err != nil {
		return "", err
	}

	encoded, err := codec.Encode(img)
	if err != nil {
		return "", newError(KindConversion, OpGetFinalImage, "cannot encode image", err)
	}
	return encoded, nil
}

// FinalJPEG is FinalImage as raw JPEG bytes.
func (s *Session) FinalJPEG() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.finalImage()
	if err != nil {
		return nil, err
	}

	data, err := codec.EncodeJPEG(img)
	if err != nil {
		return nil, newError(KindConversion, OpGetFinalImage, "cannot encode image", err)
	}
	return data, nil
}

func (s *Session) finalImage() (*gocv.Mat, error) {
	s.touch()
	if _, err := next(OpGetFinalImage, s.stage); err != nil {
		return nil, err
	}

	if s.stage == Annotated && s.annotated != nil {
		return s.annotated, nil
	}
	return s.source, nil
}

// Reset releases every buffer and the engine and returns to Uninitialized.
// It is idempotent.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Close releases all resources; it is Reset under the name io.Closer callers expect.
func (s *Session) Close() error {
	s.Reset()
	return nil
}

func (s *Session) reset() {
	s.touch()
	s.releaseFrom(SourceLoaded)
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.log.WithError(err).Warn("error closing engine")
		}
		s.engine = nil
	}
	s.model = ""
	s.stage = Uninitialized
}

// releaseFrom closes every artifact produced by stage from and the stages after it.
func (s *Session) releaseFrom(from Stage) {
	if from <= SourceLoaded {
		closeMat(&s.source)
		s.sourceKind = ""
		s.sourceValue = ""
	}
	if from <= Preprocessed {
		closeMat(&s.gray)
	}
	if from <= Detected {
		s.detections = nil
	}
	if from <= Annotated {
		closeMat(&s.annotated)
	}
}

func closeMat(m **gocv.Mat) {
	if *m != nil {
		(*m).Close()
		*m = nil
	}
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}
