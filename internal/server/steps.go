package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/facelab/internal/detector"
	"github.com/ayusman/facelab/internal/session"
)

// DefaultSourceValue is the file loaded when a load request names none.
const DefaultSourceValue = "test.jpg"

// stepFunc runs one workflow operation against sess.
type stepFunc func(ctx context.Context, sess *session.Session, p params) envelope

// stepTable maps route names (under /api/) to workflow operations.
// The websocket endpoint uses the same names for its "op" field.
func (s *Server) stepTable() map[string]stepFunc {
	steps := map[string]stepFunc{
		"reset":            stepReset,
		"step1_init":       stepInit,
		"step2_load":       stepLoad,
		"step3_preprocess": stepPreprocess,
		"step4_detect":     stepDetect,
		"step5_data":       stepData,
		"step6_draw":       stepDraw,
		"step7_show":       stepShow,
	}
	if s.config.EnablePipeline {
		steps["face/detect"] = stepPipeline
	}
	return steps
}

// stepHandler adapts a stepFunc to HTTP. Operation failures are reported in
// the envelope with status 200; only malformed requests get a 4xx status.
func (s *Server) stepHandler(fn stepFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		sess, err := s.sessionFor(r)
		if err != nil {
			writeEnvelope(w, sessionStatus(err), failure(err))
			return
		}

		p, err := decodeParams(r)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, failure(err))
			return
		}

		writeEnvelope(w, http.StatusOK, s.runStep(r.Context(), sess, fn, p))
	})
}

func (s *Server) runStep(ctx context.Context, sess *session.Session, fn stepFunc, p params) envelope {
	env := fn(ctx, sess, p)
	env.Stage = sess.Stage().String()
	env.Session = sess.ID()

	if env.Status == statusError {
		entry := s.log.WithFields(logrus.Fields{
			"session": sess.ID(),
			"kind":    env.Kind,
		})
		if env.Kind == session.KindSequence.String() || env.Kind == session.KindInvalidArgument.String() {
			entry.Debug(env.Msg)
		} else {
			entry.Warn(env.Msg)
		}
	}
	return env
}

func stepReset(_ context.Context, sess *session.Session, _ params) envelope {
	sess.Reset()
	return success("environment reset")
}

func stepInit(_ context.Context, sess *session.Session, p params) envelope {
	model, err := p.str("model", detector.DefaultModel)
	if err != nil {
		return failure(err)
	}
	if err := sess.InitEngine(model); err != nil {
		return failure(err)
	}
	return success("engine ready")
}

func sourceParams(p params) (session.SourceKind, string, error) {
	kindName, err := p.str("type", string(session.SourceFile))
	if err != nil {
		return "", "", err
	}
	kind, err := session.ParseSourceKind(kindName)
	if err != nil {
		return "", "", err
	}

	def := DefaultSourceValue
	if kind == session.SourceCamera {
		def = "0"
	}
	value, err := p.str("value", def)
	if err != nil {
		return "", "", err
	}
	return kind, value, nil
}

func stepLoad(ctx context.Context, sess *session.Session, p params) envelope {
	if err := sess.Check(session.OpLoadSource); err != nil {
		return failure(err)
	}
	kind, value, err := sourceParams(p)
	if err != nil {
		return failure(err)
	}

	img, err := sess.LoadSource(ctx, kind, value)
	if err != nil {
		return failure(err)
	}
	env := success("image loaded")
	env.Image = img
	return env
}

func stepPreprocess(_ context.Context, sess *session.Session, _ params) envelope {
	img, err := sess.Preprocess()
	if err != nil {
		return failure(err)
	}
	env := success("preprocessing complete (grayscale)")
	env.Image = img
	return env
}

func stepDetect(_ context.Context, sess *session.Session, p params) envelope {
	if err := sess.Check(session.OpDetect); err != nil {
		return failure(err)
	}
	dp, err := p.detectParams()
	if err != nil {
		return failure(err)
	}

	n, err := sess.Detect(dp)
	if err != nil {
		return failure(err)
	}
	env := success(fmt.Sprintf("detection complete, found %d face(s)", n))
	env.Count = intPtr(n)
	return env
}

func stepData(_ context.Context, sess *session.Session, _ params) envelope {
	boxes, err := sess.Detections()
	if err != nil {
		return failure(err)
	}
	env := success("detection data")
	env.Data = boxes
	env.Count = intPtr(len(boxes))
	return env
}

func stepDraw(_ context.Context, sess *session.Session, p params) envelope {
	if err := sess.Check(session.OpDraw); err != nil {
		return failure(err)
	}
	opts, err := p.drawOptions()
	if err != nil {
		return failure(err)
	}

	img, err := sess.Draw(opts)
	if err != nil {
		return failure(err)
	}
	env := success("results drawn")
	env.Image = img
	return env
}

func stepShow(_ context.Context, sess *session.Session, _ params) envelope {
	img, err := sess.FinalImage()
	if err != nil {
		return failure(err)
	}
	env := success("current image")
	env.Image = img
	return env
}

func stepPipeline(ctx context.Context, sess *session.Session, p params) envelope {
	req, err := pipelineRequest(p)
	if err != nil {
		return failure(err)
	}

	res, err := sess.Pipeline(ctx, req)
	if err != nil {
		return failure(err)
	}
	env := success(res.Message)
	env.Faces = res.Faces
	env.Count = intPtr(len(res.Faces))
	env.Image = res.Image
	return env
}

func pipelineRequest(p params) (session.PipelineRequest, error) {
	var req session.PipelineRequest
	var err error

	if req.Model, err = p.str("model", detector.DefaultModel); err != nil {
		return req, err
	}
	if req.SourceKind, req.SourceValue, err = sourceParams(p); err != nil {
		return req, err
	}
	if req.Params, err = p.detectParams(); err != nil {
		return req, err
	}
	if req.Draw, err = p.bool("draw", true); err != nil {
		return req, err
	}
	// Style is ignored without drawing, so only validate it when it is used.
	if req.Draw {
		if req.Style, err = p.drawOptions(); err != nil {
			return req, err
		}
	}
	return req, nil
}
