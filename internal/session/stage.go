// Package session implements the step-by-step face detection workflow.
//
// A Session walks through a fixed sequence of stages:
//
//	Uninitialized → EngineReady → SourceLoaded → Preprocessed → Detected → Annotated
//
// Which operation may run in which stage is defined by a single transition
// table. Operations that are not allowed from the current stage fail with a
// KindSequence error and leave the session untouched.
package session

import "fmt"

// Stage is the session's position in the workflow.
type Stage int

const (
	Uninitialized Stage = iota
	EngineReady
	SourceLoaded
	Preprocessed
	Detected
	Annotated
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case EngineReady:
		return "engine_ready"
	case SourceLoaded:
		return "source_loaded"
	case Preprocessed:
		return "preprocessed"
	case Detected:
		return "detected"
	case Annotated:
		return "annotated"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Op names a session operation.
type Op string

const (
	OpInitEngine    Op = "init_engine"
	OpLoadSource    Op = "load_source"
	OpPreprocess    Op = "preprocess"
	OpDetect        Op = "detect"
	OpGetDetections Op = "get_detections"
	OpDraw          Op = "draw"
	OpGetFinalImage Op = "get_final_image"
	OpReset         Op = "reset"
	OpPipeline      Op = "pipeline"
)

// transition lists the stages an operation may start from and the stage it leaves behind.
// Read-only operations keep the current stage.
type transition struct {
	from     []Stage
	to       Stage
	readOnly bool
	// hint tells the caller which step is missing when the operation is rejected.
	hint string
}

var allStages = []Stage{Uninitialized, EngineReady, SourceLoaded, Preprocessed, Detected, Annotated}

var transitions = map[Op]transition{
	OpInitEngine: {
		from: allStages,
		to:   EngineReady,
	},
	OpLoadSource: {
		from: []Stage{EngineReady, SourceLoaded, Preprocessed, Detected, Annotated},
		to:   SourceLoaded,
		hint: "initialize the engine first",
	},
	OpPreprocess: {
		from: []Stage{SourceLoaded, Preprocessed, Detected, Annotated},
		to:   Preprocessed,
		hint: "load a source image first",
	},
	OpDetect: {
		from: []Stage{Preprocessed, Detected, Annotated},
		to:   Detected,
		hint: "preprocess the image first",
	},
	OpGetDetections: {
		from:     []Stage{Detected, Annotated},
		readOnly: true,
		hint:     "run detection first",
	},
	OpDraw: {
		from: []Stage{Detected, Annotated},
		to:   Annotated,
		hint: "no detection data to draw, run detection first",
	},
	OpGetFinalImage: {
		from:     []Stage{SourceLoaded, Preprocessed, Detected, Annotated},
		readOnly: true,
		hint:     "no image to show, load a source first",
	},
	OpReset: {
		from: allStages,
		to:   Uninitialized,
	},
}

// next returns the stage after op completes from current, or a KindSequence
// error if the table has no such transition.
func next(op Op, current Stage) (Stage, error) {
	t, ok := transitions[op]
	if !ok {
		return current, &Error{Kind: KindSequence, Op: op, Msg: "unknown operation"}
	}

	for _, s := range t.from {
		if s == current {
			if t.readOnly {
				return current, nil
			}
			return t.to, nil
		}
	}

	return current, &Error{
		Kind: KindSequence,
		Op:   op,
		Msg:  fmt.Sprintf("not allowed in stage %s: %s", current, t.hint),
	}
}

// Allowed reports whether op may run from stage s.
func Allowed(op Op, s Stage) bool {
	_, err := next(op, s)
	return err == nil
}
