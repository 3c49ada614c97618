package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ayusman/facelab/internal/detector"
	"github.com/ayusman/facelab/internal/session"
)

// maxParamsBody bounds the JSON body of a step request.
const maxParamsBody = 1 << 20

var errMalformedParams = errors.New("request body must be a JSON object")

// params holds the raw fields of a step request. Block programs send numbers
// either as JSON numbers or as strings, so every accessor accepts both.
type params map[string]json.RawMessage

func decodeParams(r *http.Request) (params, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxParamsBody))
	if err != nil {
		return nil, err
	}
	return parseParams(body)
}

func parseParams(body []byte) (params, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return params{}, nil
	}

	p := params{}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedParams, err)
	}
	return p, nil
}

func invalidParam(key string, raw json.RawMessage) error {
	return &session.Error{
		Kind: session.KindInvalidArgument,
		Op:   "request",
		Msg:  fmt.Sprintf("invalid value for %q: %s", key, raw),
	}
}

// scalar returns the value of key as text, with JSON strings unquoted.
// ok is false when the key is absent, null or an empty string.
func (p params) scalar(key string) (string, bool, error) {
	raw, found := p[key]
	if !found {
		return "", false, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false, invalidParam(key, raw)
	}

	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		t = strings.TrimSpace(t)
		return t, t != "", nil
	case float64, bool:
		return string(raw), true, nil
	default:
		return "", false, invalidParam(key, raw)
	}
}

func (p params) str(key, def string) (string, error) {
	s, ok, err := p.scalar(key)
	if err != nil || !ok {
		return def, err
	}
	return s, nil
}

func (p params) float(key string, def float64) (float64, error) {
	s, ok, err := p.scalar(key)
	if err != nil || !ok {
		return def, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def, invalidParam(key, p[key])
	}
	return f, nil
}

func (p params) int(key string, def int) (int, error) {
	f, err := p.float(key, float64(def))
	if err != nil {
		return def, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return def, invalidParam(key, p[key])
	}
	return int(f), nil
}

func (p params) bool(key string, def bool) (bool, error) {
	s, ok, err := p.scalar(key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return def, invalidParam(key, p[key])
	}
	return b, nil
}

// detectParams reads "scale" and "neighbors".
func (p params) detectParams() (detector.Params, error) {
	def := detector.DefaultParams()

	scale, err := p.float("scale", def.ScaleFactor)
	if err != nil {
		return def, err
	}
	neighbors, err := p.int("neighbors", def.MinNeighbors)
	if err != nil {
		return def, err
	}
	return detector.Params{ScaleFactor: scale, MinNeighbors: neighbors}, nil
}

// drawOptions reads "r", "g", "b" and "thickness". A hex "color" such as
// "#00ff00" takes precedence over the channels.
func (p params) drawOptions() (session.DrawOptions, error) {
	opts := session.DefaultDrawOptions()

	r, err := p.int("r", int(opts.Color.R))
	if err != nil {
		return opts, err
	}
	g, err := p.int("g", int(opts.Color.G))
	if err != nil {
		return opts, err
	}
	b, err := p.int("b", int(opts.Color.B))
	if err != nil {
		return opts, err
	}
	opts.Color = session.NewRGB(r, g, b)

	if hex, err := p.str("color", ""); err != nil {
		return opts, err
	} else if hex != "" {
		if !strings.HasPrefix(hex, "#") {
			hex = "#" + hex
		}
		c, err := colorful.Hex(hex)
		if err != nil {
			return opts, invalidParam("color", p["color"])
		}
		cr, cg, cb := c.RGB255()
		opts.Color = session.RGB{R: cr, G: cg, B: cb}
	}

	if opts.Thickness, err = p.int("thickness", opts.Thickness); err != nil {
		return opts, err
	}
	return opts, nil
}
