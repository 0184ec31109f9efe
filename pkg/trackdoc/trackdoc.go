// Package trackdoc reads track documents. A document is a JSON object with
// an id, a name, a schema version and the track boundaries. Boundaries are
// a list of rings, each ring a list of [x,y] pairs or {"x":..,"y":..} objects.
package trackdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/mod/semver"

	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/model"
)

const (
	DefaultBoundsPath = "$.bounds"
	// used by documents exported from the track editor
	derivedBoundsPath = "$.derived.bounds"
	SupportedMajor    = "v1"
)

var (
	ErrUnsupportedSchema = errors.New("unsupported schema version")
	ErrNoBoundaries      = errors.New("no boundaries found")
	ErrInvalidDocument   = errors.New("invalid track document")
)

type (
	Option func(*config)
	config struct {
		boundsPath string
		id         string
		defaultID  string
	}
	Document struct {
		ID         string
		Name       string
		Schema     string // canonical semver, e.g. v1.0.0
		Boundaries []geom.Ring
		Options    checkpoint.Config
	}
)

// WithBoundsPath selects the boundaries by a JSONPath expression.
func WithBoundsPath(path string) Option {
	return func(c *config) {
		c.boundsPath = path
	}
}

// WithDefaultID sets the id used for documents without one.
func WithDefaultID(id string) Option {
	return func(c *config) {
		c.defaultID = id
	}
}

// WithID overrides the id of the document.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

func ReadFile(file string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(data, opts...)
}

//nolint:cyclop // by design
func Parse(data []byte, opts ...Option) (*Document, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	obj, err := oj.Parse(data)
	if err != nil {
		return nil, err
	}
	top, ok := obj.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidDocument)
	}
	ret := &Document{}
	if ret.Schema, err = schemaVersion(top); err != nil {
		return nil, err
	}
	ret.ID, _ = top["id"].(string)
	ret.Name, _ = top["name"].(string)
	if cfg.id != "" {
		ret.ID = cfg.id
	}
	if ret.ID == "" {
		ret.ID = cfg.defaultID
	}
	if ret.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	if ret.Name == "" {
		ret.Name = ret.ID
	}

	raw, err := selectBounds(obj, cfg.boundsPath)
	if err != nil {
		return nil, err
	}
	if ret.Boundaries, err = toRings(raw); err != nil {
		return nil, err
	}
	if o, ok := top["options"]; ok {
		if err := json.Unmarshal([]byte(oj.JSON(o)), &ret.Options); err != nil {
			return nil, fmt.Errorf("%w: options: %w", ErrInvalidDocument, err)
		}
		if err := ret.Options.Validate(); err != nil {
			return nil, fmt.Errorf("%w: options: %w", ErrInvalidDocument, err)
		}
	}
	return ret, nil
}

// Track converts the document into a track model.
func (d *Document) Track() *model.Track {
	return &model.Track{
		ID:         d.ID,
		Name:       d.Name,
		Boundaries: d.Boundaries,
		Options:    d.Options,
	}
}

// schemaVersion accepts a semver string in "schema" or a numeric "version".
// Documents without both are treated as v1.
func schemaVersion(top map[string]any) (string, error) {
	var v string
	switch {
	case top["schema"] != nil:
		s, ok := top["schema"].(string)
		if !ok {
			return "", fmt.Errorf("%w: schema must be a string", ErrInvalidDocument)
		}
		v = s
	case top["version"] != nil:
		n, ok := number(top["version"])
		if !ok {
			return "", fmt.Errorf("%w: version must be a number", ErrInvalidDocument)
		}
		v = fmt.Sprintf("v%d", int(n))
	default:
		v = SupportedMajor
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSchema, v)
	}
	if semver.Major(v) != SupportedMajor {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSchema, v)
	}
	return semver.Canonical(v), nil
}

func selectBounds(obj any, path string) (any, error) {
	paths := []string{path}
	if path == "" {
		paths = []string{DefaultBoundsPath, derivedBoundsPath}
	}
	for _, p := range paths {
		expr, err := jp.ParseString(p)
		if err != nil {
			return nil, err
		}
		if res := expr.Get(obj); len(res) > 0 && res[0] != nil {
			return res[0], nil
		}
	}
	return nil, fmt.Errorf("%w at %s", ErrNoBoundaries, strings.Join(paths, ", "))
}

func toRings(raw any) ([]geom.Ring, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, ErrNoBoundaries
	}
	ret := make([]geom.Ring, 0, len(list))
	for i, r := range list {
		points, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: ring %d is not a list", ErrInvalidDocument, i)
		}
		ring := make(geom.Ring, 0, len(points))
		for j, p := range points {
			pt, err := toPoint(p)
			if err != nil {
				return nil, fmt.Errorf("ring %d point %d: %w", i, j, err)
			}
			ring = append(ring, pt)
		}
		ret = append(ret, ring)
	}
	return ret, nil
}

func toPoint(p any) (geom.Point, error) {
	var x, y any
	switch v := p.(type) {
	case []any:
		if len(v) < 2 {
			return geom.Point{}, fmt.Errorf("%w: point needs two coordinates", ErrInvalidDocument)
		}
		x, y = v[0], v[1]
	case map[string]any:
		x, y = v["x"], v["y"]
	default:
		return geom.Point{}, fmt.Errorf("%w: unexpected point %v", ErrInvalidDocument, p)
	}
	xv, okX := number(x)
	yv, okY := number(y)
	if !okX || !okY {
		return geom.Point{}, fmt.Errorf("%w: non numeric coordinate", ErrInvalidDocument)
	}
	return geom.Pt(xv, yv), nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
