// Package pairs reads and writes feature line correspondence files.
//
// A file lists pairs of lines, one drawn on the source image and one on the
// destination image:
//
//	view: {width: 320, height: 240}
//	pairs:
//	  - source:      {start: [10, 20], end: [100, 20]}
//	    destination: {start: [12, 25], end: [98, 30]}
//
// Coordinates are image pixels unless view is present, in which case they
// were captured on a canvas of that size and are rescaled to the image with
// ToImageSpace. JSON input is accepted as well.
package pairs

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/MeKo-Tech/morpho/internal/geometry"
	"github.com/MeKo-Tech/morpho/internal/morph"
	"gopkg.in/yaml.v3"
)

// View is the size of the canvas the lines were drawn on.
type View struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

type point [2]float64

type lineDoc struct {
	Start point `yaml:"start,flow" json:"start"`
	End   point `yaml:"end,flow" json:"end"`
}

type pairDoc struct {
	Source      lineDoc `yaml:"source,flow" json:"source"`
	Destination lineDoc `yaml:"destination,flow" json:"destination"`
}

type document struct {
	View  *View     `yaml:"view,omitempty,flow" json:"view,omitempty"`
	Pairs []pairDoc `yaml:"pairs" json:"pairs"`
}

// Set is an ordered list of correspondences. Order matters: it fixes the
// order in which line weights are summed.
type Set struct {
	View  *View
	Pairs []geometry.Pair
}

// New wraps pairs given in image coordinates.
func New(pairs ...geometry.Pair) *Set {
	return &Set{Pairs: pairs}
}

// Parse decodes a YAML or JSON document.
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pairs: %w", err)
	}
	if doc.View != nil && (doc.View.Width <= 0 || doc.View.Height <= 0) {
		return nil, fmt.Errorf("parse pairs: view size must be positive, got %gx%g", doc.View.Width, doc.View.Height)
	}

	s := &Set{View: doc.View, Pairs: make([]geometry.Pair, len(doc.Pairs))}
	for i, p := range doc.Pairs {
		s.Pairs[i] = geometry.Pair{Source: p.Source.line(), Destination: p.Destination.line()}
	}
	return s, nil
}

// Load reads and parses a pairs file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied pairs file
	if err != nil {
		return nil, fmt.Errorf("read pairs file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Marshal encodes the set as YAML.
func (s *Set) Marshal() ([]byte, error) {
	doc := document{View: s.View, Pairs: make([]pairDoc, len(s.Pairs))}
	for i, p := range s.Pairs {
		doc.Pairs[i] = pairDoc{Source: docLine(p.Source), Destination: docLine(p.Destination)}
	}
	return yaml.Marshal(&doc)
}

// Save writes the set to path as YAML.
func (s *Set) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Len returns the number of pairs.
func (s *Set) Len() int {
	return len(s.Pairs)
}

// Validate rejects an empty set and zero-length lines, which the morph
// engine cannot handle.
func (s *Set) Validate() error {
	if len(s.Pairs) == 0 {
		return morph.ErrNoPairs
	}
	var errs []error
	for i, p := range s.Pairs {
		if p.Source.IsDegenerate() {
			errs = append(errs, &morph.DegenerateLineError{Pair: i, Side: "source"})
		}
		if p.Destination.IsDegenerate() {
			errs = append(errs, &morph.DegenerateLineError{Pair: i, Side: "destination"})
		}
	}
	return errors.Join(errs...)
}

// ToImageSpace maps view coordinates onto the images: source lines onto an
// image of size src and destination lines onto an image of size dst. Sets
// without a view are returned as an unchanged copy.
func (s *Set) ToImageSpace(src, dst image.Point) *Set {
	if s.View == nil {
		return s.Scale(1, 1)
	}
	out := s.ScaleSides(
		float64(src.X)/s.View.Width, float64(src.Y)/s.View.Height,
		float64(dst.X)/s.View.Width, float64(dst.Y)/s.View.Height,
	)
	out.View = nil
	return out
}

// Scale returns a copy with every line scaled about the origin.
func (s *Set) Scale(sx, sy float64) *Set {
	return s.ScaleSides(sx, sy, sx, sy)
}

// ScaleDestination returns a copy with only the destination lines scaled,
// for when the destination image is resized to match the source.
func (s *Set) ScaleDestination(sx, sy float64) *Set {
	return s.ScaleSides(1, 1, sx, sy)
}

// ScaleSides scales source and destination lines independently.
func (s *Set) ScaleSides(srcX, srcY, dstX, dstY float64) *Set {
	out := &Set{View: s.View, Pairs: make([]geometry.Pair, len(s.Pairs))}
	for i, p := range s.Pairs {
		out.Pairs[i] = geometry.Pair{
			Source:      p.Source.Scale(srcX, srcY),
			Destination: p.Destination.Scale(dstX, dstY),
		}
	}
	return out
}

// Reversed returns a copy with source and destination swapped in every pair,
// for morphing the other way round.
func (s *Set) Reversed() *Set {
	out := &Set{View: s.View, Pairs: make([]geometry.Pair, len(s.Pairs))}
	for i, p := range s.Pairs {
		out.Pairs[i] = p.Swap()
	}
	return out
}

func (l lineDoc) line() geometry.Line {
	return geometry.NewLine(l.Start[0], l.Start[1], l.End[0], l.End[1])
}

func docLine(l geometry.Line) lineDoc {
	return lineDoc{Start: point{l.Start.X, l.Start.Y}, End: point{l.End.X, l.End.Y}}
}
