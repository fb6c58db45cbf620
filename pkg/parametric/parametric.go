// Package parametric builds reactor components and whole reactors from a
// handful of dimensions. Every component validates its parameters with
// struct tags before it produces a shape.
package parametric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/solid"
)

var validate = validator.New()

// Component is anything that can become a shape.
type Component interface {
	Build(k kernel.Kernel) (*shape.Shape, error)
}

// Options are the shape attributes shared by every component. Empty
// fields take the component's defaults.
type Options struct {
	Name        string
	MaterialTag string
	STPFilename string
	STLFilename string
	Color       [3]float64
	Placement   solid.Placement
}

func (o Options) apply(cfg *shape.Config, def Options) {
	pick := func(v, d string) string {
		if v != "" {
			return v
		}
		return d
	}
	cfg.Name = pick(o.Name, def.Name)
	cfg.MaterialTag = pick(o.MaterialTag, def.MaterialTag)
	cfg.STPFilename = pick(o.STPFilename, def.STPFilename)
	cfg.STLFilename = pick(o.STLFilename, def.STLFilename)
	cfg.Color = o.Color
	if cfg.Color == ([3]float64{}) {
		cfg.Color = [3]float64{0.5, 0.5, 0.5}
	}
	cfg.Placement = o.Placement
	if len(cfg.Placement) == 0 {
		cfg.Placement = def.Placement
	}
}

// check runs the struct-tag validation and folds failures into one
// ErrValidation.
func check(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return geomerr.Validation(op, "%v", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs[i] = fmt.Sprintf("%s=%v violates %s", fe.Namespace(), fe.Value(), rule)
	}
	return geomerr.Validation(op, "%s", strings.Join(msgs, "; "))
}

func defaultAngle(a float64) float64 {
	if a == 0 {
		return 360
	}
	return a
}

// rect returns the untagged corners of an axis-aligned rectangle centred
// on (cu, cv).
func rect(cu, cv, w, h float64) []profile.Point {
	return []profile.Point{
		profile.Pt(cu-w/2, cv-h/2),
		profile.Pt(cu+w/2, cv-h/2),
		profile.Pt(cu+w/2, cv+h/2),
		profile.Pt(cu-w/2, cv+h/2),
	}
}

// circle returns a circle of radius r about (cu, cv) as two three-point
// arcs.
func circle(cu, cv, r float64) []profile.Point {
	return profile.Uniform(profile.Circle,
		kernel.Vec2{U: cu + r, V: cv},
		kernel.Vec2{U: cu, V: cv + r},
		kernel.Vec2{U: cu - r, V: cv},
		kernel.Vec2{U: cu, V: cv - r},
	)
}

func newShape(k kernel.Kernel, op string, cfg shape.Config, err error) (*shape.Shape, error) {
	if err != nil {
		return nil, err
	}
	s, err := shape.New(k, cfg)
	if err != nil {
		return nil, fmt.Errorf("parametric: %s: %w", op, err)
	}
	return s, nil
}
