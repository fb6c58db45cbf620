// Package solid turns a profile plan into a placed solid and composes it
// with dependency solids. It is stateless; caching lives in package shape.
package solid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
)

// Kind enumerates the sweep variants.
type Kind int

const (
	KindRevolve Kind = iota
	KindExtrude
	KindPathSweep
)

func (k Kind) String() string {
	switch k {
	case KindRevolve:
		return "revolve"
	case KindExtrude:
		return "extrude"
	case KindPathSweep:
		return "sweep"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sweep is the closed set of ways to turn a profile into a solid:
// Revolve, Extrude and PathSweep.
type Sweep interface {
	Kind() Kind
	// canonical renders the parameters for fingerprinting.
	canonical() string
}

// Revolve turns the profile about the workplane's vertical axis.
type Revolve struct {
	Angle float64 // degrees, (0, 360]
}

func (Revolve) Kind() Kind { return KindRevolve }

func (r Revolve) canonical() string {
	return "revolve(" + ftoa(r.Angle) + ")"
}

// Extrude pushes the profile along the workplane normal. Both splits the
// distance evenly either side of the plane. StartOffset moves the start
// of the extrusion along the normal.
type Extrude struct {
	Distance    float64
	Both        bool
	StartOffset float64
}

func (Extrude) Kind() Kind { return KindExtrude }

func (e Extrude) canonical() string {
	return "extrude(" + ftoa(e.Distance) + "," + strconv.FormatBool(e.Both) + "," + ftoa(e.StartOffset) + ")"
}

// PathSweep carries the profile along a smooth path through Path, drawn on
// PathPlane. The profile's workplane and PathPlane must share their first
// axis and nothing else.
type PathSweep struct {
	Path      []kernel.Vec2
	PathPlane kernel.Workplane
}

func (PathSweep) Kind() Kind { return KindPathSweep }

func (s PathSweep) canonical() string {
	var b strings.Builder
	b.WriteString("sweep(")
	b.WriteString(string(s.PathPlane))
	for _, p := range s.Path {
		b.WriteString(";" + ftoa(p.U) + "," + ftoa(p.V))
	}
	b.WriteString(")")
	return b.String()
}

// Canonical renders a sweep for fingerprinting. A nil sweep renders as
// "none".
func Canonical(s Sweep) string {
	if s == nil {
		return "none"
	}
	return s.canonical()
}

// Placement lists azimuthal placement angles in degrees. Empty means a
// single copy at 0.
type Placement []float64

// Angles returns the effective angle list.
func (p Placement) Angles() []float64 {
	if len(p) == 0 {
		return []float64{0}
	}
	return p
}

// Canonical renders the placement for fingerprinting.
func (p Placement) Canonical() string {
	parts := make([]string, 0, len(p))
	for _, a := range p.Angles() {
		parts = append(parts, ftoa(a))
	}
	return strings.Join(parts, ",")
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) Placement {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return Placement{start}
	}
	step := (stop - start) / float64(n-1)
	out := make(Placement, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// Even returns n angles spaced 360/n apart starting at 0.
func Even(n int) Placement {
	if n <= 0 {
		return nil
	}
	out := make(Placement, n)
	for i := range out {
		out[i] = 360 * float64(i) / float64(n)
	}
	return out
}

// Spec is everything besides the profile that decides the raw solid.
type Spec struct {
	Workplane    kernel.Workplane
	Sweep        Sweep
	Placement    Placement
	RotationAxis kernel.Axis
}

// Validate checks the spec without touching a kernel. It returns
// advisories that do not stop construction.
func Validate(spec Spec) (warnings []string, err error) {
	if !spec.Workplane.Valid() {
		return nil, geomerr.Configuration("workplane", "invalid workplane %q", string(spec.Workplane))
	}
	if spec.RotationAxis < kernel.AxisX || spec.RotationAxis > kernel.AxisZ {
		return nil, geomerr.Configuration("rotation_axis", "invalid axis %v", spec.RotationAxis)
	}
	for i, a := range spec.Placement {
		if !finite(a) {
			return nil, geomerr.Configuration("placement", "angle %d is %g", i, a)
		}
	}

	switch s := spec.Sweep.(type) {
	case Revolve:
		if !(s.Angle > 0 && s.Angle <= 360) {
			return nil, geomerr.Configuration("revolve", "angle %g outside (0, 360]", s.Angle)
		}
		if s.Angle == 360 {
			warnings = append(warnings, "revolving by exactly 360 degrees is numerically fragile in some kernels")
		}
	case Extrude:
		if !(s.Distance > 0) || !finite(s.Distance) {
			return nil, geomerr.Configuration("extrude", "distance %g must be positive and finite", s.Distance)
		}
		if !finite(s.StartOffset) {
			return nil, geomerr.Configuration("extrude", "start offset %g is not finite", s.StartOffset)
		}
	case PathSweep:
		if err := validatePath(spec.Workplane, s); err != nil {
			return nil, err
		}
	case nil:
		return nil, geomerr.Configuration("sweep", "no sweep given")
	default:
		return nil, geomerr.Configuration("sweep", "unsupported sweep %T", spec.Sweep)
	}
	return warnings, nil
}

func validatePath(plane kernel.Workplane, s PathSweep) error {
	if !s.PathPlane.Valid() {
		return geomerr.Configuration("sweep", "invalid path workplane %q", string(s.PathPlane))
	}
	if s.PathPlane == plane {
		return geomerr.Configuration("sweep", "path workplane %s equals the sweep workplane", plane)
	}
	if s.PathPlane[0] != plane[0] {
		return geomerr.Configuration("sweep", "path workplane %s must share its first axis with workplane %s", s.PathPlane, plane)
	}
	if !plane.CompatiblePath(s.PathPlane) {
		return geomerr.Configuration("sweep", "path workplane %s is not perpendicular to workplane %s", s.PathPlane, plane)
	}
	if len(s.Path) < 2 {
		return geomerr.Configuration("sweep", "path needs at least 2 points, got %d", len(s.Path))
	}
	for i, p := range s.Path {
		if !finite(p.U) || !finite(p.V) {
			return geomerr.Configuration("sweep", "path point %d (%g, %g) is not finite", i, p.U, p.V)
		}
	}
	rising := s.Path[1].V > s.Path[0].V
	for i := 1; i < len(s.Path); i++ {
		d := s.Path[i].V - s.Path[i-1].V
		if d == 0 || (d > 0) != rising {
			return geomerr.Configuration("sweep", "path must advance monotonically along %c (point %d)", s.PathPlane[1], i)
		}
	}
	return nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
