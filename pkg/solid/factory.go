package solid

import (
	"fmt"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/profile"
)

// Build sweeps the plan into a solid and applies the azimuthal placement.
// Advisories from Validate are not reported here; callers that want them
// call Validate themselves.
func Build(k kernel.Kernel, plan profile.Plan, spec Spec) (kernel.Solid, error) {
	if _, err := Validate(spec); err != nil {
		return nil, err
	}

	p, err := k.Profile(plan.Wire())
	if err != nil {
		return nil, geomerr.Construction("profile", err)
	}

	var base kernel.Solid
	switch s := spec.Sweep.(type) {
	case Revolve:
		base, err = k.Revolve(p, spec.Workplane, s.Angle)
		if err != nil {
			return nil, geomerr.Construction("revolve", err)
		}
	case Extrude:
		base, err = k.Extrude(p, spec.Workplane, s.Distance, s.Both)
		if err != nil {
			return nil, geomerr.Construction("extrude", err)
		}
		if s.StartOffset != 0 {
			base, err = offsetAlongNormal(k, base, spec.Workplane, s.StartOffset)
			if err != nil {
				return nil, geomerr.Construction("extrude offset", err)
			}
		}
	case PathSweep:
		base, err = k.Sweep(p, spec.Workplane, s.Path, s.PathPlane)
		if err != nil {
			return nil, geomerr.Construction("sweep", err)
		}
	}

	return place(k, base, spec)
}

func offsetAlongNormal(k kernel.Kernel, s kernel.Solid, plane kernel.Workplane, d float64) (kernel.Solid, error) {
	_, _, n, err := plane.Axes()
	if err != nil {
		return nil, err
	}
	var t [3]float64
	t[n] = d
	return k.Translate(s, t[0], t[1], t[2])
}

// place rotates a copy of base to every placement angle and unions the
// copies in order.
func place(k kernel.Kernel, base kernel.Solid, spec Spec) (kernel.Solid, error) {
	var out kernel.Solid
	for i, a := range spec.Placement.Angles() {
		c := base
		if a != 0 {
			var err error
			c, err = k.Rotate(base, spec.RotationAxis, a)
			if err != nil {
				return nil, geomerr.Construction(fmt.Sprintf("placement rotate[%d]", i), err)
			}
		}
		if out == nil {
			out = c
			continue
		}
		u, err := k.Union(out, c)
		if err != nil {
			return nil, geomerr.Construction(fmt.Sprintf("placement union[%d]", i), err)
		}
		out = u
	}
	return out, nil
}

// Operands are the resolved dependency solids of a shape.
type Operands struct {
	Intersect []kernel.Solid
	Union     []kernel.Solid
	Cut       []kernel.Solid
}

// Empty reports whether there is nothing to compose.
func (o Operands) Empty() bool {
	return len(o.Intersect) == 0 && len(o.Union) == 0 && len(o.Cut) == 0
}

// Compose applies intersections first, then unions, then cuts, each list
// in order. Any failing or empty step aborts with ErrGeometryConstruction.
func Compose(k kernel.Kernel, base kernel.Solid, ops Operands) (kernel.Solid, error) {
	out := base
	var err error
	for i, s := range ops.Intersect {
		if out, err = k.Intersection(out, s); err != nil {
			return nil, geomerr.Construction(fmt.Sprintf("intersect[%d]", i), err)
		}
	}
	for i, s := range ops.Union {
		if out, err = k.Union(out, s); err != nil {
			return nil, geomerr.Construction(fmt.Sprintf("union[%d]", i), err)
		}
	}
	for i, s := range ops.Cut {
		if out, err = k.Difference(out, s); err != nil {
			return nil, geomerr.Construction(fmt.Sprintf("cut[%d]", i), err)
		}
	}
	return out, nil
}
