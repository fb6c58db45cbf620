// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx, the counting fake in kerneltest) provide profile,
// sweep, boolean and query operations behind this interface so that the
// shape and reactor layers never touch a backend directly.
package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult is returned by boolean operations whose result
	// encloses no volume.
	ErrEmptyResult = errors.New("kernel: empty result")

	// ErrDegenerate is returned when input geometry cannot bound a solid:
	// collinear arc points, zero-area profiles, zero-length sweeps.
	ErrDegenerate = errors.New("kernel: degenerate geometry")

	// ErrForeignSolid is returned when a solid from another backend is
	// passed in.
	ErrForeignSolid = errors.New("kernel: solid belongs to a different kernel")
)

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Profile is a closed planar region built from a Wire.
type Profile interface {
	// Bounds returns the 2D bounding box in (u, v) plane coordinates.
	Bounds() (min, max Vec2)
}

// CheckRevolvable reports ErrDegenerate for a profile reaching across the
// revolve axis. Such a profile would sweep through itself.
func CheckRevolvable(p Profile) error {
	min, _ := p.Bounds()
	if min.U < -coincident {
		return fmt.Errorf("profile crosses the revolve axis (u min %g): %w", min.U, ErrDegenerate)
	}
	return nil
}

// Kernel is the abstract geometry kernel interface.
//
// Sweeps take the profile in the (u, v) coordinates of a Workplane. Revolve
// turns the profile about the plane's v axis, starting in the u direction;
// the profile must lie at u >= 0.
// Extrude pushes it along the plane normal. Sweep carries it along a path
// drawn in a second plane that shares the u axis; the path's second
// coordinate runs along the sweep plane's normal.
type Kernel interface {
	// Profiles
	Profile(w Wire) (Profile, error)

	// Sweeps
	Revolve(p Profile, plane Workplane, angle float64) (Solid, error)
	Extrude(p Profile, plane Workplane, distance float64, both bool) (Solid, error)
	Sweep(p Profile, plane Workplane, path []Vec2, pathPlane Workplane) (Solid, error)

	// Boolean operations
	Union(a, b Solid) (Solid, error)
	Difference(a, b Solid) (Solid, error)
	Intersection(a, b Solid) (Solid, error)

	// Transforms
	Translate(s Solid, x, y, z float64) (Solid, error)
	Rotate(s Solid, axis Axis, angle float64) (Solid, error) // degrees

	// Queries and mesh output
	Volume(s Solid) (float64, error)
	ToMesh(s Solid) (*Mesh, error)
}
