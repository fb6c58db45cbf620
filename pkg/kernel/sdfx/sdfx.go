// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

const (
	// defaultMeshCells controls marching cubes tessellation resolution.
	defaultMeshCells = 200
	// defaultVolumeCells is the sample count along the longest bounding
	// box side when integrating volume.
	defaultVolumeCells = 96
	// emptyGridCells is the grid used to decide whether a boolean or revolve result
	// encloses anything.
	emptyGridCells = 32
)

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// sdfxProfile wraps a 2D polygon SDF to implement kernel.Profile.
type sdfxProfile struct {
	s    sdf.SDF2
	poly []kernel.Vec2
}

// Bounds returns the 2D bounding box of the flattened profile.
func (p *sdfxProfile) Bounds() (min, max kernel.Vec2) {
	return kernel.PolygonBounds(p.poly)
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution used by ToMesh.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.meshCells = n
		}
	}
}

// WithVolumeCells sets the sampling resolution used by Volume.
func WithVolumeCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.volumeCells = n
		}
	}
}

// WithCurveSamples sets how finely splines and arcs are flattened.
func WithCurveSamples(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.curveSamples = n
		}
	}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	meshCells    int
	volumeCells  int
	curveSamples int
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{
		meshCells:    defaultMeshCells,
		volumeCells:  defaultVolumeCells,
		curveSamples: kernel.DefaultCurveSamples,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) (sdf.SDF3, error) {
	ss, ok := s.(*sdfxSolid)
	if !ok || ss == nil {
		return nil, fmt.Errorf("sdfx: %T: %w", s, kernel.ErrForeignSolid)
	}
	return ss.s, nil
}

// unwrap2 extracts both operands of a boolean.
func unwrap2(a, b kernel.Solid) (sdf.SDF3, sdf.SDF3, error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, nil, err
	}
	return sa, sb, nil
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

func unwrapProfile(p kernel.Profile) (*sdfxProfile, error) {
	sp, ok := p.(*sdfxProfile)
	if !ok || sp == nil {
		return nil, fmt.Errorf("sdfx: profile %T: %w", p, kernel.ErrForeignSolid)
	}
	return sp, nil
}

// Profile flattens the wire and builds a polygon SDF from it.
func (k *SdfxKernel) Profile(w kernel.Wire) (kernel.Profile, error) {
	pts, err := w.Flatten(k.curveSamples)
	if err != nil {
		return nil, fmt.Errorf("sdfx: profile: %w", err)
	}
	verts := make([]v2.Vec, len(pts))
	for i, p := range pts {
		verts[i] = v2.Vec{X: p.U, Y: p.V}
	}
	s, err := sdf.Polygon2D(verts)
	if err != nil {
		return nil, fmt.Errorf("sdfx: Polygon2D: %w", err)
	}
	return &sdfxProfile{s: s, poly: pts}, nil
}

// Revolve turns the profile about the plane's v axis. sdfx revolves about
// its Z axis with the 2D x coordinate as radius, so the result is mapped
// X->u, Y->normal, Z->v.
func (k *SdfxKernel) Revolve(p kernel.Profile, plane kernel.Workplane, angle float64) (kernel.Solid, error) {
	sp, err := unwrapProfile(p)
	if err != nil {
		return nil, err
	}
	u, v, n, err := plane.Axes()
	if err != nil {
		return nil, err
	}
	if angle <= 0 || angle > 360 {
		return nil, fmt.Errorf("sdfx: revolve angle %g out of range (0, 360]: %w", angle, kernel.ErrDegenerate)
	}
	if err := kernel.CheckRevolvable(sp); err != nil {
		return nil, fmt.Errorf("sdfx: revolve: %w", err)
	}

	var s sdf.SDF3
	if angle == 360 {
		s, err = sdf.Revolve3D(sp.s)
	} else {
		s, err = sdf.RevolveTheta3D(sp.s, angle*math.Pi/180.0)
	}
	if err != nil {
		return nil, fmt.Errorf("sdfx: revolve: %w", err)
	}
	if isEmpty(s) {
		return nil, fmt.Errorf("sdfx: revolve: %w", kernel.ErrEmptyResult)
	}
	return wrap(permute(s, u, n, v)), nil
}

// Extrude pushes the profile along the plane normal. One-sided extrusions
// start on the plane; two-sided ones are centred on it.
func (k *SdfxKernel) Extrude(p kernel.Profile, plane kernel.Workplane, distance float64, both bool) (kernel.Solid, error) {
	sp, err := unwrapProfile(p)
	if err != nil {
		return nil, err
	}
	u, v, n, err := plane.Axes()
	if err != nil {
		return nil, err
	}
	if distance <= 0 {
		return nil, fmt.Errorf("sdfx: extrude distance %g: %w", distance, kernel.ErrDegenerate)
	}

	// Extrude3D is centred on z = 0.
	s := sdf.Extrude3D(sp.s, distance)
	if !both {
		s = sdf.Transform3D(s, sdf.Translate3d(v3.Vec{X: 0, Y: 0, Z: distance / 2}))
	}
	return wrap(permute(s, u, v, n)), nil
}

// Sweep carries the profile along a smooth path drawn in pathPlane. The
// profile stays parallel to its own plane at every station.
func (k *SdfxKernel) Sweep(p kernel.Profile, plane kernel.Workplane, path []kernel.Vec2, pathPlane kernel.Workplane) (kernel.Solid, error) {
	sp, err := unwrapProfile(p)
	if err != nil {
		return nil, err
	}
	u, v, n, err := plane.Axes()
	if err != nil {
		return nil, err
	}
	if !plane.CompatiblePath(pathPlane) {
		return nil, fmt.Errorf("sdfx: sweep plane %s cannot follow path plane %s: %w", plane, pathPlane, kernel.ErrDegenerate)
	}
	s, err := newSweep(sp.s, kernel.Interpolate(path, k.curveSamples))
	if err != nil {
		return nil, err
	}
	return wrap(permute(s, u, v, n)), nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	return wrap(sdf.Union3D(sa, sb)), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	s := sdf.Difference3D(sa, sb)
	if isEmpty(s) {
		return nil, fmt.Errorf("sdfx: difference: %w", kernel.ErrEmptyResult)
	}
	return wrap(s), nil
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	s := sdf.Intersect3D(sa, sb)
	if isEmpty(s) {
		return nil, fmt.Errorf("sdfx: intersection: %w", kernel.ErrEmptyResult)
	}
	return wrap(s), nil
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(ss, m)), nil
}

// Rotate rotates a solid about one world axis by angle degrees.
func (k *SdfxKernel) Rotate(s kernel.Solid, axis kernel.Axis, angle float64) (kernel.Solid, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	rad := angle * math.Pi / 180.0

	var m sdf.M44
	switch axis {
	case kernel.AxisX:
		m = sdf.RotateX(rad)
	case kernel.AxisY:
		m = sdf.RotateY(rad)
	case kernel.AxisZ:
		m = sdf.RotateZ(rad)
	default:
		return nil, fmt.Errorf("sdfx: rotate: invalid axis %v", axis)
	}
	return wrap(sdf.Transform3D(ss, m)), nil
}

// Volume integrates the solid's volume by sampling the SDF sign at cell
// centres over its bounding box.
func (k *SdfxKernel) Volume(s kernel.Solid) (float64, error) {
	ss, err := unwrap(s)
	if err != nil {
		return 0, err
	}
	return sampleVolume(ss, k.volumeCells), nil
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3, err := unwrap(s)
	if err != nil {
		return nil, err
	}

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
