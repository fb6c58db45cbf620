// Package kerneltest provides a counting fake kernel.Kernel for tests. It
// computes volumes analytically (Pappus for revolves, area times length for
// extrusions and sweeps) and records every call so cache behaviour can be
// asserted without a real geometry backend.
package kerneltest

import (
	"fmt"
	"math"
	"sync"

	"github.com/chazu/tokamak/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Method names accepted by Calls and Fail.
const (
	MethodProfile      = "Profile"
	MethodRevolve      = "Revolve"
	MethodExtrude      = "Extrude"
	MethodSweep        = "Sweep"
	MethodUnion        = "Union"
	MethodDifference   = "Difference"
	MethodIntersection = "Intersection"
	MethodTranslate    = "Translate"
	MethodRotate       = "Rotate"
	MethodVolume       = "Volume"
	MethodToMesh       = "ToMesh"
)

// Solid is the fake solid. Its volume is tracked as a number; booleans
// assume union operands are disjoint and cut/intersect operands are
// either disjoint or nested.
type Solid struct {
	Vol      float64
	Min, Max [3]float64
	Op       string
}

// BoundingBox returns the tracked box.
func (s *Solid) BoundingBox() (min, max [3]float64) {
	return s.Min, s.Max
}

// Profile is the fake profile: the flattened polygon.
type Profile struct {
	Poly []kernel.Vec2
}

// Bounds returns the polygon bounds.
func (p *Profile) Bounds() (min, max kernel.Vec2) {
	return kernel.PolygonBounds(p.Poly)
}

// Kernel is a thread-safe counting fake.
type Kernel struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

// New returns an empty fake kernel.
func New() *Kernel {
	return &Kernel{calls: make(map[string]int), fail: make(map[string]error)}
}

// Calls returns how many times method was invoked.
func (k *Kernel) Calls(method string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[method]
}

// Total returns the number of calls across all methods.
func (k *Kernel) Total() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, c := range k.calls {
		n += c
	}
	return n
}

// Reset clears all counters. Injected failures stay.
func (k *Kernel) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = make(map[string]int)
}

// Fail makes every later call to method return err. A nil err clears it.
func (k *Kernel) Fail(method string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err == nil {
		delete(k.fail, method)
		return
	}
	k.fail[method] = err
}

func (k *Kernel) enter(method string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls[method]++
	return k.fail[method]
}

func solidOf(s kernel.Solid) (*Solid, error) {
	fs, ok := s.(*Solid)
	if !ok || fs == nil {
		return nil, fmt.Errorf("kerneltest: %T: %w", s, kernel.ErrForeignSolid)
	}
	return fs, nil
}

func profileOf(p kernel.Profile) (*Profile, error) {
	fp, ok := p.(*Profile)
	if !ok || fp == nil {
		return nil, fmt.Errorf("kerneltest: profile %T: %w", p, kernel.ErrForeignSolid)
	}
	return fp, nil
}

func (k *Kernel) Profile(w kernel.Wire) (kernel.Profile, error) {
	if err := k.enter(MethodProfile); err != nil {
		return nil, err
	}
	poly, err := w.Flatten(0)
	if err != nil {
		return nil, err
	}
	return &Profile{Poly: poly}, nil
}

func (k *Kernel) Revolve(p kernel.Profile, plane kernel.Workplane, angle float64) (kernel.Solid, error) {
	if err := k.enter(MethodRevolve); err != nil {
		return nil, err
	}
	fp, err := profileOf(p)
	if err != nil {
		return nil, err
	}
	if angle <= 0 || angle > 360 {
		return nil, fmt.Errorf("kerneltest: revolve angle %g: %w", angle, kernel.ErrDegenerate)
	}
	if err := kernel.CheckRevolvable(fp); err != nil {
		return nil, fmt.Errorf("kerneltest: revolve: %w", err)
	}
	area := math.Abs(kernel.PolygonArea(fp.Poly))
	c := kernel.PolygonCentroid(fp.Poly)
	min, max := fp.Bounds()
	r := math.Max(math.Abs(min.U), math.Abs(max.U))
	return &Solid{
		Vol: area * 2 * math.Pi * math.Abs(c.U) * angle / 360,
		Min: [3]float64{-r, -r, min.V},
		Max: [3]float64{r, r, max.V},
		Op:  "revolve",
	}, nil
}

func (k *Kernel) Extrude(p kernel.Profile, plane kernel.Workplane, distance float64, both bool) (kernel.Solid, error) {
	if err := k.enter(MethodExtrude); err != nil {
		return nil, err
	}
	fp, err := profileOf(p)
	if err != nil {
		return nil, err
	}
	if distance <= 0 {
		return nil, fmt.Errorf("kerneltest: extrude distance %g: %w", distance, kernel.ErrDegenerate)
	}
	min, max := fp.Bounds()
	lo, hi := 0.0, distance
	if both {
		lo, hi = -distance/2, distance/2
	}
	return &Solid{
		Vol: math.Abs(kernel.PolygonArea(fp.Poly)) * distance,
		Min: [3]float64{min.U, min.V, lo},
		Max: [3]float64{max.U, max.V, hi},
		Op:  "extrude",
	}, nil
}

func (k *Kernel) Sweep(p kernel.Profile, plane kernel.Workplane, path []kernel.Vec2, pathPlane kernel.Workplane) (kernel.Solid, error) {
	if err := k.enter(MethodSweep); err != nil {
		return nil, err
	}
	fp, err := profileOf(p)
	if err != nil {
		return nil, err
	}
	if len(path) < 2 || !plane.CompatiblePath(pathPlane) {
		return nil, fmt.Errorf("kerneltest: sweep: %w", kernel.ErrDegenerate)
	}
	length := math.Abs(path[len(path)-1].V - path[0].V)
	min, max := fp.Bounds()
	return &Solid{
		Vol: math.Abs(kernel.PolygonArea(fp.Poly)) * length,
		Min: [3]float64{min.U, min.V, path[0].V},
		Max: [3]float64{max.U, max.V, path[len(path)-1].V},
		Op:  "sweep",
	}, nil
}

func boxUnion(a, b *Solid) (min, max [3]float64) {
	for i := 0; i < 3; i++ {
		min[i] = math.Min(a.Min[i], b.Min[i])
		max[i] = math.Max(a.Max[i], b.Max[i])
	}
	return min, max
}

func (k *Kernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	if err := k.enter(MethodUnion); err != nil {
		return nil, err
	}
	sa, err := solidOf(a)
	if err != nil {
		return nil, err
	}
	sb, err := solidOf(b)
	if err != nil {
		return nil, err
	}
	min, max := boxUnion(sa, sb)
	return &Solid{Vol: sa.Vol + sb.Vol, Min: min, Max: max, Op: "union"}, nil
}

// Difference keeps a's volume. When b's box swallows a's box and b is at
// least as large as a, the result is empty.
func (k *Kernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	if err := k.enter(MethodDifference); err != nil {
		return nil, err
	}
	sa, err := solidOf(a)
	if err != nil {
		return nil, err
	}
	sb, err := solidOf(b)
	if err != nil {
		return nil, err
	}
	if contains(sb, sa) && sb.Vol >= sa.Vol {
		return nil, fmt.Errorf("kerneltest: difference: %w", kernel.ErrEmptyResult)
	}
	return &Solid{Vol: sa.Vol, Min: sa.Min, Max: sa.Max, Op: "difference"}, nil
}

// Intersection returns the smaller operand, or empty when the boxes do
// not overlap.
func (k *Kernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	if err := k.enter(MethodIntersection); err != nil {
		return nil, err
	}
	sa, err := solidOf(a)
	if err != nil {
		return nil, err
	}
	sb, err := solidOf(b)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		if sa.Max[i] <= sb.Min[i] || sb.Max[i] <= sa.Min[i] {
			return nil, fmt.Errorf("kerneltest: intersection: %w", kernel.ErrEmptyResult)
		}
	}
	small := sa
	if sb.Vol < sa.Vol {
		small = sb
	}
	return &Solid{Vol: small.Vol, Min: small.Min, Max: small.Max, Op: "intersection"}, nil
}

func contains(outer, inner *Solid) bool {
	for i := 0; i < 3; i++ {
		if inner.Min[i] < outer.Min[i] || inner.Max[i] > outer.Max[i] {
			return false
		}
	}
	return true
}

func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	if err := k.enter(MethodTranslate); err != nil {
		return nil, err
	}
	fs, err := solidOf(s)
	if err != nil {
		return nil, err
	}
	d := [3]float64{x, y, z}
	out := *fs
	for i := 0; i < 3; i++ {
		out.Min[i] += d[i]
		out.Max[i] += d[i]
	}
	return &out, nil
}

// Rotate keeps the volume and the box; the fake does not track
// orientation.
func (k *Kernel) Rotate(s kernel.Solid, axis kernel.Axis, angle float64) (kernel.Solid, error) {
	if err := k.enter(MethodRotate); err != nil {
		return nil, err
	}
	fs, err := solidOf(s)
	if err != nil {
		return nil, err
	}
	out := *fs
	return &out, nil
}

func (k *Kernel) Volume(s kernel.Solid) (float64, error) {
	if err := k.enter(MethodVolume); err != nil {
		return 0, err
	}
	fs, err := solidOf(s)
	if err != nil {
		return 0, err
	}
	return fs.Vol, nil
}

// ToMesh returns the solid's bounding box as a 12-triangle mesh.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	if err := k.enter(MethodToMesh); err != nil {
		return nil, err
	}
	fs, err := solidOf(s)
	if err != nil {
		return nil, err
	}
	lo, hi := fs.Min, fs.Max
	var verts []float32
	for i := 0; i < 8; i++ {
		x, y, z := lo[0], lo[1], lo[2]
		if i&1 != 0 {
			x = hi[0]
		}
		if i&2 != 0 {
			y = hi[1]
		}
		if i&4 != 0 {
			z = hi[2]
		}
		verts = append(verts, float32(x), float32(y), float32(z))
	}
	return &kernel.Mesh{
		Vertices: verts,
		Normals:  make([]float32, len(verts)),
		Indices: []uint32{
			0, 2, 1, 1, 2, 3, // -z
			4, 5, 6, 5, 7, 6, // +z
			0, 1, 4, 1, 5, 4, // -y
			2, 6, 3, 3, 6, 7, // +y
			0, 4, 2, 2, 4, 6, // -x
			1, 3, 5, 3, 7, 5, // +x
		},
	}, nil
}
