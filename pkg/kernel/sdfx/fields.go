package sdfx

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Axis permutation
// ---------------------------------------------------------------------------

// permutedSDF3 relabels axes: the wrapped field's X, Y and Z land on the
// world axes m[0], m[1] and m[2]. A permutation is an isometry up to
// handedness, so distances are unchanged.
type permutedSDF3 struct {
	s  sdf.SDF3
	m  [3]kernel.Axis
	bb sdf.Box3
}

func permute(s sdf.SDF3, x, y, z kernel.Axis) sdf.SDF3 {
	if x == kernel.AxisX && y == kernel.AxisY && z == kernel.AxisZ {
		return s
	}
	m := [3]kernel.Axis{x, y, z}
	in := s.BoundingBox()
	lo := [3]float64{in.Min.X, in.Min.Y, in.Min.Z}
	hi := [3]float64{in.Max.X, in.Max.Y, in.Max.Z}
	var wlo, whi [3]float64
	for i := 0; i < 3; i++ {
		wlo[m[i]] = lo[i]
		whi[m[i]] = hi[i]
	}
	return &permutedSDF3{
		s: s,
		m: m,
		bb: sdf.Box3{
			Min: v3.Vec{X: wlo[0], Y: wlo[1], Z: wlo[2]},
			Max: v3.Vec{X: whi[0], Y: whi[1], Z: whi[2]},
		},
	}
}

func (p *permutedSDF3) Evaluate(q v3.Vec) float64 {
	w := [3]float64{q.X, q.Y, q.Z}
	return p.s.Evaluate(v3.Vec{X: w[p.m[0]], Y: w[p.m[1]], Z: w[p.m[2]]})
}

func (p *permutedSDF3) BoundingBox() sdf.Box3 {
	return p.bb
}

// ---------------------------------------------------------------------------
// Path sweep
// ---------------------------------------------------------------------------

// sweepSDF3 carries a 2D profile in the XY plane along a path whose points
// are (x offset, z). Each z slice is the profile shifted by the path's x
// offset at that height, which makes the volume exactly area * height.
type sweepSDF3 struct {
	profile sdf.SDF2
	path    []kernel.Vec2 // ascending in V
	bb      sdf.Box3
}

func newSweep(profile sdf.SDF2, path []kernel.Vec2) (sdf.SDF3, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("sdfx: sweep path needs at least 2 points: %w", kernel.ErrDegenerate)
	}
	pts := append([]kernel.Vec2(nil), path...)
	if pts[0].V > pts[len(pts)-1].V {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	if pts[len(pts)-1].V-pts[0].V <= 0 {
		return nil, fmt.Errorf("sdfx: sweep path has zero length: %w", kernel.ErrDegenerate)
	}

	pb := profile.BoundingBox()
	minOff, maxOff := pts[0].U, pts[0].U
	for _, p := range pts {
		minOff = math.Min(minOff, p.U)
		maxOff = math.Max(maxOff, p.U)
	}
	return &sweepSDF3{
		profile: profile,
		path:    pts,
		bb: sdf.Box3{
			Min: v3.Vec{X: pb.Min.X + minOff, Y: pb.Min.Y, Z: pts[0].V},
			Max: v3.Vec{X: pb.Max.X + maxOff, Y: pb.Max.Y, Z: pts[len(pts)-1].V},
		},
	}, nil
}

// offset returns the path's x offset at height z, clamped to the path.
func (s *sweepSDF3) offset(z float64) float64 {
	n := len(s.path)
	if z <= s.path[0].V {
		return s.path[0].U
	}
	if z >= s.path[n-1].V {
		return s.path[n-1].U
	}
	for i := 0; i+1 < n; i++ {
		a, b := s.path[i], s.path[i+1]
		lo, hi := math.Min(a.V, b.V), math.Max(a.V, b.V)
		if z < lo || z > hi {
			continue
		}
		if hi == lo {
			return a.U
		}
		t := (z - a.V) / (b.V - a.V)
		return a.U + t*(b.U-a.U)
	}
	return s.path[n-1].U
}

func (s *sweepSDF3) Evaluate(p v3.Vec) float64 {
	zmin, zmax := s.path[0].V, s.path[len(s.path)-1].V
	zc := math.Max(zmin, math.Min(zmax, p.Z))
	d := s.profile.Evaluate(v2.Vec{X: p.X - s.offset(zc), Y: p.Y})
	h := math.Max(zmin-p.Z, p.Z-zmax)
	// Same combination sdfx uses for straight extrusions.
	inside := math.Min(math.Max(d, h), 0)
	dx, dh := math.Max(d, 0), math.Max(h, 0)
	return inside + math.Sqrt(dx*dx+dh*dh)
}

func (s *sweepSDF3) BoundingBox() sdf.Box3 {
	return s.bb
}

// ---------------------------------------------------------------------------
// Sampling
// ---------------------------------------------------------------------------

// grid lays cubic cells of side h over a bounding box.
type grid struct {
	min        v3.Vec
	h          float64
	nx, ny, nz int
}

func newGrid(bb sdf.Box3, cells int) (grid, bool) {
	sx, sy, sz := bb.Max.X-bb.Min.X, bb.Max.Y-bb.Min.Y, bb.Max.Z-bb.Min.Z
	if !(sx > 0 && sy > 0 && sz > 0) {
		return grid{}, false
	}
	h := math.Max(sx, math.Max(sy, sz)) / float64(cells)
	count := func(side float64) int {
		return max(1, int(math.Ceil(side/h-1e-9)))
	}
	return grid{min: bb.Min, h: h, nx: count(sx), ny: count(sy), nz: count(sz)}, true
}

func (g grid) centre(i, j, k int) v3.Vec {
	return v3.Vec{
		X: g.min.X + (float64(i)+0.5)*g.h,
		Y: g.min.Y + (float64(j)+0.5)*g.h,
		Z: g.min.Z + (float64(k)+0.5)*g.h,
	}
}

// sampleVolume counts cell centres inside the solid. Slices along z are
// dealt round-robin to GOMAXPROCS workers; SDFs are read-only so sharing
// is safe.
func sampleVolume(s sdf.SDF3, cells int) float64 {
	g, ok := newGrid(s.BoundingBox(), cells)
	if !ok {
		return 0
	}
	workers := min(runtime.GOMAXPROCS(0), g.nz)
	var inside atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Go(func() {
			var n int64
			for k := w; k < g.nz; k += workers {
				for j := 0; j < g.ny; j++ {
					for i := 0; i < g.nx; i++ {
						if s.Evaluate(g.centre(i, j, k)) <= 0 {
							n++
						}
					}
				}
			}
			inside.Add(n)
		})
	}
	wg.Wait()
	return float64(inside.Load()) * g.h * g.h * g.h
}

// isEmpty reports whether s provably encloses nothing. sdfx booleans
// return a lower bound on the true distance, so if every grid point is
// further out than half a cell diagonal no interior point can exist.
// Thin solids that slip between samples are reported as non-empty.
func isEmpty(s sdf.SDF3) bool {
	g, ok := newGrid(s.BoundingBox(), emptyGridCells)
	if !ok {
		return true
	}
	halfDiag := 0.5 * g.h * math.Sqrt(3)
	for k := 0; k < g.nz; k++ {
		for j := 0; j < g.ny; j++ {
			for i := 0; i < g.nx; i++ {
				if s.Evaluate(g.centre(i, j, k)) <= halfDiag {
					return false
				}
			}
		}
	}
	return true
}
