package shape_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/kernel/kerneltest"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/solid"
)

func square(u0, v0, side float64) []profile.Point {
	return []profile.Point{
		profile.Pt(u0, v0),
		profile.Pt(u0+side, v0),
		profile.Pt(u0+side, v0+side),
		profile.Pt(u0, v0+side),
	}
}

func revolved(name string) shape.Config {
	return shape.Config{
		Name:        name,
		Points:      square(0, 0, 20),
		Sweep:       solid.Revolve{Angle: 360},
		MaterialTag: "eurofer",
	}
}

func mustShape(t *testing.T, k kernel.Kernel, cfg shape.Config) *shape.Shape {
	t.Helper()
	s, err := shape.New(k, cfg)
	if err != nil {
		t.Fatalf("New(%q): %v", cfg.Name, err)
	}
	return s
}

func TestFingerprintDeterministic(t *testing.T) {
	k := kerneltest.New()
	a := mustShape(t, k, revolved("a"))
	b := mustShape(t, k, revolved("b"))

	fa, err := a.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	fb, err := b.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if fa != fb {
		t.Errorf("same parameters, different names: fingerprints differ %s vs %s", fa.Short(), fb.Short())
	}
	again, _ := a.Fingerprint()
	if again != fa {
		t.Error("fingerprint changed between calls")
	}
	if k.Total() != 0 {
		t.Errorf("fingerprinting made %d kernel calls", k.Total())
	}
}

func TestFingerprintFieldSensitivity(t *testing.T) {
	k := kerneltest.New()
	base := mustShape(t, k, revolved("base"))
	want, _ := base.Fingerprint()

	tests := []struct {
		name   string
		mutate func(*shape.Config)
		same   bool
	}{
		{"color is cosmetic", func(c *shape.Config) { c.Color = [3]float64{1, 0, 0} }, true},
		{"explicit default workplane", func(c *shape.Config) { c.Workplane = kernel.PlaneXZ }, true},
		{"explicit default axis", func(c *shape.Config) { c.RotationAxis = "z" }, true},
		{"point moved", func(c *shape.Config) { c.Points[1].U = 21 }, false},
		{"workplane", func(c *shape.Config) { c.Workplane = kernel.PlaneXY }, false},
		{"angle", func(c *shape.Config) { c.Sweep = solid.Revolve{Angle: 90} }, false},
		{"placement", func(c *shape.Config) { c.Placement = solid.Placement{0, 90} }, false},
		{"axis", func(c *shape.Config) { c.RotationAxis = "X" }, false},
		{"material", func(c *shape.Config) { c.MaterialTag = "tungsten" }, false},
		{"stl filename", func(c *shape.Config) { c.STLFilename = "a.stl" }, false},
		{"stp filename", func(c *shape.Config) { c.STPFilename = "a.stp" }, false},
		{"tags", func(c *shape.Config) {
			c.Points = profile.Uniform(profile.Straight,
				kernel.Vec2{U: 0, V: 0}, kernel.Vec2{U: 20, V: 0}, kernel.Vec2{U: 20, V: 20}, kernel.Vec2{U: 0, V: 20})
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := revolved("x")
			tt.mutate(&cfg)
			s := mustShape(t, k, cfg)
			got, err := s.Fingerprint()
			if err != nil {
				t.Fatal(err)
			}
			if (got == want) != tt.same {
				t.Errorf("fingerprint equal = %v, want %v", got == want, tt.same)
			}
		})
	}
}

func TestBuildOnce(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, revolved("blanket"))
	ctx := context.Background()

	first, err := s.Solid(ctx)
	if err != nil {
		t.Fatal(err)
	}
	calls := k.Total()
	if calls == 0 {
		t.Fatal("first access made no kernel calls")
	}
	for i := 0; i < 3; i++ {
		again, err := s.Solid(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Errorf("access %d returned a different solid", i)
		}
	}
	if k.Total() != calls {
		t.Errorf("kernel calls grew from %d to %d on cached access", calls, k.Total())
	}
	if s.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", s.Builds())
	}
}

func TestSingleFieldMutationRebuildsOnce(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, revolved("blanket"))
	ctx := context.Background()
	if _, err := s.Solid(ctx); err != nil {
		t.Fatal(err)
	}
	before, _ := s.Fingerprint()

	if err := s.Update(func(c *shape.Config) { c.Sweep = solid.Revolve{Angle: 180} }); err != nil {
		t.Fatal(err)
	}
	after, _ := s.Fingerprint()
	if after == before {
		t.Fatal("fingerprint did not change")
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Solid(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if s.Builds() != 2 {
		t.Errorf("Builds() = %d, want 2", s.Builds())
	}
	if got := k.Calls(kerneltest.MethodRevolve); got != 2 {
		t.Errorf("Revolve calls = %d, want 2", got)
	}
}

func TestUpdateNoOpKeepsCache(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, revolved("blanket"))
	ctx := context.Background()
	if _, err := s.Solid(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(func(c *shape.Config) { c.Color = [3]float64{0.2, 0.2, 0.2} }); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Solid(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Builds() != 1 {
		t.Errorf("Builds() = %d after cosmetic change, want 1", s.Builds())
	}
}

func TestMutateAndRevertRestoresFingerprint(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*shape.Config)
	}{
		{"point", func(c *shape.Config) { c.Points[2].V = 35 }},
		{"sweep", func(c *shape.Config) { c.Sweep = solid.Revolve{Angle: 90} }},
		{"placement", func(c *shape.Config) { c.Placement = solid.Placement{0, 180} }},
		{"workplane", func(c *shape.Config) { c.Workplane = kernel.PlaneYZ }},
		{"material", func(c *shape.Config) { c.MaterialTag = "tungsten" }},
	}
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := kerneltest.New()
			s := mustShape(t, k, revolved("blanket"))
			if _, err := s.Solid(ctx); err != nil {
				t.Fatal(err)
			}
			orig, _ := s.Fingerprint()

			if err := s.Update(tt.mutate); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Solid(ctx); err != nil {
				t.Fatal(err)
			}
			if err := s.Update(func(c *shape.Config) { *c = revolved("blanket") }); err != nil {
				t.Fatal(err)
			}
			got, _ := s.Fingerprint()
			if got != orig {
				t.Fatalf("fingerprint after revert = %s, want %s", got.Short(), orig.Short())
			}
			if _, err := s.Solid(ctx); err != nil {
				t.Fatal(err)
			}
			if s.BuiltFingerprint() != orig {
				t.Errorf("built fingerprint = %s, want %s", s.BuiltFingerprint().Short(), orig.Short())
			}
		})
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	k := kerneltest.New()
	a := revolved("a")
	a.MaterialTag, a.STPFilename = "w|stp=x.stp", ""
	b := revolved("b")
	b.MaterialTag, b.STPFilename = "w", "x.stp|stp="

	fa, err := mustShape(t, k, a).Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	fb, err := mustShape(t, k, b).Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if fa == fb {
		t.Error("different material and stp fields share a fingerprint")
	}
}

func TestRevolveAcrossAxisIsConstructionError(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, shape.Config{
		Name:   "ring",
		Points: []profile.Point{profile.Pt(-20, 0), profile.Pt(-10, 0), profile.Pt(-10, 20), profile.Pt(-20, 20)},
		Sweep:  solid.Revolve{Angle: 360},
	})
	_, err := s.Solid(context.Background())
	if !errors.Is(err, geomerr.ErrGeometryConstruction) || !errors.Is(err, kernel.ErrDegenerate) {
		t.Fatalf("Solid error = %v, want construction error wrapping ErrDegenerate", err)
	}
	if s.LastSolid() != nil {
		t.Error("a solid was stored for a profile across the axis")
	}
}

func TestRectangleRevolveVolume(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, revolved("column"))

	v, err := s.Volume(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := math.Pi * 20 * 20 * 20
	if math.Abs(v-want)/want > 1e-9 {
		t.Errorf("Volume() = %g, want %g", v, want)
	}
	if _, err := s.Volume(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := k.Calls(kerneltest.MethodVolume); got != 1 {
		t.Errorf("Volume kernel calls = %d, want 1 (memoized)", got)
	}
}

func TestAreaFromMesh(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, shape.Config{
		Name:   "slab",
		Points: square(0, 0, 10),
		Sweep:  solid.Extrude{Distance: 10},
	})
	a, err := s.Area(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// the fake meshes the bounding box: a 10 cube
	if math.Abs(a-600) > 1e-3 {
		t.Errorf("Area() = %g, want 600", a)
	}
	m, err := s.Mesh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m.PartName != "slab" {
		t.Errorf("PartName = %q, want slab", m.PartName)
	}
	if got := k.Calls(kerneltest.MethodToMesh); got != 1 {
		t.Errorf("ToMesh calls = %d, want 1", got)
	}
}

func TestBogusTagFailsBeforeKernel(t *testing.T) {
	k := kerneltest.New()
	cfg := revolved("bad")
	cfg.Points[0].Connection = "bogus"
	_, err := shape.New(k, cfg)
	if !errors.Is(err, geomerr.ErrInvalidProfile) {
		t.Fatalf("New error = %v, want ErrInvalidProfile", err)
	}
	if k.Total() != 0 {
		t.Errorf("kernel calls = %d, want 0", k.Total())
	}
}

func TestNonFiniteRejectedOnAssign(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*shape.Config)
		want   error
	}{
		{"NaN point", func(c *shape.Config) { c.Points[1].U = math.NaN() }, geomerr.ErrInvalidProfile},
		{"infinite point", func(c *shape.Config) { c.Points[2].V = math.Inf(1) }, geomerr.ErrInvalidProfile},
		{"NaN placement", func(c *shape.Config) { c.Placement = solid.Placement{0, math.NaN()} }, geomerr.ErrInvalidConfiguration},
		{"NaN start offset", func(c *shape.Config) { c.Sweep = solid.Extrude{Distance: 5, StartOffset: math.NaN()} }, geomerr.ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := kerneltest.New()
			cfg := revolved("bad")
			tt.mutate(&cfg)
			if _, err := shape.New(k, cfg); !errors.Is(err, tt.want) {
				t.Fatalf("New error = %v, want %v", err, tt.want)
			}

			s := mustShape(t, k, revolved("good"))
			before, _ := s.Fingerprint()
			if err := s.Update(tt.mutate); !errors.Is(err, tt.want) {
				t.Fatalf("Update error = %v, want %v", err, tt.want)
			}
			if after, _ := s.Fingerprint(); after != before {
				t.Error("rejected update changed the fingerprint")
			}
			if k.Total() != 0 {
				t.Errorf("kernel calls = %d, want 0", k.Total())
			}
		})
	}
}

func TestUpdateRollsBack(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, revolved("blanket"))
	before, _ := s.Fingerprint()

	tests := []struct {
		name   string
		mutate func(*shape.Config)
		kind   error
	}{
		{"bogus tag", func(c *shape.Config) { c.Points[2].Connection = "bogus" }, geomerr.ErrInvalidProfile},
		{"two points", func(c *shape.Config) { c.Points = c.Points[:2] }, geomerr.ErrInvalidProfile},
		{"angle zero", func(c *shape.Config) { c.Sweep = solid.Revolve{Angle: 0} }, geomerr.ErrInvalidConfiguration},
		{"bad axis", func(c *shape.Config) { c.RotationAxis = "W" }, geomerr.ErrInvalidConfiguration},
		{"bad workplane", func(c *shape.Config) { c.Workplane = "XX" }, geomerr.ErrInvalidConfiguration},
		{"nil operand", func(c *shape.Config) { c.Cut = append(c.Cut, nil) }, geomerr.ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Update(tt.mutate)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Update error = %v, want %v", err, tt.kind)
			}
			after, _ := s.Fingerprint()
			if after != before {
				t.Error("failed update changed the configuration")
			}
		})
	}
	if k.Total() != 0 {
		t.Errorf("kernel calls = %d, want 0", k.Total())
	}
}

func TestFailedRebuildKeepsLastSolid(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, revolved("blanket"))
	ctx := context.Background()
	good, err := s.Solid(ctx)
	if err != nil {
		t.Fatal(err)
	}
	goodFP := s.BuiltFingerprint()

	boom := errors.New("boom")
	k.Fail(kerneltest.MethodRevolve, boom)
	if err := s.Update(func(c *shape.Config) { c.Sweep = solid.Revolve{Angle: 90} }); err != nil {
		t.Fatal(err)
	}
	_, err = s.Solid(ctx)
	if !errors.Is(err, geomerr.ErrGeometryConstruction) || !errors.Is(err, boom) {
		t.Fatalf("Solid error = %v, want construction error wrapping boom", err)
	}
	if s.LastSolid() != good {
		t.Error("LastSolid changed after a failed rebuild")
	}
	if s.BuiltFingerprint() != goodFP {
		t.Error("built fingerprint changed after a failed rebuild")
	}

	k.Fail(kerneltest.MethodRevolve, nil)
	if _, err := s.Solid(ctx); err != nil {
		t.Fatalf("retry after clearing failure: %v", err)
	}
	if s.Builds() != 2 {
		t.Errorf("Builds() = %d, want 2", s.Builds())
	}
}

func TestOperandFingerprintPropagates(t *testing.T) {
	k := kerneltest.New()
	ctx := context.Background()
	cutter := mustShape(t, k, shape.Config{
		Name:   "port",
		Points: square(5, 5, 2),
		Sweep:  solid.Extrude{Distance: 4, Both: true},
	})
	cfg := revolved("vessel")
	cfg.Cut = []shape.Operand{cutter}
	vessel := mustShape(t, k, cfg)

	if _, err := vessel.Solid(ctx); err != nil {
		t.Fatal(err)
	}
	if got := k.Calls(kerneltest.MethodDifference); got != 1 {
		t.Fatalf("Difference calls = %d, want 1", got)
	}
	before, _ := vessel.Fingerprint()

	if err := cutter.Update(func(c *shape.Config) { c.Sweep = solid.Extrude{Distance: 6, Both: true} }); err != nil {
		t.Fatal(err)
	}
	after, _ := vessel.Fingerprint()
	if after == before {
		t.Fatal("dependent fingerprint did not follow its operand")
	}
	if _, err := vessel.Solid(ctx); err != nil {
		t.Fatal(err)
	}
	if vessel.Builds() != 2 || cutter.Builds() != 2 {
		t.Errorf("Builds() vessel=%d cutter=%d, want 2 and 2", vessel.Builds(), cutter.Builds())
	}
}

func TestOperandCycleRejected(t *testing.T) {
	k := kerneltest.New()
	a := mustShape(t, k, revolved("a"))
	bcfg := revolved("b")
	bcfg.Union = []shape.Operand{a}
	b := mustShape(t, k, bcfg)

	err := a.Update(func(c *shape.Config) { c.Cut = []shape.Operand{b} })
	if !errors.Is(err, geomerr.ErrInvalidConfiguration) {
		t.Fatalf("Update error = %v, want ErrInvalidConfiguration", err)
	}
	if len(a.Config().Cut) != 0 {
		t.Error("cyclic operand was installed")
	}

	err = a.Update(func(c *shape.Config) { c.Cut = []shape.Operand{a} })
	if !errors.Is(err, geomerr.ErrInvalidConfiguration) {
		t.Fatalf("self operand error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestComposeOrderThroughShape(t *testing.T) {
	k := kerneltest.New()
	ctx := context.Background()
	big := mustShape(t, k, shape.Config{Name: "big", Points: square(-50, -50, 100), Sweep: solid.Extrude{Distance: 100, Both: true}})
	extra := mustShape(t, k, shape.Config{Name: "extra", Points: square(200, 0, 10), Sweep: solid.Extrude{Distance: 10}})
	hole := mustShape(t, k, shape.Config{Name: "hole", Points: square(1, 1, 2), Sweep: solid.Extrude{Distance: 2}})

	cfg := shape.Config{
		Name:      "part",
		Points:    square(0, 0, 10),
		Sweep:     solid.Extrude{Distance: 10},
		Intersect: []shape.Operand{big},
		Union:     []shape.Operand{extra},
		Cut:       []shape.Operand{hole},
	}
	part := mustShape(t, k, cfg)
	v, err := part.Volume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// intersect keeps the 1000 cube, union adds the disjoint 1000 block,
	// the fake cut keeps the volume
	if math.Abs(v-2000) > 1e-9 {
		t.Errorf("Volume() = %g, want 2000", v)
	}
	for _, m := range []string{kerneltest.MethodIntersection, kerneltest.MethodUnion, kerneltest.MethodDifference} {
		if k.Calls(m) != 1 {
			t.Errorf("%s calls = %d, want 1", m, k.Calls(m))
		}
	}
}

func TestEmptyCutIsConstructionError(t *testing.T) {
	k := kerneltest.New()
	all := mustShape(t, k, shape.Config{Name: "all", Points: square(-100, -100, 200), Sweep: solid.Extrude{Distance: 200, Both: true}})
	cfg := shape.Config{
		Name:   "gone",
		Points: square(0, 0, 10),
		Sweep:  solid.Extrude{Distance: 10},
		Cut:    []shape.Operand{all},
	}
	s := mustShape(t, k, cfg)
	_, err := s.Solid(context.Background())
	if !errors.Is(err, geomerr.ErrGeometryConstruction) || !errors.Is(err, kernel.ErrEmptyResult) {
		t.Fatalf("Solid error = %v, want construction error wrapping ErrEmptyResult", err)
	}
	var ge *geomerr.Error
	if !errors.As(err, &ge) || ge.Shape != "gone" {
		t.Errorf("error %v does not carry the shape name", err)
	}
}

func TestConcurrentSolidBuildsOnce(t *testing.T) {
	k := kerneltest.New()
	s := mustShape(t, k, revolved("blanket"))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Solid(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if s.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", s.Builds())
	}
	if got := k.Calls(kerneltest.MethodRevolve); got != 1 {
		t.Errorf("Revolve calls = %d, want 1", got)
	}
}

func TestAdopt(t *testing.T) {
	k := kerneltest.New()
	ctx := context.Background()
	prev := mustShape(t, k, revolved("blanket"))
	if _, err := prev.Solid(ctx); err != nil {
		t.Fatal(err)
	}

	next := mustShape(t, k, revolved("blanket"))
	ok, err := next.Adopt(prev)
	if err != nil || !ok {
		t.Fatalf("Adopt = %v, %v; want true, nil", ok, err)
	}
	if _, err := next.Solid(ctx); err != nil {
		t.Fatal(err)
	}
	if got := k.Calls(kerneltest.MethodRevolve); got != 1 {
		t.Errorf("Revolve calls = %d, want 1", got)
	}

	changed := revolved("blanket")
	changed.Sweep = solid.Revolve{Angle: 45}
	other := mustShape(t, k, changed)
	if ok, _ := other.Adopt(prev); ok {
		t.Error("adopted a cache built from a different fingerprint")
	}
}
