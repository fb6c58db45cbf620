// Package shape holds a parametric shape: a profile, a sweep, a placement
// and boolean operands, plus a fingerprint-keyed cache of the solid they
// produce. Solids are built lazily on first access and rebuilt only when
// the fingerprint changes.
package shape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/solid"
)

// Op is a boolean operation against a dependency.
type Op string

const (
	OpIntersect Op = "intersect"
	OpUnion     Op = "union"
	OpCut       Op = "cut"
)

// Valid reports whether o is a known op.
func (o Op) Valid() bool {
	switch o {
	case OpIntersect, OpUnion, OpCut:
		return true
	}
	return false
}

// ParseOp parses "intersect", "union" or "cut".
func ParseOp(s string) (Op, error) {
	o := Op(strings.ToLower(s))
	if !o.Valid() {
		return "", geomerr.Configuration("op", "unknown boolean op %q", s)
	}
	return o, nil
}

// Operand is anything that can stand in as a boolean operand: it has a
// fingerprint and can produce a solid. *Shape is the usual implementation.
type Operand interface {
	Name() string
	Fingerprint() (Fingerprint, error)
	Solid(ctx context.Context) (kernel.Solid, error)
}

// Config is every parameter of a shape. Mutate it through Shape.Update.
type Config struct {
	Name string

	Points       []profile.Point
	Workplane    kernel.Workplane // empty means XZ
	Sweep        solid.Sweep
	Placement    solid.Placement
	RotationAxis string // "X", "Y" or "Z"; empty means Z

	Intersect []Operand
	Union     []Operand
	Cut       []Operand

	MaterialTag string
	STPFilename string
	STLFilename string
	Color       [3]float64
}

// Clone returns a copy that shares no slices with c.
func (c Config) Clone() Config {
	c.Points = append([]profile.Point(nil), c.Points...)
	c.Placement = append(solid.Placement(nil), c.Placement...)
	c.Intersect = append([]Operand(nil), c.Intersect...)
	c.Union = append([]Operand(nil), c.Union...)
	c.Cut = append([]Operand(nil), c.Cut...)
	if ps, ok := c.Sweep.(solid.PathSweep); ok {
		ps.Path = append([]kernel.Vec2(nil), ps.Path...)
		c.Sweep = ps
	}
	return c
}

// Operands returns the operand list for op.
func (c *Config) Operands(op Op) []Operand {
	switch op {
	case OpIntersect:
		return c.Intersect
	case OpUnion:
		return c.Union
	case OpCut:
		return c.Cut
	}
	return nil
}

// AddOperand appends o to the list for op.
func (c *Config) AddOperand(op Op, o Operand) {
	switch op {
	case OpIntersect:
		c.Intersect = append(c.Intersect, o)
	case OpUnion:
		c.Union = append(c.Union, o)
	case OpCut:
		c.Cut = append(c.Cut, o)
	}
}

func (c Config) workplane() kernel.Workplane {
	if c.Workplane == "" {
		return kernel.DefaultWorkplane
	}
	return c.Workplane
}

func (c Config) rotationAxis() string {
	if c.RotationAxis == "" {
		return "Z"
	}
	return strings.ToUpper(c.RotationAxis)
}

// spec resolves the solid spec. It fails only on a bad rotation axis.
func (c Config) spec() (solid.Spec, error) {
	axis, err := kernel.ParseAxis(c.rotationAxis())
	if err != nil {
		return solid.Spec{}, geomerr.Configuration("rotation_axis", "%v", err)
	}
	return solid.Spec{
		Workplane:    c.workplane(),
		Sweep:        c.Sweep,
		Placement:    c.Placement,
		RotationAxis: axis,
	}, nil
}

// check validates c without touching a kernel and returns the profile
// plan and any advisories.
func (c Config) check() (profile.Plan, []string, error) {
	plan, err := profile.Build(c.Points)
	if err != nil {
		return profile.Plan{}, nil, err
	}
	spec, err := c.spec()
	if err != nil {
		return profile.Plan{}, nil, err
	}
	warnings, err := solid.Validate(spec)
	if err != nil {
		return profile.Plan{}, nil, err
	}
	for _, op := range []Op{OpIntersect, OpUnion, OpCut} {
		for i, o := range c.Operands(op) {
			if o == nil {
				return profile.Plan{}, nil, geomerr.Configuration(fmt.Sprintf("%s[%d]", op, i), "nil operand")
			}
		}
	}
	return plan, warnings, nil
}

// Shape is a parametric solid with a fingerprint-keyed cache.
type Shape struct {
	k kernel.Kernel

	updateMu sync.Mutex // serializes Update

	mu       sync.RWMutex // guards cfg, plan and warnings
	cfg      Config
	plan     profile.Plan
	warnings []string

	cache Cache
}

// New validates cfg and returns a shape that builds with k. Nothing is
// built until the solid is first asked for.
func New(k kernel.Kernel, cfg Config) (*Shape, error) {
	if k == nil {
		return nil, errors.New("shape: nil kernel")
	}
	cfg = cfg.Clone()
	plan, warnings, err := cfg.check()
	if err != nil {
		return nil, geomerr.WithShape(err, cfg.Name)
	}
	s := &Shape{k: k, cfg: cfg, plan: plan, warnings: warnings}
	if err := s.checkCycles(cfg); err != nil {
		return nil, err
	}
	logWarnings(cfg.Name, warnings)
	return s, nil
}

// Name returns the shape's name.
func (s *Shape) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Name
}

// Kernel returns the kernel the shape builds with.
func (s *Shape) Kernel() kernel.Kernel { return s.k }

// Config returns a copy of the current configuration.
func (s *Shape) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Plan returns the validated profile plan.
func (s *Shape) Plan() profile.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// Warnings returns the advisories raised by the current configuration.
func (s *Shape) Warnings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.warnings...)
}

// Update applies fn to a copy of the configuration, validates the result
// and installs it. On any error the shape keeps its previous
// configuration. The cached solid is not touched; the next lookup compares
// fingerprints and rebuilds only if something that matters changed.
func (s *Shape) Update(fn func(*Config)) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	next := s.Config()
	fn(&next)
	next = next.Clone()

	plan, warnings, err := next.check()
	if err != nil {
		return geomerr.WithShape(err, next.Name)
	}
	if err := s.checkCycles(next); err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = next
	s.plan = plan
	s.warnings = warnings
	s.mu.Unlock()

	logWarnings(next.Name, warnings)
	return nil
}

// checkCycles rejects cfg if any operand chain leads back to s.
func (s *Shape) checkCycles(cfg Config) error {
	seen := make(map[*Shape]bool)
	var walk func(ops []Operand, path []string) error
	walk = func(ops []Operand, path []string) error {
		for _, o := range ops {
			dep, ok := o.(*Shape)
			if !ok {
				continue
			}
			p := append(path[:len(path):len(path)], dep.Name())
			if dep == s {
				return geomerr.Configuration("operands", "dependency cycle: %s", strings.Join(p, " -> "))
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			dc := dep.Config()
			if err := walk(allOperands(dc), p); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(allOperands(cfg), []string{cfg.Name})
}

func allOperands(c Config) []Operand {
	out := make([]Operand, 0, len(c.Intersect)+len(c.Union)+len(c.Cut))
	out = append(out, c.Intersect...)
	out = append(out, c.Union...)
	return append(out, c.Cut...)
}

func (s *Shape) snapshot() (Config, profile.Plan) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.plan
}

// Fingerprint digests the current configuration, recursing into operands.
// It never builds anything.
func (s *Shape) Fingerprint() (Fingerprint, error) {
	cfg, _ := s.snapshot()
	return fingerprint(cfg)
}

func fingerprint(cfg Config) (Fingerprint, error) {
	parts := make([]string, 0, 16)
	parts = append(parts, "shape/v1")

	pts := make([]string, len(cfg.Points))
	for i, p := range cfg.Points {
		pts[i] = p.String()
	}
	parts = append(parts,
		"points="+strings.Join(pts, ";"),
		"workplane="+string(cfg.workplane()),
		"sweep="+solid.Canonical(cfg.Sweep),
		"placement="+cfg.Placement.Canonical(),
		"axis="+cfg.rotationAxis(),
		"material="+cfg.MaterialTag,
		"stp="+cfg.STPFilename,
		"stl="+cfg.STLFilename,
	)

	for _, op := range []Op{OpIntersect, OpUnion, OpCut} {
		for i, o := range cfg.Operands(op) {
			fp, err := o.Fingerprint()
			if err != nil {
				return Fingerprint{}, fmt.Errorf("shape: fingerprint %s[%d]: %w", op, i, err)
			}
			parts = append(parts, fmt.Sprintf("%s[%d]=%s", op, i, fp))
		}
	}
	return Digest(parts...), nil
}

// Solid returns the shape's solid, building it (and any stale operands)
// if the fingerprint changed since the last successful build.
func (s *Shape) Solid(ctx context.Context) (kernel.Solid, error) {
	sol, _, err := s.solid(ctx)
	return sol, err
}

func (s *Shape) solid(ctx context.Context) (kernel.Solid, Fingerprint, error) {
	cfg, plan := s.snapshot()
	ctx, span := startSolidSpan(ctx, cfg.Name)
	defer span.End()

	fp, err := fingerprint(cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, Fingerprint{}, err
	}
	span.SetAttributes(attribute.String("shape.fingerprint", fp.Short()))

	var elapsed time.Duration
	sol, rebuilt, err := s.cache.RebuildIfStale(fp, func() (kernel.Solid, error) {
		start := time.Now()
		defer func() { elapsed = time.Since(start) }()
		return s.build(ctx, cfg, plan)
	})
	recordLookup(ctx, !rebuilt)
	span.SetAttributes(attribute.Bool("shape.rebuilt", rebuilt))

	if !rebuilt {
		Logger().Debug("shape cache hit", slog.String("shape", cfg.Name), slog.String("fingerprint", fp.Short()))
		return sol, fp, nil
	}
	recordRebuild(ctx, elapsed, err)
	if err != nil {
		err = geomerr.WithShape(err, cfg.Name)
		Logger().Warn("shape rebuild failed",
			slog.String("shape", cfg.Name),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, Fingerprint{}, err
	}
	Logger().Info("shape rebuilt",
		slog.String("shape", cfg.Name),
		slog.String("fingerprint", fp.Short()),
		slog.Duration("took", elapsed),
	)
	return sol, fp, nil
}

// build resolves the operands first so that a failing dependency costs no
// kernel work on this shape.
func (s *Shape) build(ctx context.Context, cfg Config, plan profile.Plan) (kernel.Solid, error) {
	var ops solid.Operands
	resolve := func(op Op, list []Operand) ([]kernel.Solid, error) {
		out := make([]kernel.Solid, 0, len(list))
		for i, o := range list {
			sol, err := o.Solid(ctx)
			if err != nil {
				return nil, fmt.Errorf("%s[%d] %q: %w", op, i, o.Name(), err)
			}
			out = append(out, sol)
		}
		return out, nil
	}
	var err error
	if ops.Intersect, err = resolve(OpIntersect, cfg.Intersect); err != nil {
		return nil, err
	}
	if ops.Union, err = resolve(OpUnion, cfg.Union); err != nil {
		return nil, err
	}
	if ops.Cut, err = resolve(OpCut, cfg.Cut); err != nil {
		return nil, err
	}

	spec, err := cfg.spec()
	if err != nil {
		return nil, err
	}
	base, err := solid.Build(s.k, plan, spec)
	if err != nil {
		return nil, err
	}
	if ops.Empty() {
		return base, nil
	}
	return solid.Compose(s.k, base, ops)
}

// Volume returns the volume of the solid, memoized per fingerprint.
func (s *Shape) Volume(ctx context.Context) (float64, error) {
	sol, fp, err := s.solid(ctx)
	if err != nil {
		return 0, err
	}
	if v, ok := s.cache.cachedVolume(fp); ok {
		return v, nil
	}
	v, err := s.k.Volume(sol)
	if err != nil {
		return 0, geomerr.WithShape(geomerr.Construction("volume", err), s.Name())
	}
	s.cache.storeVolume(fp, v)
	return v, nil
}

// Mesh returns the triangulated solid, memoized per fingerprint.
func (s *Shape) Mesh(ctx context.Context) (*kernel.Mesh, error) {
	sol, fp, err := s.solid(ctx)
	if err != nil {
		return nil, err
	}
	if m := s.cache.cachedMesh(fp); m != nil {
		return m, nil
	}
	m, err := s.k.ToMesh(sol)
	if err != nil {
		return nil, geomerr.WithShape(geomerr.Construction("mesh", err), s.Name())
	}
	m.PartName = s.Name()
	s.cache.storeMesh(fp, m)
	return m, nil
}

// Area returns the total surface area of the solid, measured on its mesh.
func (s *Shape) Area(ctx context.Context) (float64, error) {
	m, err := s.Mesh(ctx)
	if err != nil {
		return 0, err
	}
	return m.Area(), nil
}

// LastSolid returns the last successfully built solid without building.
// It is nil before the first successful build.
func (s *Shape) LastSolid() kernel.Solid {
	sol, _ := s.cache.Current()
	return sol
}

// BuiltFingerprint returns the fingerprint of the last successful build.
func (s *Shape) BuiltFingerprint() Fingerprint {
	_, fp := s.cache.Current()
	return fp
}

// Builds returns how many times the solid has been rebuilt.
func (s *Shape) Builds() int { return s.cache.Builds() }

// Adopt takes over prev's cached solid when prev was last built from the
// same fingerprint s has now. Both shapes must use the same kernel.
func (s *Shape) Adopt(prev *Shape) (bool, error) {
	if prev == nil || prev.k != s.k {
		return false, nil
	}
	fp, err := s.Fingerprint()
	if err != nil {
		return false, err
	}
	return s.cache.adopt(&prev.cache, fp), nil
}

func logWarnings(name string, warnings []string) {
	for _, w := range warnings {
		Logger().Warn(w, slog.String("shape", name))
	}
}
