package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/solid"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites reactor source before zygomys sees it:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords never
//     collide with user variables.
//  2. Hyphens inside identifiers become underscores (pf-coil -> pf_coil);
//     zygomys reads a bare hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are left alone.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
		case b[i] == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			if j < len(b) {
				j++
			}
			result = append(result, b[i:j]...)
			i = j
		case b[i] == ';':
			result = append(result, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, ':', '=')
			i += 2
		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j
		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++
		default:
			result = append(result, b[i])
			i++
		}
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Go values carried through the zygomys environment
// ---------------------------------------------------------------------------

type sexpPoint struct {
	p profile.Point
}

func (s *sexpPoint) SexpString(ps *zygo.PrintState) string {
	if s.p.Connection != "" {
		return fmt.Sprintf("(pt %g %g :%s)", s.p.U, s.p.V, s.p.Connection)
	}
	return fmt.Sprintf("(pt %g %g)", s.p.U, s.p.V)
}
func (s *sexpPoint) Type() *zygo.RegisteredType { return nil }

// sexpFloats is what linspace and even return.
type sexpFloats struct {
	vals []float64
}

func (s *sexpFloats) SexpString(ps *zygo.PrintState) string {
	parts := make([]string, len(s.vals))
	for i, v := range s.vals {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
func (s *sexpFloats) Type() *zygo.RegisteredType { return nil }

type sexpShape struct {
	name string
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(shape %q)", s.name)
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// keyword at the very end of the list is a flag with a null value.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil // bare flag
		}
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts both :kw and "kw".
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toFloats accepts a single number, a list of numbers, or the result of
// linspace/even.
func toFloats(s zygo.Sexp) ([]float64, error) {
	if f, ok := s.(*sexpFloats); ok {
		return append([]float64(nil), f.vals...), nil
	}
	if f, err := toFloat64(s); err == nil {
		return []float64{f}, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, it := range items {
		if out[i], err = toFloat64(it); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return out, nil
}

func toPoints(s zygo.Sexp) ([]profile.Point, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]profile.Point, len(items))
	for i, it := range items {
		p, ok := it.(*sexpPoint)
		if !ok {
			return nil, fmt.Errorf("entry %d: expected (pt u v), got %T (%s)", i, it, it.SexpString(nil))
		}
		out[i] = p.p
	}
	return out, nil
}

// toNames accepts a shape, a name, or a list of either.
func toNames(s zygo.Sexp) ([]string, error) {
	switch v := s.(type) {
	case *sexpShape:
		return []string{v.name}, nil
	case *zygo.SexpStr:
		return []string{v.S}, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		switch v := it.(type) {
		case *sexpShape:
			out[i] = v.name
		case *zygo.SexpStr:
			out[i] = v.S
		default:
			return nil, fmt.Errorf("entry %d: expected shape or name, got %T (%s)", i, it, it.SexpString(nil))
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

var boolOps = []shape.Op{shape.OpIntersect, shape.OpUnion, shape.OpCut}

// registerBuiltins installs the reactor builtins into env. Source must go
// through preprocessSource first so :keyword tokens are recognisable.
func registerBuiltins(env *zygo.Zlisp, sc *script) {
	// add records the first builtin failure on sc so evaluate can report
	// it verbatim; zygomys folds it into its own message.
	add := func(name string, fn func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)) {
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			out, err := fn(env, name, args)
			if err != nil && sc.failed == nil {
				sc.failed = err
			}
			return out, err
		})
	}

	// (reactor "name")
	add("reactor", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("reactor requires a name")
		}
		n, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("reactor: name: %w", err)
		}
		sc.name = n
		return zygo.SexpNull, nil
	})

	// (pt 100 0) or (pt 100 0 :spline)
	add("pt", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("pt requires u and v coordinates")
		}
		u, err := toFloat64(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: u: %w", err)
		}
		v, err := toFloat64(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: v: %w", err)
		}
		p := profile.Pt(u, v)
		for _, c := range []profile.Connection{profile.Straight, profile.Spline, profile.Circle} {
			if _, ok := pa.kw[string(c)]; ok {
				if p.Connection != "" {
					return zygo.SexpNull, fmt.Errorf("pt: more than one connection type")
				}
				p.Connection = c
			}
		}
		if len(pa.positional) > 2 {
			s, err := toKeywordString(pa.positional[2])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pt: connection: %w", err)
			}
			p.Connection = profile.Connection(s)
		}
		return &sexpPoint{p: p}, nil
	})

	// (linspace 0 270 4)
	add("linspace", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("linspace requires start, stop and count")
		}
		start, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("linspace: start: %w", err)
		}
		stop, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("linspace: stop: %w", err)
		}
		n, err := toInt(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("linspace: count: %w", err)
		}
		if n < 1 {
			return zygo.SexpNull, geomerr.Configuration("linspace", "count must be at least 1, got %d", n)
		}
		return &sexpFloats{vals: solid.Linspace(start, stop, n)}, nil
	})

	// (even 6): 0, 60, ... 300
	add("even", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("even requires a count")
		}
		n, err := toInt(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("even: count: %w", err)
		}
		if n < 1 {
			return zygo.SexpNull, geomerr.Configuration("even", "count must be at least 1, got %d", n)
		}
		return &sexpFloats{vals: solid.Even(n)}, nil
	})

	// (shape "blanket"
	//   :points (list (pt 100 0) (pt 200 0) (pt 200 100))
	//   :revolve 90 | :extrude 10 :both true :start-offset 1 | :sweep (list ...) :path-plane :XY
	//   :workplane :XZ :placement (even 4) :axis :z
	//   :material "tungsten" :stl "blanket.stl" :stp "blanket.stp" :color (list 1 0 0)
	//   :cut (list "cutter") :union ... :intersect ...
	//   :member false)
	add("shape", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("shape requires a name argument")
		}
		shapeName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("shape: name: %w", err)
		}
		cfg, member, err := shapeConfig(sc, shapeName, pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("shape %q: %w", shapeName, err)
		}
		if _, err := sc.define(cfg, member); err != nil {
			return zygo.SexpNull, fmt.Errorf("shape %q: %w", shapeName, err)
		}
		return &sexpShape{name: shapeName}, nil
	})

	// (depends "firstwall" :cut "blanket")
	add("depends", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("depends requires the dependent shape")
		}
		dependent, err := toNames(pa.positional[0])
		if err != nil || len(dependent) != 1 {
			return zygo.SexpNull, fmt.Errorf("depends: expected one dependent shape")
		}
		found := false
		for _, op := range boolOps {
			v, ok := pa.kw[string(op)]
			if !ok {
				continue
			}
			names, err := toNames(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("depends: %s: %w", op, err)
			}
			for _, n := range names {
				sc.deps = append(sc.deps, dependency{dependent: dependent[0], op: op, dependency: n})
				found = true
			}
		}
		if !found {
			return zygo.SexpNull, fmt.Errorf("depends: need at least one of :cut, :union or :intersect")
		}
		return zygo.SexpNull, nil
	})
}

func shapeConfig(sc *script, shapeName string, pa kwArgs) (shape.Config, bool, error) {
	cfg := shape.Config{Name: shapeName, Color: [3]float64{0.5, 0.5, 0.5}}
	member := true

	v, ok := pa.kw["points"]
	if !ok {
		return cfg, false, fmt.Errorf("missing :points")
	}
	pts, err := toPoints(v)
	if err != nil {
		return cfg, false, fmt.Errorf("points: %w", err)
	}
	cfg.Points = pts

	sweep, err := sweepOf(pa)
	if err != nil {
		return cfg, false, err
	}
	cfg.Sweep = sweep

	strs := []struct {
		kw  string
		dst *string
	}{
		{"material", &cfg.MaterialTag},
		{"stl", &cfg.STLFilename},
		{"stp", &cfg.STPFilename},
	}
	for _, s := range strs {
		if v, ok := pa.kw[s.kw]; ok {
			if *s.dst, err = toString(v); err != nil {
				return cfg, false, fmt.Errorf("%s: %w", s.kw, err)
			}
		}
	}
	if v, ok := pa.kw["workplane"]; ok {
		w, err := toKeywordString(v)
		if err != nil {
			return cfg, false, fmt.Errorf("workplane: %w", err)
		}
		cfg.Workplane = kernel.Workplane(strings.ToUpper(w))
	}
	if v, ok := pa.kw["axis"]; ok {
		a, err := toKeywordString(v)
		if err != nil {
			return cfg, false, fmt.Errorf("axis: %w", err)
		}
		cfg.RotationAxis = strings.ToUpper(a)
	}
	if v, ok := pa.kw["placement"]; ok {
		angles, err := toFloats(v)
		if err != nil {
			return cfg, false, fmt.Errorf("placement: %w", err)
		}
		cfg.Placement = angles
	}
	if v, ok := pa.kw["color"]; ok {
		c, err := toFloats(v)
		if err != nil || len(c) != 3 {
			return cfg, false, fmt.Errorf("color: expected three numbers")
		}
		copy(cfg.Color[:], c)
	}
	if v, ok := pa.kw["member"]; ok {
		if member, err = toBool(v); err != nil {
			return cfg, false, fmt.Errorf("member: %w", err)
		}
	}
	for _, op := range boolOps {
		v, ok := pa.kw[string(op)]
		if !ok {
			continue
		}
		names, err := toNames(v)
		if err != nil {
			return cfg, false, fmt.Errorf("%s: %w", op, err)
		}
		for _, n := range names {
			s, err := sc.lookup(n)
			if err != nil {
				return cfg, false, fmt.Errorf("%s: %w", op, err)
			}
			cfg.AddOperand(op, s)
		}
	}
	return cfg, member, nil
}

func sweepOf(pa kwArgs) (solid.Sweep, error) {
	var sweeps []solid.Sweep
	if v, ok := pa.kw["revolve"]; ok {
		a, err := toFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("revolve: %w", err)
		}
		sweeps = append(sweeps, solid.Revolve{Angle: a})
	}
	if v, ok := pa.kw["extrude"]; ok {
		d, err := toFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("extrude: %w", err)
		}
		e := solid.Extrude{Distance: d}
		if v, ok := pa.kw["both"]; ok {
			if e.Both, err = toBool(v); err != nil {
				return nil, fmt.Errorf("both: %w", err)
			}
		}
		if v, ok := pa.kw["start-offset"]; ok {
			if e.StartOffset, err = toFloat64(v); err != nil {
				return nil, fmt.Errorf("start-offset: %w", err)
			}
		}
		sweeps = append(sweeps, e)
	}
	if v, ok := pa.kw["sweep"]; ok {
		pts, err := toPoints(v)
		if err != nil {
			return nil, fmt.Errorf("sweep: %w", err)
		}
		ps := solid.PathSweep{PathPlane: kernel.PlaneXY}
		for _, p := range pts {
			ps.Path = append(ps.Path, kernel.Vec2{U: p.U, V: p.V})
		}
		if v, ok := pa.kw["path-plane"]; ok {
			w, err := toKeywordString(v)
			if err != nil {
				return nil, fmt.Errorf("path-plane: %w", err)
			}
			ps.PathPlane = kernel.Workplane(strings.ToUpper(w))
		}
		sweeps = append(sweeps, ps)
	}
	switch len(sweeps) {
	case 0:
		return nil, fmt.Errorf("needs one of :revolve, :extrude or :sweep")
	case 1:
		return sweeps[0], nil
	default:
		return nil, fmt.Errorf("only one of :revolve, :extrude or :sweep may be given")
	}
}
