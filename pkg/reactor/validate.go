package reactor

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/solid"
)

// Severity says whether a finding blocks a build or is advisory.
type Severity int

const (
	SeverityError   Severity = iota // blocks building
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Finding is a single validation result, tied to a member when Shape is
// set.
type Finding struct {
	Shape    string
	Message  string
	Severity Severity
}

func (f Finding) Error() string {
	if f.Shape == "" {
		return fmt.Sprintf("[%s] %s", f.Severity, f.Message)
	}
	return fmt.Sprintf("[%s] shape %q: %s", f.Severity, f.Shape, f.Message)
}

// ValidationResult separates blocking errors from warnings.
type ValidationResult struct {
	Errors   []Finding
	Warnings []Finding
}

// OK reports whether there are no errors.
func (v ValidationResult) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into one ErrInvalidConfiguration, or nil.
func (v ValidationResult) Err() error {
	if v.OK() {
		return nil
	}
	errs := make([]error, len(v.Errors))
	for i, f := range v.Errors {
		errs[i] = f
	}
	return &geomerr.Error{Kind: geomerr.ErrInvalidConfiguration, Op: "validate", Err: errors.Join(errs...)}
}

func (v *ValidationResult) add(f Finding) {
	if f.Severity == SeverityWarning {
		v.Warnings = append(v.Warnings, f)
		return
	}
	v.Errors = append(v.Errors, f)
}

// Validate checks the assembly without building it. It never mutates the
// reactor.
func (r *Reactor) Validate() ValidationResult {
	members := r.snapshot()
	r.mu.RLock()
	byShape := make(map[*shape.Shape]Handle, len(r.byShape))
	for s, h := range r.byShape {
		byShape[s] = h
	}
	r.mu.RUnlock()

	var res ValidationResult
	for _, f := range validateDAG(members, edgesOf(members, byShape)) {
		res.add(f)
	}
	for _, f := range validateReferences(members) {
		res.add(f)
	}
	for _, f := range validateNames(members) {
		res.add(f)
	}
	for _, f := range validateGeometry(members) {
		res.add(f)
	}
	for _, f := range validateMaterial(members) {
		res.add(f)
	}
	return res
}

// validateDAG looks for cycles with a 3-color DFS. Gray marks the current
// path; meeting a gray node means a cycle.
func validateDAG(members []member, edges []Edge) []Finding {
	const (
		white = iota
		gray
		black
	)
	adj := make(map[Handle][]Handle)
	for _, e := range edges {
		adj[e.Dependent] = append(adj[e.Dependent], e.Dependency)
	}

	color := make(map[Handle]int)
	var out []Finding
	var visit func(h Handle) bool
	visit = func(h Handle) bool {
		switch color[h] {
		case black:
			return false
		case gray:
			out = append(out, Finding{
				Shape:    members[h.index()].name,
				Message:  "dependency cycle through this shape",
				Severity: SeverityError,
			})
			return true
		}
		color[h] = gray
		for _, d := range adj[h] {
			if visit(d) {
				return true
			}
		}
		color[h] = black
		return false
	}

	for i := range members {
		h := Handle(i + 1)
		if color[h] == white && visit(h) {
			// one cycle is enough
			break
		}
	}
	return out
}

// validateReferences flags operands that carry a member's name but are a
// different object, which happens when a member is replaced after a
// dependent captured the old one.
func validateReferences(members []member) []Finding {
	byName := make(map[string]*shape.Shape, len(members))
	for _, m := range members {
		byName[m.name] = m.shape
	}
	var out []Finding
	for _, m := range members {
		cfg := m.shape.Config()
		for _, op := range []shape.Op{shape.OpIntersect, shape.OpUnion, shape.OpCut} {
			for i, o := range cfg.Operands(op) {
				dep, ok := o.(*shape.Shape)
				if !ok {
					continue
				}
				if cur, ok := byName[dep.Name()]; ok && cur != dep {
					out = append(out, Finding{
						Shape:    m.name,
						Message:  fmt.Sprintf("%s[%d] refers to a stale copy of %q", op, i, dep.Name()),
						Severity: SeverityError,
					})
				}
			}
		}
	}
	return out
}

// validateNames requires export filenames to be unique and warns when two
// members carry the same shape name.
func validateNames(members []member) []Finding {
	var out []Finding
	stl := make(map[string]string)
	stp := make(map[string]string)
	shapeNames := make(map[string]string)
	for _, m := range members {
		cfg := m.shape.Config()
		if cfg.STLFilename != "" {
			if prev, dup := stl[cfg.STLFilename]; dup {
				out = append(out, Finding{Shape: m.name, Severity: SeverityError,
					Message: fmt.Sprintf("stl filename %q already used by %q", cfg.STLFilename, prev)})
			} else {
				stl[cfg.STLFilename] = m.name
			}
		}
		if cfg.STPFilename != "" {
			if prev, dup := stp[cfg.STPFilename]; dup {
				out = append(out, Finding{Shape: m.name, Severity: SeverityError,
					Message: fmt.Sprintf("stp filename %q already used by %q", cfg.STPFilename, prev)})
			} else {
				stp[cfg.STPFilename] = m.name
			}
		}
		if cfg.Name != "" {
			if prev, dup := shapeNames[cfg.Name]; dup {
				out = append(out, Finding{Shape: m.name, Severity: SeverityWarning,
					Message: fmt.Sprintf("shape name %q also used by member %q", cfg.Name, prev)})
			} else {
				shapeNames[cfg.Name] = m.name
			}
		}
	}
	return out
}

// validateGeometry surfaces shape advisories and warns when revolved copies
// are wider than the gap between their placement angles.
func validateGeometry(members []member) []Finding {
	var out []Finding
	for _, m := range members {
		for _, w := range m.shape.Warnings() {
			out = append(out, Finding{Shape: m.name, Message: w, Severity: SeverityWarning})
		}
		cfg := m.shape.Config()
		rev, ok := cfg.Sweep.(solid.Revolve)
		if !ok {
			continue
		}
		if gap, ok := minPlacementGap(cfg.Placement); ok && rev.Angle > gap+1e-9 {
			out = append(out, Finding{
				Shape:    m.name,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("revolve angle %g exceeds the %g degree gap between placement copies; copies overlap",
					rev.Angle, gap),
			})
		}
	}
	return out
}

// minPlacementGap returns the smallest angular gap between consecutive
// copies, wrapping at 360. It reports false for fewer than two copies.
func minPlacementGap(p solid.Placement) (float64, bool) {
	angles := p.Angles()
	if len(angles) < 2 {
		return 0, false
	}
	norm := make([]float64, len(angles))
	for i, a := range angles {
		a = math.Mod(a, 360)
		if a < 0 {
			a += 360
		}
		norm[i] = a
	}
	sort.Float64s(norm)
	gap := norm[0] + 360 - norm[len(norm)-1]
	for i := 1; i < len(norm); i++ {
		gap = math.Min(gap, norm[i]-norm[i-1])
	}
	return gap, true
}

func validateMaterial(members []member) []Finding {
	var out []Finding
	for _, m := range members {
		if m.shape.Config().MaterialTag == "" {
			out = append(out, Finding{Shape: m.name, Severity: SeverityWarning,
				Message: "no material tag; the shape is left out of the neutronics description"})
		}
	}
	return out
}
