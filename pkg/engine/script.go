package engine

import (
	"fmt"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/reactor"
	"github.com/chazu/tokamak/pkg/shape"
)

// script collects what one evaluation describes. Shapes are created as
// soon as they are defined so operands can refer to them; reactor
// membership and dependencies are applied once the program has finished.
type script struct {
	k      kernel.Kernel
	name   string
	shapes map[string]*shape.Shape
	order  []definition
	deps   []dependency
	failed error // first builtin error
}

type definition struct {
	shape  *shape.Shape
	member bool
}

type dependency struct {
	dependent  string
	op         shape.Op
	dependency string
}

func newScript(k kernel.Kernel) *script {
	return &script{k: k, name: DefaultReactorName, shapes: make(map[string]*shape.Shape)}
}

func (sc *script) define(cfg shape.Config, member bool) (*shape.Shape, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("shape needs a name")
	}
	if _, dup := sc.shapes[cfg.Name]; dup {
		return nil, fmt.Errorf("shape %q already defined", cfg.Name)
	}
	s, err := shape.New(sc.k, cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range s.Warnings() {
		Logger().Warn("shape advisory", "shape", cfg.Name, "warning", w)
	}
	sc.shapes[cfg.Name] = s
	sc.order = append(sc.order, definition{shape: s, member: member})
	return s, nil
}

func (sc *script) lookup(name string) (*shape.Shape, error) {
	s, ok := sc.shapes[name]
	if !ok {
		return nil, fmt.Errorf("unknown shape %q (shapes must be defined before use)", name)
	}
	return s, nil
}

// assemble builds the reactor from the collected definitions. Every
// failure is reported, not just the first.
func (sc *script) assemble(opts ...reactor.Option) (*reactor.Reactor, []EvalError) {
	r := reactor.New(sc.name, opts...)
	var errs []EvalError
	for _, d := range sc.order {
		if !d.member {
			continue
		}
		if _, err := r.Add(d.shape.Name(), d.shape); err != nil {
			errs = append(errs, EvalError{Message: err.Error()})
		}
	}
	for _, d := range sc.deps {
		dependent, ok := r.Lookup(d.dependent)
		if !ok {
			errs = append(errs, EvalError{Message: fmt.Sprintf("depends: %q is not a reactor member", d.dependent)})
			continue
		}
		dep, ok := r.Lookup(d.dependency)
		if !ok {
			errs = append(errs, EvalError{Message: fmt.Sprintf("depends: %q is not a reactor member", d.dependency)})
			continue
		}
		if err := r.Depend(dependent, d.op, dep); err != nil {
			errs = append(errs, EvalError{Message: fmt.Sprintf("depends: %s", err)})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}
