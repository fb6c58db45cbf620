// Package reactor assembles named shapes into a reactor. Shapes live in a
// reactor-owned table addressed by Handle; dependency edges between them
// are the boolean operands in each shape's configuration and must form a
// DAG. The reactor builds members level by level in dependency order and
// aggregates their fingerprints.
package reactor

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/chazu/tokamak/pkg/geomerr"
	"github.com/chazu/tokamak/pkg/shape"
)

// Handle addresses a shape in a reactor. The zero Handle is never valid.
type Handle uint32

func (h Handle) index() int { return int(h) - 1 }

// Valid reports whether h could address a member (it may still be out of
// range for a particular reactor).
func (h Handle) Valid() bool { return h > 0 }

// Edge says Dependent uses Dependency as an Op operand.
type Edge struct {
	Dependent  Handle
	Op         shape.Op
	Dependency Handle
}

type member struct {
	name  string
	shape *shape.Shape
}

// Reactor is an ordered table of named shapes.
type Reactor struct {
	name    string
	workers int
	logger  *slog.Logger

	mu      sync.RWMutex
	members []member
	byName  map[string]Handle
	byShape map[*shape.Shape]Handle
}

// Option configures a Reactor.
type Option func(*Reactor)

// WithWorkers bounds how many shapes build concurrently. Values below 1
// mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Reactor) { r.workers = n }
}

// WithLogger sets the reactor's logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reactor) { r.logger = l }
}

// New returns an empty reactor.
func New(name string, opts ...Option) *Reactor {
	r := &Reactor{
		name:    name,
		byName:  make(map[string]Handle),
		byShape: make(map[*shape.Shape]Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Name returns the reactor's name.
func (r *Reactor) Name() string { return r.name }

// Workers returns the build concurrency bound.
func (r *Reactor) Workers() int { return r.workers }

// Add registers s under name. Names and shapes are unique per reactor.
func (r *Reactor) Add(name string, s *shape.Shape) (Handle, error) {
	if s == nil {
		return 0, geomerr.Configuration("add", "nil shape for %q", name)
	}
	if name == "" {
		name = s.Name()
	}
	if name == "" {
		return 0, geomerr.Configuration("add", "shape has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return 0, geomerr.Configuration("add", "duplicate shape name %q", name)
	}
	if h, dup := r.byShape[s]; dup {
		return 0, geomerr.Configuration("add", "shape %q is already registered as %q", name, r.members[h.index()].name)
	}
	r.members = append(r.members, member{name: name, shape: s})
	h := Handle(len(r.members))
	r.byName[name] = h
	r.byShape[s] = h
	return h, nil
}

// MustAdd is Add for construction code that cannot fail.
func (r *Reactor) MustAdd(name string, s *shape.Shape) Handle {
	h, err := r.Add(name, s)
	if err != nil {
		panic(fmt.Sprintf("reactor: %v", err))
	}
	return h
}

func (r *Reactor) get(h Handle) (member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !h.Valid() || h.index() >= len(r.members) {
		return member{}, geomerr.Configuration("handle", "no shape with handle %d", h)
	}
	return r.members[h.index()], nil
}

// Shape returns the shape behind h.
func (r *Reactor) Shape(h Handle) (*shape.Shape, error) {
	m, err := r.get(h)
	if err != nil {
		return nil, err
	}
	return m.shape, nil
}

// NameOf returns the registered name of h.
func (r *Reactor) NameOf(h Handle) (string, error) {
	m, err := r.get(h)
	if err != nil {
		return "", err
	}
	return m.name, nil
}

// Lookup returns the handle registered under name.
func (r *Reactor) Lookup(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// Len returns the number of members.
func (r *Reactor) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Names returns member names in insertion order.
func (r *Reactor) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.members))
	for i, m := range r.members {
		out[i] = m.name
	}
	return out
}

// Handles returns every handle in insertion order.
func (r *Reactor) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, len(r.members))
	for i := range r.members {
		out[i] = Handle(i + 1)
	}
	return out
}

func (r *Reactor) snapshot() []member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]member(nil), r.members...)
}

// Edges lists member-to-member dependencies, read from each member's
// operand lists. Operands that are not members are built through their
// dependent and do not appear here.
func (r *Reactor) Edges() []Edge {
	members := r.snapshot()
	r.mu.RLock()
	byShape := make(map[*shape.Shape]Handle, len(r.byShape))
	for s, h := range r.byShape {
		byShape[s] = h
	}
	r.mu.RUnlock()
	return edgesOf(members, byShape)
}

func edgesOf(members []member, byShape map[*shape.Shape]Handle) []Edge {
	var edges []Edge
	for i, m := range members {
		cfg := m.shape.Config()
		for _, op := range []shape.Op{shape.OpIntersect, shape.OpUnion, shape.OpCut} {
			for _, o := range cfg.Operands(op) {
				dep, ok := o.(*shape.Shape)
				if !ok {
					continue
				}
				if h, ok := byShape[dep]; ok {
					edges = append(edges, Edge{Dependent: Handle(i + 1), Op: op, Dependency: h})
				}
			}
		}
	}
	return edges
}

// Depend makes dependent use dependency as an op operand. The edge is
// rejected with ErrInvalidConfiguration if it would close a cycle.
func (r *Reactor) Depend(dependent Handle, op shape.Op, dependency Handle) error {
	if !op.Valid() {
		return geomerr.Configuration("depend", "unknown op %q", string(op))
	}
	a, err := r.get(dependent)
	if err != nil {
		return err
	}
	b, err := r.get(dependency)
	if err != nil {
		return err
	}
	if dependent == dependency {
		return geomerr.Configuration("depend", "%q cannot depend on itself", a.name)
	}
	if r.reaches(dependency, dependent) {
		return geomerr.Configuration("depend", "%s %q on %q would create a dependency cycle", op, a.name, b.name)
	}
	if err := a.shape.Update(func(c *shape.Config) { c.AddOperand(op, b.shape) }); err != nil {
		return err
	}
	r.logger.Debug("dependency added",
		slog.String("dependent", a.name),
		slog.String("op", string(op)),
		slog.String("dependency", b.name),
	)
	return nil
}

// reaches reports whether to is reachable from from along dependency
// edges.
func (r *Reactor) reaches(from, to Handle) bool {
	adj := make(map[Handle][]Handle)
	for _, e := range r.Edges() {
		adj[e.Dependent] = append(adj[e.Dependent], e.Dependency)
	}
	seen := make(map[Handle]bool)
	stack := []Handle{from}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == to {
			return true
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		stack = append(stack, adj[h]...)
	}
	return false
}

// Levels groups handles so every dependency of a member sits in an
// earlier level. Within a level handles keep insertion order.
func (r *Reactor) Levels() ([][]Handle, error) {
	n := r.Len()
	indeg := make([]int, n+1)
	users := make(map[Handle][]Handle)
	for _, e := range r.Edges() {
		indeg[e.Dependent]++
		users[e.Dependency] = append(users[e.Dependency], e.Dependent)
	}

	var levels [][]Handle
	var cur []Handle
	for h := 1; h <= n; h++ {
		if indeg[h] == 0 {
			cur = append(cur, Handle(h))
		}
	}
	placed := 0
	for len(cur) > 0 {
		levels = append(levels, cur)
		placed += len(cur)
		var next []Handle
		for _, h := range cur {
			for _, u := range users[h] {
				indeg[u]--
				if indeg[u] == 0 {
					next = append(next, u)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		cur = next
	}
	if placed != n {
		return nil, geomerr.Configuration("order", "dependency cycle among %d shapes", n-placed)
	}
	return levels, nil
}

// Order returns a topological order of all members: dependencies first,
// ties broken by insertion order.
func (r *Reactor) Order() ([]Handle, error) {
	levels, err := r.Levels()
	if err != nil {
		return nil, err
	}
	var out []Handle
	for _, l := range levels {
		out = append(out, l...)
	}
	return out, nil
}

// Fingerprint aggregates member fingerprints in insertion order without
// building anything.
func (r *Reactor) Fingerprint() (shape.Fingerprint, error) {
	members := r.snapshot()
	fps := make([]shape.Fingerprint, len(members))
	for i, m := range members {
		fp, err := m.shape.Fingerprint()
		if err != nil {
			return shape.Fingerprint{}, fmt.Errorf("reactor: fingerprint %q: %w", m.name, err)
		}
		fps[i] = fp
	}
	return aggregate(members, fps), nil
}

func aggregate(members []member, fps []shape.Fingerprint) shape.Fingerprint {
	parts := make([]string, 0, len(members)+1)
	parts = append(parts, "reactor/v1")
	for i, m := range members {
		parts = append(parts, m.name+"="+fps[i].String())
	}
	return shape.Digest(parts...)
}

// Carry adopts cached solids from prev into next for every member whose
// name and fingerprint are unchanged. It returns the names adopted.
func Carry(prev, next *Reactor) ([]string, error) {
	if prev == nil || next == nil {
		return nil, nil
	}
	var adopted []string
	for _, m := range next.snapshot() {
		h, ok := prev.Lookup(m.name)
		if !ok {
			continue
		}
		old, err := prev.Shape(h)
		if err != nil {
			return adopted, err
		}
		ok, err = m.shape.Adopt(old)
		if err != nil {
			return adopted, fmt.Errorf("reactor: carry %q: %w", m.name, err)
		}
		if ok {
			adopted = append(adopted, m.name)
		}
	}
	next.logger.Debug("carried caches", slog.Int("adopted", len(adopted)), slog.Int("members", next.Len()))
	return adopted, nil
}
