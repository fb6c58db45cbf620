package reactor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/shape"
)

var tracer = otel.Tracer("tokamak.reactor")

// Built is one member after a build.
type Built struct {
	Handle      Handle
	Name        string
	Shape       *shape.Shape
	Solid       kernel.Solid
	Fingerprint shape.Fingerprint
	Rebuilt     bool // false when the solid came from the cache
}

// Result is the outcome of a reactor build.
type Result struct {
	Session     string // uuid tagging this build in logs and history
	Shapes      []Built
	Fingerprint shape.Fingerprint
	Levels      int
	Rebuilt     int
	Took        time.Duration
}

// Solids builds every member and returns them in insertion order with the
// reactor fingerprint.
func (r *Reactor) Solids(ctx context.Context) ([]Built, shape.Fingerprint, error) {
	res, err := r.Build(ctx)
	if err != nil {
		return nil, shape.Fingerprint{}, err
	}
	return res.Shapes, res.Fingerprint, nil
}

// Build builds members level by level. Members of one level do not depend
// on each other and build concurrently, bounded by the worker count. The
// first failure cancels the rest of its level and stops the build.
func (r *Reactor) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	session := uuid.NewString()
	log := r.logger.With(slog.String("session", session), slog.String("reactor", r.name))

	ctx, span := tracer.Start(ctx, "Reactor.Build",
		trace.WithAttributes(
			attribute.String("reactor.name", r.name),
			attribute.String("reactor.session", session),
			attribute.Int("reactor.workers", r.workers),
		),
	)
	defer span.End()

	levels, err := r.Levels()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	members := r.snapshot()
	built := make([]Built, len(members))

	for li, level := range levels {
		log.Debug("building level", slog.Int("level", li), slog.Int("shapes", len(level)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for _, h := range level {
			m := members[h.index()]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				before := m.shape.Builds()
				sol, err := m.shape.Solid(gctx)
				if err != nil {
					return fmt.Errorf("reactor: build %q: %w", m.name, err)
				}
				fp := m.shape.BuiltFingerprint()
				built[h.index()] = Built{
					Handle:      h,
					Name:        m.name,
					Shape:       m.shape,
					Solid:       sol,
					Fingerprint: fp,
					Rebuilt:     m.shape.Builds() != before,
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			log.Warn("reactor build failed", slog.Int("level", li), slog.String("error", err.Error()))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	fps := make([]shape.Fingerprint, len(built))
	rebuilt := 0
	for i, b := range built {
		fps[i] = b.Fingerprint
		if b.Rebuilt {
			rebuilt++
		}
	}
	res := &Result{
		Session:     session,
		Shapes:      built,
		Fingerprint: aggregate(members, fps),
		Levels:      len(levels),
		Rebuilt:     rebuilt,
		Took:        time.Since(start),
	}
	span.SetAttributes(
		attribute.String("reactor.fingerprint", res.Fingerprint.Short()),
		attribute.Int("reactor.rebuilt", rebuilt),
	)
	log.Info("reactor built",
		slog.Int("shapes", len(built)),
		slog.Int("rebuilt", rebuilt),
		slog.Int("levels", len(levels)),
		slog.String("fingerprint", res.Fingerprint.Short()),
		slog.Duration("took", res.Took),
	)
	return res, nil
}

// Volumer measures one shape. A nil Volumer uses the shape's own memoized
// Volume; pkg/store supplies one backed by its artifact cache.
type Volumer func(ctx context.Context, s *shape.Shape) (float64, error)

// Volumes returns each member's volume keyed by name, building as
// needed.
func (r *Reactor) Volumes(ctx context.Context, vol Volumer) (map[string]float64, error) {
	if vol == nil {
		vol = func(ctx context.Context, s *shape.Shape) (float64, error) { return s.Volume(ctx) }
	}
	out := make(map[string]float64)
	for _, m := range r.snapshot() {
		v, err := vol(ctx, m.shape)
		if err != nil {
			return nil, fmt.Errorf("reactor: volume %q: %w", m.name, err)
		}
		out[m.name] = v
	}
	return out, nil
}
