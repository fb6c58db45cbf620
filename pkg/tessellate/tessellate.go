// Package tessellate turns a reactor into triangle meshes, one per member,
// and writes them out as STL files. It also renders 2D previews of shape
// profiles.
package tessellate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/reactor"
	"github.com/chazu/tokamak/pkg/shape"
)

// Mesher produces the mesh of one shape. The default is the shape's own
// memoized Mesh; pkg/store supplies one backed by its artifact cache.
type Mesher func(ctx context.Context, s *shape.Shape) (*kernel.Mesh, error)

func shapeMesh(ctx context.Context, s *shape.Shape) (*kernel.Mesh, error) {
	return s.Mesh(ctx)
}

// Tessellate builds the reactor and produces one mesh per member, in
// insertion order. The reactor is never mutated beyond its caches.
func Tessellate(ctx context.Context, r *reactor.Reactor) ([]*kernel.Mesh, error) {
	return TessellateWith(ctx, r, shapeMesh)
}

// TessellateWith is Tessellate with a custom mesher.
func TessellateWith(ctx context.Context, r *reactor.Reactor, mesh Mesher) ([]*kernel.Mesh, error) {
	if r == nil {
		return nil, nil
	}
	built, _, err := r.Solids(ctx)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	meshes := make([]*kernel.Mesh, 0, len(built))
	for _, b := range built {
		m, err := mesh(ctx, b.Shape)
		if err != nil {
			return nil, fmt.Errorf("tessellate: mesh %q: %w", b.Name, err)
		}
		if m.PartName == "" {
			m.PartName = b.Name
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

// Exported is one file written by ExportSTL.
type Exported struct {
	Name      string
	Path      string
	Triangles int
}

// ExportSTL writes every member's mesh into dir as binary STL, named by
// the member's STL filename. The directory is created if needed.
func ExportSTL(ctx context.Context, r *reactor.Reactor, dir string, mesh Mesher) ([]Exported, error) {
	if mesh == nil {
		mesh = shapeMesh
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	built, _, err := r.Solids(ctx)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}

	seen := make(map[string]string, len(built))
	out := make([]Exported, 0, len(built))
	for _, b := range built {
		file := reactor.STLFilename(b.Name, b.Shape.Config().STLFilename)
		if prev, dup := seen[file]; dup {
			return nil, fmt.Errorf("tessellate: %q and %q both export to %s", prev, b.Name, file)
		}
		seen[file] = b.Name

		m, err := mesh(ctx, b.Shape)
		if err != nil {
			return nil, fmt.Errorf("tessellate: mesh %q: %w", b.Name, err)
		}
		path := filepath.Join(dir, file)
		if err := m.SaveSTL(path); err != nil {
			return nil, fmt.Errorf("tessellate: %q: %w", b.Name, err)
		}
		out = append(out, Exported{Name: b.Name, Path: path, Triangles: m.TriangleCount()})
	}
	return out, nil
}
