package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/tokamak/pkg/kernel/kerneltest"
	"github.com/chazu/tokamak/pkg/profile"
	"github.com/chazu/tokamak/pkg/reactor"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/solid"
	"github.com/chazu/tokamak/pkg/store"
	"github.com/chazu/tokamak/pkg/tessellate"
)

func ringConfig(name string) shape.Config {
	return shape.Config{
		Name: name,
		Points: []profile.Point{
			profile.Pt(10, -10), profile.Pt(20, -10), profile.Pt(20, 10), profile.Pt(10, 10),
		},
		Sweep: solid.Revolve{Angle: 90},
	}
}

func newArtifacts(t *testing.T, cfg store.ArtifactConfig) *store.Artifacts {
	t.Helper()
	a, err := store.OpenArtifacts(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpenArtifactsRequiresPath(t *testing.T) {
	_, err := store.OpenArtifacts(store.ArtifactConfig{})
	require.Error(t, err)
}

func TestMeshCachedByFingerprint(t *testing.T) {
	ctx := context.Background()
	a := newArtifacts(t, store.InMemoryArtifactConfig())

	k := kerneltest.New()
	first, err := shape.New(k, ringConfig("first"))
	require.NoError(t, err)
	m, err := a.Mesh(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "first", m.PartName)
	assert.Equal(t, 12, m.TriangleCount())

	// same geometry under another name and kernel instance
	k2 := kerneltest.New()
	second, err := shape.New(k2, ringConfig("second"))
	require.NoError(t, err)
	m2, err := a.Mesh(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "second", m2.PartName)
	assert.Equal(t, m.Vertices, m2.Vertices)
	assert.Zero(t, k2.Total(), "cache hit should not touch the kernel")

	hits, misses := a.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestMeshConcurrentRequestsShareWork(t *testing.T) {
	ctx := context.Background()
	a := newArtifacts(t, store.InMemoryArtifactConfig())

	k := kerneltest.New()
	s, err := shape.New(k, ringConfig("ring"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.Mesh(ctx, s)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, k.Calls(kerneltest.MethodToMesh))
}

func TestArtifactsPersistAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "artifacts")

	a, err := store.OpenArtifacts(store.DefaultArtifactConfig(dir))
	require.NoError(t, err)
	s, err := shape.New(kerneltest.New(), ringConfig("ring"))
	require.NoError(t, err)
	vol, err := a.Volume(ctx, s)
	require.NoError(t, err)
	_, err = a.Mesh(ctx, s)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := newArtifacts(t, store.DefaultArtifactConfig(dir))
	k := kerneltest.New()
	again, err := shape.New(k, ringConfig("ring"))
	require.NoError(t, err)

	got, err := b.Volume(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, vol, got)
	_, err = b.Mesh(ctx, again)
	require.NoError(t, err)
	assert.Zero(t, k.Total())
}

func TestArtifactsAsMesher(t *testing.T) {
	ctx := context.Background()
	a := newArtifacts(t, store.InMemoryArtifactConfig())

	k := kerneltest.New()
	r := reactor.New("test")
	s, err := shape.New(k, ringConfig("ring"))
	require.NoError(t, err)
	_, err = r.Add("ring", s)
	require.NoError(t, err)

	files, err := tessellate.ExportSTL(ctx, r, t.TempDir(), a.Mesh)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 12, files[0].Triangles)

	_, misses := a.Stats()
	assert.Equal(t, int64(1), misses)
}

func newHistory(t *testing.T) *store.History {
	t.Helper()
	h, err := store.OpenHistory(filepath.Join(t.TempDir(), "history", "builds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t)

	r := reactor.New("demo")
	s, err := shape.New(kerneltest.New(), ringConfig("ring"))
	require.NoError(t, err)
	_, err = r.Add("ring", s)
	require.NoError(t, err)
	res, err := r.Build(ctx)
	require.NoError(t, err)

	first, err := h.Record(ctx, "demo", res, nil)
	require.NoError(t, err)
	assert.True(t, first.OK())
	assert.Equal(t, res.Fingerprint.String(), first.Fingerprint)

	failed, err := h.Record(ctx, "demo", nil, errors.New("boom"))
	require.NoError(t, err)
	assert.False(t, failed.OK())

	_, err = h.Record(ctx, "other", nil, errors.New("nope"))
	require.NoError(t, err)

	builds, err := h.Recent(ctx, "demo", 10)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, failed.ID, builds[0].ID, "newest first")
	assert.Equal(t, "boom", builds[0].Error)
	assert.Equal(t, first.ID, builds[1].ID)
	assert.Equal(t, 1, builds[1].Shapes)
	assert.Equal(t, res.Session, builds[1].Session)

	all, err := h.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := h.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	shapes, err := h.Shapes(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, "ring", shapes[0].Name)
	assert.True(t, shapes[0].Rebuilt)
	assert.Equal(t, res.Shapes[0].Fingerprint.String(), shapes[0].Fingerprint)
}
