// Package store persists build products between runs: meshes and volumes
// keyed by shape fingerprint in BadgerDB, and a build history ledger in
// SQLite.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/shape"
)

// ArtifactConfig configures the artifact cache.
type ArtifactConfig struct {
	// Path is the badger directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM; for tests and one-off builds.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives badger's own logging. Nil silences it.
	Logger *slog.Logger
}

// DefaultArtifactConfig returns a persistent configuration rooted at path.
func DefaultArtifactConfig(path string) ArtifactConfig {
	return ArtifactConfig{Path: path, SyncWrites: true}
}

// InMemoryArtifactConfig returns a configuration with no disk I/O.
func InMemoryArtifactConfig() ArtifactConfig {
	return ArtifactConfig{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Artifacts caches derived values of shapes by fingerprint. Because a
// fingerprint covers everything that determines geometry, an entry never
// goes stale; a changed shape simply has a new key.
type Artifacts struct {
	db     *badger.DB
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// OpenArtifacts opens (or creates) the artifact cache.
func OpenArtifacts(cfg ArtifactConfig) (*Artifacts, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: artifact path is required for a persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create artifact directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open artifact cache: %w", err)
	}
	return &Artifacts{db: db}, nil
}

// Close releases the database.
func (a *Artifacts) Close() error {
	return a.db.Close()
}

// Stats returns cache hits and misses since open.
func (a *Artifacts) Stats() (hits, misses int64) {
	return a.hits.Load(), a.misses.Load()
}

func meshKey(fp shape.Fingerprint) []byte   { return []byte("mesh/" + fp.String()) }
func volumeKey(fp shape.Fingerprint) []byte { return []byte("volume/" + fp.String()) }

func (a *Artifacts) get(key []byte) ([]byte, bool, error) {
	var val []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %s: %w", key, err)
	}
	return val, true, nil
}

func (a *Artifacts) put(key, val []byte) error {
	err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	return nil
}

// GetMesh returns the cached mesh for fp.
func (a *Artifacts) GetMesh(fp shape.Fingerprint) (*kernel.Mesh, bool, error) {
	val, ok, err := a.get(meshKey(fp))
	if !ok || err != nil {
		return nil, false, err
	}
	var m kernel.Mesh
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, false, fmt.Errorf("store: decode mesh %s: %w", fp.Short(), err)
	}
	return &m, true, nil
}

// PutMesh stores m under fp. The part name is not stored; it belongs to
// whichever shape asks.
func (a *Artifacts) PutMesh(fp shape.Fingerprint, m *kernel.Mesh) error {
	c := *m
	c.PartName = ""
	val, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("store: encode mesh %s: %w", fp.Short(), err)
	}
	return a.put(meshKey(fp), val)
}

// GetVolume returns the cached volume for fp.
func (a *Artifacts) GetVolume(fp shape.Fingerprint) (float64, bool, error) {
	val, ok, err := a.get(volumeKey(fp))
	if !ok || err != nil {
		return 0, false, err
	}
	if len(val) != 8 {
		return 0, false, fmt.Errorf("store: volume %s: %d bytes", fp.Short(), len(val))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(val)), true, nil
}

// PutVolume stores v under fp.
func (a *Artifacts) PutVolume(fp shape.Fingerprint, v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return a.put(volumeKey(fp), buf[:])
}

// Mesh returns the mesh of s, from the cache when present. Concurrent
// requests for the same fingerprint share one computation.
func (a *Artifacts) Mesh(ctx context.Context, s *shape.Shape) (*kernel.Mesh, error) {
	fp, err := s.Fingerprint()
	if err != nil {
		return nil, err
	}
	v, err, _ := a.group.Do("mesh/"+fp.String(), func() (interface{}, error) {
		m, ok, err := a.GetMesh(fp)
		if err != nil {
			return nil, err
		}
		if ok {
			a.hits.Add(1)
			return m, nil
		}
		a.misses.Add(1)
		m, err = s.Mesh(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.PutMesh(fp, m); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*kernel.Mesh)
	out.PartName = s.Name()
	return &out, nil
}

// Volume returns the volume of s, from the cache when present.
func (a *Artifacts) Volume(ctx context.Context, s *shape.Shape) (float64, error) {
	fp, err := s.Fingerprint()
	if err != nil {
		return 0, err
	}
	v, err, _ := a.group.Do("volume/"+fp.String(), func() (interface{}, error) {
		vol, ok, err := a.GetVolume(fp)
		if err != nil {
			return nil, err
		}
		if ok {
			a.hits.Add(1)
			return vol, nil
		}
		a.misses.Add(1)
		vol, err = s.Volume(ctx)
		if err != nil {
			return nil, err
		}
		return vol, a.PutVolume(fp, vol)
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}
