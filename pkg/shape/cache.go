package shape

import (
	"sync"

	"github.com/chazu/tokamak/pkg/kernel"
)

// Cache memoizes one solid under the fingerprint it was built from, plus
// values derived from that solid. The zero value is empty and ready to use.
//
// The mutex is held for the whole of a rebuild, so concurrent callers with
// the same stale fingerprint wait for one build instead of racing.
type Cache struct {
	mu     sync.Mutex
	fp     Fingerprint
	solid  kernel.Solid
	builds int

	// derived from solid; cleared whenever solid changes
	volume *float64
	mesh   *kernel.Mesh
}

// RebuildIfStale returns the memoized solid when fp matches the stored
// fingerprint. Otherwise it runs build and, on success, stores the result
// under fp. A failed build leaves the previous pair untouched. The bool
// reports whether build ran.
func (c *Cache) RebuildIfStale(fp Fingerprint, build func() (kernel.Solid, error)) (kernel.Solid, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.solid != nil && c.fp == fp {
		return c.solid, false, nil
	}
	s, err := build()
	if err != nil {
		return nil, true, err
	}
	c.fp = fp
	c.solid = s
	c.builds++
	c.volume = nil
	c.mesh = nil
	return s, true, nil
}

// Current returns the last successfully built solid and its fingerprint.
// The solid is nil when nothing has been built.
func (c *Cache) Current() (kernel.Solid, Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.solid, c.fp
}

// Builds returns the number of successful rebuilds.
func (c *Cache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

func (c *Cache) cachedVolume(fp Fingerprint) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.volume == nil || c.fp != fp {
		return 0, false
	}
	return *c.volume, true
}

func (c *Cache) storeVolume(fp Fingerprint, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fp == fp {
		c.volume = &v
	}
}

func (c *Cache) cachedMesh(fp Fingerprint) *kernel.Mesh {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fp != fp {
		return nil
	}
	return c.mesh
}

func (c *Cache) storeMesh(fp Fingerprint, m *kernel.Mesh) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fp == fp {
		c.mesh = m
	}
}

// adopt copies other's memo into c when other was built under fp. It
// reports whether anything was copied.
func (c *Cache) adopt(other *Cache, fp Fingerprint) bool {
	if c == other {
		return false
	}
	other.mu.Lock()
	s, ofp, vol, mesh := other.solid, other.fp, other.volume, other.mesh
	other.mu.Unlock()
	if s == nil || ofp != fp {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fp = ofp
	c.solid = s
	c.volume = vol
	c.mesh = mesh
	return true
}
