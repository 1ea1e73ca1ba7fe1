// Package diffusion derives distances from a diffusion-map spectrum: a lazily
// evaluated, row-cached diffusion distance matrix, pseudotime relative to a
// root point, and dense derived matrices (M, DPT distances, Laplacian
// pseudoinverse, commute and mean first passage times) for small datasets.
package diffusion

import (
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// RowFunc computes one full row of a symmetric matrix.
type RowFunc func(i int) []float32

// rowStore holds computed rows by global index.
type rowStore interface {
	get(i int) ([]float32, bool)
	put(i int, row []float32)
	len() int
}

type mapStore struct {
	mu   sync.RWMutex
	rows map[int][]float32
}

func (s *mapStore) get(i int) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[i]
	return row, ok
}

func (s *mapStore) put(i int, row []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[i] = row
}

func (s *mapStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

type lruStore struct {
	cache *lru.Cache
}

func (s lruStore) get(i int) ([]float32, bool) {
	v, ok := s.cache.Get(i)
	if !ok {
		return nil, false
	}
	return v.([]float32), true
}

func (s lruStore) put(i int, row []float32) {
	s.cache.Add(i, row)
}

func (s lruStore) len() int {
	return s.cache.Len()
}

// rowCache is shared between a matrix and all its restrictions.
type rowCache struct {
	generate  RowFunc
	store     rowStore
	group     singleflight.Group
	generated atomic.Int64
}

func (c *rowCache) row(i int) []float32 {
	if row, ok := c.store.get(i); ok {
		return row
	}
	v, _, _ := c.group.Do(strconv.Itoa(i), func() (any, error) {
		if row, ok := c.store.get(i); ok {
			return row, nil
		}
		row := c.generate(i)
		c.generated.Add(1)
		c.store.put(i, row)
		return row, nil
	})
	return v.([]float32)
}

// LazyMatrix is an N×N symmetric matrix whose rows are computed on first
// access and cached. With the default unbounded cache every row is computed
// at most once over the lifetime of the matrix and its restrictions, so
// memory grows with the number of distinct rows requested. A positive
// capacity bounds the cache with LRU eviction; evicted rows are recomputed
// on the next access. Safe for concurrent use.
type LazyMatrix struct {
	cache  *rowCache
	n      int
	subset []int
}

// NewLazyMatrix returns an n×n matrix backed by generate. capacity <= 0
// keeps every row.
func NewLazyMatrix(n int, generate RowFunc, capacity int) *LazyMatrix {
	var store rowStore = &mapStore{rows: make(map[int][]float32)}
	if capacity > 0 {
		cache, err := lru.New(capacity)
		if err == nil {
			store = lruStore{cache}
		}
	}
	return &LazyMatrix{
		cache: &rowCache{generate: generate, store: store},
		n:     n,
	}
}

// Dims returns the logical dimensions.
func (m *LazyMatrix) Dims() (int, int) {
	if m.subset != nil {
		return len(m.subset), len(m.subset)
	}
	return m.n, m.n
}

func (m *LazyMatrix) global(i int) int {
	if m.subset == nil {
		return i
	}
	return m.subset[i]
}

// Row returns logical row i. For an unrestricted matrix the cached slice is
// returned and must not be modified; a restricted matrix returns a new slice
// holding the subset columns.
func (m *LazyMatrix) Row(i int) []float32 {
	row := m.cache.row(m.global(i))
	if m.subset == nil {
		return row
	}
	out := make([]float32, len(m.subset))
	for k, j := range m.subset {
		out[k] = row[j]
	}
	return out
}

// At returns element (i, j).
func (m *LazyMatrix) At(i, j int) float32 {
	return m.cache.row(m.global(i))[m.global(j)]
}

// Restrict returns a view over the logical indices in subset. The view
// shares the row cache: rows already computed are not recomputed and rows
// computed through the view are visible to m.
func (m *LazyMatrix) Restrict(subset []int) *LazyMatrix {
	global := make([]int, len(subset))
	for k, i := range subset {
		global[k] = m.global(i)
	}
	return &LazyMatrix{cache: m.cache, n: m.n, subset: global}
}

// Generated returns how many times the row generator has run.
func (m *LazyMatrix) Generated() int {
	return int(m.cache.generated.Load())
}

// Cached returns the number of rows currently held.
func (m *LazyMatrix) Cached() int {
	return m.cache.store.len()
}
