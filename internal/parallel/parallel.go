// Package parallel provides parallel execution helpers.
package parallel

import (
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// NumWorkers returns the default number of workers for parallel operations.
func NumWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// Resolve returns n if positive, otherwise the default worker count.
func Resolve(n int) int {
	if n <= 0 {
		return NumWorkers()
	}
	return n
}

// ParallelFor executes fn for indices [start, end) using n workers.
func ParallelFor(start, end, n int, fn func(i int)) {
	if n <= 1 {
		for i := start; i < end; i++ {
			fn(i)
		}
		return
	}

	total := end - start
	if total <= 0 {
		return
	}

	var wg sync.WaitGroup
	chunkSize := (total + n - 1) / n

	for w := 0; w < n; w++ {
		chunkStart := start + w*chunkSize
		chunkEnd := min(chunkStart+chunkSize, end)
		if chunkStart >= chunkEnd {
			break
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				fn(i)
			}
		}(chunkStart, chunkEnd)
	}

	wg.Wait()
}

// Chunk is the half-open row range [Start, End) with its position in the
// chunk list.
type Chunk struct {
	Index int
	Start int
	End   int
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Split partitions [0, n) into consecutive chunks of at most size rows.
func Split(n, size int) []Chunk {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	chunks := make([]Chunk, 0, (n+size-1)/size)
	for s := 0; s < n; s += size {
		chunks = append(chunks, Chunk{Index: len(chunks), Start: s, End: min(s+size, n)})
	}
	return chunks
}

// ChunkSize returns ceil(min(maxRows, n) / workers), the row count each
// worker handles per chunk.
func ChunkSize(n, maxRows, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	rows := n
	if maxRows > 0 && maxRows < rows {
		rows = maxRows
	}
	return max((rows+workers-1)/workers, 1)
}

// MapChunks runs fn for every chunk on up to workers goroutines. Results are
// stored by chunk index, so the output order does not depend on which chunk
// finishes first. All chunks run to completion before MapChunks returns.
func MapChunks[T any](chunks []Chunk, workers int, fn func(c Chunk) T) []T {
	results := make([]T, len(chunks))
	if workers <= 1 || len(chunks) <= 1 {
		for _, c := range chunks {
			results[c.Index] = fn(c)
		}
		return results
	}

	p := pool.New().WithMaxGoroutines(workers)
	for _, c := range chunks {
		p.Go(func() {
			results[c.Index] = fn(c)
		})
	}
	p.Wait()

	return results
}
