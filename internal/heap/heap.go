// Package heap provides fixed-capacity max-heaps over parallel neighbor
// index/distance rows. The farthest kept neighbor is always at index 0, so a
// candidate is rejected with one comparison once the row is full.
package heap

// Sentinel values for empty heap slots.
const (
	EmptyIndex    int32   = -1
	EmptyDistance float32 = 1e30
)

// Reset fills a row with empty slots.
func Reset(indices []int32, distances []float32) {
	for i := range indices {
		indices[i] = EmptyIndex
		distances[i] = EmptyDistance
	}
}

// Push offers (idx, dist) to the heap held in indices/distances. It returns
// false when the candidate is not closer than the current farthest neighbor
// or when idx is already present.
func Push(indices []int32, distances []float32, idx int32, dist float32) bool {
	if !admit(indices, distances, idx, dist) {
		return false
	}
	indices[0] = idx
	distances[0] = dist
	siftDown(indices, distances, nil, 0, len(indices))
	return true
}

// FlaggedPush is Push for rows that also carry NN-descent "new" flags.
func FlaggedPush(indices []int32, distances []float32, flags []uint8, idx int32, dist float32, flag uint8) bool {
	if !admit(indices, distances, idx, dist) {
		return false
	}
	indices[0] = idx
	distances[0] = dist
	flags[0] = flag
	siftDown(indices, distances, flags, 0, len(indices))
	return true
}

// Heapify restores the heap property on an arbitrary row.
func Heapify(indices []int32, distances []float32, flags []uint8) {
	n := len(indices)
	for i := n/2 - 1; i >= 0; i-- {
		siftDown(indices, distances, flags, i, n)
	}
}

// Sort turns a heap row into ascending distance order in place.
func Sort(indices []int32, distances []float32) {
	for end := len(indices) - 1; end > 0; end-- {
		distances[0], distances[end] = distances[end], distances[0]
		indices[0], indices[end] = indices[end], indices[0]
		siftDown(indices, distances, nil, 0, end)
	}
}

func admit(indices []int32, distances []float32, idx int32, dist float32) bool {
	if len(indices) == 0 || dist >= distances[0] {
		return false
	}
	for _, j := range indices {
		if j == idx {
			return false
		}
	}
	return true
}

// siftDown restores the heap property below i within the first n slots.
func siftDown(indices []int32, distances []float32, flags []uint8, i, n int) {
	for {
		largest := i
		if l := 2*i + 1; l < n && distances[l] > distances[largest] {
			largest = l
		}
		if r := 2*i + 2; r < n && distances[r] > distances[largest] {
			largest = r
		}
		if largest == i {
			return
		}
		distances[i], distances[largest] = distances[largest], distances[i]
		indices[i], indices[largest] = indices[largest], indices[i]
		if flags != nil {
			flags[i], flags[largest] = flags[largest], flags[i]
		}
		i = largest
	}
}
