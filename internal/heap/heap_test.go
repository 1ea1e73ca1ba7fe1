package heap

import "testing"

func TestPushKeepsClosest(t *testing.T) {
	idx := make([]int32, 3)
	dist := make([]float32, 3)
	Reset(idx, dist)

	for i, d := range []float32{5, 1, 4, 2, 3, 0.5} {
		Push(idx, dist, int32(i), d)
	}
	Sort(idx, dist)

	wantIdx := []int32{5, 1, 3}
	wantDist := []float32{0.5, 1, 2}
	for i := range wantIdx {
		if idx[i] != wantIdx[i] || dist[i] != wantDist[i] {
			t.Errorf("slot %d = (%d, %f), want (%d, %f)", i, idx[i], dist[i], wantIdx[i], wantDist[i])
		}
	}
}

func TestPushRejectsDuplicates(t *testing.T) {
	idx := make([]int32, 2)
	dist := make([]float32, 2)
	Reset(idx, dist)

	if !Push(idx, dist, 7, 1) {
		t.Fatal("first push should succeed")
	}
	if Push(idx, dist, 7, 0.5) {
		t.Error("duplicate index should be rejected")
	}
}

func TestFlaggedPushMovesFlags(t *testing.T) {
	idx := []int32{EmptyIndex, EmptyIndex}
	dist := []float32{EmptyDistance, EmptyDistance}
	flags := []uint8{0, 0}

	FlaggedPush(idx, dist, flags, 1, 2, 1)
	FlaggedPush(idx, dist, flags, 2, 1, 0)

	for i := range idx {
		switch idx[i] {
		case 1:
			if flags[i] != 1 {
				t.Errorf("flag for index 1 lost")
			}
		case 2:
			if flags[i] != 0 {
				t.Errorf("flag for index 2 wrong")
			}
		}
	}
}
