package store

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nozzle/diffmap/graph"
)

// matrixRecord is the encoded form of a dense or CSR matrix.
type matrixRecord struct {
	Sparse  bool      `msgpack:"sparse"`
	Rows    int       `msgpack:"rows"`
	Cols    int       `msgpack:"cols"`
	Indptr  []int32   `msgpack:"indptr,omitempty"`
	Indices []int32   `msgpack:"indices,omitempty"`
	Data    []float32 `msgpack:"data"`
}

// PutMatrix stores m under slot, keeping its storage kind.
func PutMatrix(ctx context.Context, s Store, slot string, m graph.Matrix) error {
	r, c := m.Dims()
	rec := matrixRecord{Rows: r, Cols: c}
	switch v := m.(type) {
	case *graph.CSR:
		rec.Sparse = true
		rec.Indptr = v.Indptr
		rec.Indices = v.Indices
		rec.Data = v.Data
	case *graph.Dense:
		rec.Data = v.Data
	default:
		return fmt.Errorf("store: unsupported matrix type %T", m)
	}
	return put(ctx, s, slot, rec)
}

// GetMatrix loads the matrix stored under slot as *graph.CSR or
// *graph.Dense.
func GetMatrix(ctx context.Context, s Store, slot string) (graph.Matrix, error) {
	var rec matrixRecord
	if err := get(ctx, s, slot, &rec); err != nil {
		return nil, err
	}
	if rec.Sparse {
		if len(rec.Indptr) != rec.Rows+1 || len(rec.Indices) != len(rec.Data) {
			return nil, fmt.Errorf("store: slot %s: %w", slot, graph.ErrShape)
		}
		return &graph.CSR{
			Indptr:  rec.Indptr,
			Indices: rec.Indices,
			Data:    rec.Data,
			NRows:   rec.Rows,
			NCols:   rec.Cols,
		}, nil
	}
	if len(rec.Data) != rec.Rows*rec.Cols {
		return nil, fmt.Errorf("store: slot %s: %w", slot, graph.ErrShape)
	}
	return graph.NewDense(rec.Rows, rec.Cols, rec.Data), nil
}

// PutVector stores a float32 vector under slot.
func PutVector(ctx context.Context, s Store, slot string, v []float32) error {
	return put(ctx, s, slot, v)
}

// GetVector loads the float32 vector stored under slot.
func GetVector(ctx context.Context, s Store, slot string) ([]float32, error) {
	var v []float32
	err := get(ctx, s, slot, &v)
	return v, err
}

// PutInt stores an integer under slot.
func PutInt(ctx context.Context, s Store, slot string, v int) error {
	return put(ctx, s, slot, v)
}

// GetInt loads the integer stored under slot.
func GetInt(ctx context.Context, s Store, slot string) (int, error) {
	var v int
	err := get(ctx, s, slot, &v)
	return v, err
}

func put(ctx context.Context, s Store, slot string, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", slot, err)
	}
	return s.Set(ctx, slot, data)
}

func get(ctx context.Context, s Store, slot string, v any) error {
	data, err := s.Get(ctx, slot)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", slot, err)
	}
	return nil
}
