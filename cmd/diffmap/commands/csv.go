package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// loadCSV loads data from a CSV file (no header, numeric values only).
func loadCSV(filename string) ([][]float32, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, errors.New("empty file"))
	}

	data := make([][]float32, len(records))
	for i, record := range records {
		data[i] = make([]float32, len(record))
		for j, val := range record {
			f, err := strconv.ParseFloat(val, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d, col %d: %w", filename, i, j, err)
			}
			data[i][j] = float32(f)
		}
	}
	return data, nil
}

// saveCSV writes rows to a CSV file.
func saveCSV(filename string, rows [][]float32) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for _, row := range rows {
		record := make([]string, len(row))
		for j, val := range row {
			record[j] = strconv.FormatFloat(float64(val), 'f', 6, 32)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

// denseRows splits row-major data into rows of width cols.
func denseRows(data []float32, cols int) [][]float32 {
	if cols == 0 {
		return nil
	}
	rows := make([][]float32, len(data)/cols)
	for i := range rows {
		rows[i] = data[i*cols : (i+1)*cols]
	}
	return rows
}
