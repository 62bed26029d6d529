package preprocess

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
)

// LoadBackground reads the background reference dataset: a CSV of
// already-scaled feature vectors with a header row in schema order. A bounded
// fixed-seed sample without replacement keeps the perturbation-based
// attribution path within latency budget while staying reproducible.
func LoadBackground(path string, schema []string, sampleSize int, seed int64) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open background dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse background dataset: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("background dataset has no data rows")
	}

	header := records[0]
	if len(header) != len(schema) {
		return nil, fmt.Errorf("background header has %d columns, expected %d",
			len(header), len(schema))
	}
	for i, name := range schema {
		if header[i] != name {
			return nil, fmt.Errorf("background column %d is %q, expected %q",
				i, header[i], name)
		}
	}

	rows := make([][]float64, 0, len(records)-1)
	for rowIdx, rec := range records[1:] {
		row := make([]float64, len(schema))
		for i, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("background row %d column %q: %w", rowIdx+1, schema[i], err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return SampleRows(rows, sampleSize, seed), nil
}

// SampleRows draws up to sampleSize rows without replacement using a fixed
// seed. Returns the input unchanged when it is already within bounds.
func SampleRows(rows [][]float64, sampleSize int, seed int64) [][]float64 {
	if sampleSize <= 0 || len(rows) <= sampleSize {
		return rows
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(rows))

	sampled := make([][]float64, sampleSize)
	for i := 0; i < sampleSize; i++ {
		sampled[i] = rows[perm[i]]
	}
	return sampled
}
