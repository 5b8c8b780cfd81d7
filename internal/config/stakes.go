package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadStakes reads the "stake" column of a CSV file with a header line.
// At most n stakes are kept; when the file has fewer rows the remaining
// nodes get the average stake of the rows read.
func LoadStakes(path string, n int) ([]int64, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: stake file is empty", ErrInvalidConfiguration)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stake file %s: %w", path, err)
	}
	defer f.Close()

	stakes, err := ReadStakes(f, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read stake file %s: %w", path, err)
	}
	return stakes, nil
}

// ReadStakes is LoadStakes over an arbitrary reader
func ReadStakes(r io.Reader, n int) ([]int64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrInvalidConfiguration)
		}
		return nil, err
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "stake") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: no stake column", ErrInvalidConfiguration)
	}

	stakes := make([]int64, 0, n)
	var sum int64
	for len(stakes) < n {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if col >= len(rec) {
			return nil, fmt.Errorf("%w: line %d has no stake", ErrInvalidConfiguration, len(stakes)+2)
		}
		s, err := strconv.ParseInt(strings.TrimSpace(rec[col]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidConfiguration, len(stakes)+2, err)
		}
		if s < 0 {
			return nil, fmt.Errorf("%w: line %d: negative stake %d", ErrInvalidConfiguration, len(stakes)+2, s)
		}
		stakes = append(stakes, s)
		sum += s
	}

	var avg int64
	if len(stakes) > 0 {
		avg = sum / int64(len(stakes))
	}
	for len(stakes) < n {
		stakes = append(stakes, avg)
	}
	return stakes, nil
}
