// Package dataset loads benchmark equations from a CSV file with the header
// ID,Equation,Answer,Type,Complexity. Extra columns are ignored.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

type Row struct {
	ID       string
	Equation string
	Answer   float64
	Type     string
	// Complexity is a precomputed score passed through to the output.
	Complexity float64
}

var required = []string{"ID", "Equation", "Answer", "Type", "Complexity"}

// typeAliases fixes known misspellings in the source dataset.
var typeAliases = map[string]string{
	"Common-Divison":  "Division",
	"Common-Division": "Division",
}

func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()
	rows, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	return rows, nil
}

func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []Row
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		row := Row{ID: field("ID"), Equation: field("Equation"), Type: field("Type")}
		if row.ID == "" {
			return nil, fmt.Errorf("line %d: empty ID", line)
		}
		if seen[row.ID] {
			return nil, fmt.Errorf("line %d: duplicate ID %q", line, row.ID)
		}
		seen[row.ID] = true
		if row.Equation == "" {
			return nil, fmt.Errorf("line %d: empty equation for %s", line, row.ID)
		}
		if row.Answer, err = parseNumber(field("Answer")); err != nil {
			return nil, fmt.Errorf("line %d: answer: %w", line, err)
		}
		if c := field("Complexity"); c != "" {
			if row.Complexity, err = parseNumber(c); err != nil {
				return nil, fmt.Errorf("line %d: complexity: %w", line, err)
			}
		}
		if alias, ok := typeAliases[row.Type]; ok {
			row.Type = alias
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return v, nil
}

// Filter keeps rows of the given type (all rows if typ is empty) and then at
// most limit rows (no limit if limit <= 0).
func Filter(rows []Row, typ string, limit int) []Row {
	var out []Row
	for _, r := range rows {
		if typ != "" && !strings.EqualFold(r.Type, typ) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// CountByType returns the number of rows per type.
func CountByType(rows []Row) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Type]++
	}
	return counts
}
