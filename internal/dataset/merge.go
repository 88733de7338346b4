package dataset

import "strings"

// Merge concatenates datasets into one. Columns keep their first-seen order and
// cells of columns a source lacks are left empty. Exact duplicate rows are
// dropped, keeping the first occurrence.
func Merge(parts ...*Dataset) *Dataset {
	merged := &Dataset{}
	index := make(map[string]int)
	for _, part := range parts {
		if part == nil {
			continue
		}
		for _, col := range part.Columns {
			if _, ok := index[col]; ok {
				continue
			}
			index[col] = len(merged.Columns)
			merged.Columns = append(merged.Columns, col)
		}
	}

	seen := make(map[string]struct{})
	for _, part := range parts {
		if part == nil {
			continue
		}
		positions := make([]int, len(part.Columns))
		for i, col := range part.Columns {
			positions[i] = index[col]
		}
		for _, src := range part.Rows {
			row := make([]string, len(merged.Columns))
			for i, pos := range positions {
				if i < len(src) {
					row[pos] = src[i]
				}
			}
			key := strings.Join(row, "\x1f")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged.Rows = append(merged.Rows, row)
		}
	}
	return merged
}
