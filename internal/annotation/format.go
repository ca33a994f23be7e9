package annotation

import (
	"fmt"
	"sort"
	"strings"
)

// FormatRows renders an id => value mapping sorted by id, using the same
// arrow notation scripts use.
func FormatRows(rows map[int64]int64) string {
	keys := make([]int64, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d => %d", k, rows[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
