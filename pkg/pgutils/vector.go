// Package pgutils holds small helpers for talking to pgvector through raw SQL,
// since bun has no native vector column type.
package pgutils

import (
	"strconv"
	"strings"
)

// FormatVector renders a float32 vector as a pgvector literal, e.g. "[0.1,0.2,0.3]".
func FormatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*12 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
