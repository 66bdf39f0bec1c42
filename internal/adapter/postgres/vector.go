package postgres

import (
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Builder returns a squirrel statement builder using $N placeholders.
func Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// VectorLiteral formats an embedding in pgvector text form ("[0.1,0.2]").
// Bind it with an explicit ::vector cast.
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
