package repository

import (
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
)

// vectorLiteral renders an embedding in pgvector's text form, e.g. [0.1,0.2].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
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

// vectorValue is an insert value for a nullable vector column.
func vectorValue(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	return squirrel.Expr("?::vector", vectorLiteral(v))
}
