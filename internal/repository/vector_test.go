package repository

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[0.5,-1,0.25]", vectorLiteral([]float32{0.5, -1, 0.25}))
}

func TestVectorValue(t *testing.T) {
	assert.Nil(t, vectorValue(nil))

	expr, ok := vectorValue([]float32{1, 2}).(squirrel.Sqlizer)
	require.True(t, ok)
	sql, args, err := expr.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "?::vector", sql)
	assert.Equal(t, []interface{}{"[1,2]"}, args)
}

func TestSearchSimilarQueryShape(t *testing.T) {
	sql, args, err := squirrel.Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{"user_id": "u1"}).
		Where("embedding IS NOT NULL").
		OrderByClause("embedding <=> ?::vector", vectorLiteral([]float32{1})).
		Limit(3).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE user_id = $1 AND embedding IS NOT NULL")
	assert.Contains(t, sql, "ORDER BY embedding <=> $2::vector")
	assert.Equal(t, []interface{}{"u1", "[1]"}, args)
}
