package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryFood, ParseCategory("food"))
	assert.Equal(t, CategoryFood, ParseCategory("  FOOD "))
	assert.Equal(t, CategorySubscriptions, ParseCategory("Subscriptions"))
	assert.Equal(t, CategoryOther, ParseCategory("Groceries"))
	assert.Equal(t, CategoryOther, ParseCategory(""))
}
