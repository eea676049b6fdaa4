package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	from, limit := Calculate(1, 10)
	assert.Equal(t, 0, from)
	assert.Equal(t, 10, limit)

	from, limit = Calculate(3, 20)
	assert.Equal(t, 40, from)
	assert.Equal(t, 20, limit)

	from, limit = Calculate(0, 0)
	assert.Equal(t, 0, from)
	assert.Equal(t, 10, limit, "defaults for missing params")

	from, limit = Calculate(-5, 500)
	assert.Equal(t, 0, from)
	assert.Equal(t, 10, limit, "oversized page size is clamped")
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "uchi mata", NormalizeQuery("  uchi mata \t"))
	assert.Equal(t, "", NormalizeQuery("   "))
}
