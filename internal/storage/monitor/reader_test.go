package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultLimit, clampLimit(0))
	assert.Equal(t, defaultLimit, clampLimit(-5))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxLimit, clampLimit(maxLimit+1))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "ETH", normalizeSymbol(" eth "))
}
