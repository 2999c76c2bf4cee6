package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrossAmount(t *testing.T) {
	v, err := NewGrossAmount(d("10.005"))
	require.NoError(t, err)
	assert.True(t, v.Equal(d("10.01")), "got %s", v)

	_, err = NewGrossAmount(decimal.Zero)
	assert.Error(t, err)

	_, err = NewGrossAmount(d("-1"))
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("199.90")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("199.90")))

	_, err = ParseAmount("not-a-number")
	assert.Error(t, err)

	_, err = ParseAmount("")
	assert.Error(t, err)
}

func TestSameAmount(t *testing.T) {
	assert.True(t, SameAmount(d("10"), d("10.00")))
	assert.True(t, SameAmount(d("10.004"), d("10.001")))
	assert.False(t, SameAmount(d("10.00"), d("10.01")))
	assert.False(t, SameAmount(d("10.005"), d("10.00")))
}
