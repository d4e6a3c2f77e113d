package us

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" mmm", "AAPL", "", "MMM", "aal "})
	assert.Equal(t, []string{"AAL", "AAPL", "MMM"}, got)
	assert.Empty(t, NormalizeSymbols(nil))
}

func TestBatches(t *testing.T) {
	syms := []string{"A", "B", "C", "D", "E"}
	got := Batches(syms, 2)
	assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}, {"E"}}, got)
	assert.Len(t, Batches(syms, 0), 5, "size 0 falls back to 1")
	assert.Nil(t, Batches(nil, 3))
}
