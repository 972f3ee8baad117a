package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	t.Parallel()
	c := NewCounter("")

	tests := []struct {
		name     string
		text     string
		minCount int
		maxCount int
	}{
		{"empty", "", 0, 0},
		{"simple", "Hello, world!", 3, 5},
		{"sentence", "The quick brown fox jumps over the lazy dog.", 8, 12},
		{"french", "Cherche une actrice de 30 ans avec un accent marseillais.", 10, 25},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := c.Count(tt.text)
			assert.GreaterOrEqual(t, n, tt.minCount)
			assert.LessOrEqual(t, n, tt.maxCount)
		})
	}
}

func TestFitToBudget(t *testing.T) {
	t.Parallel()
	c := NewCounter(DefaultEncoding)
	item := strings.Repeat("actor ", 10) // about ten tokens
	items := []string{item, item, item, item}

	perItem := c.Count(item)
	fixed := "question"
	base := c.Count(fixed)

	assert.Equal(t, 4, c.FitToBudget(fixed, items, 1_000_000))
	assert.Equal(t, 2, c.FitToBudget(fixed, items, base+2*perItem))
	assert.Equal(t, 2, c.FitToBudget(fixed, items, base+3*perItem-1))
	assert.Equal(t, 0, c.FitToBudget(fixed, items, base))
	assert.Equal(t, 0, c.FitToBudget(fixed, nil, 10))
}

func TestCount_FallbackEstimate(t *testing.T) {
	t.Parallel()
	c := NewCounter("no-such-encoding")
	assert.Equal(t, 3, c.Count("abcdefghij"))
	assert.Equal(t, 0, c.Count(""))
}
