package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff_AddsAndRemoves(t *testing.T) {
	result := diff([]string{"p-1", "p-2", "p-3"}, []string{"p-2", "p-4"})

	assert.Equal(t, []string{"p-4"}, result.Added)
	assert.ElementsMatch(t, []string{"p-1", "p-3"}, result.Removed)
}

func TestDiff_NoChanges(t *testing.T) {
	result := diff([]string{"p-1", "p-2"}, []string{"p-1", "p-2"})

	assert.Empty(t, result.Added)
	assert.Empty(t, result.Removed)
}

func TestDiff_DisjointSets(t *testing.T) {
	result := diff([]string{"p-1"}, []string{"p-2", "p-3"})

	assert.Equal(t, []string{"p-2", "p-3"}, result.Added)
	assert.Equal(t, []string{"p-1"}, result.Removed)
}

func TestDiff_EmptyDesiredRemovesEverything(t *testing.T) {
	result := diff([]string{"p-1", "p-2"}, nil)

	assert.Empty(t, result.Added)
	assert.Equal(t, []string{"p-1", "p-2"}, result.Removed)
}
