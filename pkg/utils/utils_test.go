package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageConfigFromStrings(t *testing.T) {
	page, size, err := PageConfigFromStrings("", "")
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)

	page, size, err = PageConfigFromStrings("3", "5")
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	assert.Equal(t, 5, size)

	_, _, err = PageConfigFromStrings("0", "")
	assert.Error(t, err)
	_, _, err = PageConfigFromStrings("", "x")
	assert.Error(t, err)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, Paginate(items, 1, 2))
	assert.Equal(t, []int{5}, Paginate(items, 3, 2))
	assert.Empty(t, Paginate(items, 4, 2))
}

func TestPointers(t *testing.T) {
	p := GetPointer("x")
	assert.Equal(t, "x", DerefOr(p, "y"))
	assert.Equal(t, "y", DerefOr[string](nil, "y"))
	assert.Equal(t, "b", FirstNonEmpty("", "b", "c"))
	assert.Equal(t, "", FirstNonEmpty())
}
