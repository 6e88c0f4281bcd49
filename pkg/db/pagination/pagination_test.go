package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2025-03-12T15:00:00Z"})
	require.NoError(t, err)
	assert.NotContains(t, token, "=")

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
	assert.Equal(t, "2025-03-12T15:00:00Z", cursor.CreatedAt)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor("bm90LWpzb24")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Size())
}

func TestBuildCursorPageInfo(t *testing.T) {
	page, info := BuildCursorPageInfo([]int{1, 2, 3}, 2, func(v int) string {
		return "next"
	})
	assert.Equal(t, []int{1, 2}, page)
	assert.True(t, info.HasMore)
	assert.Equal(t, "next", info.NextPageToken)

	page, info = BuildCursorPageInfo([]int{1}, 2, func(int) string { return "unused" })
	assert.Equal(t, []int{1}, page)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
