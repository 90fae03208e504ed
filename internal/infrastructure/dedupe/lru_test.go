package dedupe

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCache(t *testing.T) {
	cache, err := NewEventCache(2)
	require.NoError(t, err)

	assert.False(t, cache.Seen("evt-1"))
	cache.Mark("evt-1")
	assert.True(t, cache.Seen("evt-1"))

	cache.Mark("")
	assert.False(t, cache.Seen(""))
	assert.Equal(t, 1, cache.Len())

	cache.Mark("evt-2")
	cache.Mark("evt-3")
	assert.False(t, cache.Seen("evt-1"), "oldest id is evicted")
	assert.True(t, cache.Seen("evt-3"))
}

func TestNewEventCache_DefaultSize(t *testing.T) {
	cache, err := NewEventCache(0)
	require.NoError(t, err)
	for i := 0; i < DefaultSize+10; i++ {
		cache.Mark("evt-" + strconv.Itoa(i))
	}
	assert.Equal(t, DefaultSize, cache.Len())
}
