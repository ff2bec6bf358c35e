package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCache_SetGet(t *testing.T) {
	c := New()
	c.Set("key", "value", time.Minute)

	got, found := c.Get("key")
	assert.True(t, found)
	assert.Equal(t, "value", got)
}

func TestCache_ExpiredEntryEvicted(t *testing.T) {
	c := New()
	c.Set("key", "value", -time.Second)

	_, found := c.Get("key")
	assert.False(t, found)
}

func TestCache_Delete(t *testing.T) {
	c := New()
	c.Set("key", "value", time.Minute)
	c.Delete("key")

	_, found := c.Get("key")
	assert.False(t, found)
}

func TestCache_InvalidateByPrefix(t *testing.T) {
	c := New()
	userID := uuid.New()
	c.Set(EscrowSummaryCacheKey(userID), 1, time.Minute)
	c.Set(RatingSummaryCacheKey(userID), 2, time.Minute)
	c.Set("unrelated", 3, time.Minute)

	c.InvalidateUserCache(userID)

	_, found := c.Get(EscrowSummaryCacheKey(userID))
	assert.False(t, found)
	_, found = c.Get(RatingSummaryCacheKey(userID))
	assert.False(t, found)
	_, found = c.Get("unrelated")
	assert.True(t, found)
}

func TestCache_GetOrSet(t *testing.T) {
	c := New()
	ctx := context.Background()
	calls := 0

	fn := func() (interface{}, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrSet(ctx, "key", time.Minute, fn)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrSet(ctx, "key", time.Minute, fn)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrSet_ErrorNotCached(t *testing.T) {
	c := New()
	ctx := context.Background()

	_, err := c.GetOrSet(ctx, "key", time.Minute, func() (interface{}, error) {
		return nil, errors.New("временная ошибка")
	})
	assert.Error(t, err)

	v, err := c.GetOrSet(ctx, "key", time.Minute, func() (interface{}, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", v)
}
