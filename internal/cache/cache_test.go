package cache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/cache"
	"github.com/feral-file/batch-ledger/internal/mocks"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(2)

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))

	// touching a makes b the least recently used entry
	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, c.Set(ctx, "c", []byte("3")))

	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(0)

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value))
	value[0] = 'x'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(16)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("%d-%d", i, j%20)
				_ = c.Set(ctx, key, []byte(key))
				_, _, _ = c.Get(ctx, key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func TestRedisCache(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*mocks.MockRedisClient)
		run        func(t *testing.T, c cache.Cache)
	}{
		{
			name: "hit",
			setupMocks: func(m *mocks.MockRedisClient) {
				m.EXPECT().Get(gomock.Any(), "meta:cid").Return([]byte("doc"), nil)
			},
			run: func(t *testing.T, c cache.Cache) {
				v, ok, err := c.Get(context.Background(), "cid")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, []byte("doc"), v)
			},
		},
		{
			name: "miss",
			setupMocks: func(m *mocks.MockRedisClient) {
				m.EXPECT().Get(gomock.Any(), "meta:cid").Return(nil, adapter.ErrRedisNil)
			},
			run: func(t *testing.T, c cache.Cache) {
				_, ok, err := c.Get(context.Background(), "cid")
				require.NoError(t, err)
				assert.False(t, ok)
			},
		},
		{
			name: "get error",
			setupMocks: func(m *mocks.MockRedisClient) {
				m.EXPECT().Get(gomock.Any(), "meta:cid").Return(nil, errors.New("connection refused"))
			},
			run: func(t *testing.T, c cache.Cache) {
				_, _, err := c.Get(context.Background(), "cid")
				require.Error(t, err)
				assert.Contains(t, err.Error(), "connection refused")
			},
		},
		{
			name: "set uses ttl",
			setupMocks: func(m *mocks.MockRedisClient) {
				m.EXPECT().Set(gomock.Any(), "meta:cid", []byte("doc"), time.Hour).Return(nil)
			},
			run: func(t *testing.T, c cache.Cache) {
				require.NoError(t, c.Set(context.Background(), "cid", []byte("doc")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			client := mocks.NewMockRedisClient(ctrl)
			tt.setupMocks(client)
			tt.run(t, cache.NewRedisCache(client, "meta:", time.Hour))
		})
	}
}
