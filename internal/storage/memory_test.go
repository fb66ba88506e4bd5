package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value))
	value[0] = 'z'

	got, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got, "stored values are copied")

	require.NoError(t, m.Update(ctx, "k", func(cur []byte) ([]byte, error) {
		return append(cur, 'd'), nil
	}))
	got, _ = m.Get(ctx, "k")
	assert.Equal(t, []byte("abcd"), got)

	require.NoError(t, m.Update(ctx, "k", func([]byte) ([]byte, error) { return nil, nil }))
	got, _ = m.Get(ctx, "k")
	assert.Nil(t, got)
}

func TestMemoryStorage_FailWith(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("storage offline")
	m := NewMemoryStorage()
	m.FailWith = boom

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, m.Set(ctx, "k", nil), boom)
	assert.ErrorIs(t, m.Delete(ctx, "k"), boom)
	assert.ErrorIs(t, m.Update(ctx, "k", func(b []byte) ([]byte, error) { return b, nil }), boom)
}

func TestMemoryStorage_ConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Update(ctx, "n", func(cur []byte) ([]byte, error) {
				return append(cur, 'x'), nil
			})
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, "n")
	require.NoError(t, err)
	assert.Len(t, got, 50)
}
