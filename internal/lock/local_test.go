package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, HomeKey(1))
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.entries)
}

func TestLocal_DifferentKeysIndependent(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	r1, err := l.Acquire(ctx, HomeKey(1))
	require.NoError(t, err)
	defer r1()

	r2, err := l.Acquire(ctx, HomeKey(2))
	require.NoError(t, err)
	r2()
}

func TestLocal_ContextTimeout(t *testing.T) {
	l := NewLocal()
	held, err := l.Acquire(context.Background(), RegistryKey)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, RegistryKey)
	assert.True(t, errors.Is(err, ErrNotAcquired))

	held()
	held() // second release is a no-op

	r, err := l.Acquire(context.Background(), RegistryKey)
	require.NoError(t, err)
	r()
}
